package symbol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseAcceptsExchangeSpellings(t *testing.T) {
	for _, in := range []string{"ETH/USDT", "eth-usdt", "ETH_USDT", "ETHUSDT", "ETH/USDT:USDT"} {
		assert.Equal(t, Symbol{Base: "ETH", Quote: "USDT"}, Parse(in), in)
	}
	assert.Equal(t, Symbol{}, Parse("???"))
	assert.False(t, IsValid(""))
}

func TestConvertersPerExchange(t *testing.T) {
	assert.Equal(t, "ETH-USDT", OKX.ToExchange("ETH/USDT"))
	assert.Equal(t, "ETH-USDT", KuCoin.ToExchange("ethusdt"))
	assert.Equal(t, "ETHUSDT", Binance.ToExchange("ETH/USDT"))
	assert.Equal(t, "ETHUSDT", Bybit.ToExchange("ETH-USDT"))
	assert.Equal(t, "ETH_USDT", Gate.ToExchange("ETH/USDT"))
	assert.Equal(t, "ETH/USDT", Gate.FromExchange("ETH_USDT"))
	assert.Equal(t, FormatUnder, Gate.Format())
}
