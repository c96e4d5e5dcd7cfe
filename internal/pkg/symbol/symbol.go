package symbol

import (
	"strings"
)

type Format string

const (
	FormatInternal Format = "internal"
	FormatDash     Format = "dash"
	FormatConcat   Format = "concat"
	FormatUnder    Format = "underscore"
)

// Converter 把内部统一的 "BASE/QUOTE" 写法映射为交易所的 instrument 写法。
type Converter interface {
	ToExchange(internal string) string

	FromExchange(raw string) string

	Format() Format
}

type Symbol struct {
	Base  string
	Quote string
}

func (s Symbol) Internal() string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + "/" + s.Quote
}

func (s Symbol) Join(sep string) string {
	if s.Base == "" || s.Quote == "" {
		return ""
	}
	return s.Base + sep + s.Quote
}

var quoteCurrencies = []string{"USDT", "USDC", "BUSD", "TUSD", "BTC", "ETH", "BNB"}

// Parse 识别 "ETH/USDT"、"ETH-USDT"、"ETH_USDT"、"ETHUSDT"、"ETH/USDT:USDT"。
func Parse(s string) Symbol {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return Symbol{}
	}

	if idx := strings.Index(s, ":"); idx >= 0 {
		s = s[:idx]
	}

	for _, sep := range []string{"/", "-", "_"} {
		if parts := strings.SplitN(s, sep, 2); len(parts) == 2 {
			return Symbol{
				Base:  strings.TrimSpace(parts[0]),
				Quote: strings.TrimSpace(parts[1]),
			}
		}
	}

	for _, quote := range quoteCurrencies {
		if strings.HasSuffix(s, quote) && len(s) > len(quote) {
			return Symbol{
				Base:  s[:len(s)-len(quote)],
				Quote: quote,
			}
		}
	}

	return Symbol{}
}

func Normalize(s string) string {
	return Parse(s).Internal()
}

func IsValid(s string) bool {
	sym := Parse(s)
	return sym.Base != "" && sym.Quote != ""
}

type joinConverter struct {
	sep    string
	format Format
}

func (c joinConverter) ToExchange(internal string) string {
	return Parse(internal).Join(c.sep)
}

func (c joinConverter) FromExchange(raw string) string {
	return Parse(raw).Internal()
}

func (c joinConverter) Format() Format { return c.format }

var (
	// OKX / KuCoin: ETH-USDT
	OKX    Converter = joinConverter{sep: "-", format: FormatDash}
	KuCoin Converter = joinConverter{sep: "-", format: FormatDash}
	// Binance / Bybit: ETHUSDT
	Binance Converter = joinConverter{sep: "", format: FormatConcat}
	Bybit   Converter = joinConverter{sep: "", format: FormatConcat}
	// Gate: ETH_USDT
	Gate Converter = joinConverter{sep: "_", format: FormatUnder}
)
