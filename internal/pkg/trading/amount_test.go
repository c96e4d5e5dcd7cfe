package trading

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCloseAmount(t *testing.T) {
	assert.Equal(t, 0.5, CloseAmount(1, 0.5))
	assert.Equal(t, 2.0, CloseAmount(2, 1.5))
	assert.Equal(t, 0.0, CloseAmount(0, 0.5))
	assert.Equal(t, 0.0, CloseAmount(1, -1))
}
