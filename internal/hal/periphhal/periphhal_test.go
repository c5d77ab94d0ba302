package periphhal

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPinName(t *testing.T) {
	assert.Equal(t, "GPIO22", PinName(22))
	assert.Equal(t, "GPIO8", PinName(8))
}
