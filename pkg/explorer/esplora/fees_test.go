package esplora

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFeeForTarget(t *testing.T) {
	estimates := map[string]float64{
		"1":  87.5,
		"3":  52.1,
		"6":  25.0,
		"25": 10.2,
	}

	tests := []struct {
		targetBlocks int
		expected     float64
	}{
		{1, 87500},
		{3, 52100},
		// missing targets fall back to the closest smaller one
		{5, 52100},
		{6, 25000},
		{100, 10200},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, feeForTarget(estimates, tt.targetBlocks))
	}

	// a target faster than any quote falls back to the fastest one
	assert.Equal(t, 87500.0, feeForTarget(map[string]float64{"2": 87.5}, 1))

	// no quotes at all means minimum relay rate
	assert.Equal(t, float64(minFeeSatsPerKilobyte), feeForTarget(nil, 1))
}
