package chip

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestAssignRangesPartitionInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 22).Draw(t, "n")
		chips := make([]*Chip, n)
		for i := range chips {
			chips[i] = &Chip{
				NumCores: rapid.IntRange(1, MaxCores).Draw(t, "cores"),
				MHz:      rapid.IntRange(50, 1000).Draw(t, "mhz"),
			}
		}
		AssignRanges(chips, MaxNonceASIC)

		assert.Equal(t, uint32(0), chips[0].StartNonce)
		assert.Equal(t, MaxNonceASIC, chips[n-1].EndNonce)
		for i := 0; i < n-1; i++ {
			assert.Equal(t, chips[i].EndNonce+1, chips[i+1].StartNonce)
			assert.LessOrEqual(t, chips[i].StartNonce, chips[i].EndNonce)
		}
	})
}

func TestDisableMaskMarksCoresBeyondEnabled(t *testing.T) {
	mask := DisableMask(206)
	for _, b := range mask {
		assert.Equal(t, byte(0), b)
	}

	mask = DisableMask(0)
	for i := 0; i < MaxCores; i++ {
		assert.NotZero(t, mask[i/8]&(1<<uint(i%8)))
	}
}

func TestChipPerfAndClass(t *testing.T) {
	c := &Chip{NumCores: 100, MHz: 650, Feature: 5 << 8}
	assert.Equal(t, uint64(65000), c.Perf())
	assert.True(t, c.IsASIC())
	assert.Equal(t, MaxNonceASIC, c.MaxNonce())
}
