package pll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestSelectRejectsBelowMinimum(t *testing.T) {
	_, err := Select(10)
	assert.ErrorIs(t, err, ErrBelowMinimum)
}

func TestSelectClampsAboveMaximum(t *testing.T) {
	e, err := Select(5000)
	assert.NoError(t, err)
	assert.Equal(t, MaxTableMHz, e.MHz)
}

func TestSelectReturnsClosestTableEntry(t *testing.T) {
	e, err := Select(651)
	assert.NoError(t, err)
	assert.InDelta(t, 651, e.MHz, 2)
}

func TestWordEncodesFieldsAtDocumentedOffsets(t *testing.T) {
	e := Entry{P: 1, M: 52, S: 2}
	w := Word(e, WordOptions{FeedEn: true})
	assert.Equal(t, uint32(1), (w>>26)&0x3F)
	assert.Equal(t, uint32(52), (w>>16)&0x3FF)
	assert.Equal(t, uint32(2), (w>>13)&0x7)
	assert.Equal(t, uint32(1), (w>>4)&1)
}

func TestLockedReadsBit7(t *testing.T) {
	assert.True(t, Locked(0x80))
	assert.False(t, Locked(0x7F))
}

func TestTargetNBitsRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		exponent := rapid.IntRange(3, 32).Draw(t, "exponent")
		mantissa := rapid.Uint32Range(0, 0x7FFFFF).Draw(t, "mantissa")
		nbits := uint32(exponent)<<24 | mantissa
		// Only canonical compact values round-trip: below 0x8000 the
		// mantissa's top byte is zero and NBitsFromTarget normalizes it
		// to a lower exponent.
		if mantissa < 0x8000 {
			return
		}
		target := TargetFromNBits(nbits)
		got := NBitsFromTarget(target)
		assert.Equal(t, nbits, got)
	})
}

func TestDeriveSelectFormula(t *testing.T) {
	// The golden BIST vector's WRITE_TARGET bytes (spec.md §8 scenario 2)
	// are a literal calibration constant, not derived through this
	// formula — it only governs set_work's real-target path (spec.md
	// §4.4). Check it against its own documented shift/mask definition
	// instead of the golden bytes.
	select0, select1 := DeriveSelect(0x18000000)
	assert.Equal(t, uint8(5), select0)
	assert.Equal(t, uint8(0x10), select1)
}
