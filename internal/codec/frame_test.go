package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestInvertRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(0, 64).Draw(t, "n")
		b := rapid.SliceOfN(rapid.Byte(), n, n).Draw(t, "bytes")
		orig := append([]byte(nil), b...)
		Invert(b)
		Invert(b)
		assert.Equal(t, orig, b)
	})
}

func TestBuildFrameLengthAlwaysAligned(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		parmLen := rapid.IntRange(0, 140).Draw(t, "parmLen")
		respLen := rapid.IntRange(0, 18).Draw(t, "respLen")
		chipID := uint8(rapid.IntRange(0, 22).Draw(t, "chipID"))
		params := make([]byte, parmLen)
		f := Build(OpWriteParm, chipID, params, respLen)
		assert.Equal(t, 0, len(f.Bytes())%4)
	})
}

func TestFrameRoundTripFields(t *testing.T) {
	f := Build(OpReadID, 5, nil, 4)
	assert.Equal(t, OpReadID, f.Opcode())
	assert.Equal(t, uint8(5), f.ChipID())
	assert.Equal(t, 0, f.ParmLen())
	assert.Equal(t, 8, len(f.Bytes()))
}

func TestViewMatchesEchoedHeader(t *testing.T) {
	f := Build(OpReadFeature, 3, nil, 4)
	raw := append([]byte(nil), f.Bytes()...)
	raw[0] = byte(OpReadFeature)
	raw[1] = 3
	v := NewView(raw, f.ParmLen())
	assert.True(t, v.Matches(OpReadFeature, 3))
	assert.False(t, v.Matches(OpReadFeature, 4))
}

func TestViewResponseOffset(t *testing.T) {
	f := Build(OpReadResult, 1, nil, 18)
	raw := make([]byte, len(f.Bytes()))
	raw[0] = byte(OpReadResult)
	raw[1] = 1
	raw[2] = 0xAB
	v := NewView(raw, 0)
	resp := v.Response()
	assert.Equal(t, byte(0xAB), resp[0])
}
