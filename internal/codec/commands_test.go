package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestWriteParmReadParmIdentity(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		payload := rapid.SliceOfN(rapid.Byte(), WriteParmLen, WriteParmLen).Draw(t, "payload")
		wf := WriteParm(1, payload)
		assert.Equal(t, OpWriteParm, wf.Opcode())

		rf := ReadParm(1)
		assert.Equal(t, byte(OpReadParm), rf.Bytes()[0])

		// Simulate the chip echoing back the written payload on a
		// READ_PARM response: response payload starts at headerLen+0.
		raw := make([]byte, len(rf.Bytes()))
		raw[0] = byte(OpReadParm)
		raw[1] = 1
		copy(raw[headerLen:], payload)
		v := NewView(raw, rf.ParmLen())
		assert.Equal(t, payload, v.Response()[:WriteParmLen])
	})
}

func TestWriteParmPanicsOnWrongLength(t *testing.T) {
	assert.Panics(t, func() {
		WriteParm(1, make([]byte, 10))
	})
}

func TestWriteTargetFieldLayout(t *testing.T) {
	f := WriteTarget(2, 0x17376F56, 0x05, 0x00)
	b := f.Bytes()
	assert.Equal(t, byte(OpWriteTarget), b[0])
	assert.Equal(t, byte(2), b[1])
	assert.Equal(t, []byte{0x17, 0x37, 0x6F, 0x56, 0x05, 0x00}, b[2:8])
}

func TestWriteNonceFieldLayout(t *testing.T) {
	f := WriteNonce(1, 0x66CB3426, 0x66CB3426)
	b := f.Bytes()
	assert.Equal(t, []byte{0x66, 0xCB, 0x34, 0x26, 0x66, 0xCB, 0x34, 0x26}, b[2:10])
}

func TestSetControlBitLayout(t *testing.T) {
	f := SetControl(17)
	b := f.Bytes()
	assert.Equal(t, byte(ControlOONIRQEn|17), b[2])
}
