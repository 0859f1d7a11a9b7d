package codec

import "encoding/binary"

// Fixed payload sizes used throughout the command set (spec.md §3, §4.3,
// §6). MaxCoreBytes is ceil(206/8): one disable-mask bit per core.
const (
	MaxCoreBytes  = 26
	WriteParmLen  = 140 // midstate0(32) + header middle(12) + midstate1..3(32*3)
	BISTHashLen   = 128 // 1024 bits = 4x256, ASIC-boost variant
	WriteNonceLen = 8   // start(4) + end(4), big-endian
	WriteTargetLen = 6  // nbits(4, BE) + select(2)
)

// ReadID builds a READ_ID command addressed to chipID. Response is 4
// bytes; byte 3 echoes chip_id (spec.md §6).
func ReadID(chipID uint8) Frame {
	return Build(OpReadID, chipID, nil, 4)
}

// AutoAddress builds the chain self-addressing broadcast with its
// 32-byte zero parameter (spec.md §4.3 step 3). Response is 2 bytes;
// byte 1 is the detected chip count.
func AutoAddress() Frame {
	return Build(OpAutoAddress, BroadcastChipID, make([]byte, 32), 2)
}

// Reset builds the RESET broadcast (spec.md §4.3 step 2).
func Reset() Frame {
	return Build(OpReset, BroadcastChipID, nil, 0)
}

// ReadFeature builds a READ_FEATURE command. Response is the full
// feature dword; bits 8..11 distinguish FPGA (0) from ASIC (5).
func ReadFeature(chipID uint8) Frame {
	return Build(OpReadFeature, chipID, nil, 4)
}

// ReadRevision builds a READ_REVISION command.
func ReadRevision(chipID uint8) Frame {
	return Build(OpReadRevision, chipID, nil, 4)
}

// SetPLLFoutEn enables or disables the PLL output (spec.md §4.3 step 7,
// PLL program sequence).
func SetPLLFoutEn(chipID uint8, enable bool) Frame {
	return Build(OpSetPLLFoutEn, chipID, []byte{boolByte(enable)}, 0)
}

// SetPLLResetb asserts (false) or deasserts (true) the PLL's RESETB
// line.
func SetPLLResetb(chipID uint8, resetb bool) Frame {
	return Build(OpSetPLLResetb, chipID, []byte{boolByte(resetb)}, 0)
}

// SetPLLConfig writes the synthesized 32-bit PMS word (spec.md §9,
// explicit shift/mask encoding; see internal/pll).
func SetPLLConfig(chipID uint8, word uint32) Frame {
	p := make([]byte, 4)
	binary.BigEndian.PutUint32(p, word)
	return Build(OpSetPLLConfig, chipID, p, 0)
}

// ReadPLL builds a READ_PLL poll command. Response byte 1 bit 7 is the
// lock indicator.
func ReadPLL(chipID uint8) Frame {
	return Build(OpReadPLL, chipID, nil, 4)
}

// WriteParm builds a WRITE_PARM command carrying the 140-byte midstate
// and header-middle payload (spec.md §4.4 set_work contract).
func WriteParm(chipID uint8, payload []byte) Frame {
	if len(payload) != WriteParmLen {
		panic("codec: WriteParm payload must be 140 bytes")
	}
	return Build(OpWriteParm, chipID, payload, 0)
}

// ReadParm reads back a previously written WRITE_PARM payload, used by
// the encode/decode identity property (spec.md §8).
func ReadParm(chipID uint8) Frame {
	return Build(OpReadParm, chipID, nil, WriteParmLen)
}

// WriteTarget builds a WRITE_TARGET command: 4-byte big-endian nbits
// plus a 2-byte select field (spec.md §4.4).
func WriteTarget(chipID uint8, nbits uint32, select0, select1 uint8) Frame {
	p := make([]byte, WriteTargetLen)
	binary.BigEndian.PutUint32(p[0:4], nbits)
	p[4] = select0
	p[5] = select1
	return Build(OpWriteTarget, chipID, p, 0)
}

// WriteNonce builds a WRITE_NONCE command assigning [start, end]
// inclusive, used both for the golden BIST range and per-chip assigned
// nonce ranges (spec.md §4.3 steps 8 and 11).
func WriteNonce(chipID uint8, start, end uint32) Frame {
	p := make([]byte, WriteNonceLen)
	binary.BigEndian.PutUint32(p[0:4], start)
	binary.BigEndian.PutUint32(p[4:8], end)
	return Build(OpWriteNonce, chipID, p, 0)
}

// SetDisable builds a SET_DISABLE command with a per-core disable
// bitmask (spec.md §4.3 step 8). mask must be MaxCoreBytes long; bit i of
// byte i/8 set means core i is disabled.
func SetDisable(chipID uint8, mask []byte) Frame {
	p := make([]byte, MaxCoreBytes)
	copy(p, mask)
	return Build(OpSetDisable, chipID, p, 0)
}

// RunBist builds a RUN_BIST command carrying the expected BIST hash
// (spec.md §4.3 step 8).
func RunBist(chipID uint8, expectedHash []byte) Frame {
	p := make([]byte, BISTHashLen)
	copy(p, expectedHash)
	return Build(OpRunBist, chipID, p, 0)
}

// BIST status bits, response byte 0 of READ_BIST (spec.md §6).
const (
	BISTBusy = 1 << 0
)

// ReadBist polls BIST completion. Response byte 0 bit0 is busy/idle;
// byte 1 is the live core count.
func ReadBist(chipID uint8) Frame {
	return Build(OpReadBist, chipID, nil, 2)
}

// RunJob builds a RUN_JOB command: job_id plus the ASIC-boost enable bit
// (spec.md §4.4 set_work contract — "job_id in byte 3" of the frame,
// i.e. the second params byte here).
func RunJob(chipID uint8, jobID uint8, boost bool) Frame {
	return Build(OpRunJob, chipID, []byte{boolByte(boost), jobID}, 0)
}

// ReadJobID polls per-chip job status. Response byte 1 is the GN job_id;
// byte 2 bit0 is the GN flag, bit1 the OON flag, bits0..2 the in-flight
// count; byte 3 echoes chip_id.
func ReadJobID(chipID uint8) Frame {
	return Build(OpReadJobID, chipID, nil, 4)
}

// Bit positions within READ_JOB_ID's status byte (response byte 2).
const (
	JobStatusGN        = 1 << 0
	JobStatusOON       = 1 << 1
	JobStatusInFlightMask = 0x7
)

// ReadResult builds a READ_RESULT command. Response is 18 bytes: four
// big-endian nonces at offsets 0,4,8,12 and the micro_job_id mask at
// offset 17 (spec.md §6).
func ReadResult(chipID uint8) Frame {
	return Build(OpReadResult, chipID, nil, 18)
}

// ClearOON builds the CLEAR_OON broadcast, issued at fast-path speed
// (spec.md §4.4 step 3).
func ClearOON() Frame {
	return Build(OpClearOON, BroadcastChipID, nil, 0)
}

// SET_CONTROL bits (spec.md §4.3 step 12).
const (
	ControlOONIRQEn = 1 << 7
	controlUDivMask = 0x1F
)

// SetControl builds the SET_CONTROL broadcast enabling the OON IRQ with
// the given clock-divider value.
func SetControl(udiv uint8) Frame {
	b := ControlOONIRQEn | (udiv & controlUDivMask)
	return Build(OpSetControl, BroadcastChipID, []byte{byte(b)}, 0)
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}
