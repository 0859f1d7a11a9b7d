// Package codec implements the BTC08 command frame layout (spec.md §4.2
// and §6): opcode + chip_id + params, zero-padded to a 4-byte boundary,
// with responses returned bit-inverted on the wire. It replaces the
// pointer-cast/union framing DESIGN NOTES §9 calls out, in favor of a
// typed frame builder (Build, returning a Frame: append fields, pad) and
// frame view (View: strip the echoed header, expose response fields by
// offset) — the same
// byte-at-a-time assembly style the teacher uses for KISS/AX.25 framing
// (doismellburning/samoyed src/kiss_frame.go, src/ax25_pad.go),
// generalized from variable-length escaped framing to fixed-layout
// command framing.
package codec

// Opcode is the BTC08 command byte (spec.md §4.2, full opcode set).
type Opcode uint8

const (
	OpReadID          Opcode = 0x00
	OpAutoAddress     Opcode = 0x01
	OpRunBist         Opcode = 0x02
	OpReadBist        Opcode = 0x03
	OpReset           Opcode = 0x04
	OpSetPLLConfig    Opcode = 0x05
	OpReadPLL         Opcode = 0x06
	OpWriteParm       Opcode = 0x07
	OpReadParm        Opcode = 0x08
	OpWriteTarget     Opcode = 0x09
	OpReadTarget      Opcode = 0x0A
	OpRunJob          Opcode = 0x0B
	OpReadJobID       Opcode = 0x0C
	OpReadResult      Opcode = 0x0D
	OpClearOON        Opcode = 0x0E
	OpSetDisable      Opcode = 0x0F
	OpReadDisable     Opcode = 0x10
	OpSetControl      Opcode = 0x11
	OpDebug           Opcode = 0x12
	OpWriteNonce      Opcode = 0x13
	OpWriteCoreCfg    Opcode = 0x14
	OpReadDebugCnt    Opcode = 0x15
	OpReadHash        Opcode = 0x16
	OpWriteIOCtrl     Opcode = 0x17
	OpReadIOCtrl      Opcode = 0x18
	OpReadFeature     Opcode = 0x19
	OpReadRevision    Opcode = 0x1A
	OpSetPLLFoutEn    Opcode = 0x1B
	OpSetPLLResetb    Opcode = 0x1C
	OpWriteCoreDepth  Opcode = 0x1D
	OpSetTMode        Opcode = 0x1E
)

// BroadcastChipID is chip_id 0, interpreted by every chip on the chain.
const BroadcastChipID uint8 = 0

func (o Opcode) String() string {
	switch o {
	case OpReadID:
		return "READ_ID"
	case OpAutoAddress:
		return "AUTO_ADDRESS"
	case OpRunBist:
		return "RUN_BIST"
	case OpReadBist:
		return "READ_BIST"
	case OpReset:
		return "RESET"
	case OpSetPLLConfig:
		return "SET_PLL_CONFIG"
	case OpReadPLL:
		return "READ_PLL"
	case OpWriteParm:
		return "WRITE_PARM"
	case OpReadParm:
		return "READ_PARM"
	case OpWriteTarget:
		return "WRITE_TARGET"
	case OpReadTarget:
		return "READ_TARGET"
	case OpRunJob:
		return "RUN_JOB"
	case OpReadJobID:
		return "READ_JOB_ID"
	case OpReadResult:
		return "READ_RESULT"
	case OpClearOON:
		return "CLEAR_OON"
	case OpSetDisable:
		return "SET_DISABLE"
	case OpReadDisable:
		return "READ_DISABLE"
	case OpSetControl:
		return "SET_CONTROL"
	case OpDebug:
		return "DEBUG"
	case OpWriteNonce:
		return "WRITE_NONCE"
	case OpWriteCoreCfg:
		return "WRITE_CORE_CFG"
	case OpReadDebugCnt:
		return "READ_DEBUGCNT"
	case OpReadHash:
		return "READ_HASH"
	case OpWriteIOCtrl:
		return "WRITE_IO_CTRL"
	case OpReadIOCtrl:
		return "READ_IO_CTRL"
	case OpReadFeature:
		return "READ_FEATURE"
	case OpReadRevision:
		return "READ_REVISION"
	case OpSetPLLFoutEn:
		return "SET_PLL_FOUT_EN"
	case OpSetPLLResetb:
		return "SET_PLL_RESETB"
	case OpWriteCoreDepth:
		return "WRITE_CORE_DEPTH"
	case OpSetTMode:
		return "SET_TMODE"
	default:
		return "UNKNOWN"
	}
}
