package chain

import "github.com/btc08/chaindriver/internal/codec"

// GoldenVector is the calibration input to the BIST broadcast (spec.md
// §4.3 step 8, §8 scenario 2): a known WRITE_PARM payload, target,
// nonce range, and the BIST_HASH each chip is expected to reproduce.
// The exact midstate/hash bytes are supplied by board calibration data,
// a collaborator concern out of this package's scope (spec.md §1
// "SHA-256 midstate computation... precomputed by the host"); Init
// accepts a GoldenVector rather than hardcoding one so a production
// caller can load it from the board's calibration blob and the
// test-mode harness can inject the worked example of spec.md §8.
type GoldenVector struct {
	Param        [codec.WriteParmLen]byte
	NBits        uint32
	Select0      uint8
	Select1      uint8
	NonceStart   uint32
	NonceEnd     uint32
	ExpectedHash [codec.BISTHashLen]byte
}

// Golden target/nonce bytes from spec.md §8 scenario 2: WRITE_TARGET
// golden_target = 17 37 6F 56 05 00; WRITE_NONCE = 66 CB 34 26 66 CB 34 26.
const (
	goldenNBits   uint32 = 0x17376F56
	goldenSelect0 uint8  = 0x05
	goldenSelect1 uint8  = 0x00
	goldenNonce   uint32 = 0x66CB3426
)

// DefaultGoldenVector reproduces spec.md §8 scenario 2's target and
// nonce range. Param and ExpectedHash are left zero, to be filled in by
// the caller from board calibration data before Init is invoked.
func DefaultGoldenVector() GoldenVector {
	return GoldenVector{
		NBits:      goldenNBits,
		Select0:    goldenSelect0,
		Select1:    goldenSelect1,
		NonceStart: goldenNonce,
		NonceEnd:   goldenNonce,
	}
}
