// Package pipeline holds the stateless formatting and decoding rules of
// the job pipeline contract (spec.md §4.4): assembling a WRITE_PARM
// payload from a work item's midstates and header middle, and decoding
// a READ_RESULT response into per-micro-job nonces with the hash-depth
// back-correction the GLOSSARY describes. None of these functions touch
// a chain's state or the transport; internal/chain calls them while
// holding its own lock and driving the SPI conversation.
package pipeline

import (
	"encoding/binary"

	"github.com/btc08/chaindriver/internal/codec"
	"github.com/btc08/chaindriver/internal/work"
)

// headerMiddleStart and headerMiddleEnd bound data[64:76]: merkle root
// tail, timestamp, and nbits (spec.md §4.4 "data[64..76] (12B:
// merkle_root+timestamp+nbits)").
const (
	headerMiddleStart = 64
	headerMiddleEnd   = 76
)

// FormatParm assembles the 140-byte WRITE_PARM payload: midstate0,
// the 12-byte header middle, then midstate1..3 (spec.md §4.4). Item.Midstates
// 1..3 are zero when !item.Boost; the chip ignores them in that mode.
func FormatParm(item *work.Item) [codec.WriteParmLen]byte {
	var p [codec.WriteParmLen]byte
	off := 0
	off += copy(p[off:], item.Midstates[0][:])
	off += copy(p[off:], item.Header[headerMiddleStart:headerMiddleEnd])
	off += copy(p[off:], item.Midstates[1][:])
	off += copy(p[off:], item.Midstates[2][:])
	copy(p[off:], item.Midstates[3][:])
	return p
}

// OverlayVersion returns the header a solved micro-job actually hashes:
// item.Header with bytes [0:4] replaced by item.VersionMasks[microJobID]
// when item.Boost is set (spec.md §4.4 step 2, "overlay the 4-byte
// version-mask variant into the work's data header"). Non-boost jobs (or
// an out-of-range microJobID) get item.Header back unchanged.
func OverlayVersion(item *work.Item, microJobID uint8) [128]byte {
	h := item.Header
	if item.Boost && int(microJobID) < len(item.VersionMasks) {
		binary.BigEndian.PutUint32(h[0:4], item.VersionMasks[microJobID])
	}
	return h
}

// Result is a decoded READ_RESULT response (spec.md §6): up to four
// ASIC-boost nonces and the bitmask of which are valid.
type Result struct {
	Nonces      [4]uint32
	MicroJobIDs uint8
}

// micro_job_id mask byte offset and the four nonce field offsets within
// an 18-byte READ_RESULT response (spec.md §6).
const (
	nonceFieldLen   = 4
	microJobIDIndex = 17
)

// DecodeResult reads the four big-endian nonces and the micro_job_id
// mask out of an 18-byte READ_RESULT response payload.
func DecodeResult(resp []byte) Result {
	var r Result
	for i := range r.Nonces {
		off := i * nonceFieldLen
		if off+nonceFieldLen > len(resp) {
			break
		}
		r.Nonces[i] = binary.BigEndian.Uint32(resp[off : off+nonceFieldLen])
	}
	if microJobIDIndex < len(resp) {
		r.MicroJobIDs = resp[microJobIDIndex]
	}
	return r
}

// BackCorrect undoes the per-core inner-loop offset a chip's reported
// nonce carries (GLOSSARY "Hash-depth"): the golden-nonce vector
// (spec.md §8 scenario 2) is `0x0D473A59 + hash_depth*num_cores`.
func BackCorrect(nonce uint32, hashDepth uint8, numCores int) uint32 {
	return nonce + uint32(hashDepth)*uint32(numCores)
}

// JobIDForSlot converts a 0-based job-slot index into the on-chip,
// 1-based job_id (spec.md §3 "Job slot index i corresponds to on-chip
// job_id = i+1").
func JobIDForSlot(slot int) uint8 {
	return uint8(slot + 1)
}

// SlotForJobID is the inverse of JobIDForSlot, used to locate the job
// ring entry a READ_JOB_ID/READ_RESULT response refers to.
func SlotForJobID(jobID uint8) int {
	return int(jobID) - 1
}

const ringSize = 8

// NextSlot advances a job-slot index modulo the 8-deep ring (spec.md §8
// "job-slot monotonicity").
func NextSlot(slot int) int {
	return (slot + 1) % ringSize
}
