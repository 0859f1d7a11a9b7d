// Package transport implements the framed SPI I/O primitives of
// spec.md §4.1: a single raw transfer, a fast transfer at a separate,
// higher clock (FastASICKHz/FastFPGAKHz) for back-to-back command
// streams, and a batched multi-frame burst. Two
// backends satisfy Bus: SPIDevBus against real hardware via periph.io's
// spidev wrapper, and PipeBus for the in-process test-mode harness
// (internal/testmode), grounded on the pack's google/periph
// host/sysfs/spi.go reference (the periph.io ecosystem convention for
// Linux spidev access) and on the teacher's own pty-backed loopback
// testing style (doismellburning/samoyed src/kiss.go, which drives a
// virtual serial port through github.com/creack/pty the same way).
package transport

import "errors"

// ErrLengthAlignment is returned by TransferFast when len is not a
// multiple of 4 (spec.md §4.1 precondition).
var ErrLengthAlignment = errors.New("transport: length must be a multiple of 4 for fast transfer")

// Frame is one leg of a TransferBatch burst: its own tx/rx buffers, a
// per-frame fast-path flag, and a chip-select-change marker (spec.md
// §4.1). CSChange is carried but neither backend acts on it.
type Frame struct {
	TX       []byte
	RX       []byte
	Fast     bool
	CSChange bool
}

// Bus is the transport contract. A Bus is owned exclusively by one chain
// for the process lifetime (spec.md §5 "Shared resources").
type Bus interface {
	// Transfer exchanges len(tx) bytes at the configured default bus
	// speed. rx is pre-filled with 0xFF before the exchange.
	Transfer(tx, rx []byte) error

	// TransferFast is identical but at the fast-path speed ceiling
	// (spec.md §4.1: 10 MHz ASIC / 4 MHz FPGA). len(tx) must be a
	// multiple of 4.
	TransferFast(tx, rx []byte) error

	// TransferBatch submits frames in order, each at its own speed.
	// PipeBus holds its lock across all frames; SPIDevBus issues one
	// Tx per frame, so the frames are separate transfers rather than
	// one gapless burst.
	TransferBatch(frames []Frame) error

	// Close releases the underlying device.
	Close() error
}

func fill(b []byte, v byte) {
	for i := range b {
		b[i] = v
	}
}
