// Package devicetable is the registration record spec.md §9 calls for
// in place of inheriting the driver into a framework's device table:
// free functions (detect, scanwork, queue_full, flush, stats) that take
// a chain handle, instead of virtual dispatch through a base class. A
// framework registers these five functions once per discovered chain.
package devicetable

import (
	"github.com/btc08/chaindriver/internal/chain"
)

// hashesPerRange is the framework-accounting conversion spec.md §4.4
// step 3 specifies: "the framework reports nonce_ranges_processed ×
// 2^32 × 4".
const hashesPerRange = uint64(1) << 32 * 4

// Entry is the five-function record a framework registers per chain,
// mirroring spec.md §9's "record of function pointers supplied at
// registration".
type Entry struct {
	Detect    func() bool
	ScanWork  func() (uint64, error)
	QueueFull func() bool
	Flush     func() error
	Stats     func() chain.Stats
}

// New builds an Entry bound to c, using golden as the BIST calibration
// vector Detect supplies to Init/Flush.
func New(c *chain.Chain, golden chain.GoldenVector) Entry {
	return Entry{
		Detect: func() bool {
			return c.Init(golden) == nil
		},
		ScanWork: func() (uint64, error) {
			ranges, err := c.ScanWork()
			return uint64(ranges) * hashesPerRange, err
		},
		QueueFull: c.QueueFull,
		Flush: func() error {
			return c.Flush(golden)
		},
		Stats: c.Stats,
	}
}
