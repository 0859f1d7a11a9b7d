package chain

import "github.com/btc08/chaindriver/internal/transport"

// countingBus wraps a transport.Bus and records call counts/frames so
// tests can assert on-wire traffic shape (spec.md §8 scenarios 3 and 5)
// without a logic analyzer.
type countingBus struct {
	transport.Bus
	fastCalls int
	batches   [][]transport.Frame
}

func (b *countingBus) TransferFast(tx, rx []byte) error {
	b.fastCalls++
	return b.Bus.TransferFast(tx, rx)
}

func (b *countingBus) TransferBatch(frames []transport.Frame) error {
	b.batches = append(b.batches, frames)
	return b.Bus.TransferBatch(frames)
}
