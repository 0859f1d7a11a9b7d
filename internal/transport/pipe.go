package transport

import (
	"fmt"
	"io"
	"sync"
)

// PipeBus drives the transport contract over a plain byte stream
// (typically one side of a pty pair, see internal/testmode). It is not a
// faithful electrical simulation of full-duplex SPI — a pty is a
// half-duplex character stream — but it preserves the protocol-level
// contract Transfer/TransferFast/TransferBatch expose to callers: write
// the command, read back exactly as many bytes as the caller expects in
// response.
type PipeBus struct {
	rw io.ReadWriter
	mu sync.Mutex
}

// NewPipeBus wraps rw as a Bus.
func NewPipeBus(rw io.ReadWriter) *PipeBus {
	return &PipeBus{rw: rw}
}

func (p *PipeBus) Transfer(tx, rx []byte) error {
	return p.txrx(tx, rx)
}

func (p *PipeBus) TransferFast(tx, rx []byte) error {
	if len(tx)%4 != 0 {
		return ErrLengthAlignment
	}
	return p.txrx(tx, rx)
}

func (p *PipeBus) TransferBatch(frames []Frame) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, f := range frames {
		if f.Fast && len(f.TX)%4 != 0 {
			return ErrLengthAlignment
		}
		if err := p.txrxLocked(f.TX, f.RX); err != nil {
			return fmt.Errorf("transport: batch frame %d: %w", i, err)
		}
	}
	return nil
}

func (p *PipeBus) txrx(tx, rx []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.txrxLocked(tx, rx)
}

func (p *PipeBus) txrxLocked(tx, rx []byte) error {
	fill(rx, 0xFF)
	if _, err := p.rw.Write(tx); err != nil {
		return fmt.Errorf("transport: write: %w", err)
	}
	if len(rx) == 0 {
		return nil
	}
	if _, err := io.ReadFull(p.rw, rx); err != nil {
		return fmt.Errorf("transport: read: %w", err)
	}
	return nil
}

// Close closes the underlying stream if it supports it.
func (p *PipeBus) Close() error {
	if c, ok := p.rw.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
