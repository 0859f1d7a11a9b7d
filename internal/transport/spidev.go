package transport

import (
	"fmt"

	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	_ "periph.io/x/host/v3" // registers the Linux spidev driver
)

// Default and ceiling speeds from spec.md §4.1.
const (
	DefaultBusKHz  = 2000
	MinimumBusKHz  = 1200
	FastASICKHz    = 10000
	FastFPGAKHz    = 4000
)

// SPIDevBus is the real-hardware Bus backend: one spidev node, opened
// once and held for the process lifetime, with two periph.io
// connections at the configured default and fast-path speeds.
type SPIDevBus struct {
	port spi.PortCloser
	slow spi.Conn
	fast spi.Conn
}

// OpenSPIDevBus opens device (e.g. "/dev/spidev0.0") and connects it at
// busKHz (clamped to MinimumBusKHz) and fastKHz, both in SPI mode 0 with
// 8 bits per word and no inter-word delay (spec.md §4.1).
func OpenSPIDevBus(device string, busKHz, fastKHz int) (*SPIDevBus, error) {
	if busKHz < MinimumBusKHz {
		busKHz = MinimumBusKHz
	}
	port, err := spireg.Open(device)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", device, err)
	}
	slow, err := port.Connect(physic.Frequency(busKHz)*physic.KiloHertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("transport: connect %s at %dkHz: %w", device, busKHz, err)
	}
	fast, err := port.Connect(physic.Frequency(fastKHz)*physic.KiloHertz, spi.Mode0, 8)
	if err != nil {
		port.Close()
		return nil, fmt.Errorf("transport: connect %s at %dkHz (fast): %w", device, fastKHz, err)
	}
	return &SPIDevBus{port: port, slow: slow, fast: fast}, nil
}

func (b *SPIDevBus) Transfer(tx, rx []byte) error {
	fill(rx, 0xFF)
	if err := b.slow.Tx(tx, rx); err != nil {
		return fmt.Errorf("transport: transfer: %w", err)
	}
	return nil
}

func (b *SPIDevBus) TransferFast(tx, rx []byte) error {
	if len(tx)%4 != 0 {
		return ErrLengthAlignment
	}
	fill(rx, 0xFF)
	if err := b.fast.Tx(tx, rx); err != nil {
		return fmt.Errorf("transport: fast transfer: %w", err)
	}
	return nil
}

func (b *SPIDevBus) TransferBatch(frames []Frame) error {
	for i, f := range frames {
		if f.Fast && len(f.TX)%4 != 0 {
			return ErrLengthAlignment
		}
		conn := b.slow
		if f.Fast {
			conn = b.fast
		}
		fill(f.RX, 0xFF)
		if err := conn.Tx(f.TX, f.RX); err != nil {
			return fmt.Errorf("transport: batch frame %d: %w", i, err)
		}
	}
	return nil
}

func (b *SPIDevBus) Close() error {
	return b.port.Close()
}
