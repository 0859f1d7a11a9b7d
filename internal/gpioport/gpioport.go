// Package gpioport implements the IRQ/GPIO layer of spec.md §2 item 6
// and §6: two polled digital inputs (GN, OON) and one digital output
// (RESET) per chain, all active-low. There are no kernel IRQs — level
// polling happens in the chain's scan loop (spec.md §5 "Suspension
// points").
//
// Built on github.com/warthog618/go-gpiocdev, a teacher dependency
// (doismellburning/samoyed go.mod) declared but never wired to an
// actual GPIO line there — we give it its first real caller, in place
// of the sysfs-file-per-access style spec.md §6 describes, which the
// character-device API supersedes for held output lines while still
// opening input lines per call (spec.md §5 "GPIO and ADC sysfs files
// are opened per call").
package gpioport

import (
	"fmt"

	"github.com/warthog618/go-gpiocdev"
)

// Port holds the three chain-level GPIO lines: RESET is requested once
// and held for the chain's lifetime (it is an output); GN and OON are
// re-requested on each GoldenNonce/OutOfNonces call, matching spec.md §5's short-lived
// file descriptor policy for polled inputs.
type Port struct {
	chipName   string
	resetLine  *gpiocdev.Line
	gnOffset   int
	oonOffset  int
	resetOffset int
}

// Lines names the three GPIO offsets a chain's Port binds to on the
// named gpiochip device (e.g. "gpiochip0").
type Lines struct {
	ChipName    string
	GNOffset    int
	OONOffset   int
	ResetOffset int
}

// Open requests the RESET output line and records the GN/OON offsets for
// later per-call requests.
func Open(l Lines) (*Port, error) {
	reset, err := gpiocdev.RequestLine(l.ChipName, l.ResetOffset,
		gpiocdev.AsOutput(1), gpiocdev.WithConsumer("btc08-reset"))
	if err != nil {
		return nil, fmt.Errorf("gpioport: request reset line %d: %w", l.ResetOffset, err)
	}
	return &Port{
		chipName:    l.ChipName,
		resetLine:   reset,
		gnOffset:    l.GNOffset,
		oonOffset:   l.OONOffset,
		resetOffset: l.ResetOffset,
	}, nil
}

// SetReset drives the active-low RESET line: asserted drives it low (0),
// deasserted drives it high (1). It sets one level per call; the
// low-then-high toggle of spec.md §4.3 step 1 is two calls by the caller.
func (p *Port) SetReset(asserted bool) error {
	v := 1
	if asserted {
		v = 0
	}
	if err := p.resetLine.SetValue(v); err != nil {
		return fmt.Errorf("gpioport: set reset: %w", err)
	}
	return nil
}

// readInput opens, reads, and immediately closes one active-low input
// line, returning true when it is asserted (logic 0 on the wire).
func (p *Port) readInput(offset int) (bool, error) {
	line, err := gpiocdev.RequestLine(p.chipName, offset,
		gpiocdev.AsInput, gpiocdev.WithConsumer("btc08-poll"))
	if err != nil {
		return false, fmt.Errorf("gpioport: request input line %d: %w", offset, err)
	}
	defer line.Close()
	v, err := line.Value()
	if err != nil {
		return false, fmt.Errorf("gpioport: read input line %d: %w", offset, err)
	}
	return v == 0, nil
}

// GoldenNonce reports whether the GN line is currently asserted.
func (p *Port) GoldenNonce() (bool, error) {
	return p.readInput(p.gnOffset)
}

// OutOfNonces reports whether the OON line is currently asserted.
func (p *Port) OutOfNonces() (bool, error) {
	return p.readInput(p.oonOffset)
}

// Close releases the held RESET line.
func (p *Port) Close() error {
	return p.resetLine.Close()
}
