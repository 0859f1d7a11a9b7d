// Package chain implements the Chain Controller of spec.md §4.3-§4.5:
// chip discovery and bring-up, the steady-state job pipeline, and
// flush/abort recovery. It is grounded on the state-machine shape of
// doismellburning/samoyed's serial_port.go (open/configure/transact/close
// around one transport handle) generalized from a single serial line to
// an addressed SPI chain, and on cm108.go's
// detect-then-poll-GPIO-in-a-loop structure for the GN/OON scan.
package chain

import (
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/btc08/chaindriver/internal/adcport"
	"github.com/btc08/chaindriver/internal/chip"
	"github.com/btc08/chaindriver/internal/codec"
	"github.com/btc08/chaindriver/internal/config"
	"github.com/btc08/chaindriver/internal/gpioport"
	"github.com/btc08/chaindriver/internal/transport"
	"github.com/btc08/chaindriver/internal/work"
)

// OON refill deadlines (spec.md §5 "Cancellation and timeouts").
const (
	oonTimeoutASIC = 4 * time.Second
	oonTimeoutFPGA = 120 * time.Second

	ringSize  = 8
	primeJobs = 4
	oonRefill = 2
)

// Chain owns one hash board's discovered chips, job-slot ring, and
// transport/GPIO handles (spec.md §3 "Chain"). A Chain is created once at
// process start and is never hot-plugged (spec.md §3 "Lifecycle").
type Chain struct {
	id  int
	cfg config.Config
	bus transport.Bus
	gp  *gpioport.Port
	log *log.Logger
	fw  work.Framework

	mu           sync.Mutex
	chips        []*chip.Chip
	slots        [ringSize]*work.Item
	lastQueuedID int
	// isProcessingJob is true from the first successful setWorkLocked
	// after a (re)init until the next Flush clears the ring (spec.md §3
	// "Chain" data model). Surfaced read-only via Stats.Processing.
	isProcessingJob bool
	totalCores      int
	perf            uint64
	sdiff           float64
	disabled        bool
	primed          bool
	maxNonce        uint32
	timeoutOON      time.Duration
	oonDeadline     time.Time
	lastTempMV      int
	isASIC          bool

	adc      *adcport.Reader
	tempBand adcport.Band
}

// New constructs a Chain bound to bus and gp, reporting to fw, with no
// chips discovered yet. Call Init before ScanWork.
func New(id int, cfg config.Config, bus transport.Bus, gp *gpioport.Port, fw work.Framework, logger *log.Logger) *Chain {
	return &Chain{
		id:         id,
		cfg:        cfg,
		bus:        bus,
		gp:         gp,
		fw:         fw,
		log:        logger.With("chain", id),
		timeoutOON: oonTimeoutASIC,
	}
}

// AttachADC wires a temperature sensor into the chain's steady-state
// poll (spec.md §2 item 7, §4.5 "over-temperature disable"). Optional: a
// chain with no ADC attached (the default, and always the case under
// test-mode) simply skips the temperature check in ScanWork.
func (c *Chain) AttachADC(r *adcport.Reader, band adcport.Band) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.adc = r
	c.tempBand = band
}

// Disabled reports whether the chain has been taken offline by Abort,
// a failed Init, or a fatal transport error (spec.md §4.5, §7).
func (c *Chain) Disabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disabled
}

// ChipCount returns the number of chip records this chain holds,
// including any disabled ones.
func (c *Chain) ChipCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.chips)
}

// Stats aggregates per-chip counters into one chain-level snapshot
// (spec.md §3 "Chip" stats, surfaced through the devicetable `stats`
// entry point).
type Stats struct {
	HWErrors        uint64
	Stales          uint64
	NoncesFound     uint64
	NonceRangesDone uint64
	ActiveChips     int
	Disabled        bool
	Processing      bool
}

// Stats returns a point-in-time aggregate of every chip's counters.
func (c *Chain) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	var s Stats
	s.Disabled = c.disabled
	s.Processing = c.isProcessingJob
	for _, ch := range c.chips {
		s.HWErrors += ch.Stats.HWErrors
		s.Stales += ch.Stats.Stales
		s.NoncesFound += ch.Stats.NoncesFound
		s.NonceRangesDone += ch.Stats.NonceRangesDone
		if !ch.Disabled {
			s.ActiveChips++
		}
	}
	return s
}

// abort marks the chain disabled after a fatal transfer failure
// (spec.md §4.5 "Abort", §7 error taxonomy #1). Callers must already
// hold c.mu, or call it before acquiring it during Init.
func (c *Chain) abort(reason error) error {
	c.disabled = true
	c.log.Error("chain aborted", "err", reason)
	return reason
}

// transact sends one frame, validates the opcode/chip_id echo, and
// returns a View over the (already un-inverted) response — the single
// choke point every command in this package goes through (spec.md §4.2,
// §7 "Protocol error").
func (c *Chain) transact(f codec.Frame) (codec.View, error) {
	buf := f.Bytes()
	rx := make([]byte, len(buf))
	if err := c.bus.Transfer(buf, rx); err != nil {
		return codec.View{}, fmt.Errorf("chain %d: transport: %w", c.id, err)
	}
	codec.Invert(rx)
	v := codec.NewView(rx, f.ParmLen())
	if !v.Matches(f.Opcode(), f.ChipID()) {
		return codec.View{}, fmt.Errorf("chain %d: protocol: echo mismatch for %s chip %d", c.id, f.Opcode(), f.ChipID())
	}
	return v, nil
}

// transactFast is transact at the fast-path speed ceiling, used for
// CLEAR_OON (spec.md §4.4). The set_work frames go through
// TransferBatch instead (see toTransportFrame).
func (c *Chain) transactFast(f codec.Frame) (codec.View, error) {
	buf := f.Bytes()
	rx := make([]byte, len(buf))
	if err := c.bus.TransferFast(buf, rx); err != nil {
		return codec.View{}, fmt.Errorf("chain %d: transport(fast): %w", c.id, err)
	}
	codec.Invert(rx)
	v := codec.NewView(rx, f.ParmLen())
	if !v.Matches(f.Opcode(), f.ChipID()) {
		return codec.View{}, fmt.Errorf("chain %d: protocol: echo mismatch for %s chip %d", c.id, f.Opcode(), f.ChipID())
	}
	return v, nil
}

// maxNonceFor picks the nonce-space ceiling for the silicon the chain
// discovered (spec.md §4.3: "MAX_NONCE_SIZE = 0xFFFFFFFF on ASIC;
// 0x07FFFFFF on FPGA").
func maxNonceFor(isASIC bool) uint32 {
	if isASIC {
		return chip.MaxNonceASIC
	}
	return chip.MaxNonceFPGA
}
