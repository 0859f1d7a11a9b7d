package chain

import (
	"fmt"
	"time"

	"github.com/btc08/chaindriver/internal/chip"
	"github.com/btc08/chaindriver/internal/codec"
	"github.com/btc08/chaindriver/internal/pll"
)

// PLL-lock and BIST polling budgets (spec.md §4.3 steps 7 and 9).
const (
	pllPollAttempts  = 25
	pllPollInterval  = 40 * time.Millisecond
	bistPollAttempts = 10
	bistPollInterval = 200 * time.Millisecond

	minCoresDefaultPct = 90
	minChipsDefaultPct = 90
)

// Init runs the twelve-step chain bring-up of spec.md §4.3: GPIO reset,
// AUTO_ADDRESS, per-chip READ_ID/READ_FEATURE/READ_REVISION, PLL
// program+lock, BIST, nonce-range assignment, and arming the OON IRQ.
// Flush also calls it as the re-init path; every call runs the full
// sequence from the GPIO reset. Chip disablement does not call it.
func (c *Chain) Init(golden GoldenVector) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Step 1: toggle RESET low (1ms) then high.
	if c.gp != nil {
		if err := c.gp.SetReset(true); err != nil {
			return c.abort(fmt.Errorf("chain %d: init: reset assert: %w", c.id, err))
		}
		time.Sleep(1 * time.Millisecond)
		if err := c.gp.SetReset(false); err != nil {
			return c.abort(fmt.Errorf("chain %d: init: reset deassert: %w", c.id, err))
		}
	}

	// Step 2: RESET broadcast.
	if _, err := c.transact(codec.Reset()); err != nil {
		return c.abort(fmt.Errorf("chain %d: init: reset broadcast: %w", c.id, err))
	}

	// Step 3: AUTO_ADDRESS; byte 1 of the response is the detected count.
	aaView, err := c.transact(codec.AutoAddress())
	if err != nil {
		return c.abort(fmt.Errorf("chain %d: init: auto_address: %w", c.id, err))
	}
	resp := aaView.Response()
	if len(resp) < 2 {
		return c.abort(fmt.Errorf("chain %d: init: auto_address: short response", c.id))
	}
	n := int(resp[1])
	if n == 0 {
		return c.abort(fmt.Errorf("chain %d: init: auto_address found no chips", c.id))
	}

	// Step 4: READ_ID from N down to 1. The newer "refuse to mine"
	// short-circuit is the only path implemented here; the older
	// set_last_chip two-phase reconfiguration is dead code upstream and
	// is intentionally not reproduced (spec.md §9 open question).
	chips := make([]*chip.Chip, 0, n)
	for id := n; id >= 1; id-- {
		v, err := c.transact(codec.ReadID(uint8(id)))
		if err != nil {
			continue
		}
		r := v.Response()
		if len(r) < 4 || int(r[3]) != id {
			continue
		}
		chips = append(chips, &chip.Chip{})
	}
	if len(chips) != n {
		return c.abort(fmt.Errorf("chain %d: init: %d of %d chips responded to read_id, refusing to mine", c.id, len(chips), n))
	}
	c.chips = chips

	// Step 5: FEATURE/REVISION per chip.
	for i, ch := range c.chips {
		chipID := uint8(i + 1)
		fv, err := c.transact(codec.ReadFeature(chipID))
		if err != nil {
			return c.abort(fmt.Errorf("chain %d: init: read_feature chip %d: %w", c.id, chipID, err))
		}
		ch.Feature = be32(fv.Response())
		rv, err := c.transact(codec.ReadRevision(chipID))
		if err != nil {
			return c.abort(fmt.Errorf("chain %d: init: read_revision chip %d: %w", c.id, chipID, err))
		}
		ch.Revision = be32(rv.Response())
		ch.HashDepth = byte(ch.Feature)
	}
	c.isASIC = len(c.chips) > 0 && c.chips[0].IsASIC()
	c.maxNonce = maxNonceFor(c.isASIC)
	if c.isASIC {
		c.timeoutOON = oonTimeoutASIC
	} else {
		c.timeoutOON = oonTimeoutFPGA
	}

	// Step 6: minimum chip count, ASIC only.
	if c.isASIC {
		minChips := c.cfg.MinChips
		if minChips == 0 {
			minChips = len(c.chips) * minChipsDefaultPct / 100
		}
		if len(c.chips) < minChips {
			return c.abort(fmt.Errorf("chain %d: init: %d chips below minimum %d", c.id, len(c.chips), minChips))
		}
	}

	// Step 7: PLL program + lock, skipped on FPGA (spec.md §8 scenario 1
	// "PLL is skipped").
	if c.isASIC {
		entry, err := pll.Select(c.cfg.PLLMHz)
		if err != nil {
			return c.abort(fmt.Errorf("chain %d: init: pll select: %w", c.id, err))
		}
		word := pll.Word(entry, pll.WordOptions{})
		for i, ch := range c.chips {
			chipID := uint8(i + 1)
			if err := c.programPLL(chipID, word); err != nil {
				ch.MHz = 0
				return c.abort(fmt.Errorf("chain %d: init: %w", c.id, err))
			}
			ch.MHz = entry.MHz
		}
	} else {
		for _, ch := range c.chips {
			ch.MHz = 1
		}
	}

	// Step 8: BIST broadcast with the golden vector.
	if _, err := c.transact(codec.WriteParm(codec.BroadcastChipID, golden.Param[:])); err != nil {
		return c.abort(fmt.Errorf("chain %d: init: bist write_parm: %w", c.id, err))
	}
	if _, err := c.transact(codec.WriteTarget(codec.BroadcastChipID, golden.NBits, golden.Select0, golden.Select1)); err != nil {
		return c.abort(fmt.Errorf("chain %d: init: bist write_target: %w", c.id, err))
	}
	if _, err := c.transact(codec.WriteNonce(codec.BroadcastChipID, golden.NonceStart, golden.NonceEnd)); err != nil {
		return c.abort(fmt.Errorf("chain %d: init: bist write_nonce: %w", c.id, err))
	}
	enabledCores := c.cfg.DisableCores
	if enabledCores == 0 {
		enabledCores = chip.MaxCores
	}
	// cfg.DisableChips, when set, targets the mask at one chip instead of
	// every chip on the chain (spec.md §6 "num_chips:num_cores core-disable
	// mask").
	disableTarget := codec.BroadcastChipID
	if c.cfg.DisableChips > 0 {
		disableTarget = uint8(c.cfg.DisableChips)
	}
	if _, err := c.transact(codec.SetDisable(disableTarget, chip.DisableMask(enabledCores))); err != nil {
		return c.abort(fmt.Errorf("chain %d: init: set_disable: %w", c.id, err))
	}
	if _, err := c.transact(codec.RunBist(codec.BroadcastChipID, golden.ExpectedHash[:])); err != nil {
		return c.abort(fmt.Errorf("chain %d: init: run_bist: %w", c.id, err))
	}

	// Step 9: poll READ_BIST per chip.
	minCores := c.cfg.MinCores
	if minCores == 0 {
		minCores = chip.MaxCores * minCoresDefaultPct / 100
	}
	for i, ch := range c.chips {
		chipID := uint8(i + 1)
		cores, err := c.pollBIST(chipID)
		if err != nil {
			return c.abort(fmt.Errorf("chain %d: init: %w", c.id, err))
		}
		ch.NumCores = cores
		if c.isASIC && cores < minCores {
			ch.Disabled = true
		}
	}

	// Step 10: aggregate perf.
	c.recomputeTotals()

	// Step 11: nonce-range assignment.
	active := c.activeChips()
	chip.AssignRanges(active, c.maxNonce)
	for i, ch := range c.chips {
		if ch.Disabled {
			continue
		}
		if _, err := c.transact(codec.WriteNonce(uint8(i+1), ch.StartNonce, ch.EndNonce)); err != nil {
			return c.abort(fmt.Errorf("chain %d: init: write_nonce chip %d: %w", c.id, i+1, err))
		}
	}

	// Step 12: arm the OON IRQ.
	udiv := c.cfg.UDiv
	if udiv == 0 {
		udiv = 17
	}
	if _, err := c.transact(codec.SetControl(uint8(udiv))); err != nil {
		return c.abort(fmt.Errorf("chain %d: init: set_control: %w", c.id, err))
	}

	c.disabled = false
	c.sdiff = 0
	c.lastQueuedID = 0
	c.primed = false
	c.log.Info("chain initialized", "chips", len(c.chips), "cores", c.totalCores, "perf", c.perf)
	return nil
}

// programPLL runs the PLL program sequence exactly (spec.md §4.3 step
// 7): disable FOUT, write the PMS word, pulse RESETB, re-enable FOUT,
// then poll READ_PLL for the lock bit.
func (c *Chain) programPLL(chipID uint8, word uint32) error {
	if _, err := c.transact(codec.SetPLLFoutEn(chipID, false)); err != nil {
		return fmt.Errorf("pll chip %d: disable fout: %w", chipID, err)
	}
	if _, err := c.transact(codec.SetPLLConfig(chipID, word)); err != nil {
		return fmt.Errorf("pll chip %d: set_pll_config: %w", chipID, err)
	}
	if _, err := c.transact(codec.SetPLLResetb(chipID, false)); err != nil {
		return fmt.Errorf("pll chip %d: assert resetb: %w", chipID, err)
	}
	if _, err := c.transact(codec.SetPLLResetb(chipID, true)); err != nil {
		return fmt.Errorf("pll chip %d: deassert resetb: %w", chipID, err)
	}
	time.Sleep(1 * time.Millisecond)
	if _, err := c.transact(codec.SetPLLFoutEn(chipID, true)); err != nil {
		return fmt.Errorf("pll chip %d: enable fout: %w", chipID, err)
	}
	for attempt := 0; attempt < pllPollAttempts; attempt++ {
		v, err := c.transact(codec.ReadPLL(chipID))
		if err != nil {
			return fmt.Errorf("pll chip %d: read_pll: %w", chipID, err)
		}
		r := v.Response()
		if len(r) >= 2 && pll.Locked(r[1]) {
			return nil
		}
		time.Sleep(pllPollInterval)
	}
	return fmt.Errorf("pll chip %d: lock timeout", chipID)
}

// pollBIST polls READ_BIST until idle, returning the live core count
// from response byte 1 (spec.md §4.3 step 9).
func (c *Chain) pollBIST(chipID uint8) (int, error) {
	for attempt := 0; attempt < bistPollAttempts; attempt++ {
		v, err := c.transact(codec.ReadBist(chipID))
		if err != nil {
			return 0, fmt.Errorf("bist chip %d: read_bist: %w", chipID, err)
		}
		r := v.Response()
		if len(r) < 2 {
			return 0, fmt.Errorf("bist chip %d: short read_bist response", chipID)
		}
		if r[0]&codec.BISTBusy == 0 {
			return int(r[1]), nil
		}
		time.Sleep(bistPollInterval)
	}
	return 0, fmt.Errorf("bist chip %d: timeout", chipID)
}

// recomputeTotals recomputes aggregate core count and perf from every
// non-disabled chip (spec.md §4.3 step 10).
func (c *Chain) recomputeTotals() {
	c.totalCores = 0
	c.perf = 0
	for _, ch := range c.chips {
		if ch.Disabled {
			continue
		}
		c.totalCores += ch.NumCores
		c.perf += ch.Perf()
	}
}

// activeChips returns the non-disabled chip records, in chain order.
func (c *Chain) activeChips() []*chip.Chip {
	out := make([]*chip.Chip, 0, len(c.chips))
	for _, ch := range c.chips {
		if !ch.Disabled {
			out = append(out, ch)
		}
	}
	return out
}

func be32(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
