package chain

import (
	"fmt"

	"github.com/btc08/chaindriver/internal/chip"
	"github.com/btc08/chaindriver/internal/codec"
)

// Flush implements spec.md §4.5: hardware-reset the chain, discard every
// job-slot reference via work_completed, drain the upstream queue the
// same way, clear sdiff so the next set_work resends WRITE_TARGET, and
// re-run Init. Init runs its whole sequence, so the GPIO reset pulse and
// the RESET broadcast are repeated before AUTO_ADDRESS.
func (c *Chain) Flush(golden GoldenVector) error {
	c.mu.Lock()
	if c.gp != nil {
		_ = c.gp.SetReset(true)
		_ = c.gp.SetReset(false)
	}
	for i, item := range c.slots {
		if item == nil {
			continue
		}
		c.fw.Completed(item, 0)
		c.slots[i] = nil
	}
	for {
		drained := c.fw.Dequeue(1)
		if len(drained) == 0 {
			break
		}
		for _, it := range drained {
			c.fw.Completed(it, 0)
		}
	}
	c.sdiff = 0
	c.primed = false
	c.isProcessingJob = false
	c.mu.Unlock()

	if err := c.Init(golden); err != nil {
		return fmt.Errorf("chain %d: flush: re-init: %w", c.id, err)
	}
	return nil
}

// Abort marks the chain disabled after a fatal SPI failure (spec.md
// §4.5 "Abort"); the recovery path is a caller-driven Flush/Init.
func (c *Chain) Abort(reason error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.abort(reason)
}

// trackInFlight updates ch.FailCount from READ_JOB_ID's in-flight count
// (spec.md §4.5, response byte 2 bits 0..2, codec.JobStatusInFlightMask):
// OONIntMaxJob consecutive polls at the maximum in-flight job count is
// the saturation signal checkDisablementLocked acts on. r is the
// READ_JOB_ID response slice; a short response leaves the counter
// untouched.
func (c *Chain) trackInFlight(ch *chip.Chip, r []byte) {
	if len(r) < 3 {
		return
	}
	if r[2]&codec.JobStatusInFlightMask >= chip.OONIntMaxJob {
		ch.FailCount++
	} else {
		ch.FailCount = 0
	}
}

// checkDisablementLocked implements spec.md §4.5's chip-disablement
// rule: a chip whose FailCount has reached OONIntMaxJob is demoted by
// pllDemoteStepMHz (not below pllFloorMHz), or disabled permanently with
// MHz 0 if already at the floor. Only the chip record changes: the PLL
// is not reprogrammed and no re-init is started. Called from
// pollGoldenNonce on every steady-state poll pass once trackInFlight has
// updated FailCount. Caller must hold c.mu.
func (c *Chain) checkDisablementLocked(pllFloorMHz int) {
	for _, ch := range c.chips {
		if ch.Disabled {
			continue
		}
		if ch.FailCount < chip.OONIntMaxJob {
			continue
		}
		if ch.MHz <= pllFloorMHz {
			ch.Disabled = true
			ch.MHz = 0
			continue
		}
		ch.MHz -= pllDemoteStepMHz
		if ch.MHz < pllFloorMHz {
			ch.MHz = pllFloorMHz
		}
	}
	c.recomputeTotals()
}

const pllDemoteStepMHz = 50
