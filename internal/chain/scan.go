package chain

import (
	"fmt"

	"github.com/btc08/chaindriver/internal/chip"
	"github.com/btc08/chaindriver/internal/codec"
	"github.com/btc08/chaindriver/internal/pipeline"
	"github.com/btc08/chaindriver/internal/pll"
	"github.com/btc08/chaindriver/internal/transport"
	"github.com/btc08/chaindriver/internal/work"
)

// QueueFull reports whether the job-slot ring has no free slot for new
// upstream work (spec.md §5). It only reports and never enqueues; work
// enters the chain through Framework.Dequeue calls made by ScanWork. It
// takes the same lock as ScanWork.
func (c *Chain) QueueFull() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.slots {
		if s == nil {
			return false
		}
	}
	return true
}

// ScanWork runs one pass of the steady-state pipeline (spec.md §4.4):
// prime on the first call, then poll GN and OON. It returns the number
// of nonce ranges completed this pass; the devicetable `scanwork` entry
// point converts that into a hashrate figure for the framework
// (`ranges * 2^32 * 4` hashes, spec.md §4.4 step 3) — that scaling is a
// framework-accounting concern and is deliberately left to the caller.
func (c *Chain) ScanWork() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.disabled {
		return 0, nil
	}

	if c.adc != nil {
		mv, err := c.adc.ReadMilliVolts()
		if err != nil {
			return 0, c.abort(fmt.Errorf("chain %d: scanwork: read adc: %w", c.id, err))
		}
		c.lastTempMV = mv
		if !c.tempBand.InBand(mv) {
			return 0, c.abort(fmt.Errorf("chain %d: scanwork: temperature %dmV out of band [%d,%d]", c.id, mv, c.tempBand.MinMilliVolts, c.tempBand.MaxMilliVolts))
		}
	}

	if !c.primed {
		items := c.fw.Dequeue(primeJobs)
		if len(items) == 0 {
			c.log.Warn("scanwork: upstream queue underflow on prime")
			return 0, nil
		}
		ranges := 0
		for _, it := range items {
			n, err := c.setWorkLocked(it)
			if err != nil {
				return ranges, c.abort(fmt.Errorf("chain %d: prime: %w", c.id, err))
			}
			ranges += n
		}
		c.primed = true
		return ranges, nil
	}

	gn, err := c.gp.GoldenNonce()
	if err != nil {
		return 0, c.abort(fmt.Errorf("chain %d: scanwork: read gn: %w", c.id, err))
	}
	if gn {
		return c.pollGoldenNonce()
	}

	oon, err := c.gp.OutOfNonces()
	if err != nil {
		return 0, c.abort(fmt.Errorf("chain %d: scanwork: read oon: %w", c.id, err))
	}
	if oon {
		return c.pollOutOfNonces()
	}

	return 0, nil
}

// pllRecoveryFloorMHz is the lowest frequency checkDisablementLocked will
// demote a saturated chip to before disabling it outright — the table's
// own documented minimum (spec.md §4.3 step 7, pll.MinRequestMHz).
const pllRecoveryFloorMHz = pll.MinRequestMHz

// pollGoldenNonce implements spec.md §4.4 step 2: for every chip whose
// READ_JOB_ID reports the GN bit, pull its result and forward any valid
// nonces upstream. Every chip's in-flight count feeds the OON-saturation
// disablement rule of spec.md §4.5 (trackInFlight, checkDisablementLocked).
func (c *Chain) pollGoldenNonce() (int, error) {
	ranges := 0
	for i, ch := range c.chips {
		if ch.Disabled {
			continue
		}
		chipID := uint8(i + 1)
		v, err := c.transact(codec.ReadJobID(chipID))
		if err != nil {
			return ranges, fmt.Errorf("chain %d: read_job_id chip %d: %w", c.id, chipID, err)
		}
		r := v.Response()
		c.trackInFlight(ch, r)
		if len(r) < 4 || r[2]&codec.JobStatusGN == 0 {
			continue
		}
		jobID := r[1]
		n, err := c.harvestResult(ch, chipID, jobID)
		if err != nil {
			return ranges, err
		}
		ranges += n
	}
	c.checkDisablementLocked(pllRecoveryFloorMHz)
	return ranges, nil
}

// harvestResult issues READ_RESULT for chipID/jobID, decodes up to four
// ASIC-boost nonces, and forwards each valid one upstream (spec.md §4.4
// step 2).
func (c *Chain) harvestResult(ch *chip.Chip, chipID uint8, jobID uint8) (int, error) {
	v, err := c.transact(codec.ReadResult(chipID))
	if err != nil {
		return 0, fmt.Errorf("chain %d: read_result chip %d: %w", c.id, chipID, err)
	}
	res := pipeline.DecodeResult(v.Response())

	slot := pipeline.SlotForJobID(jobID)
	if slot < 0 || slot >= ringSize {
		return 0, nil
	}
	item := c.slots[slot]
	if item == nil {
		ch.Stats.Stales++
		return 0, nil
	}

	ranges := 0
	for micro := 0; micro < 4; micro++ {
		if res.MicroJobIDs&(1<<uint(micro)) == 0 {
			continue
		}
		nonce := pipeline.BackCorrect(res.Nonces[micro], ch.HashDepth, ch.NumCores)
		header := pipeline.OverlayVersion(item, uint8(micro))
		if c.fw.SubmitNonce(item, uint8(micro), nonce, header) {
			ch.Stats.NoncesFound++
		} else {
			ch.Stats.HWErrors++
			ranges++
		}
	}
	return ranges, nil
}

// pollOutOfNonces implements spec.md §4.4 step 3: one fast-path
// CLEAR_OON broadcast, then refill up to two slots.
func (c *Chain) pollOutOfNonces() (int, error) {
	if _, err := c.transactFast(codec.ClearOON()); err != nil {
		return 0, fmt.Errorf("chain %d: clear_oon: %w", c.id, err)
	}
	items := c.fw.Dequeue(oonRefill)
	ranges := 0
	for _, it := range items {
		n, err := c.setWorkLocked(it)
		if err != nil {
			return ranges, err
		}
		ranges += n
	}
	return ranges, nil
}

// setWorkLocked formats and transmits one job per spec.md §4.4's
// set_work contract. Caller must hold c.mu.
func (c *Chain) setWorkLocked(item *work.Item) (int, error) {
	jobID := pipeline.JobIDForSlot(c.lastQueuedID)

	rangesCompleted := 0
	if prev := c.slots[c.lastQueuedID]; prev != nil {
		c.fw.Completed(prev, 1)
		rangesCompleted = 1
	}

	parm := pipeline.FormatParm(item)
	frames := make([]transport.Frame, 0, 3)
	frames = append(frames, toTransportFrame(codec.WriteParm(codec.BroadcastChipID, parm[:])))

	if item.Difficulty != c.sdiff {
		nbits := pll.NBitsFromTarget(item.Target)
		select0, select1 := pll.DeriveSelect(nbits)
		frames = append(frames, toTransportFrame(codec.WriteTarget(codec.BroadcastChipID, nbits, select0, select1)))
		c.sdiff = item.Difficulty
	}

	frames = append(frames, toTransportFrame(codec.RunJob(codec.BroadcastChipID, jobID, item.Boost)))

	if err := c.bus.TransferBatch(frames); err != nil {
		return rangesCompleted, fmt.Errorf("chain %d: set_work batch: %w", c.id, err)
	}

	c.slots[c.lastQueuedID] = item
	c.lastQueuedID = pipeline.NextSlot(c.lastQueuedID)
	c.isProcessingJob = true
	return rangesCompleted, nil
}

// toTransportFrame adapts a built codec.Frame into the transport burst
// leg shape, running it fast-path with an inline chip-select hold
// (spec.md §4.4: "Issue all frames as one batched fast-path transfer").
func toTransportFrame(f codec.Frame) transport.Frame {
	buf := f.Bytes()
	return transport.Frame{
		TX:   buf,
		RX:   make([]byte, len(buf)),
		Fast: true,
	}
}
