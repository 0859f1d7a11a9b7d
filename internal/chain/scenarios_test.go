package chain

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btc08/chaindriver/internal/adcport"
	"github.com/btc08/chaindriver/internal/chip"
	"github.com/btc08/chaindriver/internal/codec"
	"github.com/btc08/chaindriver/internal/config"
	"github.com/btc08/chaindriver/internal/testmode"
	"github.com/btc08/chaindriver/internal/work"
)

// TestOutOfNoncesSendsOneClearOONAndRefillsTwoSlots reproduces spec.md §8
// scenario 3: exactly one CLEAR_OON fast-path transfer followed by two
// set_work batches to refill the ring.
func TestOutOfNoncesSendsOneClearOONAndRefillsTwoSlots(t *testing.T) {
	sim, err := testmode.Open(testmode.FPGAScenario())
	require.NoError(t, err)
	defer sim.Close()
	go sim.Run()

	spy := &countingBus{Bus: sim.Bus()}
	fw := &fakeFramework{}
	c := New(0, config.New(), spy, nil, fw, newTestLogger())
	require.NoError(t, c.Init(DefaultGoldenVector()))

	fw.queue = []*work.Item{{ID: 1}, {ID: 2}}
	fastBefore, batchesBefore := spy.fastCalls, len(spy.batches)

	_, err = c.pollOutOfNonces()
	require.NoError(t, err)

	assert.Equal(t, 1, spy.fastCalls-fastBefore)
	assert.Equal(t, 2, len(spy.batches)-batchesBefore)
}

// TestStaleNonceAfterFlushIncrementsStalesWithoutSubmit reproduces
// spec.md §8 scenario 4: a golden nonce for a job slot the controller
// already discarded via Flush counts as a stale, not a submission.
func TestStaleNonceAfterFlushIncrementsStalesWithoutSubmit(t *testing.T) {
	scn := testmode.FPGAScenario()
	scn.GoldenNonce = testmode.GoldenNonceRaw
	sim, err := testmode.Open(scn)
	require.NoError(t, err)
	defer sim.Close()
	go sim.Run()

	fw := &fakeFramework{}
	c := New(0, config.New(), sim.Bus(), nil, fw, newTestLogger())
	require.NoError(t, c.Init(DefaultGoldenVector()))

	c.mu.Lock()
	c.slots[0] = &work.Item{ID: 1}
	c.mu.Unlock()

	require.NoError(t, c.Flush(DefaultGoldenVector()))

	_, err = c.pollGoldenNonce()
	require.NoError(t, err)

	assert.Empty(t, fw.submitted)
	for _, ch := range c.chips {
		assert.Equal(t, uint64(1), ch.Stats.Stales)
	}
}

// TestSetWorkSendsWriteTargetOnlyOnDifficultyChange reproduces spec.md §8
// scenario 5.
func TestSetWorkSendsWriteTargetOnlyOnDifficultyChange(t *testing.T) {
	sim, err := testmode.Open(testmode.FPGAScenario())
	require.NoError(t, err)
	defer sim.Close()
	go sim.Run()

	spy := &countingBus{Bus: sim.Bus()}
	fw := &fakeFramework{}
	c := New(0, config.New(), spy, nil, fw, newTestLogger())
	require.NoError(t, c.Init(DefaultGoldenVector()))

	spy.batches = nil
	item1 := &work.Item{ID: 1, Difficulty: 1}
	item2 := &work.Item{ID: 2, Difficulty: 1}

	c.mu.Lock()
	_, err = c.setWorkLocked(item1)
	require.NoError(t, err)
	_, err = c.setWorkLocked(item2)
	require.NoError(t, err)
	c.mu.Unlock()

	writeTargets := 0
	for _, batch := range spy.batches {
		for _, f := range batch {
			if len(f.TX) > 0 && f.TX[0] == byte(codec.OpWriteTarget) {
				writeTargets++
			}
		}
	}
	assert.Equal(t, 1, writeTargets)
}

// TestPLLLockTimeoutDisablesChainAndFailsInit reproduces spec.md §8
// scenario 6.
func TestPLLLockTimeoutDisablesChainAndFailsInit(t *testing.T) {
	scn := testmode.Scenario{NumChips: 1, ASIC: true, CoresPerChip: 10, PLLLockFails: true}
	sim, err := testmode.Open(scn)
	require.NoError(t, err)
	defer sim.Close()
	go sim.Run()

	cfg := config.New()
	cfg.MinChips = 1
	cfg.MinCores = 1

	fw := &fakeFramework{}
	c := New(0, cfg, sim.Bus(), nil, fw, newTestLogger())

	err = c.Init(DefaultGoldenVector())
	assert.Error(t, err)
	assert.True(t, c.Disabled())
}

// TestHarvestResultOverlaysVersionMaskPerMicroJob confirms SubmitNonce
// receives item.Header with the boost micro-job's version mask overlaid
// (spec.md §4.4 step 2).
func TestHarvestResultOverlaysVersionMaskPerMicroJob(t *testing.T) {
	scn := testmode.FPGAScenario()
	scn.GoldenNonce = testmode.GoldenNonceRaw
	sim, err := testmode.Open(scn)
	require.NoError(t, err)
	defer sim.Close()
	go sim.Run()

	fw := &fakeFramework{}
	c := New(0, config.New(), sim.Bus(), nil, fw, newTestLogger())
	require.NoError(t, c.Init(DefaultGoldenVector()))

	item := &work.Item{ID: 1, Boost: true}
	item.VersionMasks[0] = 0x20000000
	c.mu.Lock()
	c.slots[0] = item
	c.mu.Unlock()

	_, err = c.pollGoldenNonce()
	require.NoError(t, err)

	require.NotEmpty(t, fw.submittedHeaders)
	for _, h := range fw.submittedHeaders {
		assert.Equal(t, byte(0x20), h[0])
	}
}

// TestScanWorkAbortsOnOutOfBandTemperature confirms an attached ADC
// reading outside its configured band aborts the chain (spec.md §4.5
// "over-temperature disable").
func TestScanWorkAbortsOnOutOfBandTemperature(t *testing.T) {
	sim, err := testmode.Open(testmode.FPGAScenario())
	require.NoError(t, err)
	defer sim.Close()
	go sim.Run()

	path := filepath.Join(t.TempDir(), "in_voltage0_raw")
	require.NoError(t, os.WriteFile(path, []byte("4095\n"), 0o644))
	reader, err := adcport.Open(path)
	require.NoError(t, err)

	fw := &fakeFramework{}
	c := New(0, config.New(), sim.Bus(), nil, fw, newTestLogger())
	require.NoError(t, c.Init(DefaultGoldenVector()))
	c.AttachADC(reader, adcport.Band{MinMilliVolts: 0, MaxMilliVolts: 100})

	_, err = c.ScanWork()
	assert.Error(t, err)
	assert.True(t, c.Disabled())
}

// TestCheckDisablementDemotesThenDisablesSaturatedChip exercises the
// recovery rule directly (spec.md §4.5): a chip saturated at
// OONIntMaxJob in-flight jobs is demoted by pllDemoteStepMHz until it
// hits the floor, then disabled.
func TestCheckDisablementDemotesThenDisablesSaturatedChip(t *testing.T) {
	fw := &fakeFramework{}
	c := New(0, config.New(), nil, nil, fw, newTestLogger())
	c.chips = []*chip.Chip{{NumCores: 100, MHz: 100}}

	c.mu.Lock()
	c.chips[0].FailCount = chip.OONIntMaxJob
	c.checkDisablementLocked(50)
	c.mu.Unlock()
	assert.Equal(t, 50, c.chips[0].MHz)
	assert.False(t, c.chips[0].Disabled)

	c.mu.Lock()
	c.chips[0].FailCount = chip.OONIntMaxJob
	c.checkDisablementLocked(50)
	c.mu.Unlock()
	assert.True(t, c.chips[0].Disabled)
}
