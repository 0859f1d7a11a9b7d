package chain

import (
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/btc08/chaindriver/internal/config"
	"github.com/btc08/chaindriver/internal/testmode"
	"github.com/btc08/chaindriver/internal/work"
)

type fakeFramework struct {
	queue            []*work.Item
	completed        []*work.Item
	submitted        []uint32
	submittedHeaders [][128]byte
}

func (f *fakeFramework) Dequeue(n int) []*work.Item {
	if n > len(f.queue) {
		n = len(f.queue)
	}
	out := f.queue[:n]
	f.queue = f.queue[n:]
	return out
}

func (f *fakeFramework) Completed(it *work.Item, ranges int) {
	f.completed = append(f.completed, it)
}

func (f *fakeFramework) SubmitNonce(it *work.Item, micro uint8, nonce uint32, header [128]byte) bool {
	f.submitted = append(f.submitted, nonce)
	f.submittedHeaders = append(f.submittedHeaders, header)
	return true
}

func newTestLogger() *log.Logger {
	l := log.New(io.Discard)
	l.SetLevel(log.FatalLevel)
	return l
}

// TestBootThreeFPGAChips reproduces spec.md §8 scenario 1.
func TestBootThreeFPGAChips(t *testing.T) {
	sim, err := testmode.Open(testmode.FPGAScenario())
	require.NoError(t, err)
	defer sim.Close()
	go sim.Run()

	fw := &fakeFramework{}
	c := New(0, config.New(), sim.Bus(), nil, fw, newTestLogger())

	err = c.Init(DefaultGoldenVector())
	require.NoError(t, err)

	assert.Equal(t, 3, c.ChipCount())
	require.Len(t, c.chips, 3)
	assert.Equal(t, uint32(0), c.chips[0].StartNonce)
	assert.Equal(t, uint32(0x02AAAAAA), c.chips[0].EndNonce)
	assert.Equal(t, uint32(0x02AAAAAB), c.chips[1].StartNonce)
	assert.Equal(t, uint32(0x05555555), c.chips[1].EndNonce)
	assert.Equal(t, uint32(0x05555556), c.chips[2].StartNonce)
	assert.Equal(t, uint32(0x07FFFFFF), c.chips[2].EndNonce)
}

// TestGoldenNonceSubmission reproduces spec.md §8 scenario 2's
// back-corrected nonce identity.
func TestGoldenNonceSubmission(t *testing.T) {
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

	ranges, err := c.pollGoldenNonce()
	require.NoError(t, err)
	_ = ranges
	require.Len(t, fw.submitted, 3) // one per still-live chip in this scenario
	for _, nonce := range fw.submitted {
		expected := testmode.GoldenNonceRaw + uint32(c.chips[0].HashDepth)*uint32(c.chips[0].NumCores)
		assert.Equal(t, expected, nonce)
	}
}
