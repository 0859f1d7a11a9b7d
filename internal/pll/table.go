// Package pll implements the PLL PMS frequency table and word synthesis
// from spec.md §4.3 step 7 and §9 ("Bitfield PLL configuration word").
// The table spans 24-1000 MHz in 2 MHz steps; Select clamps and rejects
// per spec.md's policy (below 50 MHz fails, above 1000 MHz clamps). No
// BTC08 PMS datasheet table survived retrieval, so Table's entries are
// not transcribed constants: buildTable derives each one from a
// closed-form VCO/divider search over the documented P/M/S field ranges.
package pll

import "errors"

// ErrBelowMinimum is returned by Select for requests under 50 MHz
// (spec.md §4.3 step 7).
var ErrBelowMinimum = errors.New("pll: requested frequency below 50MHz table minimum")

// MinRequestMHz and MaxTableMHz bound Select's accepted input
// (spec.md §4.3 step 7: "requests below 50 MHz fail; above 1000 MHz
// clamp to 1000").
const (
	MinRequestMHz = 50
	MaxTableMHz   = 1000
	minTableMHz   = 24
	refMHz        = 25 // reference oscillator, Fout = refMHz * M / (P * 2^S)
)

// Entry is one row of the PMS table: its nominal frequency and the
// divider triplet for it. M is truncated to an integer, so the triplet
// synthesizes refMHz*M/(P*2^S), which can fall a little below MHz.
type Entry struct {
	MHz int
	P   uint32
	M   uint32
	S   uint32
}

// Table is the ordered {freq, PMS} table, ascending by MHz.
var Table = buildTable()

// vcoLowMHz/vcoHighMHz bound the VCO's usable range; S is chosen so that
// refMHz*M/P lands in this band before the post-divider S brings it down
// to the target frequency.
const (
	vcoLowMHz  = 400
	vcoHighMHz = 1000
	fixedP     = 1
)

func buildTable() []Entry {
	var t []Entry
	for mhz := minTableMHz; mhz <= MaxTableMHz; mhz += 2 {
		var s uint32
		vco := mhz
		for vco < vcoLowMHz && s < 7 {
			vco *= 2
			s++
		}
		m := uint32(vco * fixedP / refMHz)
		if m == 0 {
			m = 1
		}
		t = append(t, Entry{MHz: mhz, P: fixedP, M: m, S: s})
	}
	return t
}

// Select finds the table entry closest to (without exceeding, when
// possible) the requested mhz, after clamping to [MinRequestMHz,
// MaxTableMHz]. It fails closed for requests below the table's policy
// minimum.
func Select(mhz int) (Entry, error) {
	if mhz < MinRequestMHz {
		return Entry{}, ErrBelowMinimum
	}
	if mhz > MaxTableMHz {
		mhz = MaxTableMHz
	}
	best := Table[0]
	bestDiff := absInt(best.MHz - mhz)
	for _, e := range Table {
		if d := absInt(e.MHz - mhz); d < bestDiff {
			best, bestDiff = e, d
		}
	}
	return best, nil
}

func absInt(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
