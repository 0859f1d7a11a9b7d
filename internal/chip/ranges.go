package chip

// AssignRanges partitions [0, maxNonce] across chips proportionally to
// each chip's Perf(), with no gaps (spec.md §3 invariants, §4.3 step
// 11): chips[0].StartNonce == 0, chips[i].EndNonce+1 ==
// chips[i+1].StartNonce, and chips[len-1].EndNonce == maxNonce.
//
// Disabled chips must be excluded from chips before calling; a disabled
// chip holds no nonce range.
func AssignRanges(chips []*Chip, maxNonce uint32) {
	if len(chips) == 0 {
		return
	}
	var total uint64
	for _, c := range chips {
		total += c.Perf()
	}
	start := uint32(0)
	for i, c := range chips {
		c.StartNonce = start
		last := i == len(chips)-1
		switch {
		case last || total == 0:
			c.EndNonce = maxNonce
		default:
			span := uint64(maxNonce) * c.Perf() / total
			c.EndNonce = start + uint32(span)
			if c.EndNonce < start || c.EndNonce > maxNonce {
				c.EndNonce = maxNonce
			}
		}
		if !last {
			start = c.EndNonce + 1
		}
	}
}

// DisableMask builds a per-core disable bitmask (spec.md §4.3 step 8,
// §6 "num_chips:num_cores" CLI option): bit i of byte i/8 is set when
// core i is beyond the configured enabledCores.
func DisableMask(enabledCores int) []byte {
	mask := make([]byte, (MaxCores+7)/8)
	for i := enabledCores; i < MaxCores; i++ {
		if i < 0 {
			continue
		}
		mask[i/8] |= 1 << uint(i%8)
	}
	return mask
}
