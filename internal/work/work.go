// Package work defines the collaborator contracts between the chain
// driver and the outer miner framework: the shape of an upstream job and
// the callbacks the framework exposes for dequeueing, retiring, and
// submitting nonces. The framework itself (work-queue producer, pool
// protocol, nonce validator) is out of scope here; this package only
// fixes the seam.
package work

// Item is one unit of upstream work: a block header template and its
// precomputed SHA-256 midstates. Midstates[1..3] and VersionMasks[1..3]
// are populated only when Boost is set (ASIC-boost, four version-rolled
// variants sharing the midstate prefix).
type Item struct {
	ID         uint64
	Header     [128]byte
	Midstates  [4][32]byte
	// VersionMasks holds the version-rolling bits each ASIC-boost
	// micro-job variant used to derive Midstates[i] (spec.md §4.4 step
	// 2: "overlay the 4-byte version-mask variant into the work's data
	// header"). When Boost is set, VersionMasks[i] replaces Header[0:4]
	// for micro-job i, index 0 included (see pipeline.OverlayVersion).
	VersionMasks [4]uint32
	Boost        bool
	Difficulty   float64
	Target       [32]byte
}

// Framework is the upstream collaborator a Chain holds a non-owning
// reference to. It is never owned or closed by the chain; the chain's
// lifetime and the framework's are independent except for these calls.
type Framework interface {
	// Dequeue pulls up to n work items from the upstream queue. It may
	// return fewer than n, including zero, if the queue is drained.
	Dequeue(n int) []*Item

	// Completed retires a job slot's work item: normal retirement
	// (overwritten by a new job), a flush, or chain teardown. ranges is
	// the number of nonce ranges this item is credited with completing
	// (normally 1; 0 for a flush-discarded item).
	Completed(it *Item, ranges int)

	// SubmitNonce reports a validated golden nonce for microJobID (the
	// ASIC-boost variant index, 0 when !Item.Boost), together with the
	// 128-byte header this nonce actually solves: Item.Header with bytes
	// [0:4] overlaid by Item.VersionMasks[microJobID] when Item.Boost is
	// set (see pipeline.OverlayVersion), unchanged otherwise. It returns
	// false if host-side revalidation rejected the nonce (a hardware
	// error, not a stale one).
	SubmitNonce(it *Item, microJobID uint8, nonce uint32, header [128]byte) bool
}
