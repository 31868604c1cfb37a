package priceupdate

import "sync"

// PriorityQueue is the single-writer/single-reader handoff C12 uses to
// tell C11 which contract keys to refresh first on the next cycle
// (spec §4.11: a live arbitrage opportunity's legs should see fresher
// prices than the rest of the bonded set). Only the arbitrage monitor
// writes; only the price updater reads and clears.
type PriorityQueue struct {
	mu   sync.Mutex
	keys []string
}

// NewPriorityQueue builds an empty priority handoff.
func NewPriorityQueue() *PriorityQueue {
	return &PriorityQueue{}
}

// Publish replaces the current priority list. Called once per C12 cycle.
func (q *PriorityQueue) Publish(keys []string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.keys = append([]string(nil), keys...)
}

// Take returns the current priority list and clears it, so a cycle that
// doesn't get a fresh publish between reads doesn't keep reprioritizing
// the same stale set forever.
func (q *PriorityQueue) Take() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	keys := q.keys
	q.keys = nil
	return keys
}
