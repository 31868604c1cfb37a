package store

import (
	"sync"

	"github.com/bondarb/core/pkg/contract"
)

// VectorIndex is the in-memory brute-force cosine-candidate cache C13
// keeps per platform. No pgvector-equivalent Go client exists anywhere
// in the retrieved example corpus (see DESIGN.md), so C6's nearest-
// neighbor scan runs directly over this cached slice rather than
// against an ANN index; a full table scan over a few thousand active
// contracts per platform is well within C6's latency budget.
type VectorIndex struct {
	mu    sync.RWMutex
	cache map[contract.Platform][]*contract.Contract
	dirty map[contract.Platform]bool
}

func newVectorIndex() *VectorIndex {
	return &VectorIndex{
		cache: make(map[contract.Platform][]*contract.Contract),
		dirty: make(map[contract.Platform]bool),
	}
}

func (v *VectorIndex) get(platform contract.Platform) ([]*contract.Contract, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	if v.dirty[platform] {
		return nil, false
	}
	cached, ok := v.cache[platform]
	return cached, ok
}

func (v *VectorIndex) set(platform contract.Platform, contracts []*contract.Contract) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cache[platform] = contracts
	v.dirty[platform] = false
}

func (v *VectorIndex) markDirty(platform contract.Platform) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dirty[platform] = true
}
