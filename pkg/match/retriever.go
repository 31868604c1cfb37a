package match

import (
	"sort"

	"github.com/bondarb/core/pkg/contract"
	"github.com/bondarb/core/pkg/normalize"
)

// scored pairs a candidate contract with its cosine distance to the
// query embedding, used only to sort before the top-K cut.
type scored struct {
	c        *contract.Contract
	distance float64
}

// RetrieveCandidates implements C6: given a query contract and the full
// pool of candidates on the other exchange, returns up to limit active
// contracts ranked by embedding cosine distance ascending (closest
// first). Candidates without an embedding, on the query's own platform,
// or not Active are excluded. Ties are broken by contract key for a
// stable, deterministic order across runs (spec §4.6).
func RetrieveCandidates(query *contract.Contract, pool []*contract.Contract, limit int) []*contract.Contract {
	if !query.HasEmbedding || limit <= 0 {
		return nil
	}

	candidates := make([]scored, 0, len(pool))
	for _, c := range pool {
		if c.Platform == query.Platform {
			continue
		}
		if c.Status != contract.StatusActive {
			continue
		}
		if !c.HasEmbedding {
			continue
		}
		cos := normalize.CosineSimilarity(query.Embedding, c.Embedding)
		candidates = append(candidates, scored{c: c, distance: 1 - cos})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].c.Key() < candidates[j].c.Key()
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]*contract.Contract, len(candidates))
	for i, s := range candidates {
		out[i] = s.c
	}
	return out
}
