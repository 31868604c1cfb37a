package contract

import "errors"

// Error kinds propagated by the exchange clients, the normalizer, and the
// store. None of these are fatal except ErrConfigurationInvalid, which is
// only ever raised at startup.
var (
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
	ErrRateLimited         = errors.New("rate limited")
	ErrNormalization       = errors.New("normalization error")
	ErrEmbeddingUnavailable = errors.New("embedding unavailable")
	ErrStoreConflict       = errors.New("store conflict")
	ErrConfigurationInvalid = errors.New("configuration invalid")
	ErrNotFound            = errors.New("not found")
)
