package normalize

import (
	"reflect"
	"testing"
	"time"

	"github.com/bondarb/core/pkg/exchange"
)

func rawBitcoinContract() exchange.RawContract {
	return exchange.RawContract{
		Platform:       "EX-A",
		ID:             "1",
		Title:          "Will Bitcoin reach $100,000 by end of 2025?",
		Category:       "crypto",
		Active:         true,
		ResolutionTime: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC),
		Outcomes: []exchange.RawOutcome{
			{Label: "Yes", HasMid: true, Mid: 0.6},
			{Label: "No", HasMid: true, Mid: 0.4},
		},
	}
}

// TestNormalize_IdempotentOnUnchangedRawText covers spec §8's round-trip
// law: "normalization is idempotent on unchanged raw text."
func TestNormalize_IdempotentOnUnchangedRawText(t *testing.T) {
	p := NewPipeline(32)
	raw := rawBitcoinContract()

	first, err := p.Normalize(raw, nil)
	if err != nil {
		t.Fatalf("first normalize: %v", err)
	}

	second, err := p.Normalize(raw, first)
	if err != nil {
		t.Fatalf("second normalize: %v", err)
	}

	if first.CleanTitle != second.CleanTitle {
		t.Errorf("clean title changed on unchanged raw text: %q -> %q", first.CleanTitle, second.CleanTitle)
	}
	if first.EventType != second.EventType {
		t.Errorf("event type changed on unchanged raw text: %q -> %q", first.EventType, second.EventType)
	}
	if !reflect.DeepEqual(first.Embedding, second.Embedding) {
		t.Error("embedding recomputed on unchanged raw text")
	}
	if second.CreatedAt != first.CreatedAt {
		t.Error("created-at should carry over across a short-circuited re-normalization")
	}
}

// TestNormalize_ShortCircuitsTextUnchanged covers spec §4.5: "C5
// short-circuits when raw text is unchanged" — only prices/status are
// refreshed, not the derived classification fields, even if we hand it
// a (deliberately wrong) existing record with stale derived fields.
func TestNormalize_ShortCircuitsTextUnchanged(t *testing.T) {
	p := NewPipeline(32)
	raw := rawBitcoinContract()

	existing, err := p.Normalize(raw, nil)
	if err != nil {
		t.Fatalf("seed normalize: %v", err)
	}
	existing.EventType = "sentinel-should-survive"

	updatedRaw := raw
	updatedRaw.Outcomes[0].Mid = 0.71
	updatedRaw.Outcomes[1].Mid = 0.29

	refreshed, err := p.Normalize(updatedRaw, existing)
	if err != nil {
		t.Fatalf("refresh normalize: %v", err)
	}

	if refreshed.EventType != "sentinel-should-survive" {
		t.Errorf("expected short-circuit to skip re-classification, got event type %q", refreshed.EventType)
	}
	if refreshed.Outcome.Outcomes[0].Mid != 0.71 {
		t.Errorf("expected price refresh to still apply, got mid %f", refreshed.Outcome.Outcomes[0].Mid)
	}
}

func TestNormalize_YesNoOutcomeSchema(t *testing.T) {
	p := NewPipeline(32)
	c, err := p.Normalize(rawBitcoinContract(), nil)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if c.Outcome.Kind != "yes_no" {
		t.Errorf("expected yes_no outcome schema, got %s", c.Outcome.Kind)
	}
}

func TestNormalize_EmptyTitleIsNormalizationError(t *testing.T) {
	p := NewPipeline(32)
	raw := rawBitcoinContract()
	raw.Title = ""
	if _, err := p.Normalize(raw, nil); err == nil {
		t.Error("expected a normalization error for an empty title")
	}
}
