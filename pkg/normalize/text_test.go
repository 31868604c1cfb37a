package normalize

import "testing"

func TestCleanTitle_StripsHTMLAndPrefixesAndExpandsAbbreviations(t *testing.T) {
	got := CleanTitle("Will   <b>BTC</b> hit $100k by Q1?")
	if got == "" {
		t.Fatal("expected non-empty cleaned title")
	}
	for _, bad := range []string{"<b>", "</b>", "will "} {
		if containsSubstring(got, bad) {
			t.Errorf("expected cleaned title to not contain %q, got %q", bad, got)
		}
	}
	if !containsSubstring(got, "bitcoin") {
		t.Errorf("expected abbreviation expansion of btc -> bitcoin, got %q", got)
	}
	if !containsSubstring(got, "first quarter") {
		t.Errorf("expected abbreviation expansion of q1 -> first quarter, got %q", got)
	}
}

func containsSubstring(s, sub string) bool {
	return len(sub) == 0 || (len(s) >= len(sub) && indexOf(s, sub) >= 0)
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestCleanText_IsIdempotent(t *testing.T) {
	raw := "Will <i>the Fed</i> raise rates in Q2 2026?"
	once := CleanTitle(raw)
	twice := CleanTitle(once)
	if once != twice {
		t.Errorf("expected cleaning to be idempotent, got %q then %q", once, twice)
	}
}

func TestFuzzyMatchRatio_IdenticalStringsIsOne(t *testing.T) {
	if got := FuzzyMatchRatio("bitcoin to 100k", "bitcoin to 100k"); got != 1.0 {
		t.Errorf("expected ratio 1.0 for identical strings, got %f", got)
	}
}

func TestFuzzyMatchRatio_EmptyStringsIsOne(t *testing.T) {
	if got := FuzzyMatchRatio("", ""); got != 1.0 {
		t.Errorf("expected ratio 1.0 for two empty strings, got %f", got)
	}
}

func TestFuzzyMatchRatio_DisjointStringsIsZero(t *testing.T) {
	if got := FuzzyMatchRatio("abc", "xyz"); got != 0 {
		t.Errorf("expected ratio 0 for disjoint strings, got %f", got)
	}
}

func TestDetectDirectionMismatch_OverUnder(t *testing.T) {
	if !DetectDirectionMismatch("will score over 45.5 points", "will score under 45.5 points") {
		t.Error("expected over/under to be detected as a direction mismatch")
	}
}

func TestDetectDirectionMismatch_NoMismatchWhenSame(t *testing.T) {
	if DetectDirectionMismatch("will score over 45.5 points", "will score over 45.5 points") {
		t.Error("expected identical directional phrasing to not be flagged as a mismatch")
	}
}

func TestDetectDirectionMismatch_NoMismatchWhenNeitherDirectional(t *testing.T) {
	if DetectDirectionMismatch("will bitcoin hit 100k", "will bitcoin reach 100k") {
		t.Error("expected non-directional titles to never be flagged")
	}
}

func TestDetectNegation(t *testing.T) {
	if !DetectNegation("the bill will not pass") {
		t.Error("expected negation to be detected")
	}
	if DetectNegation("the bill will pass") {
		t.Error("expected no negation on an affirmative title")
	}
}
