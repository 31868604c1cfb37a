// Package match implements C6 (candidate retriever), C7 (similarity
// scorer) and C8 (tier assigner). The scorer is a pure function of its
// two contract inputs plus configuration, per spec §9: no I/O, fully
// deterministic, unit-testable in isolation from the drivers that call it.
package match

import (
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/bondarb/core/internal/config"
	"github.com/bondarb/core/pkg/contract"
	"github.com/bondarb/core/pkg/normalize"
)

// granularityTau maps a time granularity to its decay constant (spec
// §4.7's tau-table), defaulting to 7 (week) when unset.
var granularityTau = map[contract.Granularity]float64{
	contract.GranularityDay:     3,
	contract.GranularityWeek:    7,
	contract.GranularityMonth:   14,
	contract.GranularityQuarter: 21,
	contract.GranularityYear:    30,
}

// TextFeature is f_text: cosine similarity of the two embeddings,
// rescaled from [-1,1] to [0,1].
type TextFeature struct {
	Score float64
}

// EntityFeature is f_entity: Jaccard over the union of the five entity
// sets, plus ticker/person/org bonuses, clipped at 1.
type EntityFeature struct {
	Base        float64
	Final       float64
	BonusTicker float64
	BonusPerson float64
	BonusOrg    float64
}

// TimeFeature is f_time: exponential decay over resolution delta, blended
// with observation-window overlap when both sides have one.
type TimeFeature struct {
	ScoreDecay  float64
	ScoreWindow float64
	Final       float64
	DeltaDays   float64
}

// OutcomeFeature is f_outcome, dispatched on the pair's outcome-schema
// kinds.
type OutcomeFeature struct {
	Score float64
}

// ResolutionFeature is f_res, comparing canonicalized resolution sources.
type ResolutionFeature struct {
	Score float64
}

// Features bundles every individual feature computed for a candidate pair.
type Features struct {
	Text       TextFeature
	Entity     EntityFeature
	Time       TimeFeature
	Outcome    OutcomeFeature
	Resolution ResolutionFeature
}

// Result is the full scorer output: aggregate score, match probability,
// veto status and the feature breakdown, matching spec §4.7/§4.9's
// persisted shape.
type Result struct {
	SimilarityScore         float64
	PMatch                  float64
	HardConstraintsViolated bool
	Violations              []string
	Features                Features
}

// Score computes the full similarity result for a candidate pair (a, b)
// on distinct exchanges. Symmetric in a and b for every feature, per
// spec §8's testable property (aside from outcome-mapping direction,
// which callers derive separately).
func Score(a, b *contract.Contract, cfg *config.Config) Result {
	features := Features{
		Text:       scoreText(a, b),
		Entity:     scoreEntity(a, b),
		Time:       scoreTime(a, b),
		Outcome:    scoreOutcome(a, b),
		Resolution: scoreResolution(a, b),
	}

	violated, violations := checkHardConstraints(a, b, features, cfg)
	if violated {
		return Result{
			SimilarityScore:         0,
			PMatch:                  0,
			HardConstraintsViolated: true,
			Violations:              violations,
			Features:                features,
		}
	}

	similarity := weightedScore(features, cfg.Weights)
	pMatch := matchProbability(features, cfg.Beta)

	return Result{
		SimilarityScore: similarity,
		PMatch:          pMatch,
		Features:        features,
	}
}

func scoreText(a, b *contract.Contract) TextFeature {
	if !a.HasEmbedding || !b.HasEmbedding {
		return TextFeature{Score: 0}
	}
	cos := normalize.CosineSimilarity(a.Embedding, b.Embedding)
	return TextFeature{Score: (cos + 1) / 2}
}

func jaccard(a, b []string) float64 {
	setA := toSet(a)
	setB := toSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1.0
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0.0
	}
	inter := 0
	for k := range setA {
		if _, ok := setB[k]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func toSet(items []string) map[string]struct{} {
	m := make(map[string]struct{}, len(items))
	for _, it := range items {
		m[strings.ToLower(strings.TrimSpace(it))] = struct{}{}
	}
	return m
}

func setsEqual(a, b []string) bool {
	sa, sb := toSet(a), toSet(b)
	if len(sa) != len(sb) {
		return false
	}
	for k := range sa {
		if _, ok := sb[k]; !ok {
			return false
		}
	}
	return true
}

func setsIntersect(a, b []string) bool {
	sa, sb := toSet(a), toSet(b)
	for k := range sa {
		if _, ok := sb[k]; ok {
			return true
		}
	}
	return false
}

func scoreEntity(a, b *contract.Contract) EntityFeature {
	allA := flattenEntities(a.Entities)
	allB := flattenEntities(b.Entities)
	base := jaccard(allA, allB)

	var bonusTicker, bonusPerson, bonusOrg float64

	if len(a.Entities.Tickers) > 0 || len(b.Entities.Tickers) > 0 {
		if setsEqual(a.Entities.Tickers, b.Entities.Tickers) {
			bonusTicker = 1.0
		} else if setsIntersect(a.Entities.Tickers, b.Entities.Tickers) {
			bonusTicker = 0.5
		}
	}
	if len(a.Entities.People) > 0 || len(b.Entities.People) > 0 {
		if setsEqual(a.Entities.People, b.Entities.People) {
			bonusPerson = 1.0
		} else if setsIntersect(a.Entities.People, b.Entities.People) {
			bonusPerson = 0.5
		}
	}
	if setsIntersect(a.Entities.Organizations, b.Entities.Organizations) {
		bonusOrg = 0.5
	}

	final := base + 0.2*bonusTicker + 0.15*bonusPerson + 0.1*bonusOrg
	if final > 1.0 {
		final = 1.0
	}

	return EntityFeature{
		Base:        base,
		Final:       final,
		BonusTicker: bonusTicker,
		BonusPerson: bonusPerson,
		BonusOrg:    bonusOrg,
	}
}

func flattenEntities(e contract.EntitySet) []string {
	var all []string
	all = append(all, e.Tickers...)
	all = append(all, e.People...)
	all = append(all, e.Organizations...)
	all = append(all, e.Countries...)
	all = append(all, e.Misc...)
	return all
}

func tau(g contract.Granularity) float64 {
	if t, ok := granularityTau[g]; ok {
		return t
	}
	return 7
}

func scoreTime(a, b *contract.Contract) TimeFeature {
	delta := a.Time.Resolution.Sub(b.Time.Resolution).Hours() / 24.0
	if delta < 0 {
		delta = -delta
	}
	tauMax := math.Max(tau(a.Time.Granularity), tau(b.Time.Granularity))
	var decay float64
	if tauMax == 0 {
		decay = 0
	} else {
		decay = math.Exp(-delta / tauMax)
	}

	window := decay
	if a.Time.HasWindow && b.Time.HasWindow {
		overlapStart := maxTime(a.Time.WindowStart, b.Time.WindowStart)
		overlapEnd := minTime(a.Time.WindowEnd, b.Time.WindowEnd)
		unionStart := minTime(a.Time.WindowStart, b.Time.WindowStart)
		unionEnd := maxTime(a.Time.WindowEnd, b.Time.WindowEnd)

		unionDays := unionEnd.Sub(unionStart).Hours() / 24.0
		if overlapEnd.After(overlapStart) && unionDays > 0 {
			overlapDays := overlapEnd.Sub(overlapStart).Hours() / 24.0
			window = overlapDays / unionDays
		} else {
			window = 0
		}
	}

	final := 0.6*decay + 0.4*window
	return TimeFeature{ScoreDecay: decay, ScoreWindow: window, Final: final, DeltaDays: delta}
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}

func scoreOutcome(a, b *contract.Contract) OutcomeFeature {
	oa, ob := a.Outcome, b.Outcome

	switch {
	case oa.Kind == contract.OutcomeYesNo && ob.Kind == contract.OutcomeYesNo:
		return OutcomeFeature{Score: yesNoSimilarity(a, b)}
	case oa.Kind == contract.OutcomeDiscreteBracket && ob.Kind == contract.OutcomeDiscreteBracket:
		return OutcomeFeature{Score: bracketSimilarity(oa, ob)}
	case oa.Kind == contract.OutcomeScalarRange && ob.Kind == contract.OutcomeScalarRange:
		return OutcomeFeature{Score: scalarSimilarity(oa, ob)}
	case oa.Kind == contract.OutcomeYesNo && ob.Kind == contract.OutcomeDiscreteBracket:
		if len(ob.Brackets) == 2 {
			return OutcomeFeature{Score: 0.9}
		}
		return OutcomeFeature{Score: 0}
	case oa.Kind == contract.OutcomeDiscreteBracket && ob.Kind == contract.OutcomeYesNo:
		if len(oa.Brackets) == 2 {
			return OutcomeFeature{Score: 0.9}
		}
		return OutcomeFeature{Score: 0}
	default:
		return OutcomeFeature{Score: 0}
	}
}

func yesNoSimilarity(a, b *contract.Contract) float64 {
	polarityMatch := a.Outcome.Polarity == b.Outcome.Polarity
	mismatch := normalize.DetectDirectionMismatch(a.CleanTitle, b.CleanTitle)

	if polarityMatch && !mismatch {
		return 1.0
	}
	if !polarityMatch && mismatch {
		return 1.0
	}
	return 0.0
}

func bracketSimilarity(a, b contract.OutcomeSchema) float64 {
	if a.Unit != b.Unit {
		return 0
	}
	if bracketsEqual(a.Brackets, b.Brackets) {
		return 1.0
	}

	maxLen := len(a.Brackets)
	if len(b.Brackets) > maxLen {
		maxLen = len(b.Brackets)
	}
	if maxLen == 0 {
		return 0
	}

	overlapCount := 0
	usedB := make([]bool, len(b.Brackets))
	for _, ba := range a.Brackets {
		for j, bb := range b.Brackets {
			if usedB[j] {
				continue
			}
			if bracketsOverlap(ba, bb) {
				overlapCount++
				usedB[j] = true
				break
			}
		}
	}
	return float64(overlapCount) / float64(maxLen)
}

func bracketsEqual(a, b []contract.Bracket) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !floatPtrEqual(a[i].Min, b[i].Min) || !floatPtrEqual(a[i].Max, b[i].Max) {
			return false
		}
	}
	return true
}

func floatPtrEqual(a, b *float64) bool {
	if a == nil && b == nil {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return *a == *b
}

// bracketsOverlap treats a nil bound as +/-infinity, matching the
// original source's None convention.
func bracketsOverlap(a, b contract.Bracket) bool {
	aMin := negInf(a.Min)
	aMax := posInf(a.Max)
	bMin := negInf(b.Min)
	bMax := posInf(b.Max)
	return aMin < bMax && bMin < aMax
}

func bracketContains(outer, inner contract.Bracket) bool {
	return negInf(outer.Min) <= negInf(inner.Min) && posInf(inner.Max) <= posInf(outer.Max)
}

func negInf(p *float64) float64 {
	if p == nil {
		return math.Inf(-1)
	}
	return *p
}

func posInf(p *float64) float64 {
	if p == nil {
		return math.Inf(1)
	}
	return *p
}

func scalarSimilarity(a, b contract.OutcomeSchema) float64 {
	if a.ScalarUnit != b.ScalarUnit {
		return 0
	}
	ab := contract.Bracket{Min: a.ScalarMin, Max: a.ScalarMax}
	bb := contract.Bracket{Min: b.ScalarMin, Max: b.ScalarMax}
	if floatPtrEqual(ab.Min, bb.Min) && floatPtrEqual(ab.Max, bb.Max) {
		return 1.0
	}
	if bracketContains(ab, bb) || bracketContains(bb, ab) {
		return 0.8
	}
	return 0
}

// similarSourceGroups is the resolution-source synonym table, carried
// over in full from the original normalizer per SPEC_FULL.md's
// supplemented-features section.
var similarSourceGroups = map[string]string{
	"bls": "bls", "bureau_of_labor_statistics": "bls", "labor_statistics": "bls",
	"fomc": "fomc", "federal_reserve": "fomc", "fed": "fomc", "federal_open_market_committee": "fomc",
	"coingecko": "coingecko", "coin_gecko": "coingecko",
	"coinmarketcap": "coinmarketcap", "coin_market_cap": "coinmarketcap", "cmc": "coinmarketcap",
	"ap": "ap", "associated_press": "ap",
	"nyt": "nyt", "new_york_times": "nyt", "ny_times": "nyt",
	"cnn": "cnn", "cable_news_network": "cnn",
	"fox": "fox", "fox_news": "fox",
	"nasdaq": "nasdaq",
	"nyse": "nyse", "new_york_stock_exchange": "nyse",
}

func normalizeSource(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "_")
	return s
}

func scoreResolution(a, b *contract.Contract) ResolutionFeature {
	sa := normalizeSource(a.ResolutionSource)
	sb := normalizeSource(b.ResolutionSource)

	unknownA := sa == ""
	unknownB := sb == ""

	if unknownA && unknownB {
		return ResolutionFeature{Score: 0.5}
	}
	if unknownA || unknownB {
		return ResolutionFeature{Score: 0.3}
	}
	if sa == sb {
		return ResolutionFeature{Score: 1.0}
	}
	groupA, okA := similarSourceGroups[sa]
	groupB, okB := similarSourceGroups[sb]
	if okA && okB && groupA == groupB {
		return ResolutionFeature{Score: 0.7}
	}
	return ResolutionFeature{Score: 0.3}
}

var sportsStatMarkers = []string{
	"+", "yards", "points", "rushing", "passing", "receiving",
	"rebounds", "assists", "goals", "saves", "touchdowns",
}

func hasStatMarker(title string) bool {
	for _, m := range sportsStatMarkers {
		if strings.Contains(title, m) {
			return true
		}
	}
	return false
}

var numberPattern = regexp.MustCompile(`\d+`)

func checkHardConstraints(a, b *contract.Contract, f Features, cfg *config.Config) (bool, []string) {
	var violations []string

	if a.EventType != "" && b.EventType != "" && a.EventType != b.EventType {
		violations = append(violations, "event_type_mismatch")
	}

	if f.Text.Score < cfg.HardConstraintMinTextScore {
		violations = append(violations, "text_score_below_floor")
	}

	hasExactMatch := f.Entity.BonusTicker >= 1.0 || f.Entity.BonusPerson >= 1.0
	if f.Entity.Final < cfg.HardConstraintMinEntityScore && !hasExactMatch {
		violations = append(violations, "entity_score_below_floor")
	}

	if f.Time.DeltaDays > cfg.HardConstraintMaxTimeDeltaDays {
		violations = append(violations, "time_delta_too_large")
	}

	if f.Outcome.Score == 0.0 {
		violations = append(violations, "outcome_incompatible")
	}

	if normalize.DetectDirectionMismatch(a.CleanTitle, b.CleanTitle) {
		violations = append(violations, "direction_mismatch")
	}

	if len(a.Entities.People) >= 1 && len(b.Entities.People) >= 1 {
		if !setsIntersect(a.Entities.People, b.Entities.People) && !hasExactMatch {
			violations = append(violations, "entity_name_mismatch")
		}
	}

	if a.EventType == "sports" && b.EventType == "sports" {
		hasStatA := hasStatMarker(a.CleanTitle)
		hasStatB := hasStatMarker(b.CleanTitle)
		if hasStatA != hasStatB {
			violations = append(violations, "sports_market_type_mismatch")
		}
		if hasStatA && hasStatB {
			numsA := numberPattern.FindAllString(a.CleanTitle, -1)
			numsB := numberPattern.FindAllString(b.CleanTitle, -1)
			if len(numsA) > 0 && len(numsB) > 0 && !numbersIntersect(numsA, numsB) {
				if f.Text.Score < 0.70 {
					violations = append(violations, "sports_stat_mismatch")
				}
			}
		}

		if a.SportType != "" && b.SportType != "" && a.SportType != b.SportType {
			violations = append(violations, "sport_type_mismatch")
		}
	}

	isParlayA := a.IsParlay
	isParlayB := b.IsParlay
	if isParlayA != isParlayB {
		violations = append(violations, "parlay_mismatch")
	}
	if isParlayA && isParlayB && f.Text.Score < 0.85 {
		violations = append(violations, "parlay_text_too_low")
	}

	return len(violations) > 0, violations
}

func numbersIntersect(a, b []string) bool {
	set := make(map[string]struct{}, len(a))
	for _, n := range a {
		set[n] = struct{}{}
	}
	for _, n := range b {
		if _, ok := set[n]; ok {
			return true
		}
	}
	return false
}

func weightedScore(f Features, w config.Weights) float64 {
	return w.Text*f.Text.Score + w.Entity*f.Entity.Final + w.Time*f.Time.Final +
		w.Outcome*f.Outcome.Score + w.Resolution*f.Resolution.Score
}

func matchProbability(f Features, beta [6]float64) float64 {
	z := beta[0] + beta[1]*f.Text.Score + beta[2]*f.Entity.Final + beta[3]*f.Time.Final +
		beta[4]*f.Outcome.Score + beta[5]*f.Resolution.Score
	return 1.0 / (1.0 + math.Exp(-z))
}
