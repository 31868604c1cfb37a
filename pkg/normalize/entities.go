package normalize

import (
	"regexp"
	"sort"
	"strings"

	"github.com/bondarb/core/pkg/contract"
)

// Closed dictionaries carried over from the original normalizer's NER +
// dictionary hybrid. No Go NER model is available anywhere in the
// retrieved example corpus (see DESIGN.md), so entity extraction here
// relies entirely on these closed dictionaries plus regex patterns —
// exactly the floor spec.md §4.3 already requires ("tickers... by closed
// dictionary", "organizations... plus a closed dictionary").
var knownTickers = map[string]struct{}{
	"btc": {}, "bitcoin": {}, "eth": {}, "ethereum": {}, "aapl": {}, "apple": {},
	"tsla": {}, "tesla": {}, "googl": {}, "google": {}, "msft": {}, "microsoft": {},
	"amzn": {}, "amazon": {}, "meta": {}, "nvda": {}, "nvidia": {}, "spy": {},
	"qqq": {}, "dow": {}, "s&p": {}, "sp500": {}, "nasdaq": {},
}

var knownOrganizations = map[string]struct{}{
	"fed": {}, "federal reserve": {}, "fomc": {}, "federal open market committee": {},
	"bls": {}, "bureau of labor statistics": {}, "treasury": {}, "sec": {},
	"securities and exchange commission": {}, "cpi": {}, "consumer price index": {},
	"gdp": {}, "unemployment": {}, "ecb": {}, "european central bank": {},
}

var knownCountries = map[string]struct{}{
	"us": {}, "usa": {}, "united states": {}, "america": {}, "china": {}, "russia": {},
	"ukraine": {}, "uk": {}, "united kingdom": {}, "eu": {}, "europe": {}, "japan": {},
	"germany": {}, "france": {}, "canada": {}, "mexico": {}, "brazil": {}, "india": {},
	"israel": {}, "iran": {}, "north korea": {}, "south korea": {},
}

var usIndicators = []string{"us", "usa", "united states", "america"}
var euIndicators = []string{"eu", "europe", "european union"}
var globalIndicators = []string{"world", "global", "international", "olympics", "world cup"}

var tickerSymbolPattern = regexp.MustCompile(`\$([A-Z]{2,5})\b|\b([A-Z]{2,5})\b`)
var miscEventPattern = regexp.MustCompile(`(?i)\b(super bowl|world cup|olympics|election|q[1-4]|quarter [1-4])\b`)

// capitalizedRunPattern approximates a person/organization-name NER pass
// with a pure-regex heuristic: runs of 2+ capitalized words, used only as
// a fallback source layered under the closed dictionaries.
var capitalizedRunPattern = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+){1,3})\b`)

func dictMatch(textLower string, dict map[string]struct{}) []string {
	var out []string
	for term := range dict {
		pattern := `\b` + regexp.QuoteMeta(term) + `\b`
		if regexp.MustCompile(pattern).MatchString(textLower) {
			out = append(out, term)
		}
	}
	sort.Strings(out)
	return out
}

// ExtractTickers finds financial tickers by closed dictionary plus the
// `$XXX` / uppercase-2-5-letter pattern, matched against the same
// dictionary.
func ExtractTickers(text string) []string {
	lower := strings.ToLower(text)
	seen := map[string]struct{}{}
	for _, t := range dictMatch(lower, knownTickers) {
		seen[t] = struct{}{}
	}
	for _, m := range tickerSymbolPattern.FindAllStringSubmatch(text, -1) {
		candidate := m[1]
		if candidate == "" {
			candidate = m[2]
		}
		lc := strings.ToLower(candidate)
		if _, ok := knownTickers[lc]; ok {
			seen[lc] = struct{}{}
		}
	}
	return setToSlice(seen)
}

// ExtractOrganizations finds organizations by closed dictionary. The
// capitalized-run heuristic below is excluded from organizations to avoid
// drowning the closed list in false positives from person names; it is
// used only by ExtractPeople.
func ExtractOrganizations(text string) []string {
	lower := strings.ToLower(text)
	seen := map[string]struct{}{}
	for _, o := range dictMatch(lower, knownOrganizations) {
		seen[o] = struct{}{}
	}
	return setToSlice(seen)
}

// ExtractCountries finds country names by closed dictionary.
func ExtractCountries(text string) []string {
	lower := strings.ToLower(text)
	return dictMatch(lower, knownCountries)
}

// ExtractPeople approximates person-name NER with a capitalized-bigram
// heuristic, filtered against the organization and country dictionaries
// so league/country names aren't misclassified as people.
func ExtractPeople(text string) []string {
	seen := map[string]struct{}{}
	for _, m := range capitalizedRunPattern.FindAllString(text, -1) {
		lc := strings.ToLower(m)
		if _, isOrg := knownOrganizations[lc]; isOrg {
			continue
		}
		if _, isCountry := knownCountries[lc]; isCountry {
			continue
		}
		seen[strings.TrimSpace(m)] = struct{}{}
	}
	return setToSlice(seen)
}

// ExtractMisc finds event-like entities (Super Bowl, World Cup, quarters)
// via a fixed pattern list.
func ExtractMisc(text string) []string {
	seen := map[string]struct{}{}
	for _, m := range miscEventPattern.FindAllString(text, -1) {
		seen[strings.ToLower(m)] = struct{}{}
	}
	return setToSlice(seen)
}

func setToSlice(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// ExtractEntities extracts all five entity sets from cleaned title+
// description text.
func ExtractEntities(text string) contract.EntitySet {
	return contract.EntitySet{
		Tickers:       ExtractTickers(text),
		People:        ExtractPeople(text),
		Organizations: ExtractOrganizations(text),
		Countries:     ExtractCountries(text),
		Misc:          ExtractMisc(text),
	}
}

// DetermineGeoScope derives a contract's geo scope from its country
// entities and US/EU/global keyword indicators, matching the original
// normalizer's determine_geo_scope (supplemented into SPEC_FULL.md since
// spec.md names geo_scope but never defines its derivation).
func DetermineGeoScope(entities contract.EntitySet, title string) string {
	lower := strings.ToLower(title)

	for _, ind := range usIndicators {
		if containsWord(lower, ind) {
			return "US"
		}
	}
	for _, ind := range euIndicators {
		if containsWord(lower, ind) {
			return "EU"
		}
	}
	switch len(entities.Countries) {
	case 0:
		for _, ind := range globalIndicators {
			if containsWord(lower, ind) {
				return "global"
			}
		}
		return "US"
	case 1:
		return strings.ToUpper(entities.Countries[0])
	default:
		return "multi_country"
	}
}

// containsWord reports whether term occurs in text on a word boundary,
// so a short indicator like "us" doesn't false-match inside an unrelated
// word such as "russia".
func containsWord(text, term string) bool {
	return regexp.MustCompile(`\b`+regexp.QuoteMeta(term)+`\b`).MatchString(text)
}
