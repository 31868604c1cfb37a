// Package normalize implements C2 (text normalizer), C3 (entity & event
// classifier), C4 (embedding provider) and C5 (the pipeline that
// orchestrates them). Every exported function here is pure: no I/O, no
// store access, matching spec §9's requirement that only the drivers
// (C10/C11/C12) touch the outside world.
package normalize

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// abbreviations is the closed dictionary of finance/economics shorthand
// expanded to canonical long forms, carried over from the original
// Python normalizer's ABBREVIATIONS table.
var abbreviations = map[string]string{
	"btc":  "bitcoin",
	"eth":  "ethereum",
	"usd":  "us dollar",
	"q1":   "first quarter",
	"q2":   "second quarter",
	"q3":   "third quarter",
	"q4":   "fourth quarter",
	"gdp":  "gross domestic product",
	"cpi":  "consumer price index",
	"fomc": "federal open market committee",
	"fed":  "federal reserve",
	"bls":  "bureau of labor statistics",
	"djia": "dow jones industrial average",
	"s&p":  "standard and poors",
	"nyse": "new york stock exchange",
	"nasdaq": "nasdaq",
}

var htmlTagPattern = regexp.MustCompile(`<[^>]+>`)
var whitespacePattern = regexp.MustCompile(`\s+`)

var platformPrefixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^kalshi:\s*`),
	regexp.MustCompile(`(?i)^polymarket:\s*`),
	regexp.MustCompile(`(?i)^will\s+`),
	regexp.MustCompile(`(?i)^does\s+`),
	regexp.MustCompile(`(?i)^is\s+`),
	regexp.MustCompile(`(?i)^what\s+`),
	regexp.MustCompile(`(?i)^who\s+`),
	regexp.MustCompile(`(?i)^when\s+`),
}

// StripHTML removes HTML tags.
func StripHTML(s string) string {
	return htmlTagPattern.ReplaceAllString(s, "")
}

// NormalizeUnicode folds upstream titles to NFKC, so a curly apostrophe
// or full-width digit from one exchange's feed compares equal to the
// plain-ASCII form another exchange sends for the same event.
func NormalizeUnicode(s string) string {
	return norm.NFKC.String(s)
}

// NormalizeWhitespace collapses runs of whitespace to a single space and
// trims the result.
func NormalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(s, " "))
}

// RemovePlatformPrefixes strips a fixed set of leading question prefixes
// ("Will ", "Does ", platform tags, …).
func RemovePlatformPrefixes(s string) string {
	for _, p := range platformPrefixPatterns {
		s = p.ReplaceAllString(s, "")
	}
	return s
}

// ExpandAbbreviations replaces whole-word occurrences of known
// abbreviations with their canonical long form. Input is expected
// lowercase.
func ExpandAbbreviations(s string) string {
	for abbr, full := range abbreviations {
		pattern := `\b` + regexp.QuoteMeta(abbr) + `\b`
		re := regexp.MustCompile(pattern)
		s = re.ReplaceAllString(s, full)
	}
	return s
}

// CleanText runs the full C2 pipeline: strip HTML, normalize whitespace,
// remove platform prefixes, lowercase, optionally expand abbreviations,
// normalize whitespace again.
func CleanText(s string, expandAbbr bool) string {
	s = NormalizeUnicode(s)
	s = StripHTML(s)
	s = NormalizeWhitespace(s)
	s = RemovePlatformPrefixes(s)
	s = strings.ToLower(s)
	if expandAbbr {
		s = ExpandAbbreviations(s)
	}
	return NormalizeWhitespace(s)
}

// CleanTitle cleans a contract title with abbreviation expansion enabled.
func CleanTitle(s string) string { return CleanText(s, true) }

// CleanDescription cleans a contract description with abbreviation
// expansion enabled.
func CleanDescription(s string) string { return CleanText(s, true) }

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "will": {}, "be": {},
	"to": {}, "of": {}, "in": {}, "on": {}, "at": {}, "by": {}, "for": {},
	"and": {}, "or": {}, "that": {}, "this": {}, "with": {}, "as": {},
}

var wordPattern = regexp.MustCompile(`[a-z0-9&]+`)

// ExtractKeyTerms tokenizes cleaned text and drops stopwords and terms
// shorter than minLength. It is a standalone helper: neither the
// normalization pipeline, the scorer nor the decision record calls it.
func ExtractKeyTerms(cleaned string, minLength int) []string {
	words := wordPattern.FindAllString(strings.ToLower(cleaned), -1)
	var terms []string
	for _, w := range words {
		if len(w) < minLength {
			continue
		}
		if _, stop := stopwords[w]; stop {
			continue
		}
		terms = append(terms, w)
	}
	return terms
}

// FuzzyMatchRatio computes a Ratcliff/Obershelp-style similarity ratio in
// [0,1] between two strings, mirroring difflib.SequenceMatcher.ratio():
// 2*M / T where M is the total length of matching blocks found by
// recursively extracting the longest common substring and T is the
// combined length of both strings.
func FuzzyMatchRatio(a, b string) float64 {
	a = strings.ToLower(a)
	b = strings.ToLower(b)
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	matches := matchingBlockLength(a, b)
	total := len(a) + len(b)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matches) / float64(total)
}

func matchingBlockLength(a, b string) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	i, j, size := longestCommonSubstring(a, b)
	if size == 0 {
		return 0
	}
	left := matchingBlockLength(a[:i], b[:j])
	right := matchingBlockLength(a[i+size:], b[j+size:])
	return left + size + right
}

// longestCommonSubstring returns the start index in a, start index in b,
// and length of the longest common substring, using dynamic programming
// over a rolling window (O(len(a)*len(b)) time, O(len(b)) space).
func longestCommonSubstring(a, b string) (int, int, int) {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	bestLen, bestI, bestJ := 0, 0, 0

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > bestLen {
					bestLen = curr[j]
					bestI = i - bestLen
					bestJ = j - bestLen
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return bestI, bestJ, bestLen
}

// directionPairs are antonym pairs whose asymmetric presence across two
// titles signals opposite directional phrasing ("over 45.5" vs "under
// 45.5"), carried verbatim from the original normalizer.
var directionPairs = [][2]string{
	{"over", "under"},
	{"above", "below"},
	{"higher", "lower"},
	{"greater", "less"},
	{"more", "less"},
	{"exceed", "below"},
	{"wins", "loses"},
	{"win", "lose"},
	{"beat", "lose to"},
	{"yes", "no"},
	{"will", "won't"},
	{"will not", "will"},
}

// DetectDirectionMismatch returns true when the two titles carry opposite
// members of a direction-word pair (one has "over", the other "under",
// etc.), used both as a C7 input and as a hard-constraint veto.
func DetectDirectionMismatch(titleA, titleB string) bool {
	a := strings.ToLower(titleA)
	b := strings.ToLower(titleB)
	for _, pair := range directionPairs {
		aHasFirst := strings.Contains(a, pair[0])
		bHasFirst := strings.Contains(b, pair[0])
		aHasSecond := strings.Contains(a, pair[1])
		bHasSecond := strings.Contains(b, pair[1])

		if (aHasFirst && bHasSecond && !aHasSecond && !bHasFirst) ||
			(aHasSecond && bHasFirst && !aHasFirst && !bHasSecond) {
			return true
		}
	}
	return false
}

// negationWords flags a title as phrased negatively, used to infer
// outcome polarity (C5) and to detect negation-based complementary
// phrasing (C7 outcome feature).
var negationWords = []string{"not", "won't", "wont", "will not", "fails to", "doesn't", "does not"}

// DetectNegation reports whether the title contains any negation marker.
func DetectNegation(title string) bool {
	t := strings.ToLower(title)
	for _, w := range negationWords {
		if strings.Contains(t, w) {
			return true
		}
	}
	return false
}
