package normalize

import "strings"

// eventRule is one entry in the prioritized rule engine described in
// spec §4.3: keywords/categories/entity-type hits are weighted and
// multiplied by boost; a title hitting any exclusion forces the rule out
// entirely.
type eventRule struct {
	name        string
	keywords    []string
	categories  []string
	entityTypes []string // "ticker", "person", "organization", "country"
	boost       float64
	exclusions  []string
}

var nflTeams = []string{
	"chiefs", "bills", "bengals", "ravens", "browns", "steelers", "jaguars", "titans",
	"colts", "texans", "broncos", "chargers", "raiders", "jets", "patriots", "dolphins",
	"cowboys", "eagles", "giants", "commanders", "packers", "bears", "lions", "vikings",
	"49ers", "seahawks", "rams", "cardinals", "saints", "buccaneers", "falcons", "panthers",
	"nfl", "super bowl", "touchdown", "quarterback", "field goal",
}

var nbaTeams = []string{
	"lakers", "celtics", "warriors", "nets", "bucks", "heat", "knicks", "76ers",
	"suns", "nuggets", "mavericks", "clippers", "grizzlies", "pelicans", "timberwolves",
	"thunder", "jazz", "kings", "trail blazers", "spurs", "rockets", "pistons", "pacers",
	"hawks", "hornets", "magic", "wizards", "raptors", "bulls", "cavaliers", "nba",
}

var nhlTeams = []string{
	"avalanche", "bruins", "rangers", "maple leafs", "canadiens", "oilers", "flames",
	"kraken", "golden knights", "lightning", "panthers hockey", "stanley cup", "nhl",
	"penguins", "capitals", "islanders", "devils", "flyers", "red wings", "blackhawks",
}

var mlbTeams = []string{
	"yankees", "red sox", "dodgers", "astros", "braves", "mets", "phillies", "cardinals baseball",
	"world series", "mlb", "cubs", "giants baseball", "padres", "mariners", "rangers baseball",
}

var sportsKeywords = mergeLists(nflTeams, nbaTeams, nhlTeams, mlbTeams,
	[]string{"over ", "under ", "o/u ", "+", "total", "prop", "wins", "playoffs", "championship"})

var sportsExclusions = []string{
	"oscars", "oscar", "golden globe", "emmy", "grammy", "best actor", "best actress",
	"arrested", "charged", "indicted", "convicted", "sentenced", "prison", "lawsuit",
	"trial", "verdict", "guilty", "acquitted", "elected", "appointed", "cabinet",
	"secretary", "ambassador",
}

var eventRules = []eventRule{
	{
		name:        "sports",
		keywords:    sportsKeywords,
		categories:  []string{"sports"},
		entityTypes: nil,
		boost:       4,
		exclusions:  sportsExclusions,
	},
	{
		name:       "entertainment",
		keywords:   []string{"oscar", "oscars", "golden globe", "emmy", "grammy", "box office", "movie", "album", "celebrity"},
		categories: []string{"entertainment"},
		boost:      3,
	},
	{
		name:        "election",
		keywords:    []string{"election", "vote", "ballot", "president", "primary", "candidate", "poll"},
		categories:  []string{"politics", "election"},
		entityTypes: []string{"person", "country"},
		boost:       1,
	},
	{
		name:        "regulatory",
		keywords:    []string{"sec", "regulation", "lawsuit", "ban", "approval", "ruling"},
		categories:  []string{"regulatory", "politics"},
		entityTypes: []string{"organization"},
		boost:       1,
	},
	{
		name:        "rate_decision",
		keywords:    []string{"rate decision", "interest rate", "rate hike", "rate cut", "basis points"},
		categories:  []string{"economics"},
		entityTypes: []string{"organization"},
		boost:       1,
	},
	{
		name:        "economic_indicator",
		keywords:    []string{"cpi", "gdp", "unemployment", "jobs report", "inflation", "consumer price index"},
		categories:  []string{"economics"},
		entityTypes: []string{"organization"},
		boost:       1,
	},
	{
		name:        "price_target",
		keywords:    []string{"reach $", "hit $", "all-time high", "price target", "close above", "close below"},
		categories:  []string{"crypto", "stocks"},
		entityTypes: []string{"ticker"},
		boost:       1,
	},
	{
		name:        "geopolitical",
		keywords:    []string{"war", "invasion", "treaty", "sanctions", "ceasefire", "conflict"},
		categories:  []string{"geopolitical"},
		entityTypes: []string{"country"},
		boost:       1,
	},
	{
		name:        "corporate",
		keywords:    []string{"earnings", "merger", "acquisition", "ipo", "ceo", "layoffs"},
		categories:  []string{"corporate", "business"},
		entityTypes: []string{"organization", "ticker"},
		boost:       1,
	},
}

func mergeLists(lists ...[]string) []string {
	var out []string
	for _, l := range lists {
		out = append(out, l...)
	}
	return out
}

func countHits(text string, terms []string) int {
	n := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			n++
		}
	}
	return n
}

func entityTypeCount(types []string, tickers, people, orgs, countries []string) int {
	n := 0
	for _, t := range types {
		switch t {
		case "ticker":
			if len(tickers) > 0 {
				n++
			}
		case "person":
			if len(people) > 0 {
				n++
			}
		case "organization":
			if len(orgs) > 0 {
				n++
			}
		case "country":
			if len(countries) > 0 {
				n++
			}
		}
	}
	return n
}

// ClassifyEventType runs the prioritized rule engine over (category,
// entities, cleaned title) per spec §4.3's scoring formula:
// score = (3 if category matches) + 2*keyword_hits + 1*entity_type_hits,
// multiplied by boost; exclusion hits force the rule to -inf; highest
// positive score wins, ties broken by declaration order, default
// "general".
func ClassifyEventType(category string, tickers, people, organizations, countries []string, title string) string {
	lowerTitle := strings.ToLower(title)
	lowerCategory := strings.ToLower(category)

	bestScore := 0.0
	bestName := "general"
	found := false

	for _, rule := range eventRules {
		excluded := false
		for _, ex := range rule.exclusions {
			if strings.Contains(lowerTitle, ex) {
				excluded = true
				break
			}
		}
		if excluded {
			continue
		}

		categoryMatch := 0.0
		for _, c := range rule.categories {
			if lowerCategory == c {
				categoryMatch = 3
				break
			}
		}
		keywordHits := countHits(lowerTitle, rule.keywords)
		entityHits := entityTypeCount(rule.entityTypes, tickers, people, organizations, countries)

		score := (categoryMatch + 2*float64(keywordHits) + float64(entityHits)) * rule.boost
		if score > 0 && (!found || score > bestScore) {
			bestScore = score
			bestName = rule.name
			found = true
		}
	}

	return bestName
}

// ClassifySportType scans the cleaned title against four disjoint
// keyword sets and returns the sport with the most hits, or "" if none
// hit.
func ClassifySportType(title string) string {
	lower := strings.ToLower(title)
	counts := map[string]int{
		"nfl": countHits(lower, nflTeams),
		"nba": countHits(lower, nbaTeams),
		"nhl": countHits(lower, nhlTeams),
		"mlb": countHits(lower, mlbTeams),
	}

	best := ""
	bestCount := 0
	for _, sport := range []string{"nfl", "nba", "nhl", "mlb"} {
		if counts[sport] > bestCount {
			bestCount = counts[sport]
			best = sport
		}
	}
	if bestCount < 1 {
		return ""
	}
	return best
}

var parlayKeywords = []string{
	"parlay", "multi-game", "multigame", "both teams", "all teams", "and", " & ",
	"combo", "combined", "multiple games",
}

// DetectParlayMarket flags a title as a multi-game parlay market: an
// explicit parlay keyword, or >=2 yes/no outcome separators, or >=2
// occurrences of " vs "/" vs. ".
func DetectParlayMarket(title string) bool {
	lower := strings.ToLower(title)

	for _, kw := range parlayKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}

	separators := 0
	for _, sep := range []string{",yes", ", yes", ",no", ", no"} {
		separators += strings.Count(lower, sep)
	}
	if separators >= 2 {
		return true
	}

	vsCount := strings.Count(lower, " vs ") + strings.Count(lower, " vs. ")
	return vsCount >= 2
}

// InferGranularity maps title keywords to a resolution granularity,
// defaulting to week when nothing matches (spec §4.5).
func InferGranularity(title string) string {
	lower := strings.ToLower(title)
	switch {
	case strings.Contains(lower, "daily"):
		return "day"
	case strings.Contains(lower, "annual"):
		return "year"
	case strings.Contains(lower, "q1"), strings.Contains(lower, "q2"),
		strings.Contains(lower, "q3"), strings.Contains(lower, "q4"),
		strings.Contains(lower, "quarter"):
		return "quarter"
	case strings.Contains(lower, "monthly"), strings.Contains(lower, "month"):
		return "month"
	default:
		return "week"
	}
}

// InferPolarity infers YesNo polarity from negation words in the title.
func InferPolarity(title string) string {
	if DetectNegation(title) {
		return "negative"
	}
	return "positive"
}
