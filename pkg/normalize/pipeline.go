package normalize

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/bondarb/core/pkg/contract"
	"github.com/bondarb/core/pkg/exchange"
)

// Pipeline implements C5: orchestrates C2, C3, C4 over a raw exchange
// record and produces the canonical contract.Contract.
type Pipeline struct {
	embedder *Embedder
}

// NewPipeline builds a normalization pipeline with the given fixed
// embedding dimension.
func NewPipeline(embeddingDimension int) *Pipeline {
	return &Pipeline{embedder: NewEmbedder(embeddingDimension)}
}

// Normalize converts a raw upstream record into a canonical Contract. If
// existing is non-nil and its raw title/description are unchanged, only
// prices/status/timestamps are refreshed and C2-C4 are skipped entirely
// (spec §4.5: "C5 short-circuits when raw text is unchanged").
func (p *Pipeline) Normalize(raw exchange.RawContract, existing *contract.Contract) (*contract.Contract, error) {
	now := time.Now().UTC()

	if existing != nil && existing.RawTitle == raw.Title && existing.RawDescription == raw.Description {
		c := *existing
		p.applyStatusAndOutcomes(&c, raw)
		c.UpdatedAt = now
		return &c, nil
	}

	if raw.Title == "" {
		return nil, contract.ErrNormalization
	}

	cleanTitle := CleanTitle(raw.Title)
	cleanDesc := CleanDescription(raw.Description)
	combinedText := cleanTitle + " " + cleanDesc

	entities := ExtractEntities(combinedText)
	eventType := ClassifyEventType(raw.Category, entities.Tickers, entities.People, entities.Organizations, entities.Countries, cleanTitle)
	sportType := ""
	if eventType == "sports" {
		sportType = ClassifySportType(cleanTitle)
	}
	isParlay := DetectParlayMarket(cleanTitle)
	geoScope := DetermineGeoScope(entities, cleanTitle)
	granularity := contract.Granularity(InferGranularity(cleanTitle))
	polarity := contract.Polarity(InferPolarity(cleanTitle))

	outcomeSchema := buildOutcomeSchema(raw, polarity)

	embedding := p.embedder.Encode(cleanTitle, cleanDesc)

	c := &contract.Contract{
		Platform:         contract.Platform(raw.Platform),
		ID:               raw.ID,
		ConditionID:      raw.ConditionID,
		RawTitle:         raw.Title,
		RawDescription:   raw.Description,
		CleanTitle:       cleanTitle,
		CleanDescription: cleanDesc,
		Category:         raw.Category,
		EventType:        eventType,
		GeoScope:         geoScope,
		ResolutionSource: raw.Category,
		SportType:        sportType,
		IsParlay:         isParlay,
		Entities:         entities,
		Outcome:          outcomeSchema,
		Time: contract.TimeWindow{
			Resolution:  raw.ResolutionTime,
			HasWindow:   raw.HasWindow,
			WindowStart: raw.WindowStart,
			WindowEnd:   raw.WindowEnd,
			Granularity: granularity,
		},
		HasEmbedding: true,
		Embedding:    embedding,
		Metadata: contract.Metadata{
			Volume:     raw.Volume,
			Liquidity:  raw.Liquidity,
			HasFeeHint: raw.HasFee,
			FeeHint:    raw.Fee,
			TokenIDs:   tokenIDsFromOutcomes(raw.Outcomes),
		},
		Status:    statusFromRaw(raw),
		UpdatedAt: now,
	}
	if existing != nil {
		c.CreatedAt = existing.CreatedAt
	} else {
		c.CreatedAt = now
	}

	return c, nil
}

func (p *Pipeline) applyStatusAndOutcomes(c *contract.Contract, raw exchange.RawContract) {
	c.Status = statusFromRaw(raw)
	c.Metadata.Volume = raw.Volume
	c.Metadata.Liquidity = raw.Liquidity
	for i, ro := range raw.Outcomes {
		if i >= len(c.Outcome.Outcomes) {
			break
		}
		c.Outcome.Outcomes[i].HasMid = ro.HasMid
		c.Outcome.Outcomes[i].Mid = ro.Mid
		c.Outcome.Outcomes[i].HasBid = ro.HasBid
		c.Outcome.Outcomes[i].Bid = ro.Bid
		c.Outcome.Outcomes[i].HasAsk = ro.HasAsk
		c.Outcome.Outcomes[i].Ask = ro.Ask
	}
}

func statusFromRaw(raw exchange.RawContract) contract.Status {
	if raw.Closed {
		return contract.StatusClosed
	}
	if raw.Active {
		return contract.StatusActive
	}
	return contract.StatusClosed
}

func tokenIDsFromOutcomes(outcomes []exchange.RawOutcome) []string {
	var ids []string
	for _, o := range outcomes {
		ids = append(ids, o.TokenID)
	}
	return ids
}

var (
	yesLabelPattern   = regexp.MustCompile(`(?i)^yes$`)
	noLabelPattern    = regexp.MustCompile(`(?i)^no$`)
	rangeLabelPattern = regexp.MustCompile(`^\$?(-?\d+(?:\.\d+)?)\s*-\s*\$?(-?\d+(?:\.\d+)?)$`)
	plusLabelPattern  = regexp.MustCompile(`^\$?(-?\d+(?:\.\d+)?)\+$`)
	ltLabelPattern    = regexp.MustCompile(`^[<≤]\s*\$?(-?\d+(?:\.\d+)?)$`)
	unitHintPattern   = regexp.MustCompile(`(?i)\$|usd|percent|%|degrees?|points?`)
)

// parseBracketLabel recognizes "45-50", "100+" and "<40"-shaped labels,
// returning the numeric bounds (nil bound = unbounded on that side) and
// whether the label matched a recognized numeric shape at all.
func parseBracketLabel(label string) (contract.Bracket, bool) {
	label = strings.TrimSpace(label)

	if m := rangeLabelPattern.FindStringSubmatch(label); m != nil {
		lo, errLo := strconv.ParseFloat(m[1], 64)
		hi, errHi := strconv.ParseFloat(m[2], 64)
		if errLo == nil && errHi == nil {
			return contract.Bracket{Min: &lo, Max: &hi}, true
		}
	}
	if m := plusLabelPattern.FindStringSubmatch(label); m != nil {
		lo, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return contract.Bracket{Min: &lo, Max: nil}, true
		}
	}
	if m := ltLabelPattern.FindStringSubmatch(label); m != nil {
		hi, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return contract.Bracket{Min: nil, Max: &hi}, true
		}
	}
	return contract.Bracket{}, false
}

func inferUnit(raw exchange.RawContract) string {
	if unitHintPattern.MatchString(raw.Title) {
		if strings.Contains(raw.Title, "$") || strings.Contains(strings.ToLower(raw.Title), "usd") {
			return "usd"
		}
		if strings.Contains(raw.Title, "%") || strings.Contains(strings.ToLower(raw.Title), "percent") {
			return "percent"
		}
	}
	return raw.Category
}

// buildOutcomeSchema selects the tagged-union outcome shape from a raw
// record's outcome list: two Yes/No-labeled legs become YesNo; a single
// outcome whose label parses as a numeric range becomes ScalarRange
// (the whole contract resolves to one continuous value); three or more
// outcomes whose labels all parse as numeric ranges become
// DiscreteBrackets; anything else falls back to YesNo over the full
// outcome list so the scorer always has a defined shape to work with.
func buildOutcomeSchema(raw exchange.RawContract, polarity contract.Polarity) contract.OutcomeSchema {
	outcomes := make([]contract.Outcome, 0, len(raw.Outcomes))
	for _, ro := range raw.Outcomes {
		outcomes = append(outcomes, contract.Outcome{
			Label:   ro.Label,
			TokenID: ro.TokenID,
			HasMid:  ro.HasMid,
			Mid:     ro.Mid,
			HasBid:  ro.HasBid,
			Bid:     ro.Bid,
			HasAsk:  ro.HasAsk,
			Ask:     ro.Ask,
		})
	}

	if len(outcomes) == 2 {
		a, b := outcomes[0].Label, outcomes[1].Label
		if (yesLabelPattern.MatchString(a) && noLabelPattern.MatchString(b)) ||
			(yesLabelPattern.MatchString(b) && noLabelPattern.MatchString(a)) {
			return contract.OutcomeSchema{Kind: contract.OutcomeYesNo, Polarity: polarity, Outcomes: outcomes}
		}
	}

	if len(outcomes) == 1 {
		if br, ok := parseBracketLabel(outcomes[0].Label); ok {
			return contract.OutcomeSchema{
				Kind:       contract.OutcomeScalarRange,
				ScalarUnit: inferUnit(raw),
				ScalarMin:  br.Min,
				ScalarMax:  br.Max,
				Outcomes:   outcomes,
			}
		}
	}

	if len(outcomes) >= 3 {
		brackets := make([]contract.Bracket, 0, len(outcomes))
		allParsed := true
		for _, o := range outcomes {
			br, ok := parseBracketLabel(o.Label)
			if !ok {
				allParsed = false
				break
			}
			brackets = append(brackets, br)
		}
		if allParsed {
			return contract.OutcomeSchema{
				Kind:     contract.OutcomeDiscreteBracket,
				Unit:     inferUnit(raw),
				Brackets: brackets,
				Outcomes: outcomes,
			}
		}
	}

	return contract.OutcomeSchema{
		Kind:     contract.OutcomeYesNo,
		Polarity: polarity,
		Outcomes: outcomes,
	}
}
