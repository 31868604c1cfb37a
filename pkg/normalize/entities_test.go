package normalize

import "testing"

func containsString(list []string, want string) bool {
	for _, v := range list {
		if v == want {
			return true
		}
	}
	return false
}

func TestExtractTickers_DictionaryAndDollarSign(t *testing.T) {
	tickers := ExtractTickers("will bitcoin hit 100k, also watch $TSLA earnings")
	if !containsString(tickers, "bitcoin") {
		t.Errorf("expected bitcoin ticker, got %v", tickers)
	}
	if !containsString(tickers, "tsla") {
		t.Errorf("expected tsla ticker from $TSLA, got %v", tickers)
	}
}

func TestExtractOrganizations_Dictionary(t *testing.T) {
	orgs := ExtractOrganizations("will the fed raise rates at the next fomc meeting")
	if !containsString(orgs, "fed") {
		t.Errorf("expected fed organization, got %v", orgs)
	}
	if !containsString(orgs, "fomc") {
		t.Errorf("expected fomc organization, got %v", orgs)
	}
}

func TestExtractCountries_Dictionary(t *testing.T) {
	countries := ExtractCountries("will china and russia sign a trade deal")
	if !containsString(countries, "china") || !containsString(countries, "russia") {
		t.Errorf("expected china and russia, got %v", countries)
	}
}

func TestExtractEntities_EmptyTextReturnsEmptySets(t *testing.T) {
	e := ExtractEntities("")
	if len(e.Tickers) != 0 || len(e.People) != 0 || len(e.Organizations) != 0 || len(e.Countries) != 0 {
		t.Errorf("expected all-empty entity set for empty text, got %+v", e)
	}
}

func TestDetermineGeoScope_USIndicator(t *testing.T) {
	e := ExtractEntities("will the us economy grow")
	if got := DetermineGeoScope(e, "will the us economy grow"); got != "US" {
		t.Errorf("expected US geo scope, got %q", got)
	}
}

func TestDetermineGeoScope_MultiCountry(t *testing.T) {
	e := ExtractEntities("will china and russia sign a trade deal")
	if got := DetermineGeoScope(e, "will china and russia sign a trade deal"); got != "multi_country" {
		t.Errorf("expected multi_country geo scope, got %q", got)
	}
}
