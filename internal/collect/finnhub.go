package collect

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/TobiSchelling/triggerwatch/internal/config"
)

// FinnhubAdapter fetches company-specific financial news. The ticker is
// resolved from the company name (or domain stem) with a symbol lookup.
type FinnhubAdapter struct {
	apiKey   string
	baseURL  string
	daysBack int
	max      int
	http     *transport
	now      func() time.Time
}

// NewFinnhubAdapter creates a Finnhub adapter. It is only usable when
// cfg.APIKey is set.
func NewFinnhubAdapter(cfg config.Finnhub, maxResults int, t *transport) *FinnhubAdapter {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://finnhub.io"
	}
	daysBack := cfg.DaysBack
	if daysBack <= 0 {
		daysBack = 7
	}
	return &FinnhubAdapter{
		apiKey:   cfg.APIKey,
		baseURL:  base,
		daysBack: daysBack,
		max:      maxResults,
		http:     t,
		now:      time.Now,
	}
}

func (a *FinnhubAdapter) Name() string { return string(ProviderFinnhub) }

// IsConfigured returns whether the API key is available.
func (a *FinnhubAdapter) IsConfigured() bool { return a.apiKey != "" }

// Fetch resolves the ticker and returns its recent company news. A company
// without a listed symbol yields no events and no error.
func (a *FinnhubAdapter) Fetch(ctx context.Context, q Query) ([]RawEvent, error) {
	symbol, err := a.lookupSymbol(ctx, q)
	if err != nil || symbol == "" {
		return nil, err
	}

	now := a.now().UTC()
	params := url.Values{
		"symbol": {symbol},
		"from":   {now.AddDate(0, 0, -a.daysBack).Format("2006-01-02")},
		"to":     {now.Format("2006-01-02")},
		"token":  {a.apiKey},
	}

	var items []struct {
		Category string `json:"category"`
		Datetime int64  `json:"datetime"`
		Headline string `json:"headline"`
		Source   string `json:"source"`
		Summary  string `json:"summary"`
		URL      string `json:"url"`
	}
	if err := a.http.getJSON(ctx, a.baseURL+"/api/v1/company-news?"+params.Encode(), nil, &items); err != nil {
		return nil, err
	}

	var events []RawEvent
	for _, it := range items {
		if len(events) >= a.max {
			break
		}
		var occurred time.Time
		if it.Datetime > 0 {
			occurred = time.Unix(it.Datetime, 0).UTC()
		}
		source := it.Source
		if source == "" {
			source = "Finnhub"
		}
		events = append(events, RawEvent{
			Title:         strings.TrimSpace(it.Headline),
			Description:   stripHTML(it.Summary),
			SourceName:    source,
			SourceURL:     strings.TrimSpace(it.URL),
			CompanyName:   q.Name(),
			CompanyDomain: q.Domain(),
			OccurredAt:    occurred,
		})
	}
	return events, nil
}

func (a *FinnhubAdapter) lookupSymbol(ctx context.Context, q Query) (string, error) {
	term := q.Name()
	if len(term) < minIdentityLen {
		term = domainStem(q.Domain())
	}
	if len(term) < minIdentityLen {
		return "", nil
	}

	params := url.Values{"q": {term}, "token": {a.apiKey}}
	var result struct {
		Count  int `json:"count"`
		Result []struct {
			Description string `json:"description"`
			Symbol      string `json:"symbol"`
			Type        string `json:"type"`
		} `json:"result"`
	}
	if err := a.http.getJSON(ctx, a.baseURL+"/api/v1/search?"+params.Encode(), nil, &result); err != nil {
		return "", err
	}
	if len(result.Result) == 0 {
		return "", nil
	}
	for _, r := range result.Result {
		if strings.EqualFold(r.Type, "Common Stock") && r.Symbol != "" {
			return r.Symbol, nil
		}
	}
	return result.Result[0].Symbol, nil
}
