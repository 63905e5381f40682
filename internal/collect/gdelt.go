package collect

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/TobiSchelling/triggerwatch/internal/config"
)

const gdeltSeenLayout = "20060102T150405Z"

// GDELTAdapter queries the GDELT DOC 2.0 article list for recent coverage of
// the company. It needs no credential.
type GDELTAdapter struct {
	baseURL string
	window  time.Duration
	max     int
	http    *transport
}

// NewGDELTAdapter creates a GDELT adapter.
func NewGDELTAdapter(cfg config.GDELT, maxResults int, t *transport) *GDELTAdapter {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://api.gdeltproject.org"
	}
	window := cfg.Window
	if window <= 0 {
		window = 72 * time.Hour
	}
	return &GDELTAdapter{baseURL: base, window: window, max: maxResults, http: t}
}

func (a *GDELTAdapter) Name() string { return string(ProviderGDELT) }

// Fetch returns articles seen within the configured window.
func (a *GDELTAdapter) Fetch(ctx context.Context, q Query) ([]RawEvent, error) {
	terms := companyTerms(q)
	if len(terms) == 0 {
		return nil, nil
	}
	query := terms[0]
	if len(terms) > 1 {
		query = "(" + strings.Join(terms, " OR ") + ")"
	}

	hours := int(a.window.Hours())
	if hours < 1 {
		hours = 1
	}
	params := url.Values{
		"query":      {query},
		"mode":       {"ArtList"},
		"format":     {"json"},
		"maxrecords": {strconv.Itoa(a.max)},
		"timespan":   {fmt.Sprintf("%dh", hours)},
		"sort":       {"DateDesc"},
	}

	var result struct {
		Articles []struct {
			URL           string `json:"url"`
			Title         string `json:"title"`
			SeenDate      string `json:"seendate"`
			Domain        string `json:"domain"`
			SourceCountry string `json:"sourcecountry"`
		} `json:"articles"`
	}
	if err := a.http.getJSON(ctx, a.baseURL+"/api/v2/doc/doc?"+params.Encode(), nil, &result); err != nil {
		return nil, err
	}

	var events []RawEvent
	for _, art := range result.Articles {
		if len(events) >= a.max {
			break
		}
		var occurred time.Time
		if art.SeenDate != "" {
			if t, err := time.Parse(gdeltSeenLayout, art.SeenDate); err == nil {
				occurred = t
			}
		}
		source := art.Domain
		if source == "" {
			source = "GDELT"
		}
		events = append(events, RawEvent{
			Title:         strings.TrimSpace(art.Title),
			SourceName:    source,
			SourceURL:     strings.TrimSpace(art.URL),
			CompanyName:   q.Name(),
			CompanyDomain: q.Domain(),
			OccurredAt:    occurred,
		})
	}
	return events, nil
}
