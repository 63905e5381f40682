package collect

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/TobiSchelling/triggerwatch/internal/config"
)

// NewsAPIAdapter searches NewsAPI's /v2/everything endpoint for company news
// mentioning one of the B2B trigger keywords.
type NewsAPIAdapter struct {
	apiKey   string
	baseURL  string
	daysBack int
	keywords []string
	max      int
	http     *transport
	now      func() time.Time
}

// NewNewsAPIAdapter creates a NewsAPI adapter. It is only usable when
// cfg.APIKey is set.
func NewNewsAPIAdapter(cfg config.NewsAPI, keywords []string, maxResults int, t *transport) *NewsAPIAdapter {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = "https://newsapi.org"
	}
	daysBack := cfg.DaysBack
	if daysBack <= 0 {
		daysBack = 14
	}
	return &NewsAPIAdapter{
		apiKey:   cfg.APIKey,
		baseURL:  base,
		daysBack: daysBack,
		keywords: keywords,
		max:      maxResults,
		http:     t,
		now:      time.Now,
	}
}

func (a *NewsAPIAdapter) Name() string { return string(ProviderNewsAPI) }

// IsConfigured returns whether the API key is available.
func (a *NewsAPIAdapter) IsConfigured() bool { return a.apiKey != "" }

// Fetch searches for articles about the company.
func (a *NewsAPIAdapter) Fetch(ctx context.Context, q Query) ([]RawEvent, error) {
	query := keywordQuery(q, a.keywords)
	if query == "" {
		return nil, nil
	}

	params := url.Values{
		"q":        {query},
		"from":     {a.now().AddDate(0, 0, -a.daysBack).Format("2006-01-02")},
		"language": {"en"},
		"sortBy":   {"publishedAt"},
		"pageSize": {strconv.Itoa(a.max)},
	}
	header := http.Header{"X-Api-Key": {a.apiKey}}

	var result struct {
		Status   string `json:"status"`
		Code     string `json:"code"`
		Message  string `json:"message"`
		Articles []struct {
			URL         string `json:"url"`
			Title       string `json:"title"`
			PublishedAt string `json:"publishedAt"`
			Description string `json:"description"`
			Content     string `json:"content"`
			Source      struct {
				Name string `json:"name"`
			} `json:"source"`
		} `json:"articles"`
	}
	if err := a.http.getJSON(ctx, a.baseURL+"/v2/everything?"+params.Encode(), header, &result); err != nil {
		return nil, err
	}
	if result.Status != "ok" {
		return nil, fmt.Errorf("newsapi status %q: %s %s", result.Status, result.Code, result.Message)
	}

	var events []RawEvent
	for _, art := range result.Articles {
		if len(events) >= a.max {
			break
		}
		if art.Title == "[Removed]" || art.URL == "https://removed.com" {
			continue
		}

		var occurred time.Time
		if art.PublishedAt != "" {
			if t, err := time.Parse(time.RFC3339, art.PublishedAt); err == nil {
				occurred = t
			}
		}

		description := stripHTML(art.Description)
		if description == "" {
			description = stripHTML(art.Content)
		}

		source := art.Source.Name
		if source == "" {
			source = "NewsAPI"
		}

		events = append(events, RawEvent{
			Title:         strings.TrimSpace(art.Title),
			Description:   description,
			SourceName:    source,
			SourceURL:     strings.TrimSpace(art.URL),
			CompanyName:   q.Name(),
			CompanyDomain: q.Domain(),
			OccurredAt:    occurred,
		})
	}
	return events, nil
}
