package collect

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/TobiSchelling/triggerwatch/internal/config"
)

// FeedAdapter reads a configured list of RSS/Atom feeds and keeps the items
// that are about the queried company.
type FeedAdapter struct {
	feeds     []config.Feed
	max       int
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

// NewFeedAdapter creates an RSS adapter. It is only usable when at least one
// feed is configured.
func NewFeedAdapter(feeds []config.Feed, maxResults int, client *http.Client, userAgent string, logger *slog.Logger) *FeedAdapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &FeedAdapter{feeds: feeds, max: maxResults, client: client, userAgent: userAgent, logger: logger}
}

func (a *FeedAdapter) Name() string { return string(ProviderRSS) }

// IsConfigured returns whether any feed is configured.
func (a *FeedAdapter) IsConfigured() bool { return len(a.feeds) > 0 }

// Fetch parses every feed in order. A failing feed is logged and skipped; the
// call only fails when no feed could be read.
func (a *FeedAdapter) Fetch(ctx context.Context, q Query) ([]RawEvent, error) {
	parser := gofeed.NewParser()
	parser.Client = a.client
	if a.userAgent != "" {
		parser.UserAgent = a.userAgent
	}

	var events []RawEvent
	var errs []error
	for _, fc := range a.feeds {
		if len(events) >= a.max {
			break
		}
		name := fc.Name
		if name == "" {
			name = extractSourceName(fc.URL)
		}

		feed, err := parser.ParseURLWithContext(fc.URL, ctx)
		if err != nil {
			a.logger.Warn("feed parse failed", slog.String("feed", fc.URL), slog.Any("error", err))
			errs = append(errs, fmt.Errorf("%s: %w", fc.URL, err))
			continue
		}

		for _, item := range feed.Items {
			if len(events) >= a.max {
				break
			}
			ev, ok := parseItem(item, name, q)
			if !ok {
				continue
			}
			events = append(events, ev)
		}
	}

	if len(errs) == len(a.feeds) && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return events, nil
}

// parseItem converts a feed item and reports whether it concerns the company.
func parseItem(item *gofeed.Item, source string, q Query) (RawEvent, bool) {
	if item == nil {
		return RawEvent{}, false
	}
	link := strings.TrimSpace(item.Link)
	if link == "" {
		link = strings.TrimSpace(item.GUID)
	}
	title := strings.TrimSpace(item.Title)
	if link == "" || title == "" {
		return RawEvent{}, false
	}

	description := stripHTML(item.Description)
	content := stripHTML(item.Content)
	if description == "" {
		description = content
	}

	if !mentionsCompany(title+" "+description+" "+content, q) && !hostMatches(link, q.Domain()) {
		return RawEvent{}, false
	}

	var occurred time.Time
	if item.PublishedParsed != nil {
		occurred = *item.PublishedParsed
	} else if item.UpdatedParsed != nil {
		occurred = *item.UpdatedParsed
	}

	return RawEvent{
		Title:         title,
		Description:   description,
		SourceName:    source,
		SourceURL:     link,
		CompanyName:   q.Name(),
		CompanyDomain: q.Domain(),
		OccurredAt:    occurred,
	}, true
}
