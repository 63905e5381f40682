package collect

import (
	"context"
	"strings"
	"time"
)

// Skip reasons reported by the gate and the registry.
const (
	SkipMissingAPIKey  = "missing_api_key"
	SkipMissingFeeds   = "missing_feeds"
	SkipLowSpecificity = "low_specificity"
)

// minIdentityLen is the shortest company name or domain worth a provider call.
const minIdentityLen = 2

// Query identifies the company a fetch is about.
type Query struct {
	CompanyName   string
	CompanyDomain string
}

// Name returns the trimmed company name.
func (q Query) Name() string { return strings.TrimSpace(q.CompanyName) }

// Domain returns the trimmed, lower-cased company domain without scheme or
// leading "www.".
func (q Query) Domain() string { return cleanDomain(q.CompanyDomain) }

// RawEvent is one provider result before normalization.
type RawEvent struct {
	Title         string
	Headline      string
	Description   string
	SourceName    string
	SourceURL     string
	CompanyName   string
	CompanyDomain string
	OccurredAt    time.Time
}

// Adapter fetches raw events about a company from one external source.
// Implementations return an error on any failure; the collector converts it
// into an empty Outcome.
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, q Query) ([]RawEvent, error)
}

// Status describes whether an adapter is usable with the current
// configuration.
type Status struct {
	Name       string `json:"name"`
	Enabled    bool   `json:"enabled"`
	SkipReason string `json:"skip_reason,omitempty"`
}

// GateDecision is the per-call eligibility verdict for a query.
type GateDecision struct {
	OK     bool
	Reason string
}

// ShouldRun rejects queries without a usable company identity.
func ShouldRun(q Query) GateDecision {
	if len(q.Name()) < minIdentityLen && len(q.Domain()) < minIdentityLen {
		return GateDecision{Reason: SkipLowSpecificity}
	}
	return GateDecision{OK: true}
}

// Outcome is the result of one adapter call. A failed call keeps its error
// for diagnostics but never carries events; callers only read Events.
type Outcome struct {
	Provider string
	Events   []RawEvent
	Skipped  string
	Err      error
}

// Failed reports whether the provider call errored.
func (o Outcome) Failed() bool { return o.Err != nil }

func cleanDomain(d string) string {
	d = strings.ToLower(strings.TrimSpace(d))
	if i := strings.Index(d, "://"); i >= 0 {
		d = d[i+3:]
	}
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	if i := strings.LastIndex(d, ":"); i >= 0 {
		d = d[:i]
	}
	return strings.TrimPrefix(d, "www.")
}
