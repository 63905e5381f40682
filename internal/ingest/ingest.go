// Package ingest turns provider candidates into persisted, tenant-scoped
// trigger events.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/TobiSchelling/triggerwatch/internal/collect"
	"github.com/TobiSchelling/triggerwatch/internal/config"
	"github.com/TobiSchelling/triggerwatch/internal/database"
)

const tracerName = "github.com/TobiSchelling/triggerwatch/internal/ingest"

// Skip reasons reported in Result.Skipped.
const (
	SkippedMissingUser    = "missing_user"
	SkippedNoProvider     = "no_provider"
	SkippedLowSpecificity = collect.SkipLowSpecificity
	SkippedDemoDisabled   = "demo_disabled"
	SkippedHasEvents      = "has_events"
)

// Fetcher produces normalized candidates for a company.
type Fetcher interface {
	IsNoop() bool
	FetchAll(ctx context.Context, q collect.Query) []collect.Candidate
}

// EventStore is the persistence the ingester needs.
type EventStore interface {
	RecentEvents(ctx context.Context, scope database.Scope, limit int) ([]database.EventRef, error)
	HasEvents(ctx context.Context, scope database.Scope) (bool, error)
	InsertEvents(ctx context.Context, events []database.NewEvent) (int, error)
}

// Classifier assigns a coarse event type to a candidate.
type Classifier interface {
	Classify(ctx context.Context, headline, description string) string
}

// Input identifies the tenant and company to ingest for.
type Input struct {
	UserID        string `json:"user_id"`
	LeadID        string `json:"lead_id,omitempty"`
	CompanyName   string `json:"company_name,omitempty"`
	CompanyDomain string `json:"company_domain,omitempty"`
}

// Result summarizes one ingestion call. Created is the number of rows
// actually written.
type Result struct {
	Created    int    `json:"created"`
	Fetched    int    `json:"fetched"`
	Duplicates int    `json:"duplicates"`
	Skipped    string `json:"skipped,omitempty"`
}

// Options tunes the ingester.
type Options struct {
	HistoryLimit     int
	BatchCap         int
	DefaultEventType string
	Timeout          time.Duration
	DemoSeed         bool
	DemoURL          string
}

// OptionsFromConfig maps the ingest config section to Options.
func OptionsFromConfig(cfg config.Ingest) Options {
	return Options{
		HistoryLimit:     cfg.HistoryLimit,
		BatchCap:         cfg.BatchCap,
		DefaultEventType: cfg.DefaultEventType,
		Timeout:          cfg.Timeout,
		DemoSeed:         cfg.DemoSeed,
		DemoURL:          cfg.DemoURL,
	}
}

// Ingester runs fetch, dedup and insert for one company at a time.
type Ingester struct {
	fetcher    Fetcher
	store      EventStore
	classifier Classifier
	opts       Options
	logger     *slog.Logger
	tracer     trace.Tracer
	locks      *scopeLocks
	now        func() time.Time
}

// New creates an Ingester. classifier may be nil, in which case every event
// gets the default event type.
func New(fetcher Fetcher, store EventStore, classifier Classifier, opts Options, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 300
	}
	if opts.BatchCap <= 0 {
		opts.BatchCap = 25
	}
	if opts.DefaultEventType == "" {
		opts.DefaultEventType = "news"
	}
	return &Ingester{
		fetcher:    fetcher,
		store:      store,
		classifier: classifier,
		opts:       opts,
		logger:     logger,
		tracer:     otel.Tracer(tracerName),
		locks:      newScopeLocks(),
		now:        time.Now,
	}
}

// Ingest fetches fresh trigger events for the company and stores those not
// already known for the tenant. It never fails: errors are logged and yield
// a zero count.
func (in *Ingester) Ingest(ctx context.Context, input Input) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			in.logger.Error("ingest panicked", "user_id", input.UserID, "company", input.CompanyName, "panic", fmt.Sprint(r))
			res = Result{}
		}
	}()

	if strings.TrimSpace(input.UserID) == "" {
		return Result{Skipped: SkippedMissingUser}
	}
	if in.fetcher == nil || in.fetcher.IsNoop() {
		return Result{Skipped: SkippedNoProvider}
	}

	q := collect.Query{CompanyName: input.CompanyName, CompanyDomain: input.CompanyDomain}
	if gate := collect.ShouldRun(q); !gate.OK {
		return Result{Skipped: gate.Reason}
	}
	scope := scopeFor(input, q)

	ctx, span := in.tracer.Start(ctx, "ingest.Ingest", trace.WithAttributes(
		attribute.String("user_id", scope.UserID),
		attribute.String("scope", scope.Key()),
	))
	defer span.End()

	// budget bounds provider calls and classification. Store calls keep the
	// caller's context so a spent budget still lets rows be written.
	budget := ctx
	if in.opts.Timeout > 0 {
		var cancel context.CancelFunc
		budget, cancel = context.WithTimeout(ctx, in.opts.Timeout)
		defer cancel()
	}

	candidates := in.fetcher.FetchAll(budget, q)
	res.Fetched = len(candidates)
	span.SetAttributes(attribute.Int("fetched", res.Fetched))
	if len(candidates) == 0 {
		return res
	}

	unlock := in.locks.lock(scope.UserID + "\x00" + scope.Key())
	defer unlock()

	history, err := in.store.RecentEvents(ctx, scope, in.opts.HistoryLimit)
	if err != nil {
		in.logPersistError("history", scope, err)
		return res
	}

	fresh := dedupe(candidates, history)
	res.Duplicates = len(candidates) - len(fresh)
	if len(fresh) > in.opts.BatchCap {
		fresh = fresh[:in.opts.BatchCap]
	}
	if len(fresh) == 0 {
		in.logger.Debug("no new events", "user_id", scope.UserID, "scope", scope.Key(), "fetched", res.Fetched)
		return res
	}

	rows := make([]database.NewEvent, len(fresh))
	for i, c := range fresh {
		rows[i] = in.row(budget, scope, c)
	}

	created, err := in.store.InsertEvents(ctx, rows)
	if err != nil {
		in.logPersistError("insert", scope, err)
		return res
	}
	res.Created = created
	span.SetAttributes(attribute.Int("created", created))

	in.logger.Info("ingested events",
		"user_id", scope.UserID,
		"scope", scope.Key(),
		"fetched", res.Fetched,
		"duplicates", res.Duplicates,
		"created", created,
	)
	return res
}

func (in *Ingester) row(ctx context.Context, scope database.Scope, c collect.Candidate) database.NewEvent {
	eventType := in.opts.DefaultEventType
	if in.classifier != nil {
		if t := in.classifier.Classify(ctx, c.Headline, c.Description); t != "" {
			eventType = t
		}
	}
	return database.NewEvent{
		Scope:       scope,
		EventType:   eventType,
		Headline:    c.Headline,
		Description: c.Description,
		SourceURL:   c.SourceURL,
		CompanyURL:  companyURL(scope.CompanyDomain),
		DetectedAt:  c.DetectedAt,
	}
}

func (in *Ingester) logPersistError(op string, scope database.Scope, err error) {
	in.logger.Error("event store failed",
		"op", op,
		"user_id", scope.UserID,
		"lead_id", scope.LeadID,
		"scope", scope.Key(),
		"error", err,
	)
}

// dedupe drops candidates whose URL or headline is already in history or
// earlier in the batch.
func dedupe(candidates []collect.Candidate, history []database.EventRef) []collect.Candidate {
	seenURLs := make(map[string]bool, len(history)+len(candidates))
	seenHeadlines := make(map[string]bool, len(history)+len(candidates))
	for _, h := range history {
		seenURLs[collect.URLKey(h.SourceURL)] = true
		seenHeadlines[collect.HeadlineKey(h.Headline)] = true
	}

	var fresh []collect.Candidate
	for _, c := range candidates {
		u := collect.URLKey(c.SourceURL)
		h := collect.HeadlineKey(c.Headline)
		if seenURLs[u] || seenHeadlines[h] {
			continue
		}
		seenURLs[u] = true
		seenHeadlines[h] = true
		fresh = append(fresh, c)
	}
	return fresh
}

func scopeFor(input Input, q collect.Query) database.Scope {
	return database.Scope{
		UserID:        strings.TrimSpace(input.UserID),
		LeadID:        strings.TrimSpace(input.LeadID),
		CompanyName:   q.Name(),
		CompanyDomain: q.Domain(),
	}
}

func companyURL(domain string) string {
	if domain == "" {
		return ""
	}
	return "https://" + domain
}
