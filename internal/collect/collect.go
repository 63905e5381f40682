package collect

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/TobiSchelling/triggerwatch/internal/config"
)

const tracerName = "github.com/TobiSchelling/triggerwatch/internal/collect"

// Collector fans a company query out to every enabled provider and merges
// their results.
type Collector struct {
	entries []Entry
	max     int
	logger  *slog.Logger
	tracer  trace.Tracer
	now     func() time.Time
}

// NewCollector builds the configured providers and returns a collector over
// them.
func NewCollector(cfg config.Providers, logger *slog.Logger) *Collector {
	return New(Build(cfg, logger), cfg.MaxPerProvider, logger)
}

// New creates a collector over already-built entries. Registration order is
// the merge priority.
func New(entries []Entry, maxPerProvider int, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	if len(entries) == 0 {
		entries = []Entry{entry(noneAdapter{}, true, "")}
	}
	return &Collector{
		entries: entries,
		max:     config.ClampMaxPerProvider(maxPerProvider),
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
		now:     time.Now,
	}
}

// IsNoop reports whether no real provider is enabled, so a fetch can never
// produce events.
func (c *Collector) IsNoop() bool {
	for _, e := range c.entries {
		if e.Status.Enabled && e.Status.Name != string(ProviderNone) {
			return false
		}
	}
	return true
}

// Statuses reports every registered provider in registration order.
func (c *Collector) Statuses() []Status {
	out := make([]Status, len(c.entries))
	for i, e := range c.entries {
		out[i] = e.Status
	}
	return out
}

// FetchAll runs every enabled provider concurrently and returns the merged,
// normalized candidates.
func (c *Collector) FetchAll(ctx context.Context, q Query) []Candidate {
	ctx, span := c.tracer.Start(ctx, "collect.FetchAll")
	defer span.End()

	candidates := Candidates(c.FetchOutcomes(ctx, q), c.now())
	span.SetAttributes(attribute.Int("candidates", len(candidates)))
	return candidates
}

// Candidates merges outcomes in order and normalizes the surviving events.
func Candidates(outcomes []Outcome, now time.Time) []Candidate {
	merged := Merge(outcomes)
	candidates := make([]Candidate, 0, len(merged))
	for _, raw := range merged {
		if cand, ok := Normalize(raw, now); ok {
			candidates = append(candidates, cand)
		}
	}
	return candidates
}

// FetchOutcomes runs the providers and returns one Outcome per registered
// provider, in registration order regardless of completion order. It waits
// for every provider; a failing provider never affects the others.
func (c *Collector) FetchOutcomes(ctx context.Context, q Query) []Outcome {
	outcomes := make([]Outcome, len(c.entries))

	gate := ShouldRun(q)
	var wg sync.WaitGroup
	for i, e := range c.entries {
		switch {
		case !e.Status.Enabled:
			outcomes[i] = Outcome{Provider: e.Status.Name, Skipped: e.Status.SkipReason}
			continue
		case !gate.OK:
			outcomes[i] = Outcome{Provider: e.Status.Name, Skipped: gate.Reason}
			continue
		}

		wg.Add(1)
		go func(i int, a Adapter) {
			defer wg.Done()
			outcomes[i] = c.fetchOne(ctx, a, q)
		}(i, e.Adapter)
	}
	wg.Wait()

	if !gate.OK {
		c.logger.Debug("trigger fetch skipped", slog.String("reason", gate.Reason))
	}
	return outcomes
}

// fetchOne calls a single adapter and turns every failure, including a
// panic, into an empty Outcome.
func (c *Collector) fetchOne(ctx context.Context, a Adapter, q Query) (out Outcome) {
	name := a.Name()
	ctx, span := c.tracer.Start(ctx, "collect.provider", trace.WithAttributes(attribute.String("provider", name)))
	defer span.End()

	out.Provider = name
	defer func() {
		if r := recover(); r != nil {
			out = Outcome{Provider: name, Err: fmt.Errorf("provider panic: %v", r)}
		}
		if out.Err != nil {
			out.Events = nil
			span.RecordError(out.Err)
			span.SetStatus(codes.Error, out.Err.Error())
			c.logger.Warn("trigger provider failed",
				slog.String("provider", name),
				slog.String("error", out.Err.Error()),
			)
		}
		span.SetAttributes(attribute.Int("events", len(out.Events)))
	}()

	events, err := a.Fetch(ctx, q)
	if err != nil {
		out.Err = err
		return out
	}
	if len(events) > c.max {
		events = events[:c.max]
	}
	out.Events = events
	return out
}
