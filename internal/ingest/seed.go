package ingest

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/TobiSchelling/triggerwatch/internal/collect"
	"github.com/TobiSchelling/triggerwatch/internal/database"
)

const defaultDemoURL = "https://triggerwatch.app/demo"

type demoEvent struct {
	eventType   string
	slug        string
	headline    string
	description string
	age         time.Duration
}

var demoEvents = []demoEvent{
	{
		eventType:   "funding",
		slug:        "funding",
		headline:    "[Demo] %s closes a new funding round",
		description: "[Demo] Placeholder event. %s announced fresh investment to grow its go-to-market team. Real trigger events replace this once a news provider is configured.",
		age:         2 * 24 * time.Hour,
	},
	{
		eventType:   "product_launch",
		slug:        "product-launch",
		headline:    "[Demo] %s unveils a new product line",
		description: "[Demo] Placeholder event. %s launched a new offering aimed at mid-market buyers. Real trigger events replace this once a news provider is configured.",
		age:         6 * time.Hour,
	},
}

// SeedIfEmpty inserts placeholder events when the tenant has none for the
// company. It is a no-op unless demo seeding is enabled.
func (in *Ingester) SeedIfEmpty(ctx context.Context, input Input) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			in.logger.Error("seed panicked", "user_id", input.UserID, "company", input.CompanyName, "panic", fmt.Sprint(r))
			res = Result{}
		}
	}()

	if !in.opts.DemoSeed {
		return Result{Skipped: SkippedDemoDisabled}
	}
	if strings.TrimSpace(input.UserID) == "" {
		return Result{Skipped: SkippedMissingUser}
	}

	q := collect.Query{CompanyName: input.CompanyName, CompanyDomain: input.CompanyDomain}
	scope := scopeFor(input, q)
	if scope.Key() == "" {
		return Result{Skipped: SkippedLowSpecificity}
	}

	unlock := in.locks.lock(scope.UserID + "\x00" + scope.Key())
	defer unlock()

	has, err := in.store.HasEvents(ctx, scope)
	if err != nil {
		in.logPersistError("has_events", scope, err)
		return Result{}
	}
	if has {
		return Result{Skipped: SkippedHasEvents}
	}

	created, err := in.store.InsertEvents(ctx, in.demoRows(scope))
	if err != nil {
		in.logPersistError("seed", scope, err)
		return Result{}
	}
	in.logger.Info("seeded demo events", "user_id", scope.UserID, "scope", scope.Key(), "created", created)
	return Result{Created: created}
}

func (in *Ingester) demoRows(scope database.Scope) []database.NewEvent {
	base := strings.TrimRight(in.opts.DemoURL, "/")
	if base == "" {
		base = defaultDemoURL
	}
	company := scope.CompanyName
	if company == "" {
		company = scope.CompanyDomain
	}
	now := in.now().UTC()

	rows := make([]database.NewEvent, len(demoEvents))
	for i, d := range demoEvents {
		rows[i] = database.NewEvent{
			Scope:       scope,
			EventType:   d.eventType,
			Headline:    fmt.Sprintf(d.headline, company),
			Description: fmt.Sprintf(d.description, company),
			SourceURL:   fmt.Sprintf("%s/%s/%s", base, url.PathEscape(strings.TrimPrefix(scope.Key(), "name:")), d.slug),
			CompanyURL:  companyURL(scope.CompanyDomain),
			DetectedAt:  now.Add(-d.age),
		}
	}
	return rows
}
