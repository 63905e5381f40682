// Package sweep runs ingestion for every watched lead in one pass.
package sweep

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/TobiSchelling/triggerwatch/internal/collect"
	"github.com/TobiSchelling/triggerwatch/internal/database"
	"github.com/TobiSchelling/triggerwatch/internal/ingest"
)

// LeadSource lists the leads to sweep.
type LeadSource interface {
	GetActiveLeads() ([]database.Lead, error)
}

// Runner ingests and seeds one company.
type Runner interface {
	Ingest(ctx context.Context, input ingest.Input) ingest.Result
	SeedIfEmpty(ctx context.Context, input ingest.Input) ingest.Result
}

// StepResult holds the outcome for one lead.
type StepResult struct {
	Name    string
	Summary string
	Created int
	Seeded  int
	Err     error
}

// Result holds the results of a full sweep.
type Result struct {
	Leads   int
	Created int
	Seeded  int
	Steps   []StepResult
	Err     error
}

// Sweeper ingests trigger events for all active leads.
type Sweeper struct {
	leads  LeadSource
	runner Runner
	logger *slog.Logger
}

// New creates a new sweeper.
func New(leads LeadSource, runner Runner, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{leads: leads, runner: runner, logger: logger}
}

// Run ingests every active lead, optionally limited to one tenant. Leads are
// processed one at a time; a cancelled context stops the sweep between leads.
func (s *Sweeper) Run(ctx context.Context, userID string) *Result {
	r := &Result{}

	leads, err := s.active(userID)
	if err != nil {
		r.Err = fmt.Errorf("listing leads: %w", err)
		return r
	}
	r.Leads = len(leads)
	s.logger.Info("sweep started", "leads", len(leads))

	for i, lead := range leads {
		if err := ctx.Err(); err != nil {
			r.Err = err
			s.logger.Warn("sweep cancelled", "done", i, "leads", len(leads))
			break
		}

		input := inputFor(lead)
		ing := s.runner.Ingest(ctx, input)
		seed := s.runner.SeedIfEmpty(ctx, input)

		step := StepResult{
			Name:    label(lead),
			Summary: summarize(ing, seed),
			Created: ing.Created,
			Seeded:  seed.Created,
		}
		r.Steps = append(r.Steps, step)
		r.Created += ing.Created
		r.Seeded += seed.Created
		s.logger.Debug("lead swept", "lead", step.Name, "created", ing.Created, "seeded", seed.Created)
	}

	s.logger.Info("sweep complete", "leads", r.Leads, "created", r.Created, "seeded", r.Seeded)
	return r
}

// DryRun shows what a sweep would do without fetching anything.
func (s *Sweeper) DryRun(userID string, providers []collect.Status) *Result {
	r := &Result{}

	var enabled, disabled []string
	for _, p := range providers {
		if p.Enabled {
			enabled = append(enabled, p.Name)
		} else {
			disabled = append(disabled, p.Name+" ("+p.SkipReason+")")
		}
	}
	summary := "[dry-run] providers: " + listOrNone(enabled)
	if len(disabled) > 0 {
		summary += "; disabled: " + strings.Join(disabled, ", ")
	}
	r.Steps = append(r.Steps, StepResult{Name: "Providers", Summary: summary})

	leads, err := s.active(userID)
	if err != nil {
		r.Err = fmt.Errorf("listing leads: %w", err)
		return r
	}
	r.Leads = len(leads)
	for _, lead := range leads {
		r.Steps = append(r.Steps, StepResult{
			Name:    label(lead),
			Summary: "[dry-run] would ingest for " + lead.Scope().Key(),
		})
	}
	return r
}

func (s *Sweeper) active(userID string) ([]database.Lead, error) {
	leads, err := s.leads.GetActiveLeads()
	if err != nil {
		return nil, err
	}
	if userID == "" {
		return leads, nil
	}
	var out []database.Lead
	for _, l := range leads {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	return out, nil
}

func inputFor(l database.Lead) ingest.Input {
	scope := l.Scope()
	return ingest.Input{
		UserID:        scope.UserID,
		LeadID:        scope.LeadID,
		CompanyName:   scope.CompanyName,
		CompanyDomain: scope.CompanyDomain,
	}
}

func label(l database.Lead) string {
	scope := l.Scope()
	company := scope.CompanyName
	if company == "" {
		company = scope.CompanyDomain
	}
	return fmt.Sprintf("%s/%s", l.UserID, company)
}

func summarize(ing, seed ingest.Result) string {
	var b strings.Builder
	if ing.Skipped != "" {
		fmt.Fprintf(&b, "skipped (%s)", ing.Skipped)
	} else {
		fmt.Fprintf(&b, "%d new events (%d fetched, %d duplicates)", ing.Created, ing.Fetched, ing.Duplicates)
	}
	if seed.Created > 0 {
		fmt.Fprintf(&b, ", %d demo events", seed.Created)
	}
	return b.String()
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}
