package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/TobiSchelling/triggerwatch/internal/collect"
	"github.com/TobiSchelling/triggerwatch/internal/database"
	"github.com/TobiSchelling/triggerwatch/internal/digest"
	"github.com/TobiSchelling/triggerwatch/internal/ingest"
	"github.com/TobiSchelling/triggerwatch/internal/sweep"
)

// companyFlags are shared by every command that targets one company.
type companyFlags struct {
	user    string
	lead    string
	company string
	domain  string
}

func (f *companyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.user, "user", "u", "", "Tenant user ID")
	cmd.Flags().StringVar(&f.lead, "lead", "", "Lead ID the events belong to")
	cmd.Flags().StringVar(&f.company, "company", "", "Company name")
	cmd.Flags().StringVar(&f.domain, "domain", "", "Company domain")
}

func (f *companyFlags) input() ingest.Input {
	return ingest.Input{UserID: f.user, LeadID: f.lead, CompanyName: f.company, CompanyDomain: f.domain}
}

func (f *companyFlags) scope() database.Scope {
	return database.Scope{
		UserID:        f.user,
		CompanyName:   strings.TrimSpace(f.company),
		CompanyDomain: collect.Query{CompanyDomain: f.domain}.Domain(),
	}
}

func (f *companyFlags) requireUser() error {
	if strings.TrimSpace(f.user) == "" {
		return fmt.Errorf("--user is required")
	}
	return nil
}

// --- providers command ---

var providersCmd = &cobra.Command{
	Use:   "providers",
	Short: "Inspect configured news providers",
}

var providersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List providers in merge order",
	Run: func(cmd *cobra.Command, args []string) {
		c := collect.NewCollector(cfg.Providers, logger)
		printStatuses(c.Statuses())
		if c.IsNoop() {
			fmt.Println("\nNo provider is enabled; ingestion will be skipped.")
		}
	},
}

var probeFlags companyFlags

var providersProbeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Query every enabled provider for one company without storing anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		q := collect.Query{CompanyName: probeFlags.company, CompanyDomain: probeFlags.domain}
		if gate := collect.ShouldRun(q); !gate.OK {
			return fmt.Errorf("query skipped: %s", gate.Reason)
		}

		c := collect.NewCollector(cfg.Providers, logger)
		outcomes := c.FetchOutcomes(cmd.Context(), q)
		for _, o := range outcomes {
			switch {
			case o.Failed():
				fmt.Printf("  %-8s error: %v\n", o.Provider, o.Err)
			case o.Skipped != "":
				fmt.Printf("  %-8s skipped: %s\n", o.Provider, o.Skipped)
			default:
				fmt.Printf("  %-8s %d events\n", o.Provider, len(o.Events))
			}
		}

		candidates := collect.Candidates(outcomes, time.Now())
		fmt.Printf("\n%d candidates after merge:\n", len(candidates))
		for _, cand := range candidates {
			fmt.Printf("  %s  %s\n    %s\n", cand.DetectedAt.Format("2006-01-02"), cand.Headline, cand.SourceURL)
		}
		return nil
	},
}

func init() {
	probeFlags.register(providersProbeCmd)
	providersCmd.AddCommand(providersListCmd)
	providersCmd.AddCommand(providersProbeCmd)
}

// --- ingest / seed commands ---

var (
	ingestFlags companyFlags
	ingestSeed  bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch and store new trigger events for one company",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := ingestFlags.requireUser(); err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res := a.ingester.Ingest(cmd.Context(), ingestFlags.input())
		printResult("Ingest", res)
		if ingestSeed {
			printResult("Seed", a.ingester.SeedIfEmpty(cmd.Context(), ingestFlags.input()))
		}
		return nil
	},
}

var seedFlags companyFlags

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Insert demo events when a company has none",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := seedFlags.requireUser(); err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		printResult("Seed", a.ingester.SeedIfEmpty(cmd.Context(), seedFlags.input()))
		return nil
	},
}

func init() {
	ingestFlags.register(ingestCmd)
	ingestCmd.Flags().BoolVar(&ingestSeed, "seed", false, "Seed demo events afterwards if the company still has none")
	seedFlags.register(seedCmd)
}

func printResult(name string, r ingest.Result) {
	if r.Skipped != "" {
		fmt.Printf("%s skipped: %s\n", name, r.Skipped)
		return
	}
	fmt.Printf("%s complete:\n", name)
	fmt.Printf("  Created: %d\n", r.Created)
	if r.Fetched > 0 {
		fmt.Printf("  Fetched: %d\n", r.Fetched)
		fmt.Printf("  Duplicates skipped: %d\n", r.Duplicates)
	}
}

// --- events command ---

var (
	eventsFlags companyFlags
	eventsLimit int
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Read stored trigger events",
}

var eventsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List a tenant's events, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := eventsFlags.requireUser(); err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		events, err := db.ListEvents(cmd.Context(), eventsFlags.scope(), eventsLimit)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Println("No events stored. Run: triggerwatch ingest --user ... --company ...")
			return nil
		}
		for _, e := range events {
			printEvent(e)
		}
		return nil
	},
}

var eventsLatestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Show the most recent event for one company",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := eventsFlags.requireUser(); err != nil {
			return err
		}
		scope := eventsFlags.scope()
		if scope.Key() == "" {
			return fmt.Errorf("--company or --domain is required")
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		event, err := db.LatestEvent(cmd.Context(), scope)
		if err != nil {
			return err
		}
		if event == nil {
			fmt.Println("No events for this company.")
			return nil
		}
		printEvent(*event)
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{eventsListCmd, eventsLatestCmd} {
		c.Flags().StringVarP(&eventsFlags.user, "user", "u", "", "Tenant user ID")
		c.Flags().StringVar(&eventsFlags.company, "company", "", "Company name")
		c.Flags().StringVar(&eventsFlags.domain, "domain", "", "Company domain")
	}
	eventsListCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 20, "Maximum events to show")
	eventsCmd.AddCommand(eventsListCmd)
	eventsCmd.AddCommand(eventsLatestCmd)
}

func printEvent(e database.TriggerEvent) {
	company := ""
	if e.CompanyName != nil {
		company = *e.CompanyName
	} else if e.CompanyDomain != nil {
		company = *e.CompanyDomain
	}
	fmt.Printf("[%s] %-14s %s\n", e.DetectedAt.Format("2006-01-02"), e.EventType, e.Headline)
	if company != "" {
		fmt.Printf("    %s\n", company)
	}
	fmt.Printf("    %s\n", e.SourceURL)
}

// --- digest command ---

var (
	digestFlags  companyFlags
	digestHTML   bool
	digestOutput string
	digestLimit  int
	digestDays   int
)

var digestCmd = &cobra.Command{
	Use:   "digest",
	Short: "Render a tenant's recent events as markdown or HTML",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := digestFlags.requireUser(); err != nil {
			return err
		}
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		scope := digestFlags.scope()
		var events []database.TriggerEvent
		if digestDays > 0 {
			since := time.Now().UTC().AddDate(0, 0, -digestDays)
			events, err = a.db.EventsSince(cmd.Context(), scope, since)
			if digestLimit > 0 && len(events) > digestLimit {
				events = events[:digestLimit]
			}
		} else {
			events, err = a.db.ListEvents(cmd.Context(), scope, digestLimit)
		}
		if err != nil {
			return err
		}

		title := "Trigger events"
		if c := scope.CompanyName; c != "" {
			title += ": " + c
		} else if scope.CompanyDomain != "" {
			title += ": " + scope.CompanyDomain
		}
		d := digest.NewComposer(a.provider, logger).Compose(cmd.Context(), title, events)

		out := d.Markdown()
		if digestHTML {
			if out, err = d.HTML(); err != nil {
				return err
			}
		}
		if digestOutput == "" {
			fmt.Print(out)
			return nil
		}
		if err := os.WriteFile(digestOutput, []byte(out), 0o644); err != nil {
			return fmt.Errorf("writing digest: %w", err)
		}
		fmt.Printf("Wrote %s (%d events)\n", digestOutput, d.EventCount)
		return nil
	},
}

func init() {
	digestCmd.Flags().StringVarP(&digestFlags.user, "user", "u", "", "Tenant user ID")
	digestCmd.Flags().StringVar(&digestFlags.company, "company", "", "Company name")
	digestCmd.Flags().StringVar(&digestFlags.domain, "domain", "", "Company domain")
	digestCmd.Flags().BoolVar(&digestHTML, "html", false, "Render HTML instead of markdown")
	digestCmd.Flags().StringVarP(&digestOutput, "output", "o", "", "Write to file instead of stdout")
	digestCmd.Flags().IntVarP(&digestLimit, "limit", "n", 50, "Maximum events to include")
	digestCmd.Flags().IntVar(&digestDays, "days", 0, "Only include events detected in the last N days")
}

// --- leads command ---

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "Manage watched companies",
}

var leadsUser string

var leadsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched companies",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		items, err := db.GetAllLeads(leadsUser)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			fmt.Println("No leads watched. Add one with: triggerwatch leads add --user ... --company ...")
			return nil
		}

		fmt.Println("Watched leads:")
		fmt.Println()
		for _, l := range items {
			icon := " "
			if l.IsActive {
				icon = "*"
			}
			scope := l.Scope()
			fmt.Printf("  [%d] %s %s  %s\n", l.ID, icon, l.UserID, firstOf(scope.CompanyName, scope.CompanyDomain))
			if scope.CompanyName != "" && scope.CompanyDomain != "" {
				fmt.Printf("        %s\n", scope.CompanyDomain)
			}
		}
		return nil
	},
}

var addFlags companyFlags

var leadsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Watch a company for a tenant",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := addFlags.requireUser(); err != nil {
			return err
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		domain := collect.Query{CompanyDomain: addFlags.domain}.Domain()
		id, err := db.InsertLead(addFlags.user, addFlags.lead, addFlags.company, domain)
		if err != nil {
			return err
		}
		fmt.Printf("Added lead [%d]: %s\n", id, firstOf(addFlags.company, domain))
		return nil
	},
}

var leadsRemoveCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Stop watching a company",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		lead, err := findLead(db, args[0])
		if err != nil {
			return err
		}
		if err := db.DeleteLead(lead.ID); err != nil {
			return err
		}
		fmt.Printf("Removed lead [%d]: %s\n", lead.ID, firstOf(lead.Scope().CompanyName, lead.Scope().CompanyDomain))
		return nil
	},
}

var leadsToggleCmd = &cobra.Command{
	Use:   "toggle [id]",
	Short: "Pause or resume a lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		lead, err := findLead(db, args[0])
		if err != nil {
			return err
		}
		if err := db.ToggleLead(lead.ID); err != nil {
			return err
		}
		newState := "paused"
		if !lead.IsActive {
			newState = "active"
		}
		fmt.Printf("Lead [%d] %s: %s\n", lead.ID, firstOf(lead.Scope().CompanyName, lead.Scope().CompanyDomain), newState)
		return nil
	},
}

func init() {
	leadsListCmd.Flags().StringVarP(&leadsUser, "user", "u", "", "Only show this tenant's leads")
	addFlags.register(leadsAddCmd)
	leadsCmd.AddCommand(leadsListCmd)
	leadsCmd.AddCommand(leadsAddCmd)
	leadsCmd.AddCommand(leadsRemoveCmd)
	leadsCmd.AddCommand(leadsToggleCmd)
}

func findLead(db *database.DB, arg string) (*database.Lead, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid lead ID: %s", arg)
	}
	lead, err := db.GetLead(id)
	if err != nil {
		return nil, err
	}
	if lead == nil {
		return nil, fmt.Errorf("lead %d not found", id)
	}
	return lead, nil
}

func firstOf(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// --- sweep command ---

var (
	sweepDryRun bool
	sweepUser   string
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Ingest trigger events for every active lead",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		s := sweep.New(a.db, a.ingester, logger)
		var result *sweep.Result
		if sweepDryRun {
			result = s.DryRun(sweepUser, a.collector.Statuses())
		} else {
			result = s.Run(cmd.Context(), sweepUser)
		}

		for _, step := range result.Steps {
			if step.Err != nil {
				fmt.Printf("  %s: error: %v\n", step.Name, step.Err)
			} else {
				fmt.Printf("  %s: %s\n", step.Name, step.Summary)
			}
		}
		if result.Err != nil {
			return result.Err
		}
		if !sweepDryRun {
			fmt.Printf("\nSweep complete: %d leads, %d new events, %d demo events\n", result.Leads, result.Created, result.Seeded)
		}
		return nil
	},
}

func init() {
	sweepCmd.Flags().BoolVar(&sweepDryRun, "dry-run", false, "Show what would be done without fetching")
	sweepCmd.Flags().StringVarP(&sweepUser, "user", "u", "", "Only sweep this tenant's leads")
}
