// Package server exposes ingestion and event reads over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/TobiSchelling/triggerwatch/internal/collect"
	"github.com/TobiSchelling/triggerwatch/internal/database"
	"github.com/TobiSchelling/triggerwatch/internal/digest"
	"github.com/TobiSchelling/triggerwatch/internal/ingest"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxBodyBytes     = 64 << 10
)

// Ingester runs ingestion and demo seeding.
type Ingester interface {
	Ingest(ctx context.Context, input ingest.Input) ingest.Result
	SeedIfEmpty(ctx context.Context, input ingest.Input) ingest.Result
}

// EventReader reads stored events.
type EventReader interface {
	ListEvents(ctx context.Context, scope database.Scope, limit int) ([]database.TriggerEvent, error)
	LatestEvent(ctx context.Context, scope database.Scope) (*database.TriggerEvent, error)
	EventsSince(ctx context.Context, scope database.Scope, since time.Time) ([]database.TriggerEvent, error)
}

// ProviderLister reports provider configuration.
type ProviderLister interface {
	Statuses() []collect.Status
}

// Options configures a Server.
type Options struct {
	Port           int
	RequestTimeout time.Duration
	Logger         *slog.Logger
}

// Server is the HTTP API.
type Server struct {
	Router    *chi.Mux
	Port      int
	logger    *slog.Logger
	ingester  Ingester
	events    EventReader
	providers ProviderLister
	composer  *digest.Composer
}

var digestPage = template.Must(template.New("digest").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>body{font-family:system-ui,sans-serif;max-width:46rem;margin:2rem auto;padding:0 1rem;line-height:1.5}</style>
</head>
<body>
{{.Body}}
</body>
</html>
`))

// New creates a Server with routes and middleware installed.
func New(ingester Ingester, events EventReader, providers ProviderLister, composer *digest.Composer, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if composer == nil {
		composer = digest.NewComposer(nil, logger)
	}

	r := chi.NewRouter()
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(logger))
	r.Use(TimeoutMiddleware(opts.RequestTimeout))
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, "triggerwatch")
	})

	s := &Server{
		Router:    r,
		Port:      opts.Port,
		logger:    logger,
		ingester:  ingester,
		events:    events,
		providers: providers,
		composer:  composer,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.Get("/healthz", s.handleHealth)
	s.Router.Get("/digest", s.handleDigest)
	s.Router.Route("/api", func(r chi.Router) {
		r.Get("/providers", s.handleProviders)
		r.Post("/ingest", s.handleIngest)
		r.Post("/seed", s.handleSeed)
		r.Get("/events", s.handleListEvents)
		r.Get("/events/latest", s.handleLatestEvent)
	})
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", s.Port),
		Handler:           s.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("starting server", slog.String("addr", "http://"+srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Info("shutting down server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"providers": s.providers.Statuses()})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	input, ok := s.decodeInput(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.ingester.Ingest(r.Context(), input))
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	input, ok := s.decodeInput(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.ingester.SeedIfEmpty(r.Context(), input))
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFromQuery(w, r)
	if !ok {
		return
	}
	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := s.events.ListEvents(r.Context(), scope, limit)
	if err != nil {
		s.logger.Error("listing events", "user_id", scope.UserID, "scope", scope.Key(), "error", err)
		writeError(w, http.StatusInternalServerError, "could not list events")
		return
	}
	if events == nil {
		events = []database.TriggerEvent{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}

func (s *Server) handleLatestEvent(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFromQuery(w, r)
	if !ok {
		return
	}
	if scope.Key() == "" {
		writeError(w, http.StatusBadRequest, "company_name or company_domain is required")
		return
	}

	event, err := s.events.LatestEvent(r.Context(), scope)
	if err != nil {
		s.logger.Error("reading latest event", "user_id", scope.UserID, "scope", scope.Key(), "error", err)
		writeError(w, http.StatusInternalServerError, "could not read latest event")
		return
	}
	if event == nil {
		writeError(w, http.StatusNotFound, "no events for this company")
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (s *Server) handleDigest(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeFromQuery(w, r)
	if !ok {
		return
	}

	var events []database.TriggerEvent
	var err error
	if raw := r.URL.Query().Get("since"); raw != "" {
		since, perr := parseSince(raw)
		if perr != nil {
			http.Error(w, perr.Error(), http.StatusBadRequest)
			return
		}
		events, err = s.events.EventsSince(r.Context(), scope, since)
	} else {
		events, err = s.events.ListEvents(r.Context(), scope, defaultListLimit)
	}
	if err != nil {
		s.logger.Error("listing events for digest", "user_id", scope.UserID, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	title := "Trigger events"
	if company := firstNonEmpty(scope.CompanyName, scope.CompanyDomain); company != "" {
		title += ": " + company
	}
	d := s.composer.Compose(r.Context(), title, events)
	body, err := d.HTML()
	if err != nil {
		s.logger.Error("rendering digest", "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := digestPage.Execute(w, map[string]any{
		"Title": title,
		"Body":  template.HTML(body), //nolint: gosec
	}); err != nil {
		s.logger.Error("writing digest page", "error", err)
	}
}

func (s *Server) decodeInput(w http.ResponseWriter, r *http.Request) (ingest.Input, bool) {
	var input ingest.Input
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&input); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return input, false
	}
	if strings.TrimSpace(input.UserID) == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return input, false
	}
	return input, true
}

func scopeFromQuery(w http.ResponseWriter, r *http.Request) (database.Scope, bool) {
	q := r.URL.Query()
	scope := database.Scope{
		UserID:        strings.TrimSpace(q.Get("user_id")),
		CompanyName:   strings.TrimSpace(q.Get("company_name")),
		CompanyDomain: strings.TrimSpace(q.Get("company_domain")),
	}
	if scope.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return scope, false
	}
	if scope.CompanyDomain != "" {
		scope.CompanyDomain = collect.Query{CompanyDomain: scope.CompanyDomain}.Domain()
	}
	return scope, true
}

func parseLimit(raw string) (int, error) {
	if raw == "" {
		return defaultListLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("limit must be a positive integer")
	}
	if n > maxListLimit {
		n = maxListLimit
	}
	return n, nil
}

// parseSince accepts an RFC 3339 timestamp or a plain date.
func parseSince(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, raw); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("since must be an RFC 3339 timestamp or YYYY-MM-DD date")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
