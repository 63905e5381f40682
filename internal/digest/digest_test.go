package digest

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/TobiSchelling/triggerwatch/internal/database"
)

type mockProvider struct {
	response string
	err      error
}

func (m *mockProvider) Generate(_ context.Context, _ string, _ int) (string, error) {
	return m.response, m.err
}

func (m *mockProvider) Name() string { return "mock" }

func ptr(s string) *string { return &s }

var fixedNow = time.Date(2026, 2, 6, 12, 0, 0, 0, time.UTC)

func testEvents() []database.TriggerEvent {
	return []database.TriggerEvent{
		{
			CompanyName: ptr("Acme Corp"),
			EventType:   "funding",
			Headline:    "Acme raises $20M Series A",
			Description: "The round was led by Example Ventures.",
			SourceURL:   "https://news.example.com/acme-series-a",
			DetectedAt:  fixedNow,
		},
		{
			CompanyDomain: ptr("globex.com"),
			EventType:     "news",
			Headline:      "Globex quarterly update",
			Description:   "Globex quarterly update",
			SourceURL:     "https://news.example.com/globex",
			DetectedAt:    fixedNow.Add(-time.Hour),
		},
		{
			CompanyName: ptr("Acme Corp"),
			EventType:   "partnership",
			Headline:    "Acme partners with [Initech]",
			SourceURL:   "https://news.example.com/acme-initech",
			DetectedAt:  fixedNow.Add(-2 * time.Hour),
		},
	}
}

func newComposer(provider *mockProvider) *Composer {
	c := NewComposer(nil, nil)
	if provider != nil {
		c = NewComposer(provider, nil)
	}
	c.now = func() time.Time { return fixedNow }
	return c
}

func TestComposeGroupsByType(t *testing.T) {
	d := newComposer(nil).Compose(context.Background(), "Acme brief", testEvents())
	if d.EventCount != 3 {
		t.Errorf("expected 3 events, got %d", d.EventCount)
	}

	funding := strings.Index(d.Body, "## Funding")
	partnership := strings.Index(d.Body, "## Partnership")
	news := strings.Index(d.Body, "## News")
	if funding < 0 || partnership < 0 || news < 0 {
		t.Fatalf("missing section in body:\n%s", d.Body)
	}
	if !(funding < partnership && partnership < news) {
		t.Errorf("expected known types in rule order before others:\n%s", d.Body)
	}
	if !strings.Contains(d.Body, "The round was led by Example Ventures.") {
		t.Error("expected description under headline")
	}
	if strings.Count(d.Body, "Globex quarterly update") != 1 {
		t.Error("description equal to headline should not be repeated")
	}
	if !strings.Contains(d.Body, `Acme partners with \[Initech\]`) {
		t.Errorf("expected escaped brackets, got:\n%s", d.Body)
	}
}

func TestComposeFallbackTLDR(t *testing.T) {
	d := newComposer(nil).Compose(context.Background(), "Brief", testEvents())
	if strings.Count(d.TLDR, "\n")+1 != 2 {
		t.Errorf("expected one bullet per company, got:\n%s", d.TLDR)
	}
	if !strings.HasPrefix(d.TLDR, "- **Acme Corp**: Acme raises $20M Series A") {
		t.Errorf("unexpected TL;DR:\n%s", d.TLDR)
	}
}

func TestComposeLLMTLDR(t *testing.T) {
	resp, _ := json.Marshal(map[string]any{
		"tldr_bullets": []string{"Acme just raised money, pitch scaling help."},
	})
	d := newComposer(&mockProvider{response: string(resp)}).Compose(context.Background(), "Brief", testEvents())
	if d.TLDR != "- Acme just raised money, pitch scaling help." {
		t.Errorf("unexpected TL;DR: %q", d.TLDR)
	}
}

func TestComposeLLMErrorFallsBack(t *testing.T) {
	d := newComposer(&mockProvider{err: errors.New("timeout")}).Compose(context.Background(), "Brief", testEvents())
	if !strings.Contains(d.TLDR, "**Acme Corp**") {
		t.Errorf("expected fallback TL;DR, got %q", d.TLDR)
	}
}

func TestComposeEmpty(t *testing.T) {
	d := newComposer(nil).Compose(context.Background(), "Brief", nil)
	if d.Body != "No trigger events yet." || d.TLDR != "" {
		t.Errorf("unexpected empty digest: %+v", d)
	}
}

func TestMarkdownAndHTML(t *testing.T) {
	d := newComposer(nil).Compose(context.Background(), "Acme brief", testEvents())

	text := d.Markdown()
	if !strings.HasPrefix(text, "# Acme brief\n\n_3 events, generated 2026-02-06 12:00 UTC_") {
		t.Errorf("unexpected header:\n%s", text)
	}

	html, err := d.HTML()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(html, "<h1>Acme brief</h1>") {
		t.Errorf("expected h1, got:\n%s", html)
	}
	if !strings.Contains(html, `<a href="https://news.example.com/acme-series-a">Acme raises $20M Series A</a>`) {
		t.Errorf("expected event link, got:\n%s", html)
	}
}

func TestHTMLOmitsRawHTML(t *testing.T) {
	d := &Digest{Title: "T", Body: "<script>alert(1)</script>", Generated: fixedNow}
	html, err := d.HTML()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(html, "<script>") {
		t.Error("raw HTML must not be rendered")
	}
}

func TestHeading(t *testing.T) {
	if heading("new_hires") != "New Hires" || heading("") != "Other" {
		t.Errorf("unexpected headings %q %q", heading("new_hires"), heading(""))
	}
}

func TestHeadingAndTruncateKeepRunesWhole(t *testing.T) {
	if got := heading("übernahme_news"); got != "Übernahme News" {
		t.Errorf("got heading %q", got)
	}
	got := truncate(strings.Repeat("é", 10), 4)
	if !utf8.ValidString(got) || got != "éééé..." {
		t.Errorf("got truncation %q", got)
	}
	if got := truncate("Acme opens a new office", 12); got != "Acme opens..." {
		t.Errorf("expected cut at word boundary, got %q", got)
	}
}
