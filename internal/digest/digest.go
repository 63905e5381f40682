// Package digest renders a tenant's trigger events as a markdown brief.
package digest

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/triggerwatch/internal/classify"
	"github.com/TobiSchelling/triggerwatch/internal/database"
	"github.com/TobiSchelling/triggerwatch/internal/llm"
)

const summaryPrompt = `You are writing the TL;DR for a sales team's weekly account brief.

Here are the latest trigger events for the accounts they watch:

%s

Write 2-4 bullet points naming the most promising outreach openings. Each bullet is one sentence naming the company and why now is a good time to reach out.

Respond with ONLY this JSON:
{
    "tldr_bullets": [
        "First opening",
        "Second opening"
    ]
}`

var md = goldmark.New()

// Digest is a composed event brief.
type Digest struct {
	Title      string
	TLDR       string
	Body       string
	EventCount int
	Generated  time.Time
}

// Markdown returns the full document.
func (d *Digest) Markdown() string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.Title)
	fmt.Fprintf(&b, "_%d events, generated %s_\n\n", d.EventCount, d.Generated.UTC().Format("2006-01-02 15:04 UTC"))
	if d.TLDR != "" {
		b.WriteString("## TL;DR\n\n")
		b.WriteString(d.TLDR)
		b.WriteString("\n\n")
	}
	b.WriteString(d.Body)
	b.WriteString("\n")
	return b.String()
}

// HTML renders the markdown document. Raw HTML in event text is omitted.
func (d *Digest) HTML() (string, error) {
	var buf bytes.Buffer
	if err := md.Convert([]byte(d.Markdown()), &buf); err != nil {
		return "", fmt.Errorf("rendering digest: %w", err)
	}
	return buf.String(), nil
}

// Composer builds digests, optionally asking an LLM for a TL;DR.
type Composer struct {
	provider llm.Provider
	logger   *slog.Logger
	now      func() time.Time
}

// NewComposer creates a digest composer. provider may be nil.
func NewComposer(provider llm.Provider, logger *slog.Logger) *Composer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Composer{provider: provider, logger: logger, now: time.Now}
}

// Compose builds a digest over events, which are expected newest first.
func (c *Composer) Compose(ctx context.Context, title string, events []database.TriggerEvent) *Digest {
	d := &Digest{
		Title:      title,
		EventCount: len(events),
		Generated:  c.now(),
	}
	if len(events) == 0 {
		d.Body = "No trigger events yet."
		return d
	}
	d.Body = assembleBody(events)
	d.TLDR = c.generateTLDR(ctx, events)
	return d
}

func (c *Composer) generateTLDR(ctx context.Context, events []database.TriggerEvent) string {
	if c.provider == nil {
		return fallbackTLDR(events)
	}

	var lines []string
	for i, e := range events {
		if i == 20 {
			break
		}
		lines = append(lines, fmt.Sprintf("- [%s] %s: %s", e.EventType, companyOf(e), e.Headline))
	}

	responseText, err := c.provider.Generate(ctx, fmt.Sprintf(summaryPrompt, strings.Join(lines, "\n")), 512)
	if err != nil || strings.TrimSpace(responseText) == "" {
		if err != nil {
			c.logger.Warn("digest summary failed", "provider", c.provider.Name(), "error", err)
		}
		return fallbackTLDR(events)
	}

	if parsed := llm.ParseJSONResponse(responseText); parsed != nil {
		if arr, ok := parsed["tldr_bullets"].([]any); ok {
			var bullets []string
			for _, v := range arr {
				if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
					bullets = append(bullets, "- "+strings.TrimSpace(s))
				}
			}
			if len(bullets) > 0 {
				return strings.Join(bullets, "\n")
			}
		}
	}
	return fallbackTLDR(events)
}

// fallbackTLDR lists the newest event per company.
func fallbackTLDR(events []database.TriggerEvent) string {
	seen := map[string]bool{}
	var bullets []string
	for _, e := range events {
		company := companyOf(e)
		if seen[company] {
			continue
		}
		seen[company] = true
		bullets = append(bullets, fmt.Sprintf("- **%s**: %s", escape(company), escape(e.Headline)))
		if len(bullets) == 5 {
			break
		}
	}
	return strings.Join(bullets, "\n")
}

// assembleBody groups events by type, known types first in rule order.
func assembleBody(events []database.TriggerEvent) string {
	groups := map[string][]database.TriggerEvent{}
	for _, e := range events {
		groups[e.EventType] = append(groups[e.EventType], e)
	}

	var order []string
	for _, t := range classify.Types() {
		if _, ok := groups[t]; ok {
			order = append(order, t)
		}
	}
	var rest []string
	for t := range groups {
		if !classify.IsKnown(t) {
			rest = append(rest, t)
		}
	}
	sort.Strings(rest)
	order = append(order, rest...)

	var sections []string
	for _, t := range order {
		var lines []string
		for _, e := range groups[t] {
			line := fmt.Sprintf("- [%s](%s) (%s, %s)",
				escape(e.Headline), e.SourceURL, escape(companyOf(e)), e.DetectedAt.UTC().Format("2006-01-02"))
			if e.Description != "" && e.Description != e.Headline {
				line += "\n  " + escape(truncate(e.Description, 280))
			}
			lines = append(lines, line)
		}
		sections = append(sections, fmt.Sprintf("## %s\n\n%s", heading(t), strings.Join(lines, "\n")))
	}
	return strings.Join(sections, "\n\n")
}

func heading(eventType string) string {
	words := strings.Fields(strings.ReplaceAll(eventType, "_", " "))
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	if len(words) == 0 {
		return "Other"
	}
	return strings.Join(words, " ")
}

func companyOf(e database.TriggerEvent) string {
	if e.CompanyName != nil && *e.CompanyName != "" {
		return *e.CompanyName
	}
	if e.CompanyDomain != nil && *e.CompanyDomain != "" {
		return *e.CompanyDomain
	}
	return "Unknown company"
}

var mdEscaper = strings.NewReplacer(`[`, `\[`, `]`, `\]`, `*`, `\*`, `_`, `\_`, "`", "\\`")

func escape(s string) string {
	return mdEscaper.Replace(strings.Join(strings.Fields(s), " "))
}

// truncate shortens s to at most n characters, preferring a word boundary.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	head := string(runes[:n])
	if cut := strings.LastIndex(head, " "); cut > 0 {
		head = head[:cut]
	}
	return head + "..."
}
