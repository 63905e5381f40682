// Package classify tags trigger events with a coarse event type.
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/TobiSchelling/triggerwatch/internal/llm"
)

// Event types. Rules are checked in this order and the first match wins.
const (
	Funding       = "funding"
	NewHires      = "new_hires"
	Expansion     = "expansion"
	ProductLaunch = "product_launch"
	Partnership   = "partnership"
)

type rule struct {
	eventType string
	keywords  []string
}

var rules = []rule{
	{Funding, []string{"funding", "raised", "raises", "series", "investment", "venture capital", "seed round"}},
	{NewHires, []string{"hired", "hires", "appointed", "appoints", "joins", "new executive", "c-suite"}},
	{Expansion, []string{"expanding", "expands", "new office", "entering", "launching in", "international"}},
	{ProductLaunch, []string{"launched", "launches", "unveils", "announces", "new product", "release"}},
	{Partnership, []string{"partnership", "partners with", "collaboration", "teams up"}},
}

const classifyPrompt = `Classify this company news item as a B2B sales trigger event.

Headline: %s
Summary: %s

Choose exactly one of: funding, new_hires, expansion, product_launch, partnership, none.

Respond with ONLY this JSON:
{"event_type": "<one of the above>"}`

// maxPromptText bounds the summary sent to the LLM.
const maxPromptText = 600

// Types returns the known event types in rule order.
func Types() []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.eventType
	}
	return out
}

// IsKnown reports whether t is one of the known event types.
func IsKnown(t string) bool {
	for _, r := range rules {
		if r.eventType == t {
			return true
		}
	}
	return false
}

// MatchKeywords returns the first event type whose keywords appear in text.
func MatchKeywords(text string) (string, bool) {
	lower := strings.ToLower(text)
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				return r.eventType, true
			}
		}
	}
	return "", false
}

// Classifier assigns event types using keyword rules and, optionally, an LLM
// for items the rules cannot place.
type Classifier struct {
	provider    llm.Provider
	defaultType string
	maxTokens   int
	logger      *slog.Logger
}

// New creates a classifier. provider may be nil to disable the LLM fallback.
func New(provider llm.Provider, defaultType string, maxTokens int, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultType == "" {
		defaultType = "news"
	}
	if maxTokens <= 0 {
		maxTokens = 50
	}
	return &Classifier{provider: provider, defaultType: defaultType, maxTokens: maxTokens, logger: logger}
}

// Classify returns the event type for a headline and description. It never
// fails; anything it cannot place gets the default type.
func (c *Classifier) Classify(ctx context.Context, headline, description string) string {
	if t, ok := MatchKeywords(headline + " " + description); ok {
		return t
	}
	if c.provider == nil || ctx.Err() != nil {
		return c.defaultType
	}

	summary := description
	if r := []rune(summary); len(r) > maxPromptText {
		summary = string(r[:maxPromptText]) + "..."
	}
	resp, err := c.provider.Generate(ctx, fmt.Sprintf(classifyPrompt, headline, summary), c.maxTokens)
	if err != nil {
		c.logger.Warn("llm classification failed", "provider", c.provider.Name(), "error", err)
		return c.defaultType
	}
	if t := parseLabel(resp); t != "" {
		return t
	}
	return c.defaultType
}

// parseLabel reads the event type from a JSON or bare-word LLM answer.
func parseLabel(resp string) string {
	label := ""
	if parsed := llm.ParseJSONResponse(resp); parsed != nil {
		if s, ok := parsed["event_type"].(string); ok {
			label = s
		}
	} else {
		label = resp
	}

	label = strings.ToLower(strings.Trim(strings.TrimSpace(label), `"'.`))
	label = strings.ReplaceAll(label, " ", "_")
	if IsKnown(label) {
		return label
	}
	return ""
}
