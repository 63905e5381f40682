package collect

import (
	"net/url"
	"strings"
	"time"
)

// maxFutureSkew tolerates provider clocks slightly ahead of ours.
const maxFutureSkew = 24 * time.Hour

// Candidate is a normalized, storage-ready trigger event.
type Candidate struct {
	Headline    string    `json:"headline"`
	Description string    `json:"description"`
	SourceURL   string    `json:"source_url"`
	SourceName  string    `json:"source_name,omitempty"`
	DetectedAt  time.Time `json:"detected_at"`
}

// Normalize converts a raw provider event into a Candidate. It returns false
// when the event has no headline or no absolute http(s) source URL.
func Normalize(raw RawEvent, now time.Time) (Candidate, bool) {
	headline := eventTitle(raw)
	if headline == "" {
		return Candidate{}, false
	}
	sourceURL := strings.TrimSpace(raw.SourceURL)
	if !IsValidURL(sourceURL) {
		return Candidate{}, false
	}

	description := strings.TrimSpace(raw.Description)
	if description == "" {
		description = headline
	}

	detected := now
	if !raw.OccurredAt.IsZero() && !raw.OccurredAt.After(now.Add(maxFutureSkew)) {
		detected = raw.OccurredAt
	}

	return Candidate{
		Headline:    headline,
		Description: description,
		SourceURL:   sourceURL,
		SourceName:  strings.TrimSpace(raw.SourceName),
		DetectedAt:  detected.UTC(),
	}, true
}

// IsValidURL reports whether s is an absolute http or https URL with a host.
func IsValidURL(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" || strings.ContainsAny(s, " \t\n") {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// URLKey is the identity key of a source URL.
func URLKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// HeadlineKey is the identity key of a headline.
func HeadlineKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// eventTitle prefers the headline and falls back to the title.
func eventTitle(raw RawEvent) string {
	if h := strings.TrimSpace(raw.Headline); h != "" {
		return h
	}
	return strings.TrimSpace(raw.Title)
}
