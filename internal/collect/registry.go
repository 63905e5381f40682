package collect

import (
	"log/slog"
	"strings"

	"github.com/TobiSchelling/triggerwatch/internal/config"
)

// ProviderName identifies one of the supported trigger-event sources.
type ProviderName string

const (
	ProviderNewsAPI ProviderName = "newsapi"
	ProviderFinnhub ProviderName = "finnhub"
	ProviderGDELT   ProviderName = "gdelt"
	ProviderRSS     ProviderName = "rss"
	ProviderCustom  ProviderName = "custom"
	ProviderNone    ProviderName = "none"
)

// ParseProviderName maps a configured name onto the closed provider set.
func ParseProviderName(s string) (ProviderName, bool) {
	switch p := ProviderName(strings.ToLower(strings.TrimSpace(s))); p {
	case ProviderNewsAPI, ProviderFinnhub, ProviderGDELT, ProviderRSS, ProviderCustom, ProviderNone:
		return p, true
	default:
		return "", false
	}
}

// Entry is a registered adapter together with its configuration status.
type Entry struct {
	Adapter Adapter
	Status  Status
}

// Build instantiates the selected providers in configuration order. Unknown
// and repeated names are ignored. When nothing usable is selected the result
// holds only the no-op provider.
func Build(cfg config.Providers, logger *slog.Logger) []Entry {
	if logger == nil {
		logger = slog.Default()
	}
	maxResults := config.ClampMaxPerProvider(cfg.MaxPerProvider)
	client := NewHTTPClient(cfg.Timeout)
	t := newTransport(client, cfg.Attempts(), cfg.UserAgent)

	seen := make(map[ProviderName]bool)
	var entries []Entry
	for _, raw := range cfg.Selected {
		name, ok := ParseProviderName(raw)
		if !ok {
			logger.Debug("ignoring unknown trigger provider", slog.String("provider", raw))
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true

		var e Entry
		switch name {
		case ProviderNewsAPI:
			a := NewNewsAPIAdapter(cfg.NewsAPI, cfg.Keywords, maxResults, t)
			e = entry(a, a.IsConfigured(), SkipMissingAPIKey)
		case ProviderFinnhub:
			a := NewFinnhubAdapter(cfg.Finnhub, maxResults, t)
			e = entry(a, a.IsConfigured(), SkipMissingAPIKey)
		case ProviderGDELT:
			e = entry(NewGDELTAdapter(cfg.GDELT, maxResults, t), true, "")
		case ProviderRSS:
			a := NewFeedAdapter(cfg.RSS.Feeds, maxResults, client, cfg.UserAgent, logger)
			e = entry(a, a.IsConfigured(), SkipMissingFeeds)
		case ProviderCustom:
			e = entry(&CustomAdapter{production: cfg.Production, logger: logger}, true, "")
		case ProviderNone:
			e = entry(noneAdapter{}, true, "")
		}
		if !e.Status.Enabled {
			logger.Info("trigger provider disabled",
				slog.String("provider", e.Status.Name),
				slog.String("reason", e.Status.SkipReason),
			)
		}
		entries = append(entries, e)
	}

	if len(entries) == 0 {
		entries = append(entries, entry(noneAdapter{}, true, ""))
	}
	return entries
}

func entry(a Adapter, enabled bool, reason string) Entry {
	st := Status{Name: a.Name(), Enabled: enabled}
	if !enabled {
		st.SkipReason = reason
	}
	return Entry{Adapter: a, Status: st}
}
