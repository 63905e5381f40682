package collect

import (
	"context"
	"log/slog"
	"sync"
)

// noneAdapter is the fallback when no provider is selected.
type noneAdapter struct{}

func (noneAdapter) Name() string { return string(ProviderNone) }

func (noneAdapter) Fetch(context.Context, Query) ([]RawEvent, error) { return nil, nil }

// CustomAdapter is the extension point for a private pipeline. It returns no
// events until one is wired in.
type CustomAdapter struct {
	production bool
	logger     *slog.Logger
	warnOnce   sync.Once
}

func (a *CustomAdapter) Name() string { return string(ProviderCustom) }

func (a *CustomAdapter) Fetch(context.Context, Query) ([]RawEvent, error) {
	if !a.production {
		a.warnOnce.Do(func() {
			a.logger.Warn("custom trigger provider selected but not implemented; returning no events")
		})
	}
	return nil, nil
}
