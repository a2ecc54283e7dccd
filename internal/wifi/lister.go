package wifi

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
)

// Lister produces the scan list shown to the user, strongest network first. When a scan
// fails it falls back to the last successful list.
type Lister struct {
	mu      sync.Mutex
	cached  []Network
	scanner Scanner
	logger  *slog.Logger
}

// NewLister creates a Lister over scanner.
func NewLister(scanner Scanner, logger *slog.Logger) *Lister {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Lister{
		scanner: scanner,
		logger:  logger.With(slog.String("component", "lister")),
	}
}

// Networks returns the current scan list. The error is non-nil only when the scanner
// failed and nothing has been cached yet.
func (l *Lister) Networks(ctx context.Context) ([]Network, error) {
	l.scanner.TriggerScan(ctx)

	networks, err := l.scanner.CurrentResults(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()

	if err != nil {
		if l.cached == nil {
			return nil, fmt.Errorf("scanning networks: %w", err)
		}

		l.logger.Warn(fmt.Sprintf("scan failed, serving cached results: %s", err.Error()))
		return slices.Clone(l.cached), nil
	}

	networks = slices.Clone(networks)
	SortByLevel(networks)
	l.cached = networks

	return slices.Clone(networks), nil
}
