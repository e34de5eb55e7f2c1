package source

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"NewsDigest/internal/domain"
)

// Snapshot pulls the daily news snapshot from the configured sources.
type Snapshot struct {
	registry *Registry
	names    []string
	logger   *slog.Logger
}

// NewSnapshot wires the registry with config-selected source names.
func NewSnapshot(reg *Registry, names []string, log *slog.Logger) *Snapshot {
	return &Snapshot{
		registry: reg,
		names:    names,
		logger:   log,
	}
}

// Collect queries every configured source and merges items, first URL wins.
// Items without a URL or title are dropped.
func (s *Snapshot) Collect(ctx context.Context) ([]domain.NewsItem, error) {
	if s.registry == nil {
		return nil, fmt.Errorf("source registry is not configured")
	}

	s.debug("collect snapshot", "sources", len(s.names))

	seen := map[string]struct{}{}
	var aggregated []domain.NewsItem
	for _, name := range s.names {
		src, err := s.registry.Resolve(name)
		if err != nil {
			return nil, err
		}

		items, err := src.TopHeadlines(ctx)
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", name, err)
		}

		kept := 0
		for _, item := range items {
			item.URL = strings.TrimSpace(item.URL)
			if item.URL == "" || strings.TrimSpace(item.Title) == "" {
				continue
			}
			if _, ok := seen[item.URL]; ok {
				continue
			}
			seen[item.URL] = struct{}{}
			if item.Source == "" {
				item.Source = name
			}
			aggregated = append(aggregated, item)
			kept++
		}
		s.debug("source produced items", "source", name, "received", len(items), "kept", kept)
	}

	s.debug("snapshot done", "total_items", len(aggregated))
	return aggregated, nil
}

func (s *Snapshot) debug(msg string, args ...interface{}) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
