package ports

import (
	"context"

	"github.com/bft-labs/lineship/internal/domain"
)

// StatsRepository persists cumulative dispatch counters between runs.
// Implementations write atomically (e.g., temp file plus rename) so a
// crash never leaves a corrupt file behind.
type StatsRepository interface {
	// Load retrieves the last saved stats.
	// Returns zero stats and nil error if none exist yet.
	Load(ctx context.Context) (domain.Stats, error)

	// Save persists the current stats atomically.
	Save(ctx context.Context, stats domain.Stats) error
}
