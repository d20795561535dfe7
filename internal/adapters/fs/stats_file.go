package fs

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/bft-labs/lineship/internal/domain"
)

const statsFileName = "status.json"

// StatsFileRepository implements ports.StatsRepository using a JSON file.
// The counters are advisory bookkeeping, so a missing or corrupt file is
// treated as "no stats yet" rather than an error that could block
// dispatching.
type StatsFileRepository struct {
	dir string
}

// NewStatsFileRepository creates a new StatsFileRepository for the given directory.
func NewStatsFileRepository(dir string) *StatsFileRepository {
	return &StatsFileRepository{dir: dir}
}

// Load retrieves the last saved stats from disk. A file that does not
// exist or does not parse yields zero stats and a nil error.
func (r *StatsFileRepository) Load(ctx context.Context) (domain.Stats, error) {
	data, err := os.ReadFile(r.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return domain.Stats{}, nil
		}
		return domain.Stats{}, err
	}

	var stats domain.Stats
	if err := json.Unmarshal(data, &stats); err != nil {
		// Corrupt counters are not worth refusing to start over.
		return domain.Stats{}, nil
	}

	return stats, nil
}

// Save persists the current stats atomically, stamping UpdatedAt.
// Uses atomic write (write to temp file, then rename) to prevent corruption.
func (r *StatsFileRepository) Save(ctx context.Context, stats domain.Stats) error {
	// Ensure directory exists
	if err := os.MkdirAll(r.dir, 0o700); err != nil {
		return err
	}

	stats.UpdatedAt = time.Now().UTC()

	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}

	path := r.Path()
	tmp := path + ".tmp"

	// Write to temp file
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}

	// Atomic rename
	return os.Rename(tmp, path)
}

// Path returns the full path to the stats file.
func (r *StatsFileRepository) Path() string {
	return filepath.Join(r.dir, statsFileName)
}
