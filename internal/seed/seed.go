package seed

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/Simplici0/renoprice/internal/catalog"
	"github.com/Simplici0/renoprice/internal/store"
)

const baselineFactor = "1"

// APIKey is a client credential to register.
type APIKey struct {
	Name string
	Key  string
}

// ParseAPIKeys turns "name:key" or bare "key" entries into APIKeys. Bare keys are named by
// position.
func ParseAPIKeys(entries []string) []APIKey {
	keys := make([]APIKey, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		name, key, ok := strings.Cut(entry, ":")
		if !ok {
			name, key = fmt.Sprintf("key-%d", len(keys)+1), entry
		}
		name, key = strings.TrimSpace(name), strings.TrimSpace(key)
		if key == "" {
			continue
		}
		keys = append(keys, APIKey{Name: name, Key: key})
	}
	return keys
}

// Config contains the values required by startup seed.
type Config struct {
	APIKeys []APIKey
	// Catalog, when set, records a baseline entry in the refresh audit trail.
	Catalog       *catalog.Catalog
	CatalogSource string
}

// Stats contains seed operation counters.
type Stats struct {
	Inserts int
	Updates int
}

// Run executes the startup seed in an idempotent way.
func Run(ctx context.Context, db *sql.DB, cfg Config) (Stats, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return Stats{}, fmt.Errorf("begin seed transaction: %w", err)
	}

	stats := Stats{}

	for _, k := range cfg.APIKeys {
		if err := ensureAPIKey(ctx, tx, k, &stats); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}
	if cfg.Catalog != nil {
		if err := ensureRefreshBaseline(ctx, tx, cfg.Catalog, cfg.CatalogSource, &stats); err != nil {
			_ = tx.Rollback()
			return Stats{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return Stats{}, fmt.Errorf("commit seed transaction: %w", err)
	}

	return stats, nil
}

func ensureAPIKey(ctx context.Context, tx *sql.Tx, k APIKey, stats *Stats) error {
	hash := store.HashAPIKey(k.Key)

	var (
		name   string
		active bool
	)
	err := tx.QueryRowContext(ctx, `SELECT name, active FROM api_keys WHERE key_hash = ?`, hash).Scan(&name, &active)
	switch {
	case err == sql.ErrNoRows:
		if _, err := tx.ExecContext(ctx, `INSERT INTO api_keys (name, key_hash, active) VALUES (?, ?, TRUE)`, k.Name, hash); err != nil {
			return fmt.Errorf("insert api key %q: %w", k.Name, err)
		}
		stats.Inserts++
		return nil
	case err != nil:
		return fmt.Errorf("check api key %q existence: %w", k.Name, err)
	}

	if name == k.Name && active {
		return nil
	}
	if _, err := tx.ExecContext(ctx, `UPDATE api_keys SET name = ?, active = TRUE WHERE key_hash = ?`, k.Name, hash); err != nil {
		return fmt.Errorf("update api key %q: %w", k.Name, err)
	}
	stats.Updates++
	return nil
}

func ensureRefreshBaseline(ctx context.Context, tx *sql.Tx, c *catalog.Catalog, source string, stats *Stats) error {
	var exists bool
	if err := tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM price_refreshes LIMIT 1)`).Scan(&exists); err != nil {
		return fmt.Errorf("check price refresh baseline existence: %w", err)
	}
	if exists {
		return nil
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO price_refreshes (refreshed_on, factor, job_types, source)
		VALUES (?, ?, ?, ?)
	`, c.LastRefreshed, baselineFactor, len(c.BaseRates), source); err != nil {
		return fmt.Errorf("insert price refresh baseline: %w", err)
	}
	stats.Inserts++
	return nil
}
