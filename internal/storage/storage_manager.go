/**
 * Storage Manager for the tax document worker
 *
 * Coordinates job tracking across Redis (fast lookups, events) and
 * PostgreSQL (durable history). PostgreSQL is optional.
 */

package storage

import (
	"context"
	stderrors "errors"
	"fmt"
	"regexp"
	"time"

	"github.com/adverant/nexus/taxdoc-worker/internal/logging"
)

// JobStore is the subset of storage the HTTP surface reads from
type JobStore interface {
	GetJob(ctx context.Context, jobID string) (*JobRecord, error)
}

// StatusRecorder is the subset of storage the queue writes to
type StatusRecorder interface {
	UpdateJobStatus(ctx context.Context, update *JobUpdate) error
}

// StorageManager coordinates Redis and PostgreSQL operations
type StorageManager struct {
	results  *ResultStore
	postgres *PostgresClient
	logger   logging.Sink
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	RedisURL    string
	KeyPrefix   string
	ResultTTL   time.Duration
	DatabaseURL string // optional
	Logger      logging.Sink
}

// NewStorageManager creates a new storage manager
func NewStorageManager(cfg *StorageConfig) (*StorageManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	results, err := NewResultStore(cfg.RedisURL, cfg.KeyPrefix, cfg.ResultTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Redis result store: %w", err)
	}

	var postgres *PostgresClient
	if cfg.DatabaseURL != "" {
		postgres, err = NewPostgresClient(cfg.DatabaseURL)
		if err != nil {
			results.Close() // Cleanup on failure
			return nil, fmt.Errorf("failed to initialize PostgreSQL client: %w", err)
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := postgres.EnsureSchema(ctx); err != nil {
			postgres.Close()
			results.Close()
			return nil, err
		}
	} else {
		logger.Warn("DATABASE_URL not configured, job history will expire with Redis TTL")
	}

	return NewStorageManagerWith(results, postgres, logger), nil
}

// NewStorageManagerWith assembles a manager from already connected stores.
// postgres may be nil.
func NewStorageManagerWith(results *ResultStore, postgres *PostgresClient, logger logging.Sink) *StorageManager {
	if logger == nil {
		logger = logging.Nop()
	}
	return &StorageManager{results: results, postgres: postgres, logger: logger}
}

// UpdateJobStatus records update in Redis and, when configured, PostgreSQL.
// A PostgreSQL failure is logged; Redis is the source callers read from.
func (sm *StorageManager) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if err := sm.results.UpdateJobStatus(ctx, update); err != nil {
		return err
	}

	if sm.postgres != nil {
		if err := sm.postgres.UpdateJobStatus(ctx, update); err != nil {
			sm.logger.Error("PostgreSQL job update failed",
				"job_id", update.JobID, "status", update.Status, "error", err)
		}
	}
	return nil
}

// GetJob reads from Redis first and falls back to PostgreSQL for expired records
func (sm *StorageManager) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	record, err := sm.results.GetJob(ctx, jobID)
	if err == nil || !stderrors.Is(err, ErrJobNotFound) || sm.postgres == nil {
		return record, err
	}
	return sm.postgres.GetJobByID(ctx, jobID)
}

// GetStats returns statistics from both systems
func (sm *StorageManager) GetStats(ctx context.Context) (map[string]interface{}, error) {
	redisStats, err := sm.results.GetStats(ctx)
	if err != nil {
		return nil, err
	}

	stats := map[string]interface{}{
		"redis": redisStats,
	}

	if sm.postgres != nil {
		pgStats := sm.postgres.GetStats()
		stats["postgres"] = map[string]interface{}{
			"max_open_connections": pgStats.MaxOpenConnections,
			"open_connections":     pgStats.OpenConnections,
			"in_use":               pgStats.InUse,
			"idle":                 pgStats.Idle,
			"wait_count":           pgStats.WaitCount,
			"wait_duration":        pgStats.WaitDuration.String(),
		}
	}

	return stats, nil
}

// Close closes all connections
func (sm *StorageManager) Close() error {
	var redisErr, pgErr error

	if sm.results != nil {
		redisErr = sm.results.Close()
	}

	if sm.postgres != nil {
		pgErr = sm.postgres.Close()
	}

	if redisErr != nil {
		return fmt.Errorf("failed to close Redis: %w", redisErr)
	}

	if pgErr != nil {
		return fmt.Errorf("failed to close PostgreSQL: %w", pgErr)
	}

	return nil
}

var (
	nullEscape    = regexp.MustCompile(`\\u0000`)
	controlEscape = regexp.MustCompile(`\\u00[01][0-9a-fA-F]`)
)

// sanitizeJSONForPostgres removes escape sequences JSONB rejects. OCR text
// regularly contains NUL and other control characters.
func sanitizeJSONForPostgres(jsonBytes []byte) []byte {
	result := nullEscape.ReplaceAll(jsonBytes, []byte{})
	return controlEscape.ReplaceAll(result, []byte(" "))
}
