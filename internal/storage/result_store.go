/**
 * Redis job result store
 *
 * Job records live under <prefix>:job:<id> with a TTL. Status sets and
 * the <prefix>:events channel let dashboards follow jobs without polling
 * every key.
 */

package storage

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ResultStore keeps job records in Redis
type ResultStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewResultStore connects to Redis and verifies the connection
func NewResultStore(redisURL, prefix string, ttl time.Duration) (*ResultStore, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis URL is required")
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewResultStoreWithClient(client, prefix, ttl), nil
}

// NewResultStoreWithClient wraps an existing client.
func NewResultStoreWithClient(client *redis.Client, prefix string, ttl time.Duration) *ResultStore {
	if prefix == "" {
		prefix = "taxdoc"
	}
	return &ResultStore{client: client, prefix: prefix, ttl: ttl, now: time.Now}
}

func (s *ResultStore) jobKey(jobID string) string {
	return fmt.Sprintf("%s:job:%s", s.prefix, jobID)
}

func (s *ResultStore) statusKey(status JobStatus) string {
	return fmt.Sprintf("%s:%s", s.prefix, status)
}

// EventsChannel is the pub/sub channel status changes are published on.
func (s *ResultStore) EventsChannel() string {
	return s.prefix + ":events"
}

// UpdateJobStatus merges update into the stored record and publishes an event
func (s *ResultStore) UpdateJobStatus(ctx context.Context, update *JobUpdate) error {
	if update == nil || update.JobID == "" {
		return fmt.Errorf("job ID is required")
	}
	if update.Status == "" {
		return fmt.Errorf("status is required")
	}

	record, err := s.GetJob(ctx, update.JobID)
	if stderrors.Is(err, ErrJobNotFound) {
		record = &JobRecord{}
	} else if err != nil {
		return err
	}
	record.apply(update, s.now().UTC())

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal job record: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.jobKey(update.JobID), data, s.ttl)
	for _, status := range []JobStatus{StatusQueued, StatusProcessing, StatusCompleted, StatusFailed} {
		if status != update.Status {
			pipe.SRem(ctx, s.statusKey(status), update.JobID)
		}
	}
	pipe.SAdd(ctx, s.statusKey(update.Status), update.JobID)

	event, _ := json.Marshal(map[string]interface{}{
		"event":     fmt.Sprintf("job:%s", update.Status),
		"jobId":     update.JobID,
		"timestamp": record.UpdatedAt.Format(time.RFC3339),
	})
	pipe.Publish(ctx, s.EventsChannel(), event)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store job %s: %w", update.JobID, err)
	}
	return nil
}

// GetJob returns the stored record, or ErrJobNotFound
func (s *ResultStore) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	data, err := s.client.Get(ctx, s.jobKey(jobID)).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read job %s: %w", jobID, err)
	}

	var record JobRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("corrupt job record %s: %w", jobID, err)
	}
	return &record, nil
}

// GetStats returns the number of jobs in each status set
func (s *ResultStore) GetStats(ctx context.Context) (map[string]int64, error) {
	stats := make(map[string]int64, 4)
	for _, status := range []JobStatus{StatusQueued, StatusProcessing, StatusCompleted, StatusFailed} {
		n, err := s.client.SCard(ctx, s.statusKey(status)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to count %s jobs: %w", status, err)
		}
		stats[string(status)] = n
	}
	return stats, nil
}

// Ping checks the Redis connection
func (s *ResultStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client
func (s *ResultStore) Close() error {
	return s.client.Close()
}
