package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/adverant/nexus/taxdoc-worker/internal/storage"
)

// Producer enqueues extraction jobs
type Producer struct {
	client   *asynq.Client
	queue    string
	maxRetry int
	recorder storage.StatusRecorder
}

// NewProducer creates a producer for queueName. recorder may be nil.
func NewProducer(redisURL, queueName string, recorder storage.StatusRecorder) (*Producer, error) {
	if queueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	redisOpt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	return &Producer{
		client:   asynq.NewClient(redisOpt),
		queue:    queueName,
		maxRetry: 3,
		recorder: recorder,
	}, nil
}

// Enqueue submits payload and returns its job ID. A job ID is assigned
// when payload has none.
func (p *Producer) Enqueue(ctx context.Context, payload *JobPayload) (string, error) {
	if payload.JobID == "" {
		payload.JobID = uuid.NewString()
	}

	data, err := EncodePayload(payload)
	if err != nil {
		return "", err
	}

	// queued is recorded first so a fast consumer's update is never overwritten
	if p.recorder != nil {
		if err := p.recorder.UpdateJobStatus(ctx, &storage.JobUpdate{
			JobID:       payload.JobID,
			Status:      storage.StatusQueued,
			Filename:    payload.Filename,
			ContentType: payload.ContentType,
			Language:    payload.Language,
		}); err != nil {
			return "", fmt.Errorf("failed to record queued job: %w", err)
		}
	}

	task := asynq.NewTask(TypeExtractDocument, data)
	if _, err := p.client.EnqueueContext(ctx, task,
		asynq.Queue(p.queue),
		asynq.TaskID(payload.JobID),
		asynq.MaxRetry(p.maxRetry),
		asynq.Retention(time.Hour),
	); err != nil {
		if p.recorder != nil {
			_ = p.recorder.UpdateJobStatus(ctx, storage.FailedUpdate(payload.JobID, err, 0))
		}
		return "", fmt.Errorf("failed to enqueue job %s: %w", payload.JobID, err)
	}

	return payload.JobID, nil
}

// Close closes the underlying client
func (p *Producer) Close() error {
	return p.client.Close()
}
