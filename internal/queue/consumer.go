/**
 * Queue Consumer for the tax document worker
 *
 * Consumes taxdoc:extract tasks from Redis via Asynq, runs each document
 * through the processor under a per-task timeout and records the job's
 * lifecycle in storage.
 */

package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/adverant/nexus/taxdoc-worker/internal/errors"
	"github.com/adverant/nexus/taxdoc-worker/internal/logging"
	"github.com/adverant/nexus/taxdoc-worker/internal/processor"
	"github.com/adverant/nexus/taxdoc-worker/internal/storage"
)

const defaultProcessingTimeout = 300000 // 5 minutes

// Consumer handles job consumption from Redis queue
type Consumer struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	handler *taskHandler
	config  *ConsumerConfig
	logger  logging.Sink
}

// ConsumerConfig holds consumer configuration
type ConsumerConfig struct {
	RedisURL          string
	QueueName         string
	Concurrency       int
	Processor         processor.DocumentProcessorInterface
	Recorder          storage.StatusRecorder // optional
	ProcessingTimeout int64                  // milliseconds (default: 300000)
	Logger            logging.Sink
}

// NewConsumer creates a new queue consumer
func NewConsumer(cfg *ConsumerConfig) (*Consumer, error) {
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("RedisURL is required")
	}

	if cfg.QueueName == "" {
		return nil, fmt.Errorf("QueueName is required")
	}

	if cfg.Processor == nil {
		return nil, fmt.Errorf("Processor is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	redisOpt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: cfg.Concurrency,
			Queues: map[string]int{
				cfg.QueueName: 10,
				"default":     1,
			},
			RetryDelayFunc: retryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				// payload carries the document, log only its size
				logger.Error("Task processing error",
					"type", task.Type(), "payload_bytes", len(task.Payload()), "error", err)
			}),
		},
	)

	handler := newTaskHandler(cfg.Processor, cfg.Recorder, cfg.ProcessingTimeout, logger)

	mux := asynq.NewServeMux()
	mux.Handle(TypeExtractDocument, handler)

	return &Consumer{
		server:  server,
		mux:     mux,
		handler: handler,
		config:  cfg,
		logger:  logger,
	}, nil
}

// retryDelay is exponential backoff: 5s, 10s, 20s, capped at 60s
func retryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	if n > 4 {
		return 60 * time.Second
	}
	delay := time.Duration(5*(1<<uint(n))) * time.Second
	if delay > 60*time.Second {
		delay = 60 * time.Second
	}
	return delay
}

// Start starts the queue consumer without blocking
func (c *Consumer) Start(ctx context.Context) error {
	c.logger.Info("Starting queue consumer",
		"concurrency", c.config.Concurrency, "queue", c.config.QueueName)

	if err := c.server.Start(c.mux); err != nil {
		return fmt.Errorf("failed to start queue consumer: %w", err)
	}
	return nil
}

// Stop stops the queue consumer gracefully
func (c *Consumer) Stop(ctx context.Context) error {
	c.logger.Info("Stopping queue consumer")
	c.server.Shutdown()
	c.logger.Info("Queue consumer stopped")
	return nil
}

// GetStatistics returns consumer statistics
func (c *Consumer) GetStatistics() map[string]interface{} {
	return map[string]interface{}{
		"concurrency": c.config.Concurrency,
		"queue":       c.config.QueueName,
		"timeout":     c.handler.timeout.String(),
	}
}

// taskHandler processes taxdoc:extract tasks. It is separate from Consumer
// so it can run without a Redis connection.
type taskHandler struct {
	processor processor.DocumentProcessorInterface
	recorder  storage.StatusRecorder
	timeout   time.Duration
	logger    logging.Sink
}

func newTaskHandler(p processor.DocumentProcessorInterface, recorder storage.StatusRecorder, timeoutMs int64, logger logging.Sink) *taskHandler {
	if timeoutMs <= 0 {
		timeoutMs = defaultProcessingTimeout
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &taskHandler{
		processor: p,
		recorder:  recorder,
		timeout:   time.Duration(timeoutMs) * time.Millisecond,
		logger:    logger,
	}
}

// ProcessTask implements asynq.Handler
func (h *taskHandler) ProcessTask(ctx context.Context, task *asynq.Task) error {
	startTime := time.Now()

	payload, err := DecodePayload(task.Payload())
	if err != nil {
		jobID := peekJobID(task.Payload())
		verr := errors.NewInputValidationError(jobID, err.Error())
		if jobID != "" {
			h.record(ctx, storage.FailedUpdate(jobID, verr, time.Since(startTime)))
		}
		h.logger.Warn("Rejected malformed task", "job_id", jobID, "error", err)
		return fmt.Errorf("%v: %w", verr, asynq.SkipRetry)
	}

	jobID := payload.JobID
	attempt, _ := asynq.GetRetryCount(ctx)
	h.logger.Info("Processing document",
		"job_id", jobID, "filename", payload.Filename, "size", len(payload.Document), "retry", attempt)

	h.record(ctx, &storage.JobUpdate{
		JobID:       jobID,
		Status:      storage.StatusProcessing,
		Filename:    payload.Filename,
		ContentType: payload.ContentType,
		Language:    payload.Language,
	})

	processCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	result, err := h.processor.ProcessDocument(processCtx, payload.ProcessRequest())
	duration := time.Since(startTime)

	if err != nil {
		if processCtx.Err() == context.DeadlineExceeded && !errors.HasCode(err, errors.ErrorProcessingTimeout) {
			err = errors.NewProcessingTimeoutError(jobID, h.timeout, err)
		}

		h.logger.Error("Processing failed",
			"job_id", jobID, "duration", duration, "error_code", errors.CodeOf(err), "error", err)
		h.record(ctx, storage.FailedUpdate(jobID, err, duration))

		if !retryable(err) {
			return fmt.Errorf("document processing failed: %v: %w", err, asynq.SkipRetry)
		}
		return fmt.Errorf("document processing failed: %w", err)
	}

	h.logger.Info("Processing completed",
		"job_id", jobID, "duration", duration, "document_type", result.DetectedType,
		"confidence", fmt.Sprintf("%.2f", result.Confidence))

	h.record(ctx, storage.CompletedUpdate(jobID, result))
	return nil
}

func (h *taskHandler) record(ctx context.Context, update *storage.JobUpdate) {
	if h.recorder == nil {
		return
	}
	if err := h.recorder.UpdateJobStatus(ctx, update); err != nil {
		h.logger.Warn("Failed to record job status",
			"job_id", update.JobID, "status", update.Status, "error", err)
	}
}

// retryable reports whether another attempt could succeed. Bad input stays bad.
func retryable(err error) bool {
	switch errors.CodeOf(err) {
	case errors.ErrorInputValidation, errors.ErrorUnsupportedFormat:
		return false
	}
	return true
}
