/**
 * Remote OCR
 *
 * Delegates recognition to the vision OCR service. Documents above
 * AsyncThreshold are submitted as asynchronous tasks and polled.
 */

package processor

import (
	"context"
	"fmt"
	"time"

	"github.com/adverant/nexus/taxdoc-worker/internal/clients"
	"github.com/adverant/nexus/taxdoc-worker/internal/errors"
	"github.com/adverant/nexus/taxdoc-worker/internal/logging"
	"github.com/adverant/nexus/taxdoc-worker/internal/tempstore"
)

const remoteEngine = "remote"

// visionService is the part of clients.VisionClient RemoteOCR uses
type visionService interface {
	ExtractText(ctx context.Context, req *clients.VisionOCRRequest) (*clients.VisionOCRData, error)
	ExtractTextAsync(ctx context.Context, req *clients.VisionOCRRequest) (string, error)
	WaitForTaskCompletion(ctx context.Context, taskID string, pollInterval time.Duration) (*clients.VisionOCRData, error)
}

// RemoteOCRConfig configures RemoteOCR
type RemoteOCRConfig struct {
	Client         *clients.VisionClient
	AsyncThreshold int           // bytes; 0 keeps every request synchronous
	PollInterval   time.Duration // default 2s
	Logger         logging.Sink
}

// RemoteOCR recognizes documents through the vision OCR service
type RemoteOCR struct {
	service        visionService
	asyncThreshold int
	pollInterval   time.Duration
	logger         logging.Sink
}

// NewRemoteOCR creates a remote recognizer
func NewRemoteOCR(cfg RemoteOCRConfig) *RemoteOCR {
	return newRemoteOCR(cfg.Client, cfg)
}

func newRemoteOCR(service visionService, cfg RemoteOCRConfig) *RemoteOCR {
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 2 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &RemoteOCR{
		service:        service,
		asyncThreshold: cfg.AsyncThreshold,
		pollInterval:   poll,
		logger:         logger,
	}
}

func (r *RemoteOCR) Name() string { return remoteEngine }

// Recognize sends the document behind h to the service
func (r *RemoteOCR) Recognize(ctx context.Context, h *tempstore.Handle, language string) (*RecognitionResult, error) {
	data, err := h.ReadAll()
	if err != nil {
		return nil, errors.NewRecognitionError("", remoteEngine, fmt.Errorf("failed to read document: %w", err))
	}

	start := time.Now()
	req := clients.NewRequest(h.ID, data, language)

	var out *clients.VisionOCRData
	if r.asyncThreshold > 0 && len(data) > r.asyncThreshold {
		taskID, err := r.service.ExtractTextAsync(ctx, req)
		if err != nil {
			return nil, r.failure(ctx, err)
		}
		r.logger.Info("Remote OCR task submitted", "handle", h.ID, "task_id", taskID, "size", len(data))
		out, err = r.service.WaitForTaskCompletion(ctx, taskID, r.pollInterval)
		if err != nil {
			return nil, r.failure(ctx, err)
		}
	} else {
		out, err = r.service.ExtractText(ctx, req)
		if err != nil {
			return nil, r.failure(ctx, err)
		}
	}

	return &RecognitionResult{
		Text:       out.Text,
		Confidence: clampPercent(out.Confidence),
		Engine:     remoteEngine,
		Duration:   time.Since(start),
	}, nil
}

// failure keeps ctx errors visible to the caller's timeout handling
func (r *RemoteOCR) failure(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("recognition aborted: %w", ctx.Err())
	}
	return errors.NewRecognitionError("", remoteEngine, err)
}
