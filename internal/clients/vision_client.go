/**
 * Vision OCR service client
 *
 * Talks to an HTTP text extraction service. Small documents go through
 * the synchronous endpoint; callers can also start an asynchronous task
 * and poll it until it settles.
 */

package clients

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/adverant/nexus/taxdoc-worker/internal/logging"
)

const (
	extractPath = "/api/internal/vision/extract-text"
	tasksPath   = "/api/tasks/"
	sourceName  = "taxdoc-worker"
)

// VisionClient handles communication with the vision OCR service
type VisionClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     logging.Sink
}

// VisionClientConfig configures VisionClient
type VisionClientConfig struct {
	BaseURL string
	APIKey  string        // sent as x-api-key when set
	Timeout time.Duration // per HTTP request, default 120s
	Logger  logging.Sink
}

// VisionOCRRequest represents a request to extract text from an image
type VisionOCRRequest struct {
	Image    string `json:"image"`  // base64
	Format   string `json:"format"` // always "base64" here
	Language string `json:"language,omitempty"`
	JobID    string `json:"jobId,omitempty"`
	Async    bool   `json:"async,omitempty"`
}

// VisionOCRData contains the extracted text and metadata
type VisionOCRData struct {
	Text           string  `json:"text"`
	Confidence     float64 `json:"confidence"`
	ModelUsed      string  `json:"modelUsed"`
	ProcessingTime int64   `json:"processingTime"` // milliseconds
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// TaskInfo is the state of an asynchronous extraction task
type TaskInfo struct {
	ID       string         `json:"id"`
	Status   string         `json:"status"` // pending, processing, completed, failed
	Progress int            `json:"progress"`
	Result   *VisionOCRData `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// NewVisionClient creates a new client
func NewVisionClient(cfg VisionClientConfig) *VisionClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &VisionClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// NewRequest builds a base64 request for data
func NewRequest(jobID string, data []byte, language string) *VisionOCRRequest {
	return &VisionOCRRequest{
		Image:    base64.StdEncoding.EncodeToString(data),
		Format:   "base64",
		Language: language,
		JobID:    jobID,
	}
}

// ExtractText runs a synchronous extraction
func (c *VisionClient) ExtractText(ctx context.Context, req *VisionOCRRequest) (*VisionOCRData, error) {
	req.Async = false
	c.logger.Debug("Requesting text extraction", "job_id", req.JobID, "language", req.Language, "image_size", len(req.Image))

	var data VisionOCRData
	if err := c.do(ctx, http.MethodPost, extractPath, req, http.StatusOK, &data); err != nil {
		return nil, err
	}

	c.logger.Debug("Text extraction complete",
		"job_id", req.JobID, "model", data.ModelUsed, "confidence", data.Confidence, "text_length", len(data.Text))
	return &data, nil
}

// ExtractTextAsync starts an asynchronous task and returns its ID
func (c *VisionClient) ExtractTextAsync(ctx context.Context, req *VisionOCRRequest) (string, error) {
	req.Async = true

	var task struct {
		TaskID string `json:"taskId"`
	}
	if err := c.do(ctx, http.MethodPost, extractPath, req, http.StatusAccepted, &task); err != nil {
		return "", err
	}
	if task.TaskID == "" {
		return "", fmt.Errorf("vision service accepted the request without a task ID")
	}

	c.logger.Debug("Async OCR task created", "job_id", req.JobID, "task_id", task.TaskID)
	return task.TaskID, nil
}

// GetTaskStatus fetches the current state of taskID
func (c *VisionClient) GetTaskStatus(ctx context.Context, taskID string) (*TaskInfo, error) {
	var status struct {
		Task TaskInfo `json:"task"`
	}
	if err := c.do(ctx, http.MethodGet, tasksPath+taskID, nil, http.StatusOK, &status); err != nil {
		return nil, err
	}
	return &status.Task, nil
}

// WaitForTaskCompletion polls taskID until it completes, fails or ctx ends.
// Transient polling errors are logged and retried.
func (c *VisionClient) WaitForTaskCompletion(ctx context.Context, taskID string, pollInterval time.Duration) (*VisionOCRData, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("context cancelled while waiting for task %s: %w", taskID, ctx.Err())

		case <-ticker.C:
			task, err := c.GetTaskStatus(ctx, taskID)
			if err != nil {
				c.logger.Warn("Failed to get task status", "task_id", taskID, "error", err)
				continue
			}

			switch task.Status {
			case "completed":
				if task.Result == nil {
					return nil, fmt.Errorf("task %s completed without a result", taskID)
				}
				return task.Result, nil
			case "failed":
				return nil, fmt.Errorf("task %s failed: %s", taskID, task.Error)
			case "pending", "processing":
				c.logger.Debug("Task status update", "task_id", taskID, "status", task.Status, "progress", task.Progress)
			default:
				c.logger.Warn("Unknown task status", "task_id", taskID, "status", task.Status)
			}
		}
	}
}

// HealthCheck verifies the service is reachable
func (c *VisionClient) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to create health request: %w", err)
	}
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("vision service health check failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("vision service unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// do sends body (if any) and decodes the envelope's data into out
func (c *VisionClient) do(ctx context.Context, method, path string, body any, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	httpReq.Header.Set("X-Source", sourceName)
	if c.apiKey != "" {
		httpReq.Header.Set("x-api-key", c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("request to vision service failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != wantStatus {
		return fmt.Errorf("vision service returned status %d: %s", resp.StatusCode, truncate(string(raw), 512))
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if !env.Success {
		return fmt.Errorf("vision service operation failed: %s", env.Message)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to parse response data: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
