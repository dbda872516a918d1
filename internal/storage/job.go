package storage

import (
	stderrors "errors"
	"time"

	"github.com/adverant/nexus/taxdoc-worker/internal/errors"
	"github.com/adverant/nexus/taxdoc-worker/internal/taxdoc"
)

// ErrJobNotFound is returned when no record exists for a job ID.
var ErrJobNotFound = stderrors.New("job not found")

// JobStatus is the lifecycle state of an asynchronous extraction job
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusProcessing JobStatus = "processing"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
)

// JobRecord is the stored view of one job. It never carries document bytes.
type JobRecord struct {
	JobID            string         `json:"jobId"`
	Status           JobStatus      `json:"status"`
	Filename         string         `json:"filename,omitempty"`
	ContentType      string         `json:"contentType,omitempty"`
	Language         string         `json:"language,omitempty"`
	DocumentType     string         `json:"documentType,omitempty"`
	Confidence       float64        `json:"confidence"`
	ExtractedData    map[string]any `json:"extractedData,omitempty"`
	RawText          string         `json:"rawText,omitempty"`
	ProcessingTimeMs int64          `json:"processingTime,omitempty"`
	ErrorCode        string         `json:"errorCode,omitempty"`
	ErrorMessage     string         `json:"error,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
}

// JobUpdate represents a job status update. Empty fields leave the stored
// value untouched.
type JobUpdate struct {
	JobID            string
	Status           JobStatus
	Filename         string
	ContentType      string
	Language         string
	DocumentType     string
	Confidence       float64
	ExtractedData    map[string]any
	RawText          string
	ProcessingTimeMs int64
	ErrorCode        string
	ErrorMessage     string
}

// CompletedUpdate builds the update recorded for a successful extraction.
func CompletedUpdate(jobID string, result *taxdoc.ExtractionResult) *JobUpdate {
	return &JobUpdate{
		JobID:            jobID,
		Status:           StatusCompleted,
		Language:         result.Language,
		DocumentType:     string(result.DetectedType),
		Confidence:       result.Confidence,
		ExtractedData:    result.ExtractedData,
		RawText:          result.RawText,
		ProcessingTimeMs: result.ProcessingTime.Milliseconds(),
	}
}

// FailedUpdate builds the update recorded for a failed extraction.
func FailedUpdate(jobID string, err error, elapsed time.Duration) *JobUpdate {
	code := string(errors.CodeOf(err))
	if code == "" {
		code = "INTERNAL"
	}
	return &JobUpdate{
		JobID:            jobID,
		Status:           StatusFailed,
		ErrorCode:        code,
		ErrorMessage:     err.Error(),
		ProcessingTimeMs: elapsed.Milliseconds(),
	}
}

// apply merges u into r, stamping UpdatedAt (and CreatedAt for new records).
func (r *JobRecord) apply(u *JobUpdate, now time.Time) {
	if r.JobID == "" {
		r.JobID = u.JobID
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = now
	}
	r.UpdatedAt = now
	r.Status = u.Status

	if u.Filename != "" {
		r.Filename = u.Filename
	}
	if u.ContentType != "" {
		r.ContentType = u.ContentType
	}
	if u.Language != "" {
		r.Language = u.Language
	}
	if u.DocumentType != "" {
		r.DocumentType = u.DocumentType
	}
	if u.Confidence != 0 {
		r.Confidence = u.Confidence
	}
	if u.ExtractedData != nil {
		r.ExtractedData = u.ExtractedData
	}
	if u.RawText != "" {
		r.RawText = u.RawText
	}
	if u.ProcessingTimeMs != 0 {
		r.ProcessingTimeMs = u.ProcessingTimeMs
	}

	// error fields always follow the latest status
	r.ErrorCode = u.ErrorCode
	r.ErrorMessage = u.ErrorMessage
}
