package storage

import (
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/taxdoc-worker/internal/errors"
	"github.com/adverant/nexus/taxdoc-worker/internal/taxdoc"
)

func TestCompletedUpdate(t *testing.T) {
	result := taxdoc.Assemble("RECEIPT\nTotal: $4.50", 91.5, taxdoc.Receipt,
		taxdoc.FieldSet{"total": {Name: "total", Kind: taxdoc.KindCurrency, Value: 4.5, Found: true}},
		"eng", time.Now())
	result.ProcessingTime = 1500 * time.Millisecond

	u := CompletedUpdate("job-1", result)
	assert.Equal(t, StatusCompleted, u.Status)
	assert.Equal(t, "Receipt", u.DocumentType)
	assert.Equal(t, 91.5, u.Confidence)
	assert.Equal(t, int64(1500), u.ProcessingTimeMs)
	assert.Equal(t, 4.5, u.ExtractedData["total"])
	assert.Empty(t, u.ErrorCode)
}

func TestFailedUpdate(t *testing.T) {
	t.Run("processing error keeps its code", func(t *testing.T) {
		err := errors.NewInputValidationError("job-1", "no document provided")
		u := FailedUpdate("job-1", err, 20*time.Millisecond)
		assert.Equal(t, StatusFailed, u.Status)
		assert.Equal(t, "INPUT_VALIDATION", u.ErrorCode)
		assert.Contains(t, u.ErrorMessage, "no document provided")
		assert.Equal(t, int64(20), u.ProcessingTimeMs)
	})

	t.Run("wrapped processing error", func(t *testing.T) {
		err := fmt.Errorf("queue: %w", errors.NewRecognitionError("job-1", "tesseract", nil))
		assert.Equal(t, "RECOGNITION_FAILED", FailedUpdate("job-1", err, 0).ErrorCode)
	})

	t.Run("plain error", func(t *testing.T) {
		assert.Equal(t, "INTERNAL", FailedUpdate("job-1", fmt.Errorf("boom"), 0).ErrorCode)
	})
}

func TestJobRecordApply(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Minute)

	var r JobRecord
	r.apply(&JobUpdate{JobID: "job-1", Status: StatusQueued, Filename: "w2.png", Language: "eng"}, t0)
	require.Equal(t, "job-1", r.JobID)
	assert.Equal(t, t0, r.CreatedAt)
	assert.Equal(t, t0, r.UpdatedAt)

	r.apply(&JobUpdate{JobID: "job-1", Status: StatusFailed, ErrorCode: "RECOGNITION_FAILED", ErrorMessage: "bad image"}, t1)
	assert.Equal(t, StatusFailed, r.Status)
	assert.Equal(t, "w2.png", r.Filename, "empty update fields keep stored values")
	assert.Equal(t, "eng", r.Language)
	assert.Equal(t, t0, r.CreatedAt)
	assert.Equal(t, t1, r.UpdatedAt)
	assert.Equal(t, "RECOGNITION_FAILED", r.ErrorCode)

	// a retry that succeeds clears the previous failure
	r.apply(&JobUpdate{JobID: "job-1", Status: StatusCompleted, DocumentType: "W-2", Confidence: 88}, t1)
	assert.Equal(t, StatusCompleted, r.Status)
	assert.Empty(t, r.ErrorCode)
	assert.Empty(t, r.ErrorMessage)
	assert.Equal(t, "W-2", r.DocumentType)
}

func TestSanitizeConfidence(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{-5, 0},
		{0, 0},
		{87.456, 87.46},
		{100, 100},
		{250, 100},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeConfidence(tt.in), "input %v", tt.in)
	}
}

func TestSanitizeJSONForPostgres(t *testing.T) {
	in := []byte(`{"rawText":"W-2\u0000 wages\u0007 here"}`)
	out := sanitizeJSONForPostgres(in)
	assert.Equal(t, `{"rawText":"W-2 wages  here"}`, string(out))

	clean := []byte(`{"total":12.5}`)
	assert.Equal(t, clean, sanitizeJSONForPostgres(clean))
}
