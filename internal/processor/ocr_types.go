/**
 * OCR Types - recognition boundary
 *
 * The pipeline talks to the OCR engine only through Recognizer, so the
 * engine stays an opaque, potentially slow collaborator.
 */

package processor

import (
	"context"
	"math"
	"time"

	"github.com/adverant/nexus/taxdoc-worker/internal/tempstore"
)

// RecognitionResult is the output of one recognition call
type RecognitionResult struct {
	Text       string
	Confidence float64 // 0..100, whole document
	Engine     string
	Duration   time.Duration
}

// Recognizer converts a stored document into text. Implementations must
// return a typed error on failure rather than an empty-text success, and
// must not retry on their own.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, h *tempstore.Handle, language string) (*RecognitionResult, error)
}

// clampPercent maps engine confidences onto 0..100; NaN becomes 0.
func clampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
