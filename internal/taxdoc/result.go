package taxdoc

import (
	"math"
	"time"
)

// ExtractionResult is the final structured output of one pipeline run
type ExtractionResult struct {
	RawText        string         `json:"rawText"`
	DetectedType   DocumentType   `json:"documentType"`
	Confidence     float64        `json:"confidence"`
	Fields         FieldSet       `json:"-"`
	ExtractedData  map[string]any `json:"extractedData"`
	Language       string         `json:"language"`
	ProcessedAt    time.Time      `json:"processedAt"`
	ProcessingTime time.Duration  `json:"-"`
}

// Typed returns the statically typed field view for the detected type.
func (r *ExtractionResult) Typed() Fields {
	return r.Fields.Typed(r.DetectedType)
}

// Assemble combines recognition output, classification and fields. It does
// no I/O; at is the processed-at stamp.
func Assemble(text string, confidence float64, t DocumentType, fields FieldSet, language string, at time.Time) *ExtractionResult {
	if !t.Valid() {
		t = General
	}
	if fields == nil {
		fields = FieldSet{}
	}
	return &ExtractionResult{
		RawText:       text,
		DetectedType:  t,
		Confidence:    clampConfidence(confidence),
		Fields:        fields,
		ExtractedData: fields.Values(),
		Language:      language,
		ProcessedAt:   at.UTC(),
	}
}

func clampConfidence(c float64) float64 {
	switch {
	case math.IsNaN(c) || c < 0:
		return 0
	case c > 100:
		return 100
	}
	return c
}
