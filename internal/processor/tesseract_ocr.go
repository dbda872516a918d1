/**
 * Tesseract OCR
 *
 * Free, offline OCR using Tesseract through gosseract. Confidence is the
 * mean word confidence reported by the engine.
 */

package processor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/otiai10/gosseract/v2"

	"github.com/adverant/nexus/taxdoc-worker/internal/errors"
	"github.com/adverant/nexus/taxdoc-worker/internal/logging"
	"github.com/adverant/nexus/taxdoc-worker/internal/tempstore"
)

const tesseractEngine = "tesseract"

// TesseractOCR handles OCR using Tesseract
type TesseractOCR struct {
	tessdataPrefix string
	logger         logging.Sink
}

// TesseractConfig holds Tesseract configuration
type TesseractConfig struct {
	TessdataPrefix string // empty uses the engine default
	Logger         logging.Sink
}

// NewTesseractOCR creates a new Tesseract OCR instance
func NewTesseractOCR(cfg *TesseractConfig) *TesseractOCR {
	if cfg == nil {
		cfg = &TesseractConfig{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &TesseractOCR{
		tessdataPrefix: cfg.TessdataPrefix,
		logger:         logger,
	}
}

func (t *TesseractOCR) Name() string { return tesseractEngine }

// Recognize performs OCR on the document behind h. The engine call runs on
// its own goroutine so a cancelled ctx returns immediately; the bytes are
// read up front, so releasing h afterwards is safe.
func (t *TesseractOCR) Recognize(ctx context.Context, h *tempstore.Handle, language string) (*RecognitionResult, error) {
	data, err := h.ReadAll()
	if err != nil {
		return nil, errors.NewRecognitionError("", tesseractEngine, fmt.Errorf("failed to read document: %w", err))
	}

	type outcome struct {
		result *RecognitionResult
		err    error
	}
	done := make(chan outcome, 1)

	go func() {
		result, err := t.recognizeBytes(data, language)
		done <- outcome{result, err}
	}()

	select {
	case <-ctx.Done():
		t.logger.Warn("Recognition abandoned", "handle", h.ID, "reason", ctx.Err())
		return nil, fmt.Errorf("recognition aborted: %w", ctx.Err())
	case o := <-done:
		return o.result, o.err
	}
}

func (t *TesseractOCR) recognizeBytes(data []byte, language string) (*RecognitionResult, error) {
	startTime := time.Now()

	client := gosseract.NewClient()
	defer client.Close()

	if t.tessdataPrefix != "" {
		client.TessdataPrefix = t.tessdataPrefix
	}

	if err := client.SetLanguage(splitLanguages(language)...); err != nil {
		return nil, errors.NewRecognitionError("", tesseractEngine, fmt.Errorf("unsupported language %q: %w", language, err))
	}

	if err := client.SetImageFromBytes(data); err != nil {
		return nil, errors.NewRecognitionError("", tesseractEngine, fmt.Errorf("failed to set image: %w", err))
	}

	text, err := client.Text()
	if err != nil {
		return nil, errors.NewRecognitionError("", tesseractEngine, err)
	}

	var confidences []float64
	boxes, err := client.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		t.logger.Warn("Word confidences unavailable", "error", err)
	} else {
		confidences = make([]float64, 0, len(boxes))
		for _, b := range boxes {
			confidences = append(confidences, b.Confidence)
		}
	}

	result := &RecognitionResult{
		Text:       text,
		Confidence: meanConfidence(confidences),
		Engine:     tesseractEngine,
		Duration:   time.Since(startTime),
	}

	t.logger.Debug("Tesseract finished",
		"chars", len(text),
		"words", len(confidences),
		"confidence", fmt.Sprintf("%.1f", result.Confidence),
		"duration", result.Duration)

	return result, nil
}

// splitLanguages turns "eng+deu" into the list gosseract expects.
func splitLanguages(language string) []string {
	var langs []string
	for _, l := range strings.Split(language, "+") {
		if l = strings.TrimSpace(l); l != "" {
			langs = append(langs, l)
		}
	}
	if len(langs) == 0 {
		langs = []string{"eng"}
	}
	return langs
}

// meanConfidence averages per-word confidences into [0,100].
func meanConfidence(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return clampPercent(sum / float64(len(values)))
}
