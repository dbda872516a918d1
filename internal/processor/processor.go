/**
 * Document Processor for the tax document worker
 *
 * Runs one uploaded document through the extraction pipeline:
 * - temporary storage (acquire)
 * - OCR via the configured Recognizer
 * - temporary storage (release, on every exit path)
 * - classification, field extraction, result assembly
 */

package processor

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/adverant/nexus/taxdoc-worker/internal/errors"
	"github.com/adverant/nexus/taxdoc-worker/internal/logging"
	"github.com/adverant/nexus/taxdoc-worker/internal/taxdoc"
	"github.com/adverant/nexus/taxdoc-worker/internal/tempstore"
)

// DocumentProcessorInterface defines the interface for document processing
type DocumentProcessorInterface interface {
	ProcessDocument(ctx context.Context, req *ProcessRequest) (*taxdoc.ExtractionResult, error)
}

// ProcessorConfig holds processor configuration
type ProcessorConfig struct {
	Store           tempstore.Manager
	Recognizer      Recognizer
	Registry        *taxdoc.Registry // nil uses the embedded rules
	DefaultLanguage string
	MaxFileSize     int64 // 0 disables the check
	Logger          logging.Sink
}

// ProcessRequest represents a document processing request
type ProcessRequest struct {
	JobID       string
	Filename    string
	ContentType string
	Language    string
	TypeHint    string // advisory only, never overrides classification
	Data        []byte
}

// DocumentProcessor handles document processing
type DocumentProcessor struct {
	store           tempstore.Manager
	recognizer      Recognizer
	classifier      *taxdoc.Classifier
	extractor       *taxdoc.Extractor
	defaultLanguage string
	maxFileSize     int64
	logger          logging.Sink
}

// unsupportedMimeTypes are formats the OCR engine cannot read at all.
var unsupportedMimeTypes = map[string]bool{
	"application/zip":      true,
	"application/epub+zip": true,
	"application/msword":   true,
	"application/gzip":     true,
}

// NewDocumentProcessor creates a new document processor
func NewDocumentProcessor(cfg *ProcessorConfig) (*DocumentProcessor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	if cfg.Store == nil {
		return nil, fmt.Errorf("temporary store is required")
	}

	if cfg.Recognizer == nil {
		return nil, fmt.Errorf("recognizer is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Nop()
	}

	language := cfg.DefaultLanguage
	if language == "" {
		language = "eng"
	}

	return &DocumentProcessor{
		store:           cfg.Store,
		recognizer:      cfg.Recognizer,
		classifier:      taxdoc.NewClassifier(cfg.Registry),
		extractor:       taxdoc.NewExtractor(cfg.Registry),
		defaultLanguage: language,
		maxFileSize:     cfg.MaxFileSize,
		logger:          logger,
	}, nil
}

// ProcessDocument processes a document through the complete pipeline
func (p *DocumentProcessor) ProcessDocument(ctx context.Context, req *ProcessRequest) (*taxdoc.ExtractionResult, error) {
	startTime := time.Now()

	if req == nil || len(req.Data) == 0 {
		jobID := ""
		if req != nil {
			jobID = req.JobID
		}
		return nil, errors.NewInputValidationError(jobID, "no document provided")
	}

	if p.maxFileSize > 0 && int64(len(req.Data)) > p.maxFileSize {
		return nil, errors.NewInputValidationError(req.JobID,
			fmt.Sprintf("document is %d bytes, maximum is %d", len(req.Data), p.maxFileSize))
	}

	language := req.Language
	if language == "" {
		language = p.defaultLanguage
	}

	p.logger.Info("Starting document processing",
		"job_id", req.JobID,
		"filename", req.Filename,
		"bytes", len(req.Data),
		"language", language)

	// Detect actual MIME type from magic bytes; uploads often arrive as octet-stream
	contentType := req.ContentType
	if detected := detectMimeTypeFromMagicBytes(req.Data); detected != "" {
		if contentType == "" || contentType == "application/octet-stream" {
			p.logger.Debug("Corrected content type from magic bytes",
				"job_id", req.JobID, "declared", contentType, "detected", detected)
			contentType = detected
		}
		if unsupportedMimeTypes[detected] {
			return nil, errors.NewUnsupportedFormatError(req.JobID, detected)
		}
	}

	if req.TypeHint != "" {
		hint, known := taxdoc.ParseDocumentType(req.TypeHint)
		p.logger.Debug("Document type hint received",
			"job_id", req.JobID, "hint", req.TypeHint, "known", known, "parsed", hint)
	}

	recognition, err := p.recognize(ctx, req, language)
	if err != nil {
		return nil, err
	}

	docType := p.classifier.Classify(recognition.Text, req.Filename)
	fields := p.extractor.Extract(recognition.Text, docType)
	result := taxdoc.Assemble(recognition.Text, recognition.Confidence, docType, fields, language, time.Now())
	result.ProcessingTime = time.Since(startTime)

	p.logger.Info("Document processing complete",
		"job_id", req.JobID,
		"document_type", docType,
		"content_type", contentType,
		"confidence", fmt.Sprintf("%.1f", result.Confidence),
		"missing_fields", len(fields.Missing()),
		"duration_ms", result.ProcessingTime.Milliseconds())

	return result, nil
}

// recognize holds the temporary resource only for the OCR step. Release runs
// exactly once whether recognition succeeds, fails, is cancelled or panics.
func (p *DocumentProcessor) recognize(ctx context.Context, req *ProcessRequest, language string) (*RecognitionResult, error) {
	started := time.Now()

	handle, err := p.store.Acquire(ctx, req.Data, req.Filename)
	if err != nil {
		switch {
		case errors.HasCode(err, errors.ErrorInputValidation):
			return nil, err
		case ctx.Err() != nil:
			return nil, p.recognitionFailure(req.JobID, started, err)
		}
		return nil, errors.NewStorageFailedError(req.JobID, err)
	}

	released := false
	release := func() {
		if released {
			return
		}
		released = true
		p.release(req.JobID, handle)
	}
	defer release()

	result, err := p.recognizer.Recognize(ctx, handle, language)
	release()

	if err != nil {
		return nil, p.recognitionFailure(req.JobID, started, err)
	}
	if result == nil {
		return nil, errors.NewRecognitionError(req.JobID, p.recognizer.Name(), fmt.Errorf("recognizer returned no result"))
	}

	p.logger.Debug("Recognition finished",
		"job_id", req.JobID,
		"engine", result.Engine,
		"chars", len(result.Text),
		"duration_ms", result.Duration.Milliseconds())

	return result, nil
}

func (p *DocumentProcessor) release(jobID string, handle *tempstore.Handle) {
	if err := p.store.Release(handle); err != nil {
		relErr := errors.NewResourceReleaseError(jobID, handle.ID, err)
		p.logger.Warn("Temporary resource release failed",
			"job_id", jobID,
			"error_code", relErr.Code,
			"error", relErr)
	}
}

func (p *DocumentProcessor) recognitionFailure(jobID string, started time.Time, err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.NewProcessingTimeoutError(jobID, time.Since(started).Round(time.Millisecond), err)
	}

	var pe *errors.ProcessingError
	if stderrors.As(err, &pe) {
		if pe.JobID == "" {
			pe.JobID = jobID
		}
		return pe
	}

	return errors.NewRecognitionError(jobID, p.recognizer.Name(), err)
}

// detectMimeTypeFromMagicBytes detects the actual MIME type from file content magic bytes
// Returns empty string if not detected
func detectMimeTypeFromMagicBytes(data []byte) string {
	if len(data) < 4 {
		return ""
	}

	switch {
	case bytes.HasPrefix(data, []byte("%PDF")):
		return "application/pdf"
	case len(data) >= 8 && bytes.HasPrefix(data, []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}):
		return "image/png"
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return "image/jpeg"
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return "image/gif"
	case len(data) > 12 && bytes.HasPrefix(data, []byte("RIFF")) && string(data[8:12]) == "WEBP":
		return "image/webp"
	case bytes.HasPrefix(data, []byte{0x49, 0x49, 0x2A, 0x00}), bytes.HasPrefix(data, []byte{0x4D, 0x4D, 0x00, 0x2A}):
		return "image/tiff"
	case bytes.HasPrefix(data, []byte("BM")):
		return "image/bmp"
	case bytes.HasPrefix(data, []byte{0x1F, 0x8B}):
		return "application/gzip"
	case bytes.HasPrefix(data, []byte{0x50, 0x4B, 0x03, 0x04}):
		// The first entry of an EPUB is "mimetype" holding "application/epub+zip"
		if bytes.Contains(data[:min(100, len(data))], []byte("mimetypeapplication/epub+zip")) {
			return "application/epub+zip"
		}
		return "application/zip"
	case len(data) >= 8 && bytes.HasPrefix(data, []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}):
		return "application/msword"
	}

	return ""
}
