package handler

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/adverant/nexus/taxdoc-worker/internal/errors"
	"github.com/adverant/nexus/taxdoc-worker/internal/logging"
	"github.com/adverant/nexus/taxdoc-worker/internal/processor"
	"github.com/adverant/nexus/taxdoc-worker/internal/queue"
	"github.com/adverant/nexus/taxdoc-worker/internal/server/middleware"
	"github.com/adverant/nexus/taxdoc-worker/internal/storage"
	"github.com/adverant/nexus/taxdoc-worker/internal/taxdoc"
)

// multipart overhead allowed on top of the document itself
const formOverhead = 1 << 20

// JobQueue accepts documents for asynchronous extraction.
type JobQueue interface {
	Enqueue(ctx context.Context, payload *queue.JobPayload) (string, error)
}

// Options configures DocumentHandler.
type Options struct {
	Processor       processor.DocumentProcessorInterface
	Queue           JobQueue         // nil disables POST /jobs
	Jobs            storage.JobStore // nil disables GET /jobs/:id
	DefaultLanguage string
	MaxFileSize     int64
	Timeout         time.Duration // 0 means the request context only
	Logger          logging.Sink
}

// DocumentHandler manages document extraction HTTP interactions.
type DocumentHandler struct {
	opts Options
}

// NewDocumentHandler builds the handler.
func NewDocumentHandler(opts Options) *DocumentHandler {
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "eng"
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}
	return &DocumentHandler{opts: opts}
}

// upload is a parsed extraction form.
type upload struct {
	filename    string
	contentType string
	language    string
	typeHint    string
	data        []byte
}

// readUpload parses the multipart form. On failure it has already written
// a 400 response.
func (h *DocumentHandler) readUpload(c *gin.Context) (*upload, bool) {
	limit := h.opts.MaxFileSize
	if limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+formOverhead)
	}

	if err := c.Request.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			badRequest(c, "file too large")
			return nil, false
		}
		badRequest(c, "invalid multipart payload")
		return nil, false
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "missing file")
		return nil, false
	}
	defer file.Close()

	if limit > 0 && header.Size > limit {
		badRequest(c, "file too large")
		return nil, false
	}

	data, err := io.ReadAll(file)
	if err != nil {
		badRequest(c, "failed to read file")
		return nil, false
	}
	if len(data) == 0 {
		badRequest(c, "empty file")
		return nil, false
	}

	language := c.Request.FormValue("language")
	if language == "" {
		language = c.Request.FormValue("lang")
	}
	if language == "" {
		language = h.opts.DefaultLanguage
	}

	return &upload{
		filename:    header.Filename,
		contentType: header.Header.Get("Content-Type"),
		language:    language,
		typeHint:    c.Request.FormValue("documentType"),
		data:        data,
	}, true
}

// HandleExtract runs the pipeline synchronously.
func (h *DocumentHandler) HandleExtract(c *gin.Context) {
	up, ok := h.readUpload(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if h.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.Timeout)
		defer cancel()
	}

	requestID := middleware.GetRequestID(c)
	result, err := h.opts.Processor.ProcessDocument(ctx, &processor.ProcessRequest{
		JobID:       requestID,
		Filename:    up.filename,
		ContentType: up.contentType,
		Language:    up.language,
		TypeHint:    up.typeHint,
		Data:        up.data,
	})
	if err != nil {
		h.opts.Logger.Error("Extraction failed",
			"request_id", requestID, "filename", up.filename, "error", err)
		h.writeProcessingError(c, err)
		return
	}

	c.JSON(http.StatusOK, extractionResponse(requestID, result))
}

// HandleEnqueue queues the document and returns its job ID.
func (h *DocumentHandler) HandleEnqueue(c *gin.Context) {
	if h.opts.Queue == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "job queue not configured",
		})
		return
	}

	up, ok := h.readUpload(c)
	if !ok {
		return
	}

	jobID, err := h.opts.Queue.Enqueue(c.Request.Context(), &queue.JobPayload{
		Filename:         up.filename,
		ContentType:      up.contentType,
		Language:         up.language,
		DocumentTypeHint: up.typeHint,
		Document:         up.data,
	})
	if err != nil {
		h.opts.Logger.Error("Enqueue failed",
			"request_id", middleware.GetRequestID(c), "filename", up.filename, "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "failed to queue document",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"success": true,
		"jobId":   jobID,
	})
}

// HandleGetJob returns a job record.
func (h *DocumentHandler) HandleGetJob(c *gin.Context) {
	if h.opts.Jobs == nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error":   "job storage not configured",
		})
		return
	}

	record, err := h.opts.Jobs.GetJob(c.Request.Context(), c.Param("id"))
	if stderrors.Is(err, storage.ErrJobNotFound) {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   "job not found",
		})
		return
	}
	if err != nil {
		h.opts.Logger.Error("Job lookup failed", "job_id", c.Param("id"), "error", err)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "job lookup failed",
		})
		return
	}

	c.JSON(http.StatusOK, record)
}

func (h *DocumentHandler) writeProcessingError(c *gin.Context, err error) {
	var pe *errors.ProcessingError
	if !stderrors.As(err, &pe) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "document processing failed",
			"details": map[string]interface{}{"message": err.Error()},
		})
		return
	}

	switch pe.Code {
	case errors.ErrorInputValidation, errors.ErrorUnsupportedFormat:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   pe.Message,
			"code":    pe.Code,
		})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   "document processing failed",
			"code":    pe.Code,
			"details": pe.ToMap(),
		})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"success": false,
		"error":   msg,
	})
}

func extractionResponse(requestID string, r *taxdoc.ExtractionResult) gin.H {
	return gin.H{
		"success":        true,
		"requestId":      requestID,
		"rawText":        r.RawText,
		"confidence":     r.Confidence,
		"documentType":   r.DetectedType,
		"extractedData":  r.ExtractedData,
		"language":       r.Language,
		"processedAt":    r.ProcessedAt.Format(time.RFC3339),
		"processingTime": r.ProcessingTime.Milliseconds(),
	}
}
