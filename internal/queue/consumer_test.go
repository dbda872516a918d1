package queue

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adverant/nexus/taxdoc-worker/internal/errors"
	"github.com/adverant/nexus/taxdoc-worker/internal/logging"
	"github.com/adverant/nexus/taxdoc-worker/internal/processor"
	"github.com/adverant/nexus/taxdoc-worker/internal/storage"
	"github.com/adverant/nexus/taxdoc-worker/internal/taxdoc"
)

type fakeProcessor struct {
	result *taxdoc.ExtractionResult
	err    error
	block  bool
	got    *processor.ProcessRequest
}

func (f *fakeProcessor) ProcessDocument(ctx context.Context, req *processor.ProcessRequest) (*taxdoc.ExtractionResult, error) {
	f.got = req
	if f.block {
		<-ctx.Done()
		return nil, errors.NewRecognitionError(req.JobID, "fake", ctx.Err())
	}
	return f.result, f.err
}

type memoryRecorder struct {
	mu      sync.Mutex
	updates []*storage.JobUpdate
	err     error
}

func (m *memoryRecorder) UpdateJobStatus(_ context.Context, u *storage.JobUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, u)
	return m.err
}

func (m *memoryRecorder) statuses() []storage.JobStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]storage.JobStatus, len(m.updates))
	for i, u := range m.updates {
		out[i] = u.Status
	}
	return out
}

func (m *memoryRecorder) last() *storage.JobUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updates[len(m.updates)-1]
}

func newExtractTask(t *testing.T, p *JobPayload) *asynq.Task {
	t.Helper()
	data, err := EncodePayload(p)
	require.NoError(t, err)
	return asynq.NewTask(TypeExtractDocument, data)
}

func TestProcessTaskCompleted(t *testing.T) {
	result := taxdoc.Assemble("RECEIPT\nTotal: $4.50", 90, taxdoc.Receipt, taxdoc.FieldSet{}, "eng", time.Now())
	proc := &fakeProcessor{result: result}
	rec := &memoryRecorder{}
	h := newTaskHandler(proc, rec, 0, logging.Nop())

	err := h.ProcessTask(context.Background(), newExtractTask(t, &JobPayload{
		JobID: "job-1", Filename: "r.png", DocumentTypeHint: "Receipt", Document: []byte("img"),
	}))
	require.NoError(t, err)

	assert.Equal(t, []storage.JobStatus{storage.StatusProcessing, storage.StatusCompleted}, rec.statuses())
	assert.Equal(t, "Receipt", rec.last().DocumentType)
	assert.Equal(t, "Receipt", proc.got.TypeHint)
	assert.Equal(t, 5*time.Minute, h.timeout)
}

func TestProcessTaskMalformedPayloadSkipsRetry(t *testing.T) {
	proc := &fakeProcessor{}
	rec := &memoryRecorder{}
	h := newTaskHandler(proc, rec, 0, logging.Nop())

	err := h.ProcessTask(context.Background(),
		asynq.NewTask(TypeExtractDocument, []byte(`{"jobId":"job-2","document":""}`)))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, asynq.SkipRetry))
	assert.Nil(t, proc.got, "processor must not run")

	require.Equal(t, []storage.JobStatus{storage.StatusFailed}, rec.statuses())
	assert.Equal(t, "INPUT_VALIDATION", rec.last().ErrorCode)
}

func TestProcessTaskInputErrorSkipsRetry(t *testing.T) {
	proc := &fakeProcessor{err: errors.NewUnsupportedFormatError("job-3", "application/zip")}
	rec := &memoryRecorder{}
	h := newTaskHandler(proc, rec, 0, logging.Nop())

	err := h.ProcessTask(context.Background(), newExtractTask(t, &JobPayload{JobID: "job-3", Document: []byte("PK")}))
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, asynq.SkipRetry))
	assert.Equal(t, "UNSUPPORTED_FORMAT", rec.last().ErrorCode)
}

func TestProcessTaskRecognitionFailureRetries(t *testing.T) {
	proc := &fakeProcessor{err: errors.NewRecognitionError("job-4", "tesseract", stderrors.New("bad image"))}
	rec := &memoryRecorder{}
	h := newTaskHandler(proc, rec, 0, logging.Nop())

	err := h.ProcessTask(context.Background(), newExtractTask(t, &JobPayload{JobID: "job-4", Document: []byte("img")}))
	require.Error(t, err)
	assert.False(t, stderrors.Is(err, asynq.SkipRetry))
	assert.True(t, errors.HasCode(err, errors.ErrorRecognitionFailed))
	assert.Equal(t, storage.StatusFailed, rec.last().Status)
}

func TestProcessTaskTimeout(t *testing.T) {
	proc := &fakeProcessor{block: true}
	rec := &memoryRecorder{}
	h := newTaskHandler(proc, rec, 20, logging.Nop())

	err := h.ProcessTask(context.Background(), newExtractTask(t, &JobPayload{JobID: "job-5", Document: []byte("img")}))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrorProcessingTimeout))
	assert.Equal(t, "PROCESSING_TIMEOUT", rec.last().ErrorCode)
}

func TestProcessTaskRecorderFailureDoesNotFailJob(t *testing.T) {
	result := taxdoc.Assemble("text", 50, taxdoc.General, nil, "eng", time.Now())
	rec := &memoryRecorder{err: stderrors.New("redis down")}
	h := newTaskHandler(&fakeProcessor{result: result}, rec, 0, nil)

	err := h.ProcessTask(context.Background(), newExtractTask(t, &JobPayload{JobID: "job-6", Document: []byte("img")}))
	assert.NoError(t, err)
}

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 5*time.Second, retryDelay(0, nil, nil))
	assert.Equal(t, 10*time.Second, retryDelay(1, nil, nil))
	assert.Equal(t, 20*time.Second, retryDelay(2, nil, nil))
	assert.Equal(t, 60*time.Second, retryDelay(4, nil, nil))
	assert.Equal(t, 60*time.Second, retryDelay(30, nil, nil))
}

func TestNewConsumerValidation(t *testing.T) {
	_, err := NewConsumer(&ConsumerConfig{QueueName: "taxdoc", Processor: &fakeProcessor{}})
	assert.Error(t, err)
	_, err = NewConsumer(&ConsumerConfig{RedisURL: "redis://localhost:6379", Processor: &fakeProcessor{}})
	assert.Error(t, err)
	_, err = NewConsumer(&ConsumerConfig{RedisURL: "redis://localhost:6379", QueueName: "taxdoc"})
	assert.Error(t, err)
}
