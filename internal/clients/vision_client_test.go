package clients

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, extractPath, r.URL.Path)
		assert.Equal(t, "key", r.Header.Get("x-api-key"))

		var req VisionOCRRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		img, err := base64.StdEncoding.DecodeString(req.Image)
		assert.NoError(t, err)
		assert.Equal(t, "scan", string(img))
		assert.Equal(t, "eng", req.Language)
		assert.False(t, req.Async)

		_, _ = w.Write([]byte(`{"success":true,"data":{"text":"Form W-2","confidence":91.5,"modelUsed":"m1"}}`))
	}))
	defer srv.Close()

	c := NewVisionClient(VisionClientConfig{BaseURL: srv.URL + "/", APIKey: "key"})
	data, err := c.ExtractText(context.Background(), NewRequest("job-1", []byte("scan"), "eng"))
	require.NoError(t, err)
	assert.Equal(t, "Form W-2", data.Text)
	assert.Equal(t, 91.5, data.Confidence)
}

func TestExtractTextErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"http error", http.StatusBadGateway, `upstream down`},
		{"unsuccessful", http.StatusOK, `{"success":false,"message":"no model"}`},
		{"garbage", http.StatusOK, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewVisionClient(VisionClientConfig{BaseURL: srv.URL}).
				ExtractText(context.Background(), NewRequest("job-1", []byte("x"), "eng"))
			assert.Error(t, err)
		})
	}
}

func TestAsyncTaskLifecycle(t *testing.T) {
	var polls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc(extractPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"success":true,"data":{"taskId":"t-1"}}`))
	})
	mux.HandleFunc(tasksPath+"t-1", func(w http.ResponseWriter, r *http.Request) {
		if polls.Add(1) < 3 {
			_, _ = w.Write([]byte(`{"success":true,"data":{"task":{"id":"t-1","status":"processing","progress":50}}}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"task":{"id":"t-1","status":"completed","result":{"text":"RECEIPT","confidence":80}}}}`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	c := NewVisionClient(VisionClientConfig{BaseURL: srv.URL})
	taskID, err := c.ExtractTextAsync(context.Background(), NewRequest("job-1", []byte("x"), "eng"))
	require.NoError(t, err)
	assert.Equal(t, "t-1", taskID)

	data, err := c.WaitForTaskCompletion(context.Background(), taskID, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, "RECEIPT", data.Text)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestWaitForTaskCompletionFailedAndCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == tasksPath+"bad" {
			_, _ = w.Write([]byte(`{"success":true,"data":{"task":{"id":"bad","status":"failed","error":"unreadable"}}}`))
			return
		}
		_, _ = w.Write([]byte(`{"success":true,"data":{"task":{"id":"slow","status":"pending"}}}`))
	}))
	defer srv.Close()

	c := NewVisionClient(VisionClientConfig{BaseURL: srv.URL})

	_, err := c.WaitForTaskCompletion(context.Background(), "bad", time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unreadable")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err = c.WaitForTaskCompletion(ctx, "slow", 5*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	assert.NoError(t, NewVisionClient(VisionClientConfig{BaseURL: srv.URL}).HealthCheck(context.Background()))
}
