package acl

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"careflow-backend/application/ports"
	"careflow-backend/domain/core/valueobjects"
	"careflow-backend/pkg/metrics"
)

func newTestGenerationClient(t *testing.T, handler http.Handler) *GenerationClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewGenerationClient(server.URL, "test-key", metrics.New(prometheus.NewRegistry()), zap.NewNop())
}

func TestGenerationClient_Submit(t *testing.T) {
	var gotAuth string
	var gotRequest ports.GenerationRequest

	client := newTestGenerationClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/generate", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotRequest))

		json.NewEncoder(w).Encode(ports.GenerationStatus{JobID: "job-42", Status: "queued"})
	}))

	status, err := client.Submit(context.Background(), ports.GenerationRequest{
		Format: valueobjects.OutputFormatVideo,
		Prompt: "make a video",
	})
	require.NoError(t, err)
	assert.Equal(t, "job-42", status.JobID)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, valueobjects.OutputFormatVideo, gotRequest.Format)
}

func TestGenerationClient_Submit_MissingJobIDIsAnError(t *testing.T) {
	client := newTestGenerationClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(ports.GenerationStatus{Status: "queued"})
	}))

	_, err := client.Submit(context.Background(), ports.GenerationRequest{Format: valueobjects.OutputFormatVideo})
	assert.Error(t, err)
}

func TestGenerationClient_Status_BackfillsJobID(t *testing.T) {
	client := newTestGenerationClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate/job-42/status", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "started", "progress": 30})
	}))

	status, err := client.Status(context.Background(), "job-42")
	require.NoError(t, err)
	assert.Equal(t, "job-42", status.JobID)
	assert.Equal(t, "started", status.Status)
	assert.Equal(t, 30, status.Progress)
}

func TestGenerationClient_Cancel(t *testing.T) {
	var gotPath string
	client := newTestGenerationClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))

	require.NoError(t, client.Cancel(context.Background(), "job-42"))
	assert.Equal(t, "/api/generate/job-42/cancel", gotPath)
}

func TestGenerationClient_ErrorStatusSurfaces(t *testing.T) {
	client := newTestGenerationClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "job not found", http.StatusNotFound)
	}))

	_, err := client.Status(context.Background(), "job-42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "request failed")
}
