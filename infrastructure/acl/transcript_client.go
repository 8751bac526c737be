package acl

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"careflow-backend/application/ports"
	"careflow-backend/pkg/common"
	pkgerrors "careflow-backend/pkg/errors"
	"careflow-backend/pkg/metrics"
)

const transcriptServiceName = "transcript"

// TranscriptClient fetches video transcripts and runs video searches.
// Requests authenticate with the caller's own OAuth bearer token, carried
// through the request context, never with a service credential.
type TranscriptClient struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewTranscriptClient creates a client for the given base URL
func NewTranscriptClient(baseURL string, m *metrics.Metrics, logger *zap.Logger) *TranscriptClient {
	return &TranscriptClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		metrics:    m,
		logger:     logger,
	}
}

// Transcript implements ports.TranscriptProvider
func (c *TranscriptClient) Transcript(ctx context.Context, videoID string) (*ports.Transcript, error) {
	if videoID == "" {
		return nil, pkgerrors.NewValidationError("video id cannot be empty")
	}

	var out struct {
		Segments []ports.TranscriptSegment `json:"segments"`
	}
	path := "/transcripts/" + url.PathEscape(videoID)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}

	return &ports.Transcript{VideoID: videoID, Segments: out.Segments}, nil
}

// Search implements ports.TranscriptProvider
func (c *TranscriptClient) Search(ctx context.Context, query string) ([]ports.VideoResult, error) {
	if query == "" {
		return nil, pkgerrors.NewValidationError("search query cannot be empty")
	}

	var out struct {
		Results []ports.VideoResult `json:"results"`
	}
	path := "/search?q=" + url.QueryEscape(query)
	if err := c.get(ctx, path, &out); err != nil {
		return nil, err
	}
	return out.Results, nil
}

func (c *TranscriptClient) get(ctx context.Context, path string, out interface{}) error {
	token, ok := common.GetBearerToken(ctx)
	if !ok || token == "" {
		return pkgerrors.NewUnauthorizedError("a bearer token is required for transcript access")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return pkgerrors.NewInternalError("failed to build transcript request", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ExternalRequestDuration.WithLabelValues(transcriptServiceName).Observe(time.Since(start).Seconds())
	if err != nil {
		return pkgerrors.NewExternalError(transcriptServiceName, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return pkgerrors.NewUnauthorizedError("transcript provider rejected the credential")
	}
	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return pkgerrors.NewExternalError(transcriptServiceName,
			fmt.Sprintf("backend returned %d: %s", resp.StatusCode, string(data)), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pkgerrors.NewExternalError(transcriptServiceName, "failed to decode response", err)
	}
	return nil
}
