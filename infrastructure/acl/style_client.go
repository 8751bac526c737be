package acl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"careflow-backend/domain/core/valueobjects"
	pkgerrors "careflow-backend/pkg/errors"
	"careflow-backend/pkg/metrics"
)

const styleServiceName = "style-analysis"

// StyleClient calls the style-analysis backend, which turns a transcript or
// free-text description into a structured style descriptor.
type StyleClient struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewStyleClient creates a client for the given base URL
func NewStyleClient(baseURL string, m *metrics.Metrics, logger *zap.Logger) *StyleClient {
	return &StyleClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		metrics:    m,
		logger:     logger,
	}
}

type analyzeRequest struct {
	Text string `json:"text"`
}

// Analyze implements ports.StyleAnalyzer
func (c *StyleClient) Analyze(ctx context.Context, transcriptOrDescription string) (*valueobjects.StylePayload, error) {
	if transcriptOrDescription == "" {
		return nil, pkgerrors.NewValidationError("nothing to analyze")
	}

	body, err := json.Marshal(analyzeRequest{Text: transcriptOrDescription})
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to encode analyze request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/analyze-style", bytes.NewReader(body))
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to build analyze request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.ExternalRequestDuration.WithLabelValues(styleServiceName).Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, pkgerrors.NewExternalError(styleServiceName, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, pkgerrors.NewExternalError(styleServiceName,
			fmt.Sprintf("backend returned %d: %s", resp.StatusCode, string(data)), nil)
	}

	var style valueobjects.StylePayload
	if err := json.NewDecoder(resp.Body).Decode(&style); err != nil {
		return nil, pkgerrors.NewExternalError(styleServiceName, "failed to decode style descriptor", err)
	}
	return &style, nil
}
