// Package acl holds the anti-corruption layer: HTTP and WebSocket clients
// for the external backends, translating their wire shapes into ports types.
package acl

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"careflow-backend/application/ports"
	pkgerrors "careflow-backend/pkg/errors"
	"careflow-backend/pkg/metrics"
)

const generationServiceName = "generation"

// GenerationClient talks to the generation backend over HTTP. Calls run
// through a circuit breaker so a dead backend fails fast instead of tying
// up request goroutines on timeouts.
type GenerationClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewGenerationClient creates a client for the given base URL
func NewGenerationClient(baseURL, apiKey string, m *metrics.Metrics, logger *zap.Logger) *GenerationClient {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        generationServiceName,
		MaxRequests: 5,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= 0.8
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	return &GenerationClient{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		breaker:    breaker,
		metrics:    m,
		logger:     logger,
	}
}

// Submit implements ports.GenerationClient
func (c *GenerationClient) Submit(ctx context.Context, request ports.GenerationRequest) (*ports.GenerationStatus, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to encode generation request", err)
	}

	var status ports.GenerationStatus
	err = c.do(ctx, http.MethodPost, "/api/generate", bytes.NewReader(body), &status)
	if err != nil {
		return nil, err
	}
	if status.JobID == "" {
		return nil, pkgerrors.NewExternalError(generationServiceName, "backend accepted the job without an id", nil)
	}
	return &status, nil
}

// Status implements ports.GenerationClient
func (c *GenerationClient) Status(ctx context.Context, jobID string) (*ports.GenerationStatus, error) {
	var status ports.GenerationStatus
	err := c.do(ctx, http.MethodGet, "/api/generate/"+jobID+"/status", nil, &status)
	if err != nil {
		return nil, err
	}
	if status.JobID == "" {
		status.JobID = jobID
	}
	return &status, nil
}

// Cancel implements ports.GenerationClient
func (c *GenerationClient) Cancel(ctx context.Context, jobID string) error {
	return c.do(ctx, http.MethodPost, "/api/generate/"+jobID+"/cancel", nil, nil)
}

// do runs one HTTP exchange through the breaker, decoding a JSON response
// into out when out is non-nil
func (c *GenerationClient) do(ctx context.Context, method, path string, body io.Reader, out interface{}) error {
	start := time.Now()
	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			return nil, fmt.Errorf("generation backend returned %d: %s", resp.StatusCode, string(data))
		}

		if out != nil {
			if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
				return nil, fmt.Errorf("failed to decode generation response: %w", err)
			}
		}
		return nil, nil
	})
	c.metrics.ExternalRequestDuration.WithLabelValues(generationServiceName).Observe(time.Since(start).Seconds())

	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return pkgerrors.NewUnavailableError(generationServiceName)
	}
	if err != nil {
		return pkgerrors.NewExternalError(generationServiceName, "request failed", err)
	}
	return nil
}
