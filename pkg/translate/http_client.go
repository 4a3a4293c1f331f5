package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// jsonEndpoint is the HTTP plumbing shared by the HTTP-backed handles.
type jsonEndpoint struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Entry
}

func newJSONEndpoint(baseURL string, timeout time.Duration, logger *logrus.Entry) *jsonEndpoint {
	return &jsonEndpoint{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// post sends in as JSON to path and decodes a 200 response into out.
func (e *jsonEndpoint) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// get issues a GET to path and discards the body.
func (e *jsonEndpoint) get(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := e.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// do executes req and turns transport errors and non-200 statuses into errors.
// On success the caller owns resp.Body.
func (e *jsonEndpoint) do(req *http.Request) (*http.Response, error) {
	startTime := time.Now()
	resp, err := e.httpClient.Do(req)
	if err != nil {
		e.logger.WithError(err).WithField("url", req.URL.String()).Warn("Translation request failed")
		return nil, fmt.Errorf("request failed: %w", err)
	}

	e.logger.WithFields(logrus.Fields{
		"url":         req.URL.Path,
		"status_code": resp.StatusCode,
		"duration_ms": time.Since(startTime).Milliseconds(),
	}).Debug("Translation request completed")

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(bodyBytes))
	}
	return resp, nil
}
