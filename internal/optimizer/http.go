package optimizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"fleet-view/internal/fleet"
)

type httpStatusError struct {
	Code int
	Body string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("Code %d: %s", e.Code, e.Body)
}

// HTTPClient calls POST {base}/optimize_routes.
type HTTPClient struct {
	baseURL    string
	session    *http.Client
	logger     *slog.Logger
	maxAttempt int
	backoff    time.Duration
}

func NewHTTPClient(baseURL string, timeout time.Duration, lg *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		session:    &http.Client{Timeout: timeout},
		logger:     lg.With("component", "optimizer", "transport", "http"),
		maxAttempt: 3,
		backoff:    200 * time.Millisecond,
	}
}

func (c *HTTPClient) Optimize(ctx context.Context, req Request) (fleet.OptimizationResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return fleet.OptimizationResult{}, failed("http", fmt.Errorf("encode request: %w", err))
	}

	resp, err := c.doWithRetry(ctx, func() (*http.Request, error) {
		return c.newRequest(ctx, http.MethodPost, c.baseURL+"/optimize_routes", bytes.NewReader(body))
	})
	if err != nil {
		return fleet.OptimizationResult{}, failed("http", err)
	}
	defer resp.Body.Close()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fleet.OptimizationResult{}, failed("http", fmt.Errorf("decode response: %w", err))
	}
	c.logger.Debug("optimizer: response", "routes", len(out.OptimizedRoutes), "unassigned", len(out.UnassignedOrders))
	return out.Result(), nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *HTTPClient) do(req *http.Request) (*http.Response, error) {
	resp, err := c.session.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, &httpStatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	return resp, nil
}

// doWithRetry reintenta fallos transitorios (red, 5xx) con backoff
// exponencial respetando la cancelación del contexto.
func (c *HTTPClient) doWithRetry(ctx context.Context, makeReq func() (*http.Request, error)) (*http.Response, error) {
	backoff := c.backoff
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempt; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		req, err := makeReq()
		if err != nil {
			return nil, err
		}
		resp, err := c.do(req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		retry := false
		var he *httpStatusError
		if errors.As(err, &he) {
			switch he.Code {
			case 429, 500, 502, 503, 504:
				retry = true
			}
		}
		var netErr net.Error
		if !retry && errors.As(err, &netErr) {
			retry = true
		}
		if !retry || attempt == c.maxAttempt {
			return nil, lastErr
		}

		c.logger.Warn("optimizer: retrying", "attempt", attempt, "err", err)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff *= 2
	}
	return nil, lastErr
}
