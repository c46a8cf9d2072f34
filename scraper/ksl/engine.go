package ksl

import (
	"context"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"ksl-notify/utils"
)

// Engine fetches the HTML of a single page. Two implementations exist: a
// plain HTTP engine and a headless-browser engine for when the backend stops
// embedding the listings payload in the initial page.
type Engine interface {
	FetchPage(ctx context.Context, url string) (string, error)
}

// userAgents is rotated per request so polling traffic looks less uniform.
var userAgents = []string{
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_5) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/13.1.1 Safari/605.1.15",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:77.0) Gecko/20100101 Firefox/77.0",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_5) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/83.0.4103.97 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10.15; rv:77.0) Gecko/20100101 Firefox/77.0",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/83.0.4103.97 Safari/537.36",
}

// HTTPEngine fetches pages with a plain HTTP GET. Timeouts surface as
// net.Error timeout values, which the poll loop accounts as soft failures.
type HTTPEngine struct {
	client *http.Client
	logger *utils.Logger
}

// NewHTTPEngine creates an HTTPEngine with the given per-request timeout.
func NewHTTPEngine(timeout time.Duration, logger *utils.Logger) *HTTPEngine {
	return &HTTPEngine{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// FetchPage performs the GET and returns the response body as a string.
func (e *HTTPEngine) FetchPage(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("ksl: build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgents[rand.Intn(len(userAgents))])

	resp, err := e.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("ksl: search backend returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("ksl: read response body: %w", err)
	}
	return string(body), nil
}
