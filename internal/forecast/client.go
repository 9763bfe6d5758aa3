package forecast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
)

var (
	errUnexpectedStatus = errors.New("unexpected status code")
	errCircuitOpen      = errors.New("circuit breaker open")
)

// Client retrieves hourly gridded forecast data from the NWS API. Each fetch
// is two sequential GETs: the configured point metadata URL yields the
// forecastGridData URL, which yields the grid document.
type Client struct {
	client   *http.Client
	pointURL string
	headers  map[string]string
	circuit  *gobreaker.CircuitBreaker
}

func NewClient(client *http.Client, pointURL, userAgent string) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "nws",
		MaxRequests: 2,
		Interval:    10 * time.Minute,
		Timeout:     5 * time.Minute,
	})

	return &Client{
		client:   client,
		pointURL: pointURL,
		headers: map[string]string{
			"User-Agent": userAgent,
			"Accept":     "application/geo+json",
		},
		circuit: cb,
	}
}

// FetchGrid retrieves the current forecast grid document. Any network,
// status, or parse failure is returned as-is; the caller aborts the cycle
// and the next scheduled run is the retry.
func (c *Client) FetchGrid(ctx context.Context) (*Document, error) {
	gridURL, err := c.fetchGridURL(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve grid url: %w", err)
	}

	resp, err := c.get(ctx, gridURL)
	if err != nil {
		return nil, fmt.Errorf("fetch grid data: %w", err)
	}
	defer resp.Body.Close()

	var doc Document
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode grid data: %w", err)
	}
	return &doc, nil
}

func (c *Client) fetchGridURL(ctx context.Context) (string, error) {
	resp, err := c.get(ctx, c.pointURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var payload struct {
		ForecastGridData string `json:"forecastGridData"`
		Properties       struct {
			ForecastGridData string `json:"forecastGridData"`
		} `json:"properties"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode point metadata: %w", err)
	}

	gridURL := payload.Properties.ForecastGridData
	if gridURL == "" {
		gridURL = payload.ForecastGridData
	}
	if gridURL == "" {
		return "", fmt.Errorf("point metadata has no forecastGridData url")
	}
	return gridURL, nil
}

// get issues a single GET through the circuit breaker. There is no retry;
// a failed cycle waits for the next interval.
func (c *Client) get(ctx context.Context, url string) (*http.Response, error) {
	result, err := c.circuit.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			resp.Body.Close()
			return nil, fmt.Errorf("%w: %d", errUnexpectedStatus, resp.StatusCode)
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", errCircuitOpen, err)
		}
		return nil, err
	}

	resp, ok := result.(*http.Response)
	if !ok {
		return nil, fmt.Errorf("unexpected result type from circuit breaker")
	}
	return resp, nil
}
