package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"overdub/internal/config"
)

const defaultTimeoutSeconds = 120

// HTTPClient is the shared transport for all processing service clients. It
// bundles a resty client with an optional request rate limiter so that
// metered endpoints are never hammered past their quota.
type HTTPClient struct {
	name    string
	rest    *resty.Client
	limiter *rate.Limiter
}

// NewHTTPClient builds a transport for one configured processing service.
func NewHTTPClient(name string, cfg config.Service) (*HTTPClient, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, Wrap(ErrConfiguration, "", name, "base URL is not configured", nil)
	}

	timeout := cfg.TimeoutSeconds
	if timeout <= 0 {
		timeout = defaultTimeoutSeconds
	}

	rest := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(time.Duration(timeout) * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second)
	if cfg.APIKey != "" {
		rest.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	}

	client := &HTTPClient{name: name, rest: rest}
	if cfg.RateLimitRPM > 0 {
		client.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RateLimitRPM)/60.0), 1)
	}
	return client, nil
}

// Post sends a JSON request and decodes the JSON response into out. HTTP 4xx
// responses are classified as validation failures since retrying an invalid
// request cannot help; everything else is transient.
func (c *HTTPClient) Post(ctx context.Context, path string, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return Wrap(ErrTransient, "", c.name, "rate limiter interrupted", err)
		}
	}

	req := c.rest.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Post(path)
	if err != nil {
		return Wrap(ErrTransient, "", c.name, fmt.Sprintf("request %s", path), err)
	}
	status := resp.StatusCode()
	switch {
	case status >= http.StatusInternalServerError:
		return Wrap(ErrTransient, "", c.name,
			fmt.Sprintf("%s returned %d: %s", path, status, truncate(resp.String())), nil)
	case status >= http.StatusBadRequest:
		return Wrap(ErrValidation, "", c.name,
			fmt.Sprintf("%s returned %d: %s", path, status, truncate(resp.String())), nil)
	}
	return nil
}

func truncate(body string) string {
	body = strings.TrimSpace(body)
	if len(body) > 200 {
		return body[:200] + "..."
	}
	return body
}
