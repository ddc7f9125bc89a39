package httputil

import (
	"context"
	"net/http"
	"time"

	"github.com/wonny/qolindex/pkg/config"
	"github.com/wonny/qolindex/pkg/logger"
)

// Client is an HTTP client wrapper with User-Agent injection and request
// logging. It sends each request exactly once.
// ⭐ SSOT: every outbound HTTP request goes through this client
type Client struct {
	httpClient *http.Client
	logger     *logger.Logger
	userAgent  string
}

// New creates a new HTTP client from config
// ⭐ SSOT: http.Client instances are only created here
func New(cfg *config.Config, log *logger.Logger) *Client {
	timeout := cfg.Numbeo.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:    log,
		userAgent: cfg.Numbeo.UserAgent,
	}
}

// Do executes a prepared request bound to ctx
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	req = req.WithContext(ctx)

	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	startTime := time.Now()
	url := req.URL.String()
	method := req.Method

	c.logger.WithFields(map[string]interface{}{
		"method": method,
		"url":    url,
	}).Debug("HTTP request started")

	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)

	if err != nil {
		c.logger.WithFields(map[string]interface{}{
			"method":   method,
			"url":      url,
			"duration": duration,
		}).WithError(err).Error("HTTP request failed")
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"method":      method,
		"url":         url,
		"status_code": resp.StatusCode,
		"duration":    duration,
	}).Debug("HTTP request completed")

	return resp, nil
}
