package numbeo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/wonny/qolindex/pkg/httputil"
	"github.com/wonny/qolindex/pkg/logger"
)

const rankingPath = "/quality-of-life/rankings_by_country.jsp"

// StatusError is a non-2xx answer from the ranking source.
// It is recoverable: the caller skips the year.
type StatusError struct {
	Year       int
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("year %d: unexpected status code: %d", e.Year, e.StatusCode)
}

// Client fetches ranking documents from Numbeo
// ⭐ SSOT: all calls to the ranking source go through this client
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
}

// NewClient creates a new Numbeo client.
// Each year is one request; httputil.Client never retries.
func NewClient(httpClient *httputil.Client, baseURL string, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://www.numbeo.com"
	}
	return &Client{
		httpClient: httpClient,
		logger:     log.Module("fetcher"),
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// RankingURL builds the per-year ranking page URL
func (c *Client) RankingURL(year int) string {
	params := url.Values{}
	params.Set("title", strconv.Itoa(year))
	return fmt.Sprintf("%s%s?%s", c.baseURL, rankingPath, params.Encode())
}

// FetchRankingPage issues one blocking GET for year and returns the document
// verbatim. A non-2xx answer is returned as *StatusError; network errors are
// returned wrapped.
func (c *Client) FetchRankingPage(ctx context.Context, year int) ([]byte, error) {
	pageURL := c.RankingURL(year)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Referer", c.baseURL+"/")
	req.Header.Set("Accept", "text/html")

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("year %d: HTTP request failed: %w", year, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &StatusError{Year: year, StatusCode: resp.StatusCode, URL: pageURL}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("year %d: read response body: %w", year, err)
	}

	c.logger.WithFields(map[string]interface{}{
		"year":  year,
		"bytes": len(body),
	}).Debug("Fetched ranking page")

	return body, nil
}
