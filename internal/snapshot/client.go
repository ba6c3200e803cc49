package snapshot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Acontraveta/Vanspace-Workshop-sub001/internal/utils"
)

// maxBodyBytes bounds a single table download
const maxBodyBytes = 32 << 20

// Fetcher downloads the rows of one backend table as a JSON array
type Fetcher interface {
	FetchTable(ctx context.Context, table string) ([]byte, error)
}

// Client reads tables from the hosted backend's REST API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a backend client
func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// FetchTable returns every row of table
func (c *Client) FetchTable(ctx context.Context, table string) ([]byte, error) {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?select=*", c.baseURL, url.PathEscape(table))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build request for %s: %w", table, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", table, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", table, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: backend returned %d: %s", table, resp.StatusCode, utils.EscapeForLogging(string(body), 200))
	}
	return body, nil
}
