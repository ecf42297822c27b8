package registry

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"StandardsCrawler/internal/config"
	"StandardsCrawler/internal/domain"
)

// Client talks to the public standard registry.
type Client struct {
	cfg      config.RegistryConfig
	http     *http.Client
	download *http.Client
	logger   *slog.Logger
	now      func() time.Time
}

// NewClient wires HTTP clients; nil httpClient builds one from cfg timeouts.
// The same client is then used for document downloads.
func NewClient(cfg config.RegistryConfig, httpClient *http.Client, logger *slog.Logger) *Client {
	download := httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
		download = &http.Client{Timeout: cfg.DownloadTimeout}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Client{
		cfg:      cfg,
		http:     httpClient,
		download: download,
		logger:   logger,
		now:      time.Now,
	}
}

func (c *Client) endpoint(path string, elem ...string) string {
	base := strings.TrimSuffix(c.cfg.BaseURL, "/") + path
	for _, e := range elem {
		base += url.PathEscape(e)
	}
	return base
}

func (c *Client) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}
	return req, nil
}

// do executes req and returns the body of a 200 response.
// Transport failures and unexpected statuses are reported as domain.ErrFetch.
func (c *Client) do(client *http.Client, req *http.Request) (io.ReadCloser, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", domain.ErrFetch, req.Method, req.URL.Path, err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("%w: %s %s returned %s", domain.ErrFetch, req.Method, req.URL.Path, resp.Status)
	}

	return resp.Body, nil
}

func (c *Client) postForm(ctx context.Context, target string, form url.Values) (io.ReadCloser, error) {
	req, err := c.newRequest(ctx, http.MethodPost, target, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(c.http, req)
}

func (c *Client) fetchDocument(ctx context.Context, target string) (*goquery.Document, error) {
	req, err := c.newRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}

	body, err := c.do(c.http, req)
	if err != nil {
		return nil, err
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrParse, err)
	}
	return doc, nil
}
