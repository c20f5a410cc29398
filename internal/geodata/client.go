// Package geodata loads the point dataset behind the map. A source is either an
// http(s) URL, fetched with retries, or a local file path. The body is decoded
// as a GeoJSON FeatureCollection and validated into typed models.
//
// When a dataset cache is configured, every successful fetch is stored and the
// newest cached copy is used if a later fetch fails.
package geodata

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/rewired-gh/symbolmap/internal/logger"
	"github.com/rewired-gh/symbolmap/internal/models"
)

// defaultMaxBodyBytes caps how much of a response body is read.
const defaultMaxBodyBytes = 64 << 20

// ErrBodyTooLarge is returned when a response exceeds the configured size cap.
var ErrBodyTooLarge = errors.New("response body too large")

// DatasetCache stores raw dataset bodies between runs.
type DatasetCache interface {
	SaveDataset(ctx context.Context, source string, body []byte, featureCount int) (*models.Dataset, error)
	LatestDataset(ctx context.Context, source string) (*models.Dataset, error)
}

// ClientConfig holds loader tuning parameters
type ClientConfig struct {
	Timeout        time.Duration
	MaxRetries     int
	RetryDelayBase time.Duration
	IdentityField  string
	MaxBodyBytes   int64 // 0 means 64 MiB
}

// Client loads and decodes GeoJSON datasets
type Client struct {
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
	identityField  string
	maxBodyBytes   int64
	cache          DatasetCache
}

// NewClient creates a new dataset loader. cache may be nil.
func NewClient(cfg ClientConfig, cache DatasetCache) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelayBase <= 0 {
		cfg.RetryDelayBase = time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		maxRetries:     cfg.MaxRetries,
		retryDelayBase: cfg.RetryDelayBase,
		identityField:  cfg.IdentityField,
		maxBodyBytes:   cfg.MaxBodyBytes,
		cache:          cache,
	}
}

// Load fetches and decodes the dataset at source. Any failure is returned as a
// *models.DataLoadError; the caller must not initialize the view in that case.
func (c *Client) Load(ctx context.Context, source string) (*models.FeatureCollection, error) {
	body, err := c.fetch(ctx, source)
	fromCache := false
	if err != nil {
		cached, cacheErr := c.fromCache(ctx, source)
		if cacheErr != nil {
			return nil, &models.DataLoadError{Source: source, Stage: "fetch", Err: err}
		}
		logger.Warn("Fetching %s failed (%v), using cached copy from %s", source, err, cached.FetchedAt.Format(time.RFC3339))
		body = cached.Body
		fromCache = true
	}

	fc, err := Decode(source, body, c.identityField)
	if err != nil {
		return nil, err
	}

	if c.cache != nil && !fromCache && isRemote(source) {
		if _, err := c.cache.SaveDataset(ctx, source, body, len(fc.Features)); err != nil {
			logger.Warn("Failed to cache dataset from %s: %v", source, err)
		}
	}

	logger.Info("Loaded %d features from %s", len(fc.Features), source)
	return fc, nil
}

func (c *Client) fromCache(ctx context.Context, source string) (*models.Dataset, error) {
	if c.cache == nil {
		return nil, errors.New("no dataset cache configured")
	}
	return c.cache.LatestDataset(ctx, source)
}

func isRemote(source string) bool {
	return strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://")
}

// fetch reads the raw body of source.
func (c *Client) fetch(ctx context.Context, source string) ([]byte, error) {
	if isRemote(source) {
		return c.doRequest(ctx, source)
	}

	path := source
	if strings.HasPrefix(source, "file://") {
		u, err := url.Parse(source)
		if err != nil {
			return nil, fmt.Errorf("invalid file URL: %w", err)
		}
		path = u.Path
	}
	body, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read dataset file: %w", err)
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, c.maxBodyBytes)
	}
	return body, nil
}

// doRequest performs HTTP request with retry logic. 5xx responses and transport
// errors are retried; 4xx responses fail immediately.
func (c *Client) doRequest(ctx context.Context, rawURL string) ([]byte, error) {
	var lastErr error

	for i := 0; i < c.maxRetries; i++ {
		if i > 0 {
			delay := c.retryDelayBase * time.Duration(i)
			logger.Debug("Retrying %s in %v (attempt %d/%d)", rawURL, delay, i+1, c.maxRetries)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/geo+json, application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("server error: %d", resp.StatusCode)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
		}

		body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read body: %w", err)
			continue
		}
		if int64(len(body)) > c.maxBodyBytes {
			return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, c.maxBodyBytes)
		}
		return body, nil
	}

	return nil, fmt.Errorf("max retries exceeded: %w", lastErr)
}
