// Package source fetches dataset and geometry documents from HTTP(S) URLs or local files.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/rewired-gh/electionmap/internal/logger"
	"github.com/rewired-gh/electionmap/internal/models"
)

// MaxBodySize caps how much of a response is read.
const MaxBodySize = 64 << 20

var tracer = otel.Tracer("github.com/rewired-gh/electionmap/internal/source")

// Client fetches raw documents. HTTP transport failures and 5xx responses are retried
// with exponential backoff; everything else fails immediately.
type Client struct {
	httpClient     *http.Client
	maxRetries     int
	retryDelayBase time.Duration
}

// NewClient creates a fetch client. maxRetries counts attempts after the first.
func NewClient(timeout time.Duration, maxRetries int, retryDelayBase time.Duration) *Client {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		httpClient:     &http.Client{Timeout: timeout},
		maxRetries:     maxRetries,
		retryDelayBase: retryDelayBase,
	}
}

// Fetch returns the document at src. Any failure is a FetchError.
func (c *Client) Fetch(ctx context.Context, src string) ([]byte, error) {
	ctx, span := tracer.Start(ctx, "source.Fetch", trace.WithAttributes(attribute.String("source", src)))
	defer span.End()

	body, err := c.fetch(ctx, src)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("bytes", len(body)))
	return body, nil
}

func (c *Client) fetch(ctx context.Context, src string) ([]byte, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, models.NewFetchError("", "No data file path provided", nil)
	}
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return c.fetchHTTP(ctx, src)
	}
	return readFile(strings.TrimPrefix(src, "file://"))
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, models.NewFetchError("", "Failed to fetch data: Not Found", err)
		}
		return nil, models.NewFetchError("", "Failed to fetch data", err)
	}
	return data, nil
}

func (c *Client) fetchHTTP(ctx context.Context, url string) ([]byte, error) {
	b := backoff.NewExponentialBackOff()
	if c.retryDelayBase > 0 {
		b.InitialInterval = c.retryDelayBase
	}
	attempt := 0
	op := func() ([]byte, error) {
		attempt++
		body, err := c.get(ctx, url)
		if err != nil && !errors.As(err, new(*backoff.PermanentError)) {
			logger.Warn("Fetch attempt %d for %s failed: %v", attempt, url, err)
		}
		return body, err
	}
	body, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(c.maxRetries+1)),
	)
	if err != nil {
		var fe *models.Error
		if errors.As(err, &fe) {
			return nil, fe
		}
		return nil, models.NewFetchError("", "Failed to fetch data", err)
	}
	return body, nil
}

// get performs one request. Client errors are wrapped as permanent so they are not retried.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, backoff.Permanent(models.NewFetchError("", "Failed to fetch data", err))
	}
	req.Header.Set("Accept", "text/csv, application/json, */*")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, backoff.Permanent(models.NewFetchError("", "Failed to fetch data", ctx.Err()))
		}
		return nil, models.NewFetchError("", "Failed to fetch data", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fe := models.NewFetchError("", "Failed to fetch data: "+statusText(resp), nil)
		if resp.StatusCode >= 500 {
			return nil, fe
		}
		return nil, backoff.Permanent(fe)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return nil, models.NewFetchError("", "Failed to read response body", err)
	}
	if len(body) > MaxBodySize {
		return nil, backoff.Permanent(models.NewFetchError("", fmt.Sprintf("response exceeds %d bytes", MaxBodySize), nil))
	}
	return body, nil
}

func statusText(resp *http.Response) string {
	if text := http.StatusText(resp.StatusCode); text != "" {
		return text
	}
	return resp.Status
}
