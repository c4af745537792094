// Package fetcher downloads the source CSV files over HTTP.
package fetcher

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"
)

// Payload is the result of a successful download.
type Payload struct {
	URL        string
	StatusCode int
	Body       []byte
	SHA256     string
	Duration   time.Duration
}

// Fetcher downloads a URL and returns its payload.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Payload, error)
}

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// CollyFetcher implements Fetcher using the Colly collector.
type CollyFetcher struct {
	cfg           Config
	logger        *zap.Logger
	baseCollector *colly.Collector
}

// NewColly builds a CollyFetcher.
func NewColly(cfg Config, logger *zap.Logger) *CollyFetcher {
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())
	c.IgnoreRobotsTxt = true  // fixed public download URLs, not a crawl
	c.AllowURLRevisit = true  // re-runs fetch the same URL again

	return &CollyFetcher{
		cfg:           cfg,
		logger:        logger,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET using Colly. Non-2xx responses and
// transport failures are returned as errors; there is no retry.
func (f *CollyFetcher) Fetch(ctx context.Context, url string) (Payload, error) {
	var (
		result   Payload
		fetchErr error
	)
	start := time.Now()

	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	collector.OnResponse(func(r *colly.Response) {
		body := append([]byte(nil), r.Body...)
		sum := sha256.Sum256(body)
		result = Payload{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       body,
			SHA256:     hex.EncodeToString(sum[:]),
			Duration:   time.Since(start),
		}
	})

	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	f.logger.Info("Fetching dataset", zap.String("url", url))

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return Payload{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return Payload{}, fmt.Errorf("fetch %s: %w", url, err)
		}
		if fetchErr != nil {
			return Payload{}, fmt.Errorf("fetch %s: %w", url, fetchErr)
		}
	}

	f.logger.Info("Dataset fetched",
		zap.String("url", url),
		zap.Int("status", result.StatusCode),
		zap.Int("bytes", len(result.Body)),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
}
