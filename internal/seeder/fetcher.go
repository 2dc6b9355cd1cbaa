package seeder

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/sirupsen/logrus"
)

const userAgent = "CourseBot-Seeder/1.0"

// Fetcher loads raw course data from a local file or an http(s) URL.
type Fetcher struct {
	timeout time.Duration
	logger  *logrus.Logger
}

func NewFetcher(timeout time.Duration, logger *logrus.Logger) *Fetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Fetcher{timeout: timeout, logger: logger}
}

// Fetch returns the bytes behind source.
func (f *Fetcher) Fetch(ctx context.Context, source string) ([]byte, error) {
	if isURL(source) {
		return f.fetchURL(ctx, source)
	}

	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read course data %s: %w", source, err)
	}
	f.logger.WithFields(logrus.Fields{"source": source, "bytes": len(data)}).Info("Loaded course data file")
	return data, nil
}

func (f *Fetcher) fetchURL(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c := colly.NewCollector(colly.UserAgent(userAgent))
	c.SetRequestTimeout(f.timeout)

	var (
		body     []byte
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("HTTP %d: %w", r.StatusCode, err)
	})

	if err := c.Visit(url); err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	c.Wait()

	if fetchErr != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, fetchErr)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("empty response from %s", url)
	}

	f.logger.WithFields(logrus.Fields{"source": url, "bytes": len(body)}).Info("Fetched course data")
	return body, nil
}

func isURL(source string) bool {
	lower := strings.ToLower(source)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}
