package knowledge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   5 * time.Second,
	}
}

func (r RetryConfig) delay(attempt int) time.Duration {
	delay := time.Duration(float64(r.BaseDelay) * math.Pow(1.5, float64(attempt)))
	if r.MaxDelay > 0 && delay > r.MaxDelay {
		delay = r.MaxDelay
	}
	return delay
}

// AddWithRetry uploads documents, renaming the first document when the
// service reports a file name conflict.
func (c *Client) AddWithRetry(ctx context.Context, req AddRequest) error {
	attempt := 0
	return c.retryOperation(ctx, "add", func() error {
		attempt++
		err := c.AddDocuments(ctx, req)
		if err != nil && isNameConflict(err) && len(req.Documents) > 0 {
			originalName := req.Documents[0].FileName
			ext := ".txt"
			if idx := strings.LastIndex(originalName, "."); idx > 0 {
				ext = originalName[idx:]
			}
			newName := fmt.Sprintf("%s-retry%d-%s%s",
				strings.TrimSuffix(originalName, ext),
				attempt,
				time.Now().Format("150405"),
				ext)
			req.Documents[0].FileName = newName

			c.logger.WithFields(logrus.Fields{
				"old_name": originalName,
				"new_name": newName,
			}).Warn("File name conflict, renaming document")
		}
		return err
	})
}

func (c *Client) SearchWithRetry(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	var result *SearchResponse
	err := c.retryOperation(ctx, "search", func() error {
		var err error
		result, err = c.Search(ctx, req)
		return err
	})
	return result, err
}

func (c *Client) retryOperation(ctx context.Context, name string, operation func() error) error {
	config := c.retry

	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := operation()
		if err == nil {
			return nil
		}

		if !retryable(err) {
			return err
		}
		if attempt == config.MaxRetries {
			return fmt.Errorf("%s failed after %d retries: %w", name, config.MaxRetries, err)
		}

		delay := config.delay(attempt)
		c.logger.WithFields(logrus.Fields{
			"operation": name,
			"attempt":   attempt + 1,
			"delay":     delay,
			"error":     err.Error(),
		}).Warn("Retrying knowledge service operation")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil
}

// retryable treats transport errors, rate limits, server errors and name
// conflicts as transient. Encoding and decoding failures are not.
func retryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable() || isNameConflict(err)
	}
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
	}
	return false
}

func isNameConflict(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) && statusErr.Code == 409 {
		return true
	}
	return strings.Contains(err.Error(), "File name already exists")
}
