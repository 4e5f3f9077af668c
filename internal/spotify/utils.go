package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	spotifyapi "github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
)

// ErrNotFound is returned when the upstream has no record for an id.
var ErrNotFound = errors.New("catalog record not found")

// StatusError carries a non-success upstream status.
type StatusError struct {
	Op     string
	Status int
	Err    error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: upstream status %d: %v", e.Op, e.Status, e.Err)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}

func statusOf(err error) int {
	var apiErr spotifyapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	var apiErrPtr *spotifyapi.Error
	if errors.As(err, &apiErrPtr) && apiErrPtr != nil {
		return apiErrPtr.Status
	}
	return 0
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// call runs one upstream request with throttling and the retry policy:
// transport failures and 5xx retry with linear backoff, 429 waits out the
// rate-limit window, 404 maps to ErrNotFound, other 4xx fail at once.
func call[T any](ctx context.Context, c *Client, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := range maxRetries {
		if attempt > 0 {
			waitTime := time.Duration(attempt) * c.backoffUnit
			logger.Info("Retrying request",
				zap.String("op", op),
				zap.Int("attempt", attempt+1),
				zap.Duration("waitTime", waitTime))
			if err := sleepCtx(ctx, waitTime); err != nil {
				return zero, err
			}
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return zero, fmt.Errorf("%s: rate limiter: %w", op, err)
		}

		result, err := fn(ctx)
		c.observe(op, err)
		if err == nil {
			return result, nil
		}
		if ctx.Err() != nil {
			return zero, ctx.Err()
		}

		status := statusOf(err)
		switch {
		case status == http.StatusNotFound:
			return zero, fmt.Errorf("%s: %w", op, ErrNotFound)
		case status == http.StatusTooManyRequests:
			logger.Warn("Rate limited by Spotify",
				zap.String("op", op),
				zap.Duration("pause", c.rateLimitPause))
			lastErr = &StatusError{Op: op, Status: status, Err: err}
			if err := sleepCtx(ctx, c.rateLimitPause); err != nil {
				return zero, err
			}
		case status >= 500:
			logger.Error("Error response from Spotify server",
				zap.String("op", op),
				zap.Int("statusCode", status))
			lastErr = &StatusError{Op: op, Status: status, Err: err}
		case status >= 400:
			return zero, &StatusError{Op: op, Status: status, Err: err}
		default:
			logger.Error("Error making request", zap.String("op", op), zap.Error(err))
			lastErr = err
		}
	}

	logger.Error("All Spotify request attempts failed",
		zap.String("op", op),
		zap.Int("attempts", maxRetries),
		zap.Error(lastErr))
	return zero, fmt.Errorf("%s: all %d attempts failed: %w", op, maxRetries, lastErr)
}
