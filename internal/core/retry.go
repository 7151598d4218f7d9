package core

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/googleapis/gax-go/v2/apierror"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

// retryPolicy retries an operation a bounded number of times when the failure
// is transient. attempts counts the first try.
type retryPolicy struct {
	attempts int
	backoff  time.Duration
}

var defaultRetryPolicy = retryPolicy{attempts: 2, backoff: 750 * time.Millisecond}

func (p retryPolicy) run(ctx context.Context, op string, logger *zap.Logger, fn func(context.Context) error) error {
	attempts := p.attempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil || attempt == attempts || !isTransient(err) || ctx.Err() != nil {
			return err
		}

		logger.Warn("Transient model API failure, retrying",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Error(err))

		timer := time.NewTimer(p.backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

func isTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return transientStatus(gErr.Code)
	}
	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		return transientStatus(apiErr.HTTPCode())
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func transientStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}
