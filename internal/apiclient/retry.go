package apiclient

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/pitabwire/crmconsole/internal/config"
	"github.com/pitabwire/crmconsole/model"
)

func isIdempotentRead(method string) bool {
	return method == http.MethodGet || method == http.MethodHead
}

// isRetryable reports whether a failed read may be attempted again:
// transport failures and gateway-class 5xx only.
func isRetryable(err error) bool {
	var e *model.Error
	if !errors.As(err, &e) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	switch e.Kind {
	case model.KindTransport:
		return true
	case model.KindServer:
		switch e.Status {
		case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
	}
	return false
}

// classifyTransport maps an error that produced no response to a timeout or
// transport error.
func classifyTransport(err error) *model.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return model.NewTimeoutError(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.NewTimeoutError(err)
	}
	return model.NewTransportError(err)
}

func calculateBackoff(cfg config.RetryConfig, attempt int) time.Duration {
	if cfg.BackoffInitial <= 0 {
		cfg.BackoffInitial = 100 * time.Millisecond
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = 2
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = 2 * time.Second
	}

	delay := cfg.BackoffInitial
	for i := 1; i < attempt; i++ {
		delay = time.Duration(float64(delay) * cfg.BackoffMultiplier)
		if delay > cfg.BackoffMax {
			return cfg.BackoffMax
		}
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
