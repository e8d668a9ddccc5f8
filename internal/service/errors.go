package service

import (
	"context"
	"errors"
	"time"

	appErr "github.com/xxxsen/mrag/internal/pkg/errors"
)

// classify tags err with kind, promoting deadline expiry to ErrTimeout.
func classify(kind error, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return appErr.Wrap(appErr.ErrTimeout, err)
	}
	return appErr.Wrap(kind, err)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}
