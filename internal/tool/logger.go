package tool

import (
	"context"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

const maxLoggedResult = 100

// LogToolCall runs fn and logs its start, end and failure under name. The
// logged result is cut to the first 100 characters.
func LogToolCall(ctx context.Context, name string, args string, fn func(ctx context.Context) (string, error)) (string, error) {
	logger := logutil.GetLogger(ctx).With(zap.String("tool", name))
	logger.Info("[TOOL START] "+name, zap.String("args", args))
	start := time.Now()
	out, err := fn(ctx)
	if err != nil {
		logger.Error("[TOOL ERROR] "+name, zap.Duration("cost", time.Since(start)), zap.Error(err))
		return "", err
	}
	logger.Info("[TOOL END] "+name, zap.String("result", summarize(out)), zap.Duration("cost", time.Since(start)))
	return out, nil
}

func summarize(s string) string {
	runes := []rune(s)
	if len(runes) <= maxLoggedResult {
		return s
	}
	return string(runes[:maxLoggedResult]) + " (truncated)"
}
