package logger

import (
	"context"
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// EnvVar selects the environment, "dev" gets human readable logs
const EnvVar = "ALLOC_ENV"

func New() *zap.SugaredLogger {
	var (
		logger *zap.Logger
		err    error
	)
	opts := []zap.Option{
		zap.AddStacktrace(zap.ErrorLevel),
	}

	if strings.ToLower(os.Getenv(EnvVar)) == "dev" {
		logger, err = zap.NewDevelopment(opts...)
	} else {
		opts = append(opts, zap.Fields(zap.Field{
			Key:    EnvVar,
			Type:   zapcore.StringType,
			String: os.Getenv(EnvVar),
		}))
		logger, err = zap.NewProduction(opts...)
	}

	if err != nil {
		panic(fmt.Errorf("failed to initialize logger: %w", err))
	}

	return logger.Sugar()
}

type contextKey struct{}

var ContextKey = contextKey{}

func WithLogger(ctx context.Context, logger *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, ContextKey, logger)
}

// FromContext returns the request logger, or the global one if ctx
// doesn't carry any
func FromContext(ctx context.Context) *zap.SugaredLogger {
	logger, ok := ctx.Value(ContextKey).(*zap.SugaredLogger)
	if !ok || logger == nil {
		return zap.S()
	}
	return logger
}

func init() {
	logger := New()
	zap.ReplaceGlobals(logger.Desugar())
}
