package database

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ecclesia-hub/admin-client/pkg/tracing"
)

const tracerName = "github.com/ecclesia-hub/admin-client/pkg/database"

type slowQueryLog struct {
	threshold time.Duration
	logger    *slog.Logger
}

// slowQueries is nil while slow query logging is off.
var slowQueries atomic.Pointer[slowQueryLog]

// SetSlowQueryLogging logs queries that take at least threshold at Warn.
// A zero threshold or a nil logger turns it off.
func SetSlowQueryLogging(threshold time.Duration, logger *slog.Logger) {
	if threshold <= 0 || logger == nil {
		slowQueries.Store(nil)
		return
	}
	slowQueries.Store(&slowQueryLog{threshold: threshold, logger: logger})
}

func getSlowQueryConfig() (time.Duration, *slog.Logger) {
	if cfg := slowQueries.Load(); cfg != nil {
		return cfg.threshold, cfg.logger
	}
	return 0, nil
}

// TraceQuery opens a client span for one statement against the credential
// tables and returns the func that closes it:
//
//	ctx, end := database.TraceQuery(ctx, "GetCredential", getSQL)
//	defer func() { end(err) }()
func TraceQuery(ctx context.Context, operation, statement string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := tracing.Tracer(tracerName).Start(ctx, "db."+operation,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", operation),
			attribute.String("db.statement", statement),
		),
	)

	return ctx, func(err error) {
		elapsed := time.Since(start)
		tracing.End(span, err)

		threshold, logger := getSlowQueryConfig()
		if logger == nil || elapsed < threshold {
			return
		}
		attrs := []any{
			slog.String("operation", operation),
			slog.String("statement", statement),
			slog.Duration("duration", elapsed),
		}
		if err != nil {
			attrs = append(attrs, slog.String("error", err.Error()))
		}
		logger.WarnContext(ctx, "slow credential query", attrs...)
	}
}
