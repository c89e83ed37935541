package postgres

import (
	"context"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pscheid92/charades/internal/adapter/metrics"
)

// MetricsTracer times every query into DatabaseMetrics, labelled by query name.
type MetricsTracer struct {
	metrics *metrics.DatabaseMetrics
}

var _ pgx.QueryTracer = (*MetricsTracer)(nil)

func NewMetricsTracer(m *metrics.DatabaseMetrics) *MetricsTracer {
	return &MetricsTracer{metrics: m}
}

type queryContextKey struct{}

type queryContext struct {
	startTime time.Time
	queryName string
}

func (t *MetricsTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	qctx := queryContext{startTime: time.Now(), queryName: extractQueryName(data.SQL)}
	return context.WithValue(ctx, queryContextKey{}, qctx)
}

func (t *MetricsTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	qctx, ok := ctx.Value(queryContextKey{}).(queryContext)
	if !ok {
		return
	}

	t.metrics.QueryDuration.WithLabelValues(qctx.queryName).Observe(time.Since(qctx.startTime).Seconds())
	if data.Err != nil {
		t.metrics.ErrorsTotal.WithLabelValues(qctx.queryName).Inc()
	}
}

// extractQueryName keeps label cardinality bounded. Queries in this package start with a
// "-- name: X" line; anything else is labelled by its leading keyword.
func extractQueryName(sql string) string {
	sql = strings.TrimSpace(sql)
	if rest, ok := strings.CutPrefix(sql, "-- name:"); ok {
		name, _, _ := strings.Cut(rest, "\n")
		if name = strings.TrimSpace(name); name != "" {
			return name
		}
	}

	keyword, _, _ := strings.Cut(sql, " ")
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	switch keyword {
	case "":
		return "unknown"
	case "select", "insert", "update", "delete", "with", "begin", "commit", "rollback":
		return keyword
	default:
		return "other"
	}
}
