package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool // include query variables; never in production
	SlowQueryThresh time.Duration
	DBSystem        string
}

// DefaultDBTracingConfig returns default configuration for database tracing
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

type queryStartKey struct{}

// RegisterDBTracing installs the otelgorm plugin plus callbacks that flag slow
// queries on the active span
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if !cfg.Enabled {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SlowQueryThresh <= 0 {
		cfg.SlowQueryThresh = DefaultDBTracingConfig().SlowQueryThresh
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(cfg.DBSystem)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, queryStartKey{}, time.Now())
		}
	}
	after := func(tx *gorm.DB) { flagSlowQuery(tx, cfg.SlowQueryThresh) }

	if err := registerTimingCallbacks(db, before, after); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThresh),
	)
	return nil
}

func flagSlowQuery(tx *gorm.DB, threshold time.Duration) {
	ctx := tx.Statement.Context
	if ctx == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		RecordError(span, tx.Error)
	}
	start, ok := ctx.Value(queryStartKey{}).(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(start); elapsed > threshold {
		span.SetAttributes(attribute.Bool("db.slow_query", true))
		span.AddEvent("slow_query_warning", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", threshold.Milliseconds()),
		))
	}
}

func registerTimingCallbacks(db *gorm.DB, before, after func(*gorm.DB)) error {
	cb := db.Callback()
	steps := []func() error{
		func() error { return cb.Create().Before("gorm:create").Register("ledger_timing:before_create", before) },
		func() error { return cb.Create().After("gorm:create").Register("ledger_timing:after_create", after) },
		func() error { return cb.Query().Before("gorm:query").Register("ledger_timing:before_query", before) },
		func() error { return cb.Query().After("gorm:query").Register("ledger_timing:after_query", after) },
		func() error { return cb.Update().Before("gorm:update").Register("ledger_timing:before_update", before) },
		func() error { return cb.Update().After("gorm:update").Register("ledger_timing:after_update", after) },
		func() error { return cb.Delete().Before("gorm:delete").Register("ledger_timing:before_delete", before) },
		func() error { return cb.Delete().After("gorm:delete").Register("ledger_timing:after_delete", after) },
		func() error { return cb.Row().Before("gorm:row").Register("ledger_timing:before_row", before) },
		func() error { return cb.Row().After("gorm:row").Register("ledger_timing:after_row", after) },
		func() error { return cb.Raw().Before("gorm:raw").Register("ledger_timing:before_raw", before) },
		func() error { return cb.Raw().After("gorm:raw").Register("ledger_timing:after_raw", after) },
	}
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
