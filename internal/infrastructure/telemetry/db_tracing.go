package telemetry

import (
	"errors"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig holds configuration for database tracing.
type DBTracingConfig struct {
	Enabled         bool
	DBSystem        string        // default "postgresql"
	LogFullSQL      bool          // include bound variables; never in production
	SlowQueryThresh time.Duration // default 200ms
}

const (
	startedAtKey      = "telemetry:started_at"
	defaultSlowThresh = 200 * time.Millisecond
)

// RegisterDBTracing installs the otelgorm plugin on db and, after every
// statement, tags the active span with the table, rows affected and a
// slow_query marker.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	if !cfg.Enabled {
		logger.Debug("Database tracing disabled, skipping otelgorm registration")
		return nil
	}
	system := cfg.DBSystem
	if system == "" {
		system = "postgresql"
	}
	thresh := cfg.SlowQueryThresh
	if thresh <= 0 {
		thresh = defaultSlowThresh
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(system)}
	if !cfg.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	before := func(tx *gorm.DB) { tx.InstanceSet(startedAtKey, time.Now()) }
	after := func(tx *gorm.DB) { annotateStatement(tx, thresh) }

	cb := db.Callback()
	steps := []struct {
		name     string
		register func(string, func(*gorm.DB)) error
	}{
		{"create:before", cb.Create().Before("gorm:create").Register},
		{"query:before", cb.Query().Before("gorm:query").Register},
		{"update:before", cb.Update().Before("gorm:update").Register},
		{"delete:before", cb.Delete().Before("gorm:delete").Register},
		{"raw:before", cb.Raw().Before("gorm:raw").Register},
		{"row:before", cb.Row().Before("gorm:row").Register},
	}
	for _, s := range steps {
		if err := s.register("fee_tracing:"+s.name, before); err != nil {
			return err
		}
	}
	steps = []struct {
		name     string
		register func(string, func(*gorm.DB)) error
	}{
		{"create:after", cb.Create().After("gorm:create").Register},
		{"query:after", cb.Query().After("gorm:query").Register},
		{"update:after", cb.Update().After("gorm:update").Register},
		{"delete:after", cb.Delete().After("gorm:delete").Register},
		{"raw:after", cb.Raw().After("gorm:raw").Register},
		{"row:after", cb.Row().After("gorm:row").Register},
	}
	for _, s := range steps {
		if err := s.register("fee_tracing:"+s.name, after); err != nil {
			return err
		}
	}

	logger.Info("Database tracing enabled",
		zap.String("db_system", system),
		zap.Bool("log_full_sql", cfg.LogFullSQL),
		zap.Duration("slow_query_threshold", thresh))
	return nil
}

func annotateStatement(tx *gorm.DB, thresh time.Duration) {
	if tx.Statement == nil || tx.Statement.Context == nil {
		return
	}
	span := trace.SpanFromContext(tx.Statement.Context)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(attribute.Int64("db.rows_affected", tx.Statement.RowsAffected))
	if tx.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", tx.Statement.Table))
	}
	if tx.Error != nil && !errors.Is(tx.Error, gorm.ErrRecordNotFound) {
		RecordError(span, tx.Error)
	}
	v, ok := tx.InstanceGet(startedAtKey)
	if !ok {
		return
	}
	started, ok := v.(time.Time)
	if !ok {
		return
	}
	if elapsed := time.Since(started); elapsed > thresh {
		span.SetAttributes(
			attribute.Bool("db.slow_query", true),
			attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
		)
	}
}
