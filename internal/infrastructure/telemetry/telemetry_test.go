package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type tracedRow struct {
	ID   uint   `gorm:"primaryKey"`
	Name string `gorm:"size:100"`
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedRow{}))
	return db
}

// useRecorder installs a recording tracer provider as the global one for the
// duration of the test.
func useRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestNewProviders_Disabled(t *testing.T) {
	p, err := NewProviders(context.Background(), Config{Enabled: false, ServiceName: "fee-ledger"}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, p.Enabled())
	assert.NotNil(t, p.Tracer("x"))
	assert.NotNil(t, p.Meter("x"))
	assert.False(t, p.ZapCore(zapcore.InfoLevel).Enabled(zapcore.ErrorLevel))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOnSampler")
	assert.Equal(t, "AlwaysOffSampler", sampler(0).Description())
	assert.Contains(t, sampler(0.25).Description(), "TraceIDRatioBased{0.25}")
}

func TestStartServiceSpan(t *testing.T) {
	recorder := useRecorder(t)

	_, span := StartServiceSpan(context.Background(), "settlement", "settle_due",
		SpanAttrPeriod, "March 2026", "records", 2)
	End(span, nil)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "settlement.settle_due", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	v, ok := spanAttr(spans[0], SpanAttrPeriod)
	require.True(t, ok)
	assert.Equal(t, "March 2026", v.AsString())
	v, ok = spanAttr(spans[0], "records")
	require.True(t, ok)
	assert.Equal(t, int64(2), v.AsInt64())
}

func TestEnd_RecordsError(t *testing.T) {
	recorder := useRecorder(t)

	ctx, span := StartServiceSpan(context.Background(), "report", "tracking")
	assert.NotEmpty(t, GetTraceID(ctx))
	End(span, errors.New("boom"))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
}

func TestGetTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, GetTraceID(context.Background()))
}

func TestSettlementMetrics(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(ctx) }()

	m, err := NewSettlementMetrics(provider.Meter("test"))
	require.NoError(t, err)

	m.RecordSettled(ctx, fee.ChannelCounter, fee.OrderKindBatch, 2, decimal.NewFromInt(150))
	m.RecordSettled(ctx, fee.ChannelGateway, fee.OrderKindDue, 1, decimal.NewFromInt(1000))
	m.RecordRejected(ctx, "already_settled")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	sums := map[string]int64{}
	var amount float64
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			switch data := md.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					sums[md.Name] += dp.Value
				}
			case metricdata.Sum[float64]:
				for _, dp := range data.DataPoints {
					amount += dp.Value
				}
			}
		}
	}
	assert.Equal(t, int64(2), sums["fee_settlements_total"])
	assert.Equal(t, int64(3), sums["fee_settled_records_total"])
	assert.Equal(t, int64(1), sums["fee_settlement_rejections_total"])
	assert.InDelta(t, 1150.0, amount, 0.001)
}

func TestRegisterDBTracing(t *testing.T) {
	t.Run("disabled leaves the db untouched", func(t *testing.T) {
		db := setupTestDB(t)
		require.NoError(t, RegisterDBTracing(db, DBTracingConfig{Enabled: false}, nil))
		_, ok := db.Plugins["otelgorm"]
		assert.False(t, ok)
	})

	t.Run("enabled emits a span per statement", func(t *testing.T) {
		recorder := useRecorder(t)
		db := setupTestDB(t)
		require.NoError(t, RegisterDBTracing(db, DBTracingConfig{Enabled: true, DBSystem: "sqlite"}, zap.NewNop()))

		require.NoError(t, db.WithContext(context.Background()).Create(&tracedRow{Name: "a"}).Error)
		assert.NotEmpty(t, recorder.Ended())
	})
}

func TestAnnotateStatement(t *testing.T) {
	recorder := useRecorder(t)
	db := setupTestDB(t)

	t.Run("tags rows and slow queries", func(t *testing.T) {
		ctx, span := otel.Tracer("test").Start(context.Background(), "parent")
		tx := db.WithContext(ctx).Create(&tracedRow{Name: "slow"})
		require.NoError(t, tx.Error)
		tx.InstanceSet(startedAtKey, time.Now().Add(-time.Second))

		annotateStatement(tx, time.Millisecond)
		span.End()

		spans := recorder.Ended()
		parent := spans[len(spans)-1]
		v, ok := spanAttr(parent, "db.slow_query")
		require.True(t, ok)
		assert.True(t, v.AsBool())
		v, ok = spanAttr(parent, "db.rows_affected")
		require.True(t, ok)
		assert.Equal(t, int64(1), v.AsInt64())
	})

	t.Run("record not found is not an error", func(t *testing.T) {
		ctx, span := otel.Tracer("test").Start(context.Background(), "lookup")
		var row tracedRow
		tx := db.WithContext(ctx).First(&row, 99999)
		require.ErrorIs(t, tx.Error, gorm.ErrRecordNotFound)

		annotateStatement(tx, time.Second)
		span.End()

		spans := recorder.Ended()
		assert.NotEqual(t, codes.Error, spans[len(spans)-1].Status().Code)
	})
}
