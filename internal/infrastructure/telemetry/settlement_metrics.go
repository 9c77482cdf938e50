package telemetry

import (
	"context"
	"fmt"

	"github.com/feeledger/backend/internal/domain/fee"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
var (
	AttrChannel = attribute.Key("channel")
	AttrKind    = attribute.Key("kind")
	AttrReason  = attribute.Key("reason")
)

// SettlementMetrics counts settlements and rejected settlement attempts.
type SettlementMetrics struct {
	settlements metric.Int64Counter
	records     metric.Int64Counter
	amount      metric.Float64Counter
	rejections  metric.Int64Counter
}

// NewSettlementMetrics registers the settlement instruments on meter
func NewSettlementMetrics(meter metric.Meter) (*SettlementMetrics, error) {
	m := &SettlementMetrics{}
	var err error

	m.settlements, err = meter.Int64Counter("fee_settlements_total",
		metric.WithDescription("Settlement operations that marked records paid"),
		metric.WithUnit("{settlement}"))
	if err != nil {
		return nil, fmt.Errorf("fee_settlements_total: %w", err)
	}
	m.records, err = meter.Int64Counter("fee_settled_records_total",
		metric.WithDescription("Dues and charges marked paid"),
		metric.WithUnit("{record}"))
	if err != nil {
		return nil, fmt.Errorf("fee_settled_records_total: %w", err)
	}
	m.amount, err = meter.Float64Counter("fee_settled_amount_total",
		metric.WithDescription("Sum of settled amounts"))
	if err != nil {
		return nil, fmt.Errorf("fee_settled_amount_total: %w", err)
	}
	m.rejections, err = meter.Int64Counter("fee_settlement_rejections_total",
		metric.WithDescription("Settlement attempts refused"),
		metric.WithUnit("{attempt}"))
	if err != nil {
		return nil, fmt.Errorf("fee_settlement_rejections_total: %w", err)
	}
	return m, nil
}

// RecordSettled counts one successful settlement
func (m *SettlementMetrics) RecordSettled(ctx context.Context, channel fee.SettlementChannel, kind fee.OrderKind, records int, amount decimal.Decimal) {
	attrs := metric.WithAttributes(AttrChannel.String(string(channel)), AttrKind.String(string(kind)))
	m.settlements.Add(ctx, 1, attrs)
	m.records.Add(ctx, int64(records), attrs)
	m.amount.Add(ctx, amount.InexactFloat64(), attrs)
}

// RecordRejected counts one refused attempt
func (m *SettlementMetrics) RecordRejected(ctx context.Context, reason string) {
	m.rejections.Add(ctx, 1, metric.WithAttributes(AttrReason.String(reason)))
}
