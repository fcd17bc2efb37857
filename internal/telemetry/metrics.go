package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/tallydash/tallygate"

// Instruments holds pre-created OTel metric instruments.
type Instruments struct {
	QueryCount      metric.Int64Counter
	QueryDuration   metric.Float64Histogram
	QueryErrors     metric.Int64Counter
	QueryRejections metric.Int64Counter
	ToolDuration    metric.Float64Histogram
}

// NewInstruments creates metric instruments from the global MeterProvider.
func NewInstruments() *Instruments {
	meter := otel.Meter(meterName)
	return newInstrumentsFromMeter(meter)
}

// NoopInstruments returns instruments that record nothing.
func NoopInstruments() *Instruments {
	meter := noop.NewMeterProvider().Meter(meterName)
	return newInstrumentsFromMeter(meter)
}

func newInstrumentsFromMeter(meter metric.Meter) *Instruments {
	// OTel SDK returns noop instruments on error; safe to discard.
	queryCount, _ := meter.Int64Counter("tallygate.query.count",
		metric.WithDescription("Total number of queries executed"),
	)
	queryDuration, _ := meter.Float64Histogram("tallygate.query.duration",
		metric.WithDescription("Query execution duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	queryErrors, _ := meter.Int64Counter("tallygate.query.errors",
		metric.WithDescription("Total number of failed queries"),
	)
	queryRejections, _ := meter.Int64Counter("tallygate.query.rejections",
		metric.WithDescription("Total number of queries rejected by validation, by violation kind"),
	)
	toolDuration, _ := meter.Float64Histogram("tallygate.tool.duration",
		metric.WithDescription("MCP tool call duration in milliseconds"),
		metric.WithUnit("ms"),
	)

	return &Instruments{
		QueryCount:      queryCount,
		QueryDuration:   queryDuration,
		QueryErrors:     queryErrors,
		QueryRejections: queryRejections,
		ToolDuration:    toolDuration,
	}
}

func (i *Instruments) RecordQueryDuration(ctx context.Context, ms float64) {
	i.QueryDuration.Record(ctx, ms)
}

func (i *Instruments) IncrementQueryCount(ctx context.Context) {
	i.QueryCount.Add(ctx, 1)
}

func (i *Instruments) IncrementQueryErrors(ctx context.Context) {
	i.QueryErrors.Add(ctx, 1)
}

func (i *Instruments) IncrementQueryRejections(ctx context.Context, kind string) {
	i.QueryRejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("violation", kind),
	))
}

func (i *Instruments) RecordToolDuration(ctx context.Context, ms float64) {
	i.ToolDuration.Record(ctx, ms)
}
