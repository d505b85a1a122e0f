package worker

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the worker's counters. With no meter provider installed the
// otel API no-ops, so recording is always safe.
type Metrics struct {
	turns        metric.Int64Counter
	turnFailures metric.Int64Counter
	itemsSaved   metric.Int64Counter
	resets       metric.Int64Counter
	promptTokens metric.Int64Counter
}

// NewMetrics registers the worker instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter("factura/worker")
	m := &Metrics{}

	var err error
	if m.turns, err = meter.Int64Counter("factura.turns",
		metric.WithDescription("Completed model turns")); err != nil {
		return nil, err
	}
	if m.turnFailures, err = meter.Int64Counter("factura.turn_failures",
		metric.WithDescription("Turns discarded by model or schema failures")); err != nil {
		return nil, err
	}
	if m.itemsSaved, err = meter.Int64Counter("factura.items_saved",
		metric.WithDescription("Pending items persisted to the catalog")); err != nil {
		return nil, err
	}
	if m.resets, err = meter.Int64Counter("factura.session_resets",
		metric.WithDescription("Sessions returned to idle")); err != nil {
		return nil, err
	}
	if m.promptTokens, err = meter.Int64Counter("factura.prompt_tokens",
		metric.WithDescription("Prompt tokens sent to the model")); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) recordTurn(ctx context.Context, valid bool) {
	m.turns.Add(ctx, 1, metric.WithAttributes(attribute.Bool("valid_invoice", valid)))
}

func (m *Metrics) recordTurnFailure(ctx context.Context, kind string) {
	m.turnFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind)))
}

func (m *Metrics) recordItemSaved(ctx context.Context, outcome string) {
	m.itemsSaved.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *Metrics) recordReset(ctx context.Context) {
	m.resets.Add(ctx, 1)
}

func (m *Metrics) recordPromptTokens(ctx context.Context, n int) {
	if n > 0 {
		m.promptTokens.Add(ctx, int64(n))
	}
}
