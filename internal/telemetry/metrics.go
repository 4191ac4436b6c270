package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	apimetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/rxtech-lab/argo-fleet/internal/types"
)

const meterName = "github.com/rxtech-lab/argo-fleet"

// Metrics holds the instruments recorded by workers and jobs.
// A nil *Metrics records nothing.
type Metrics struct {
	ticks        apimetric.Int64Counter
	tickErrors   apimetric.Int64Counter
	circuitOpens apimetric.Int64Counter
	orders       apimetric.Int64Counter
	riskDenials  apimetric.Int64Counter
	searchTrials apimetric.Int64Counter
	activeWorker apimetric.Int64UpDownCounter
}

// NewMetrics creates the instruments on provider.
func NewMetrics(provider apimetric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter(meterName)

	ticks, err := meter.Int64Counter("fleet.worker.ticks", apimetric.WithDescription("Completed worker loop iterations"))
	if err != nil {
		return nil, err
	}

	tickErrors, err := meter.Int64Counter("fleet.worker.errors", apimetric.WithDescription("Worker loop errors"))
	if err != nil {
		return nil, err
	}

	circuitOpens, err := meter.Int64Counter("fleet.circuit.opens", apimetric.WithDescription("Circuit breaker transitions to open"))
	if err != nil {
		return nil, err
	}

	orders, err := meter.Int64Counter("fleet.orders", apimetric.WithDescription("Orders submitted by workers"))
	if err != nil {
		return nil, err
	}

	riskDenials, err := meter.Int64Counter("fleet.risk.denials", apimetric.WithDescription("Entries denied by the risk gate"))
	if err != nil {
		return nil, err
	}

	searchTrials, err := meter.Int64Counter("fleet.search.trials", apimetric.WithDescription("Parameter search trials evaluated"))
	if err != nil {
		return nil, err
	}

	activeWorker, err := meter.Int64UpDownCounter("fleet.workers.active", apimetric.WithDescription("Running workers"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		ticks:        ticks,
		tickErrors:   tickErrors,
		circuitOpens: circuitOpens,
		orders:       orders,
		riskDenials:  riskDenials,
		searchTrials: searchTrials,
		activeWorker: activeWorker,
	}, nil
}

// NewNopMetrics returns instruments backed by the no-op provider.
func NewNopMetrics() *Metrics {
	m, _ := NewMetrics(noop.NewMeterProvider())

	return m
}

func workerAttrs(key types.WorkerKey, extra ...attribute.KeyValue) apimetric.MeasurementOption {
	attrs := append([]attribute.KeyValue{
		attribute.String("tenant", key.TenantID),
		attribute.String("config_id", key.ConfigID),
	}, extra...)

	return apimetric.WithAttributes(attrs...)
}

func (m *Metrics) RecordTick(ctx context.Context, key types.WorkerKey) {
	if m == nil {
		return
	}

	m.ticks.Add(ctx, 1, workerAttrs(key))
}

func (m *Metrics) RecordError(ctx context.Context, key types.WorkerKey, fatal bool) {
	if m == nil {
		return
	}

	m.tickErrors.Add(ctx, 1, workerAttrs(key, attribute.Bool("fatal", fatal)))
}

func (m *Metrics) RecordCircuitOpen(ctx context.Context, key types.WorkerKey) {
	if m == nil {
		return
	}

	m.circuitOpens.Add(ctx, 1, workerAttrs(key))
}

func (m *Metrics) RecordOrder(ctx context.Context, key types.WorkerKey, action types.TradeAction, ok bool) {
	if m == nil {
		return
	}

	m.orders.Add(ctx, 1, workerAttrs(key, attribute.String("action", string(action)), attribute.Bool("ok", ok)))
}

func (m *Metrics) RecordRiskDenial(ctx context.Context, key types.WorkerKey, reason string) {
	if m == nil {
		return
	}

	m.riskDenials.Add(ctx, 1, workerAttrs(key, attribute.String("reason", reason)))
}

func (m *Metrics) RecordSearchTrial(ctx context.Context, skipped bool) {
	if m == nil {
		return
	}

	m.searchTrials.Add(ctx, 1, apimetric.WithAttributes(attribute.Bool("skipped", skipped)))
}

func (m *Metrics) WorkerStarted(ctx context.Context) {
	if m == nil {
		return
	}

	m.activeWorker.Add(ctx, 1)
}

func (m *Metrics) WorkerStopped(ctx context.Context) {
	if m == nil {
		return
	}

	m.activeWorker.Add(ctx, -1)
}
