package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricDecisionsTotal = "changegate.decisions.total"
	metricStageDuration  = "changegate.stage.duration.seconds"
	metricErrorsTotal    = "changegate.errors.total"

	attrWorkflow = "workflow"
	attrFallback = "fallback"
	attrStage    = "stage"
	attrStatus   = "status"

	statusOK    = "ok"
	statusError = "error"
)

// stageBucketBoundaries covers 1ms to 60s; a decision run normally
// completes in well under a second against local history.
var stageBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// DecisionMetrics holds the instruments for decision outcomes and
// per-stage timings.
type DecisionMetrics struct {
	decisionsTotal metric.Int64Counter
	stageDuration  metric.Float64Histogram
	errorsTotal    metric.Int64Counter
}

// NewDecisionMetrics creates the decision instruments from the given meter.
func NewDecisionMetrics(mt metric.Meter) (*DecisionMetrics, error) {
	b := newMetricBuilder(mt)

	dm := &DecisionMetrics{
		decisionsTotal: b.counter(metricDecisionsTotal, "Total number of emitted pipeline decisions", "{decision}"),
		stageDuration:  b.histogram(metricStageDuration, "Driver stage duration in seconds", "s", stageBucketBoundaries...),
		errorsTotal:    b.counter(metricErrorsTotal, "Total number of stage errors", "{error}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return dm, nil
}

// RecordDecision records an emitted decision with its selected workflow
// and whether a degraded resolution strategy was used.
func (dm *DecisionMetrics) RecordDecision(ctx context.Context, workflow string, fallback bool) {
	dm.decisionsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrWorkflow, workflow),
		attribute.Bool(attrFallback, fallback),
	))
}

// RecordStage records a completed driver stage.
func (dm *DecisionMetrics) RecordStage(ctx context.Context, stage string, duration time.Duration, err error) {
	status := statusOK
	if err != nil {
		status = statusError

		dm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrStage, stage)))
	}

	dm.stageDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String(attrStage, stage),
		attribute.String(attrStatus, status),
	))
}
