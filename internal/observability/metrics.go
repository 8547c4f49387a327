package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MutationMetrics holds custom metrics for nested create mutations
type MutationMetrics struct {
	requestDuration metric.Float64Histogram
	requestCounter  metric.Int64Counter
	insertCounter   metric.Int64Counter
	rollbackCounter metric.Int64Counter
	policyDenials   metric.Int64Counter
	treeDepth       metric.Int64Histogram
}

// InitMutationMetrics initializes mutation-specific metrics
func InitMutationMetrics() (*MutationMetrics, error) {
	meter := otel.Meter("nestql")

	requestDuration, err := meter.Float64Histogram(
		"mutation.request.duration",
		metric.WithDescription("Duration of create mutation requests in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request duration histogram: %w", err)
	}

	requestCounter, err := meter.Int64Counter(
		"mutation.requests.total",
		metric.WithDescription("Total number of create mutation requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request counter: %w", err)
	}

	insertCounter, err := meter.Int64Counter(
		"mutation.inserts.total",
		metric.WithDescription("Total number of rows inserted by create mutations"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create insert counter: %w", err)
	}

	rollbackCounter, err := meter.Int64Counter(
		"mutation.rollbacks.total",
		metric.WithDescription("Total number of rolled back create mutation requests"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rollback counter: %w", err)
	}

	policyDenials, err := meter.Int64Counter(
		"mutation.policy_denials.total",
		metric.WithDescription("Total number of create policy denials"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create policy denial counter: %w", err)
	}

	treeDepth, err := meter.Int64Histogram(
		"mutation.tree.depth",
		metric.WithDescription("Nesting depth of create mutation input trees"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create tree depth histogram: %w", err)
	}

	return &MutationMetrics{
		requestDuration: requestDuration,
		requestCounter:  requestCounter,
		insertCounter:   insertCounter,
		rollbackCounter: rollbackCounter,
		policyDenials:   policyDenials,
		treeDepth:       treeDepth,
	}, nil
}

// RecordRequest records one mutation request with its duration and outcome
func (m *MutationMetrics) RecordRequest(ctx context.Context, entity string, duration time.Duration, failed bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("entity", entity),
		attribute.Bool("failed", failed),
	)
	m.requestCounter.Add(ctx, 1, attrs)
	m.requestDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordInserts records rows inserted for a committed request
func (m *MutationMetrics) RecordInserts(ctx context.Context, entity string, count int64) {
	if m == nil {
		return
	}
	m.insertCounter.Add(ctx, count, metric.WithAttributes(attribute.String("entity", entity)))
}

// RecordRollback records a rolled back request
func (m *MutationMetrics) RecordRollback(ctx context.Context, entity string) {
	if m == nil {
		return
	}
	m.rollbackCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("entity", entity)))
}

// RecordPolicyDenial records a create policy denial
func (m *MutationMetrics) RecordPolicyDenial(ctx context.Context, entity string) {
	if m == nil {
		return
	}
	m.policyDenials.Add(ctx, 1, metric.WithAttributes(attribute.String("entity", entity)))
}

// RecordTreeDepth records the nesting depth of a request's input tree
func (m *MutationMetrics) RecordTreeDepth(ctx context.Context, entity string, depth int64) {
	if m == nil {
		return
	}
	m.treeDepth.Record(ctx, depth, metric.WithAttributes(attribute.String("entity", entity)))
}
