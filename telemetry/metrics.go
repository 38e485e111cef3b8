package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "github.com/warp/incentive-engine"

// Recorder owns the service counters. A Recorder built from the noop
// provider is safe to use everywhere.
type Recorder struct {
	calculations   metric.Int64Counter
	transitions    metric.Int64Counter
	dailyLimitHits metric.Int64Counter
	imports        metric.Int64Counter
	validTasks     metric.Int64Counter
}

// NewNoopRecorder returns a Recorder that drops every measurement.
func NewNoopRecorder() *Recorder {
	r, err := NewRecorder(noop.NewMeterProvider())
	if err != nil {
		// The noop meter never fails to create instruments.
		panic(err)
	}
	return r
}

// NewRecorder creates the instruments on provider.
func NewRecorder(provider metric.MeterProvider) (*Recorder, error) {
	meter := provider.Meter(meterName)

	calculations, err := meter.Int64Counter(
		"incentive_calculations_total",
		metric.WithDescription("Compensation calculations by role branch and outcome"),
		metric.WithUnit("{calculation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating calculations counter: %w", err)
	}

	transitions, err := meter.Int64Counter(
		"incentive_launch_transitions_total",
		metric.WithDescription("Launch lifecycle transitions by action and resulting status"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating transitions counter: %w", err)
	}

	dailyLimitHits, err := meter.Int64Counter(
		"incentive_daily_limit_rejections_total",
		metric.WithDescription("Submissions refused because the worker already had a launch that day"),
		metric.WithUnit("{submission}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating daily limit counter: %w", err)
	}

	imports, err := meter.Int64Counter(
		"incentive_tasklog_imports_total",
		metric.WithDescription("Task log imports by parse status"),
		metric.WithUnit("{import}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating imports counter: %w", err)
	}

	validTasks, err := meter.Int64Counter(
		"incentive_valid_tasks_total",
		metric.WithDescription("Valid tasks counted from task log imports"),
		metric.WithUnit("{task}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating valid tasks counter: %w", err)
	}

	return &Recorder{
		calculations:   calculations,
		transitions:    transitions,
		dailyLimitHits: dailyLimitHits,
		imports:        imports,
		validTasks:     validTasks,
	}, nil
}

// RecordCalculation counts one calculation. outcome is "ok" or an error class.
func (r *Recorder) RecordCalculation(ctx context.Context, branch, outcome string) {
	r.calculations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("branch", branch),
		attribute.String("outcome", outcome),
	))
}

// RecordTransition counts one lifecycle transition.
func (r *Recorder) RecordTransition(ctx context.Context, action, status string) {
	r.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("action", action),
		attribute.String("status", status),
	))
}

// RecordDailyLimitRejection counts one refused submission.
func (r *Recorder) RecordDailyLimitRejection(ctx context.Context) {
	r.dailyLimitHits.Add(ctx, 1)
}

// RecordImport counts one task log import and the valid tasks found in it.
func (r *Recorder) RecordImport(ctx context.Context, status string, validTasks int) {
	r.imports.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	if validTasks > 0 {
		r.validTasks.Add(ctx, int64(validTasks))
	}
}
