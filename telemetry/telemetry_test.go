package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.uber.org/zap/zapcore"

	"github.com/warp/incentive-engine/telemetry"
)

func sumOf(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok, "metric %s has data %T", name, m.Data)
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func TestRecorder_CountsLifecycleAndImports(t *testing.T) {
	ctx := context.Background()
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(ctx) }()

	rec, err := telemetry.NewRecorder(provider)
	require.NoError(t, err)

	rec.RecordTransition(ctx, "submitted", "pending")
	rec.RecordTransition(ctx, "approved", "approved")
	rec.RecordDailyLimitRejection(ctx)
	rec.RecordCalculation(ctx, "task_count", "ok")
	rec.RecordImport(ctx, "repaired", 12)
	rec.RecordImport(ctx, "corrupted", 0)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	assert.EqualValues(t, 2, sumOf(t, rm, "incentive_launch_transitions_total"))
	assert.EqualValues(t, 1, sumOf(t, rm, "incentive_daily_limit_rejections_total"))
	assert.EqualValues(t, 1, sumOf(t, rm, "incentive_calculations_total"))
	assert.EqualValues(t, 2, sumOf(t, rm, "incentive_tasklog_imports_total"))
	assert.EqualValues(t, 12, sumOf(t, rm, "incentive_valid_tasks_total"))
}

func TestNoopRecorder(t *testing.T) {
	rec := telemetry.NewNoopRecorder()
	assert.NotPanics(t, func() {
		rec.RecordTransition(context.Background(), "approved", "approved")
		rec.RecordImport(context.Background(), "clean", 3)
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{"", zapcore.InfoLevel, false},
		{"debug", zapcore.DebugLevel, false},
		{" WARN ", zapcore.WarnLevel, false},
		{"loud", 0, true},
	}
	for _, tt := range tests {
		got, err := telemetry.ParseLevel(tt.in)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := telemetry.NewLogger("error")
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))

	_, err = telemetry.NewLogger("nope")
	assert.Error(t, err)
}
