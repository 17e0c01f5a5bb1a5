package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestObservability_RecordStage(t *testing.T) {
	reader := metric.NewManualReader()
	obs := newWithProvider(metric.NewMeterProvider(metric.WithReader(reader)), "test")
	defer obs.Shutdown()

	ctx := context.Background()
	obs.RecordStage(ctx, "extraction", "completed", 1500*time.Millisecond)
	obs.RecordStage(ctx, "provisioning", "failed", 20*time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))
	require.Len(t, rm.ScopeMetrics, 1)

	names := map[string]bool{}
	for _, m := range rm.ScopeMetrics[0].Metrics {
		names[m.Name] = true
		if m.Name == "receptionist.stage.completed" {
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			assert.Len(t, sum.DataPoints, 2)
		}
	}
	assert.True(t, names["receptionist.stage.completed"])
	assert.True(t, names["receptionist.stage.duration"])
}

func TestObservability_NilAndZeroValueAreSafe(t *testing.T) {
	var nilObs *Observability
	nilObs.RecordStage(context.Background(), "extraction", "completed", time.Second)
	nilObs.Shutdown()

	(&Observability{}).RecordStage(context.Background(), "extraction", "completed", time.Second)
	(&Observability{}).Shutdown()
}
