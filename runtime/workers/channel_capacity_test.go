package workers

import (
	"log/slog"
	"project-hub/observability"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestChannelCapacityWorker_Sample(t *testing.T) {
	req := require.New(t)
	reg := prometheus.NewRegistry()
	metrics := observability.NewMetrics(reg)

	// Given a queue holding two of four items and an object that is not a channel
	queue := make(chan int, 4)
	queue <- 1
	queue <- 2
	worker := NewChannelCapacityWorker(slog.Default(), []NamedChannel{
		{Name: "deliveries", Channel: queue},
		{Name: "bogus", Channel: 42},
	}, metrics, 0)

	// When sampling
	worker.Sample()

	// Then only the real channel is reported
	count, err := testutil.GatherAndCount(reg, "project_hub_queue_length", "project_hub_queue_capacity")
	req.NoError(err)
	req.Equal(2, count)
	req.Len(queue, 2)
}
