// Package runtime holds the realtime core (connections, rooms, broadcast) and
// the delayed job scheduler, and runs their workers under supervision.
package runtime

import (
	"context"
	"log/slog"
	"project-hub/contract"
	"project-hub/domain"
	"project-hub/observability"
	"project-hub/runtime/workers"
	"sync"
	"time"
)

type OrchestratorConfig struct {
	BufferSize      int
	NumberOfWorkers int
	PollInterval    time.Duration
	PollBatchSize   int
	MetricInterval  time.Duration
}

// Orchestrator owns the delivery queue and the background workers:
// one event fanout, NumberOfWorkers job pollers and a queue sampler.
type Orchestrator struct {
	mu         sync.Mutex
	log        *slog.Logger
	supervisor contract.ISupervisor
	registry   contract.IRegistry
	scheduler  contract.IScheduler
	metrics    *observability.Metrics
	deliveries chan domain.Delivery
	cfg        OrchestratorConfig
	started    bool
}

func NewOrchestrator(log *slog.Logger, supervisor contract.ISupervisor, registry contract.IRegistry,
	scheduler contract.IScheduler, metrics *observability.Metrics, cfg OrchestratorConfig) *Orchestrator {
	return &Orchestrator{
		log:        log,
		supervisor: supervisor,
		registry:   registry,
		scheduler:  scheduler,
		metrics:    metrics,
		deliveries: make(chan domain.Delivery, cfg.BufferSize),
		cfg:        cfg,
	}
}

// Broadcaster returns a broadcaster feeding this orchestrator's delivery queue.
func (o *Orchestrator) Broadcaster() *Broadcaster {
	return NewBroadcaster(o.log, o.registry, o.deliveries, o.metrics)
}

// Start registers every worker and blocks until the supervisor stops.
func (o *Orchestrator) Start(ctx context.Context) {
	o.mu.Lock()
	if o.started {
		o.mu.Unlock()
		o.log.Warn("Orchestrator already started")
		return
	}
	o.started = true
	o.supervisor.Add(workers.NewEventFanout(o.log, o.registry, o.deliveries, o.metrics))
	for i := 0; i < o.cfg.NumberOfWorkers; i++ {
		o.supervisor.Add(workers.NewJobPoller(o.log, o.scheduler, o.cfg.PollInterval, o.cfg.PollBatchSize))
	}
	if o.cfg.MetricInterval > 0 {
		o.supervisor.Add(workers.NewChannelCapacityWorker(o.log,
			[]workers.NamedChannel{{Name: "deliveries", Channel: o.deliveries}},
			o.metrics, o.cfg.MetricInterval))
	}
	o.mu.Unlock()

	o.log.Info("Starting orchestrator and all supervised workers",
		"job_pollers", o.cfg.NumberOfWorkers, "poll_interval", o.cfg.PollInterval)
	o.supervisor.Run(ctx)
}

// Stop cancels the supervised workers. Queued deliveries not yet fanned out are dropped.
func (o *Orchestrator) Stop() {
	o.log.Info("Requesting orchestrator shutdown")
	o.supervisor.Stop()
}
