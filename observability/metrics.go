package observability

import (
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/process"
)

const namespace = "project_hub"

// Metrics groups the counters of the realtime layer.
// A nil *Metrics is valid and records nothing, which keeps tests free of registries.
type Metrics struct {
	eventsEnqueued  *prometheus.CounterVec
	eventsDropped   *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
	jobs            *prometheus.CounterVec
	handlerDuration *prometheus.HistogramVec
	queueLength     *prometheus.GaugeVec
	queueCapacity   *prometheus.GaugeVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_enqueued_total",
			Help:      "Events accepted by the broadcaster, by target type.",
		}, []string{"target"}),
		eventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Events that reached no connection, by reason.",
		}, []string{"reason"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Per-connection delivery attempts, by result.",
		}, []string{"result"}),
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Delayed job transitions and outcomes.",
		}, []string{"kind", "outcome"}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_handler_duration_seconds",
			Help:      "Time spent in job handlers.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
		queueLength: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Items waiting in an internal queue.",
		}, []string{"queue"}),
		queueCapacity: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_capacity",
			Help:      "Capacity of an internal queue.",
		}, []string{"queue"}),
	}
	reg.MustRegister(m.eventsEnqueued, m.eventsDropped, m.deliveries, m.jobs, m.handlerDuration,
		m.queueLength, m.queueCapacity)
	return m
}

// RegisterConnectionGauge exposes the number of live connections.
func RegisterConnectionGauge(reg prometheus.Registerer, count func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "connections",
		Help:      "Users with a live realtime connection.",
	}, func() float64 { return float64(count()) }))
}

// RegisterProcessGauge exposes the resident memory of this process.
func RegisterProcessGauge(reg prometheus.Registerer) error {
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "process_rss_bytes",
		Help:      "Resident set size reported by the OS.",
	}, func() float64 {
		mem, err := p.MemoryInfo()
		if err != nil {
			return 0
		}
		return float64(mem.RSS)
	}))
	return nil
}

func (m *Metrics) EventEnqueued(target string) {
	if m == nil {
		return
	}
	m.eventsEnqueued.WithLabelValues(target).Inc()
}

func (m *Metrics) EventDropped(reason string) {
	if m == nil {
		return
	}
	m.eventsDropped.WithLabelValues(reason).Inc()
}

func (m *Metrics) Delivery(result string) {
	if m == nil {
		return
	}
	m.deliveries.WithLabelValues(result).Inc()
}

func (m *Metrics) Job(kind, outcome string) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) HandlerDuration(kind string, d time.Duration) {
	if m == nil {
		return
	}
	m.handlerDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (m *Metrics) QueueDepth(queue string, length, capacity int) {
	if m == nil {
		return
	}
	m.queueLength.WithLabelValues(queue).Set(float64(length))
	m.queueCapacity.WithLabelValues(queue).Set(float64(capacity))
}
