package metrics

import "github.com/prometheus/client_golang/prometheus"

// TaskMetrics tracks the in-process task dispatcher.
type TaskMetrics struct {
	queued   prometheus.Gauge
	running  prometheus.Gauge
	finished *prometheus.CounterVec
	rejected *prometheus.CounterVec
}

// NewTaskMetrics registers the dispatcher metrics on the provided registerer.
func NewTaskMetrics(reg prometheus.Registerer) *TaskMetrics {
	if reg == nil {
		return &TaskMetrics{}
	}
	queued := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "task_queue_depth",
		Help: "Tasks waiting for a worker.",
	})
	running := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "task_running",
		Help: "Tasks currently executing.",
	})
	finished := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "task_finished_total",
		Help: "Finished tasks by name and result.",
	}, []string{"task", "result"})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "task_rejected_total",
		Help: "Tasks refused at submit time by reason.",
	}, []string{"reason"})
	reg.MustRegister(queued, running, finished, rejected)
	return &TaskMetrics{
		queued:   queued,
		running:  running,
		finished: finished,
		rejected: rejected,
	}
}

func (m *TaskMetrics) Enqueued() {
	if m == nil || m.queued == nil {
		return
	}
	m.queued.Inc()
}

func (m *TaskMetrics) Started() {
	if m == nil || m.queued == nil {
		return
	}
	m.queued.Dec()
	m.running.Inc()
}

func (m *TaskMetrics) Dropped() {
	if m == nil || m.queued == nil {
		return
	}
	m.queued.Dec()
}

func (m *TaskMetrics) Finished(task, result string) {
	if m == nil || m.finished == nil {
		return
	}
	m.running.Dec()
	m.finished.WithLabelValues(normalizeLabel(task), normalizeLabel(result)).Inc()
}

func (m *TaskMetrics) Rejected(reason string) {
	if m == nil || m.rejected == nil {
		return
	}
	m.rejected.WithLabelValues(normalizeLabel(reason)).Inc()
}
