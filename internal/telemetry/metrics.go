package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Fiberwise-AI/ia-chat-app/internal/engine"
)

var (
	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_pipeline_runs_total",
		Help: "Завершённые запуски pipeline по результату",
	}, []string{"pipeline", "status"})

	stepsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_pipeline_steps_total",
		Help: "Шаги pipeline по итоговому статусу",
	}, []string{"pipeline", "step", "status"})

	stepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chat_pipeline_step_duration_seconds",
		Help:    "Длительность выполнения шага pipeline",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"pipeline", "step"})

	wsClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "chat_ws_clients",
		Help: "Текущее число WebSocket-подключений",
	})
)

// WSClientConnected учитывает новое WebSocket-подключение.
func WSClientConnected() { wsClients.Inc() }

// WSClientDisconnected учитывает закрытие WebSocket-подключения.
func WSClientDisconnected() { wsClients.Dec() }

// MetricsObserver переводит события движка в метрики Prometheus.
//
// Длительность шага считается от step.dispatched до терминального
// события того же шага; учёт начатых шагов защищён мьютексом, потому
// что Observer может вызываться из разных горутин.
type MetricsObserver struct {
	mu      sync.Mutex
	started map[stepKey]time.Time
}

type stepKey struct {
	runID  string
	stepID string
}

// NewMetricsObserver создаёт MetricsObserver.
func NewMetricsObserver() *MetricsObserver {
	return &MetricsObserver{started: make(map[stepKey]time.Time)}
}

// Observe — engine.Observer.
func (m *MetricsObserver) Observe(event engine.Event) {
	switch event.Type {
	case engine.EventRunFinished:
		status := "success"
		if event.Error != "" {
			status = "failure"
		}
		runsTotal.WithLabelValues(event.PipelineID, status).Inc()

	case engine.EventStepDispatched:
		m.mu.Lock()
		m.started[stepKey{event.RunID.String(), event.StepID}] = event.Timestamp
		m.mu.Unlock()

	case engine.EventStepCompleted, engine.EventStepFailed:
		m.finishStep(event)

	case engine.EventStepSkipped:
		stepsTotal.WithLabelValues(event.PipelineID, event.StepID, "skipped").Inc()
	}
}

func (m *MetricsObserver) finishStep(event engine.Event) {
	status := "completed"
	if event.Type == engine.EventStepFailed {
		status = "failed"
	}
	stepsTotal.WithLabelValues(event.PipelineID, event.StepID, status).Inc()

	key := stepKey{event.RunID.String(), event.StepID}

	m.mu.Lock()
	startedAt, ok := m.started[key]
	delete(m.started, key)
	m.mu.Unlock()

	if ok {
		stepDuration.WithLabelValues(event.PipelineID, event.StepID).
			Observe(event.Timestamp.Sub(startedAt).Seconds())
	}
}
