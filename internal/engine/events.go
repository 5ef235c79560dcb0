package engine

import (
	"time"

	"github.com/google/uuid"
)

// EventType — тип события жизненного цикла запуска.
type EventType string

const (
	EventRunStarted     EventType = "run.started"
	EventRunFinished    EventType = "run.finished"
	EventStepDispatched EventType = "step.dispatched"
	EventStepCompleted  EventType = "step.completed"
	EventStepFailed     EventType = "step.failed"
	EventStepSkipped    EventType = "step.skipped"
)

// Event — событие жизненного цикла запуска pipeline.
//
// События публикуются из горутины-планировщика строго последовательно.
type Event struct {
	// Type — тип события.
	Type EventType `json:"type"`

	// RunID — идентификатор запуска.
	RunID uuid.UUID `json:"run_id"`

	// PipelineID — идентификатор pipeline.
	PipelineID string `json:"pipeline_id,omitempty"`

	// StepID — шаг (для step.* событий).
	StepID string `json:"step_id,omitempty"`

	// Outputs — выходы шага (для step.completed).
	Outputs map[string]any `json:"outputs,omitempty"`

	// Error — текст ошибки (для step.failed и run.finished при провале).
	Error string `json:"error,omitempty"`

	// Timestamp — время события.
	Timestamp time.Time `json:"timestamp"`
}

// Observer получает события жизненного цикла запуска.
//
// Вызывается синхронно из планировщика: долгие операции (публикация
// в брокер, запись в БД) должны уходить из callback в свою горутину.
// nil-observer допустим.
type Observer func(Event)

// MultiObserver объединяет несколько наблюдателей в один.
// nil-элементы пропускаются.
func MultiObserver(observers ...Observer) Observer {
	return func(event Event) {
		for _, observe := range observers {
			if observe != nil {
				observe(event)
			}
		}
	}
}

// notify отправляет событие наблюдателю, если он задан.
func (r *Runner) notify(event Event) {
	if r.observer == nil {
		return
	}
	event.Timestamp = time.Now()
	r.observer(event)
}
