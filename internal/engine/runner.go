package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Executable — исполняемая единица шага.
//
// Движок считает её непрозрачной: получает маппинг входов, возвращает
// маппинг именованных выходов либо ошибку. Блокирующий ввод-вывод
// (LLM, БД) живёт только здесь — сам движок никогда не блокируется,
// кроме ожидания завершения хотя бы одного запущенного шага.
type Executable interface {
	Run(ctx context.Context, input map[string]any) (map[string]any, error)
}

// ExecutableSet разрешает executable_ref шага в Executable.
//
// Реализуется типизированным реестром шагов: явная регистрация
// по имени, никакого поиска классов по строке через рефлексию.
type ExecutableSet interface {
	Resolve(ref string, config map[string]any) (Executable, error)
}

// StepStatus — итоговый статус шага в запуске.
type StepStatus string

const (
	// StatusCompleted — шаг выполнен, его выходы в Result.Outputs.
	StatusCompleted StepStatus = "completed"

	// StatusFailed — executable шага вернул ошибку.
	StatusFailed StepStatus = "failed"

	// StatusSkipped — все входящие пути шага разрешились как не взятые
	// (или шаг был достижим только через упавшую ветку).
	StatusSkipped StepStatus = "skipped"
)

// Result — результат запуска pipeline.
type Result struct {
	// RunID — идентификатор запуска.
	RunID uuid.UUID `json:"run_id"`

	// PipelineID — идентификатор pipeline.
	PipelineID string `json:"pipeline_id,omitempty"`

	// Outputs — stepID → выходы шага. Только завершённые шаги:
	// отсутствие ключа — штатное представление пропущенной ветки,
	// а не ошибка.
	Outputs map[string]map[string]any `json:"outputs"`

	// Statuses — stepID → статус для всех шагов, чья судьба решена.
	Statuses map[string]StepStatus `json:"statuses"`

	// Failed — stepID → текст ошибки для упавших шагов.
	Failed map[string]string `json:"failed,omitempty"`

	// StartedAt — время начала запуска.
	StartedAt time.Time `json:"started_at"`

	// Duration — длительность запуска.
	Duration time.Duration `json:"duration"`
}

// Runner выполняет графовые pipelines.
//
// Runner не хранит состояния между запусками: на каждый Run создаётся
// свежий executionState, уничтожаемый вместе с запуском. Один Runner
// можно использовать из нескольких горутин.
type Runner struct {
	logger   *slog.Logger
	observer Observer
}

// Config — конфигурация Runner.
type Config struct {
	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger

	// Observer — получатель событий жизненного цикла (опционально).
	Observer Observer
}

// NewRunner создаёт новый Runner.
func NewRunner(cfg Config) *Runner {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		logger:   logger,
		observer: cfg.Observer,
	}
}

// stepDone — результат завершения одного шага.
type stepDone struct {
	stepID  string
	outputs map[string]any
	err     error
}

// Run выполняет pipeline от стартового шага до полного завершения.
//
// Семантика:
//   - стартовый шаг диспатчится первым; далее после каждого завершения
//     вычисляются все исходящие пути завершившегося шага (ровно один раз)
//     и диспатчатся все шаги, чьи входящие требования полностью разрешены;
//   - независимые готовые шаги выполняются параллельно, каждый в своей
//     горутине; завершения сериализуются через канал в планировщик,
//     поэтому бухгалтерия путей не гонится при одновременных завершениях;
//   - вход шага — объединение исходного payload и выходов всех
//     предшественников по взятым путям; при коллизии ключей побеждает
//     выход предшественника (более специфичный источник), между
//     несколькими предшественниками — более поздний по порядку путей;
//   - запуск завершается, только когда не осталось ни выполняющихся,
//     ни диспатчабельных шагов; терминальные шаги участвуют в этой
//     проверке наравне с остальными.
//
// Ошибка executable изолируется в своей ветке: шаги, достижимые только
// через упавший шаг, пропускаются, независимые ветки довыполняются.
// Run возвращает *RunError, только если упал стартовый шаг или упали
// все достижимые терминальные ветки. Ошибки вычисления условий фатальны.
//
// Отмена ctx прекращает диспатч новых шагов; уже запущенные дорабатывают,
// их выходы сохраняются в частичном результате.
func (r *Runner) Run(ctx context.Context, p *Pipeline, execs ExecutableSet, input map[string]any) (*Result, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	// Разрешаем все executables до первого диспатча: опечатка в
	// executable_ref — ошибка определения, а не сбой посреди запуска.
	bound := make(map[string]Executable, len(p.Steps))
	for i := range p.Steps {
		step := &p.Steps[i]
		exec, err := execs.Resolve(step.Ref, step.Config)
		if err != nil {
			return nil, NewDefinitionError(step.ID, "executable_ref",
				fmt.Sprintf("no executable for ref %q: %v", step.Ref, err), ErrUnknownExecutable)
		}
		bound[step.ID] = exec
	}

	runID := uuid.New()
	logger := r.logger.With("run_id", runID, "pipeline_id", p.ID)
	startedAt := time.Now()

	st := newExecutionState(p)
	results := make(chan stepDone, len(p.Steps))

	dispatch := func(stepID string) {
		st.markRunning(stepID)
		stepInput := r.buildInput(p, st, input, stepID)

		r.notify(Event{Type: EventStepDispatched, RunID: runID, PipelineID: p.ID, StepID: stepID})
		logger.Debug("step dispatched", "step_id", stepID)

		go func() {
			outputs, err := bound[stepID].Run(ctx, stepInput)
			results <- stepDone{stepID: stepID, outputs: outputs, err: err}
		}()
	}

	r.notify(Event{Type: EventRunStarted, RunID: runID, PipelineID: p.ID})
	logger.Info("run started", "steps", len(p.Steps), "start_at", p.Flow.StartAt)

	var fatal error
	cancelled := false

	dispatch(p.Flow.StartAt)

	for st.runningCount() > 0 {
		var done stepDone

		if cancelled || fatal != nil {
			// Новых диспатчей не будет — дожидаемся уже запущенных.
			done = <-results
		} else {
			select {
			case done = <-results:
			case <-ctx.Done():
				cancelled = true
				logger.Warn("run cancelled, waiting for in-flight steps",
					"running", st.runningCount())
				continue
			}
		}

		if done.err != nil {
			st.markFailed(done.stepID, done.err.Error())
			r.notify(Event{Type: EventStepFailed, RunID: runID, PipelineID: p.ID,
				StepID: done.stepID, Error: done.err.Error()})
			logger.Warn("step failed", "step_id", done.stepID, "error", done.err)

			// Выходов нет — исходящие пути разрешаются как не взятые,
			// чтобы зависимые только от этой ветки шаги были пропущены.
			for _, path := range p.outbound(done.stepID) {
				st.resolvePath(path.From, path.To, false)
			}
		} else {
			st.markCompleted(done.stepID, done.outputs)
			r.notify(Event{Type: EventStepCompleted, RunID: runID, PipelineID: p.ID,
				StepID: done.stepID, Outputs: done.outputs})
			logger.Debug("step completed", "step_id", done.stepID)

			for _, path := range p.outbound(done.stepID) {
				taken, err := Evaluate(path.Condition, st.completed)
				if err != nil {
					fatal = fmt.Errorf("evaluate path %s -> %s: %w", path.From, path.To, err)
					logger.Error("condition evaluation failed",
						"from", path.From, "to", path.To, "error", err)
					break
				}
				st.resolvePath(path.From, path.To, taken)
			}
		}

		if fatal == nil && !cancelled {
			r.advance(p, st, runID, dispatch, logger)
		}
	}

	result := r.buildResult(p, st, runID, startedAt)

	finished := Event{Type: EventRunFinished, RunID: runID, PipelineID: p.ID}
	if len(st.failed) > 0 {
		finished.Error = fmt.Sprintf("failed steps: %v", keys(st.failed))
	}
	r.notify(finished)

	switch {
	case fatal != nil:
		logger.Error("run aborted", "error", fatal)
		return nil, fatal

	case cancelled:
		logger.Warn("run cancelled", "completed", len(st.completed))
		return result, fmt.Errorf("%w: %v", ErrRunCancelled, ctx.Err())

	case r.totalFailure(p, st):
		logger.Warn("run failed", "failed_steps", keys(st.failed), "duration", result.Duration)
		return nil, &RunError{FailedSteps: st.failed, Partial: result}

	default:
		logger.Info("run finished",
			"completed", len(st.completed),
			"skipped", len(st.skipped),
			"failed", len(st.failed),
			"duration", result.Duration,
		)
		return result, nil
	}
}

// advance диспатчит все шаги, ставшие готовыми, и каскадно пропускает
// шаги, все входящие пути которых разрешились как не взятые.
//
// Повторяется до неподвижной точки: пропуск шага разрешает его исходящие
// пути, что может сделать разрешёнными входящие пути следующих шагов.
// Порядок диспатча одновременно готовых шагов не специфицирован —
// условия соседних веток вычисляются только по выходам общих предков,
// поэтому любой порядок безопасен.
func (r *Runner) advance(p *Pipeline, st *executionState, runID uuid.UUID, dispatch func(string), logger *slog.Logger) {
	for {
		progressed := false

		for i := range p.Steps {
			stepID := p.Steps[i].ID
			if st.settled(stepID) || !st.inboundResolved(stepID) {
				continue
			}

			if st.anyInboundTaken(stepID) {
				dispatch(stepID)
			} else {
				st.markSkipped(stepID)
				r.notify(Event{Type: EventStepSkipped, RunID: runID, PipelineID: p.ID, StepID: stepID})
				logger.Debug("step skipped", "step_id", stepID)

				for _, path := range p.outbound(stepID) {
					st.resolvePath(path.From, path.To, false)
				}
			}
			progressed = true
		}

		if !progressed {
			return
		}
	}
}

// buildInput собирает вход шага: payload плюс выходы предшественников
// по взятым путям. Предшественники применяются в порядке объявления
// путей и перекрывают одноимённые ключи payload.
func (r *Runner) buildInput(p *Pipeline, st *executionState, payload map[string]any, stepID string) map[string]any {
	input := make(map[string]any, len(payload))
	for k, v := range payload {
		input[k] = v
	}

	for _, pred := range st.takenPredecessors(stepID) {
		for k, v := range st.completed[pred] {
			input[k] = v
		}
	}

	return input
}

// buildResult собирает итоговый Result из состояния запуска.
func (r *Runner) buildResult(p *Pipeline, st *executionState, runID uuid.UUID, startedAt time.Time) *Result {
	outputs := make(map[string]map[string]any, len(st.completed))
	statuses := make(map[string]StepStatus, len(p.Steps))

	for stepID, out := range st.completed {
		outputs[stepID] = out
		statuses[stepID] = StatusCompleted
	}
	for stepID := range st.failed {
		statuses[stepID] = StatusFailed
	}
	for stepID := range st.skipped {
		statuses[stepID] = StatusSkipped
	}

	failed := make(map[string]string, len(st.failed))
	for stepID, msg := range st.failed {
		failed[stepID] = msg
	}

	return &Result{
		RunID:      runID,
		PipelineID: p.ID,
		Outputs:    outputs,
		Statuses:   statuses,
		Failed:     failed,
		StartedAt:  startedAt,
		Duration:   time.Since(startedAt),
	}
}

// totalFailure проверяет условие полного провала запуска:
// упал стартовый шаг, либо упали все достигнутые терминальные ветки.
// Пропущенная терминальная ветка — штатный исход, не провал.
func (r *Runner) totalFailure(p *Pipeline, st *executionState) bool {
	if _, ok := st.failed[p.Flow.StartAt]; ok {
		return true
	}

	reachedTerminals := 0
	failedTerminals := 0
	for i := range p.Steps {
		stepID := p.Steps[i].ID
		if !p.IsTerminal(stepID) || !st.reached[stepID] {
			continue
		}
		reachedTerminals++
		if _, ok := st.failed[stepID]; ok {
			failedTerminals++
		}
	}

	return reachedTerminals > 0 && failedTerminals == reachedTerminals
}

// keys возвращает ключи map для логирования.
func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
