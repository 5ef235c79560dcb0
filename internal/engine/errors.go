package engine

import "errors"

// Ошибки валидации определения pipeline.
var (
	// ErrEmptySteps — pipeline не содержит шагов.
	ErrEmptySteps = errors.New("pipeline has no steps")

	// ErrEmptyStepID — шаг не имеет ID.
	ErrEmptyStepID = errors.New("step has empty ID")

	// ErrDuplicateStepID — несколько шагов с одинаковым ID.
	ErrDuplicateStepID = errors.New("duplicate step ID")

	// ErrNoStartStep — flow не задаёт start_at.
	ErrNoStartStep = errors.New("flow has no start step")

	// ErrUnknownStep — путь или start_at ссылается на необъявленный шаг.
	ErrUnknownStep = errors.New("reference to unknown step")

	// ErrDuplicatePath — несколько путей с одинаковой парой (from, to).
	ErrDuplicatePath = errors.New("duplicate path")

	// ErrCyclicGraph — обнаружен цикл в графе путей.
	ErrCyclicGraph = errors.New("cyclic graph detected")

	// ErrInvalidSource — source условия не в формате "step_id.output_key".
	ErrInvalidSource = errors.New("invalid condition source")
)

// Ошибки вычисления условий.
//
// Обе ошибки фатальны для запуска: они означают дефект определения
// pipeline либо самого движка, а не сбой отдельной ветки.
var (
	// ErrUnresolvedReference — условие ссылается на шаг, который ещё
	// не завершился к моменту вычисления.
	ErrUnresolvedReference = errors.New("condition references incomplete step")

	// ErrUnsupportedOperator — неизвестный оператор условия.
	ErrUnsupportedOperator = errors.New("unsupported condition operator")
)

// Ошибки выполнения.
var (
	// ErrUnknownExecutable — для шага не найден Executable.
	ErrUnknownExecutable = errors.New("no executable for step")

	// ErrRunCancelled — запуск отменён через context.
	ErrRunCancelled = errors.New("run cancelled")
)

// DefinitionError — ошибка валидации определения с контекстом.
type DefinitionError struct {
	StepID  string // ID шага, где произошла ошибка (может быть пустым)
	Field   string // поле, вызвавшее ошибку
	Message string // описание ошибки
	Err     error  // базовая ошибка
}

// Error реализует интерфейс error.
func (e *DefinitionError) Error() string {
	if e.StepID != "" {
		return "step " + e.StepID + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *DefinitionError) Unwrap() error {
	return e.Err
}

// NewDefinitionError создаёт новую ошибку определения.
func NewDefinitionError(stepID, field, message string, err error) *DefinitionError {
	return &DefinitionError{
		StepID:  stepID,
		Field:   field,
		Message: message,
		Err:     err,
	}
}

// RunError — агрегированная ошибка полностью провалившегося запуска.
//
// Возвращается только когда упал стартовый шаг либо упали все достижимые
// терминальные ветки. Частичный успех независимых веток ошибкой не является.
type RunError struct {
	// FailedSteps — stepID → текст ошибки.
	FailedSteps map[string]string

	// Partial — результат с выходами успешно завершённых шагов.
	Partial *Result
}

// Error реализует интерфейс error.
func (e *RunError) Error() string {
	msg := "pipeline run failed:"
	for stepID, stepErr := range e.FailedSteps {
		msg += " " + stepID + ": " + stepErr + ";"
	}
	return msg
}
