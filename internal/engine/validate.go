package engine

import (
	"fmt"
)

// Validate проверяет определение pipeline.
//
// Проверки:
//   - есть хотя бы один шаг, у всех шагов непустые уникальные ID
//   - start_at задан и ссылается на объявленный шаг
//   - все from/to путей ссылаются на объявленные шаги
//   - пары (from, to) уникальны
//   - expression-условия имеют корректный source и известный оператор
//   - граф путей ацикличен (алгоритм Кана)
//
// Паттерн "Branching Tree" — строго DAG: циклический pipeline не
// выполняется, а отклоняется на загрузке, чтобы запуск не завис.
func (p *Pipeline) Validate() error {
	if len(p.Steps) == 0 {
		return NewDefinitionError("", "steps", "pipeline has no steps", ErrEmptySteps)
	}

	declared := make(map[string]bool, len(p.Steps))
	for i := range p.Steps {
		step := &p.Steps[i]

		if step.ID == "" {
			return NewDefinitionError("", "id", "step has empty ID", ErrEmptyStepID)
		}
		if declared[step.ID] {
			return NewDefinitionError(step.ID, "id",
				fmt.Sprintf("duplicate step ID: %s", step.ID), ErrDuplicateStepID)
		}
		declared[step.ID] = true
	}

	if p.Flow.StartAt == "" {
		return NewDefinitionError("", "start_at", "flow has no start_at", ErrNoStartStep)
	}
	if !declared[p.Flow.StartAt] {
		return NewDefinitionError(p.Flow.StartAt, "start_at",
			fmt.Sprintf("start_at references unknown step: %s", p.Flow.StartAt), ErrUnknownStep)
	}

	seen := make(map[[2]string]bool, len(p.Flow.Paths))
	for _, path := range p.Flow.Paths {
		if !declared[path.From] {
			return NewDefinitionError(path.From, "from",
				fmt.Sprintf("path references unknown step: %s", path.From), ErrUnknownStep)
		}
		if !declared[path.To] {
			return NewDefinitionError(path.To, "to",
				fmt.Sprintf("path references unknown step: %s", path.To), ErrUnknownStep)
		}

		pair := [2]string{path.From, path.To}
		if seen[pair] {
			return NewDefinitionError(path.From, "paths",
				fmt.Sprintf("duplicate path %s -> %s", path.From, path.To), ErrDuplicatePath)
		}
		seen[pair] = true

		if err := validateCondition(path); err != nil {
			return err
		}
	}

	return p.checkAcyclic()
}

// validateCondition проверяет expression-условие пути на загрузке,
// чтобы неизвестный оператор не всплыл посреди выполнения.
func validateCondition(path Path) error {
	cond := path.Condition

	switch cond.Type {
	case ConditionAlways:
		return nil

	case ConditionExpression:
		if _, _, err := splitSource(cond.Source); err != nil {
			return NewDefinitionError(path.From, "condition.source",
				fmt.Sprintf("path %s -> %s: %v", path.From, path.To, err), ErrInvalidSource)
		}
		if !knownOperators[cond.Operator] {
			return NewDefinitionError(path.From, "condition.operator",
				fmt.Sprintf("path %s -> %s: unsupported operator %q", path.From, path.To, cond.Operator),
				ErrUnsupportedOperator)
		}
		return nil

	default:
		return NewDefinitionError(path.From, "condition.type",
			fmt.Sprintf("path %s -> %s: unknown condition type %q", path.From, path.To, cond.Type),
			ErrInvalidSource)
	}
}

// checkAcyclic проверяет граф путей на циклы топологической
// сортировкой (алгоритм Кана).
func (p *Pipeline) checkAcyclic() error {
	inDegree := make(map[string]int, len(p.Steps))
	for i := range p.Steps {
		inDegree[p.Steps[i].ID] = 0
	}
	for _, path := range p.Flow.Paths {
		inDegree[path.To]++
	}

	queue := make([]string, 0, len(p.Steps))
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	visited := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		visited++

		for _, path := range p.outbound(id) {
			inDegree[path.To]--
			if inDegree[path.To] == 0 {
				queue = append(queue, path.To)
			}
		}
	}

	if visited != len(p.Steps) {
		return NewDefinitionError("", "paths", "cyclic graph detected", ErrCyclicGraph)
	}
	return nil
}
