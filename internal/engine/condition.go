package engine

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

// ConditionType — тип условия пути.
//
// Закрытое множество вариантов: новые условия добавляются новым типом
// и веткой в Evaluate, а не диспетчеризацией по произвольной строке.
type ConditionType string

const (
	// ConditionAlways — путь берётся безусловно после завершения from.
	ConditionAlways ConditionType = "always"

	// ConditionExpression — путь гейтится выражением по выходу шага.
	ConditionExpression ConditionType = "expression"
)

// Операторы expression-условий.
const (
	OpEquals    = "equals"
	OpNotEquals = "not_equals"
	OpExists    = "exists"
	OpGreater   = "gt"
	OpLess      = "lt"
)

// knownOperators — операторы, допустимые в определении pipeline.
var knownOperators = map[string]bool{
	OpEquals:    true,
	OpNotEquals: true,
	OpExists:    true,
	OpGreater:   true,
	OpLess:      true,
}

// Condition — условие пути.
//
// Для типа always поля Source/Operator/Value пусты.
// Для expression: Source — ссылка "step_id.output_key",
// Operator — один из Op*-операторов, Value — литерал для сравнения.
type Condition struct {
	Type     ConditionType
	Source   string
	Operator string
	Value    any
}

// conditionJSON — wire-формат условия.
type conditionJSON struct {
	Type   ConditionType        `json:"type"`
	Config *conditionConfigJSON `json:"config,omitempty"`
}

type conditionConfigJSON struct {
	Source   string `json:"source"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// UnmarshalJSON разбирает условие из открытого wire-формата
// в закрытый tagged-variant.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var raw conditionJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch raw.Type {
	case ConditionAlways:
		*c = Condition{Type: ConditionAlways}
		return nil

	case ConditionExpression:
		if raw.Config == nil {
			return fmt.Errorf("expression condition has no config")
		}
		*c = Condition{
			Type:     ConditionExpression,
			Source:   raw.Config.Source,
			Operator: raw.Config.Operator,
			Value:    raw.Config.Value,
		}
		return nil

	default:
		return fmt.Errorf("unknown condition type %q", raw.Type)
	}
}

// MarshalJSON сериализует условие обратно в wire-формат.
func (c Condition) MarshalJSON() ([]byte, error) {
	raw := conditionJSON{Type: c.Type}
	if c.Type == ConditionExpression {
		raw.Config = &conditionConfigJSON{
			Source:   c.Source,
			Operator: c.Operator,
			Value:    c.Value,
		}
	}
	return json.Marshal(raw)
}

// splitSource разбивает source по первой точке на (step_id, output_key).
func splitSource(source string) (stepID, key string, err error) {
	idx := strings.Index(source, ".")
	if idx <= 0 || idx == len(source)-1 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidSource, source)
	}
	return source[:idx], source[idx+1:], nil
}

// Evaluate вычисляет условие по выходам завершённых шагов.
//
// Чистая детерминированная функция без побочных эффектов.
//
//   - always → true, completed не инспектируется.
//   - expression → значение берётся из completed[step_id][output_key]
//     и сравнивается оператором с литералом условия.
//
// Ссылка на незавершённый шаг — ErrUnresolvedReference: при корректной
// работе движка недостижимо (пути вычисляются после завершения from),
// срабатывание означает дефект движка или определения. Отсутствующий
// ключ выхода не ошибка: условие просто не выполняется.
func Evaluate(cond Condition, completed map[string]map[string]any) (bool, error) {
	switch cond.Type {
	case ConditionAlways:
		return true, nil

	case ConditionExpression:
		stepID, key, err := splitSource(cond.Source)
		if err != nil {
			return false, err
		}

		outputs, ok := completed[stepID]
		if !ok {
			return false, fmt.Errorf("%w: %s", ErrUnresolvedReference, stepID)
		}

		value, present := outputs[key]

		switch cond.Operator {
		case OpEquals:
			return present && strictEquals(value, cond.Value), nil

		case OpNotEquals:
			return present && !strictEquals(value, cond.Value), nil

		case OpExists:
			return present && value != nil, nil

		case OpGreater:
			a, b, ok := numericPair(value, cond.Value)
			return present && ok && a > b, nil

		case OpLess:
			a, b, ok := numericPair(value, cond.Value)
			return present && ok && a < b, nil

		default:
			return false, fmt.Errorf("%w: %q", ErrUnsupportedOperator, cond.Operator)
		}

	default:
		return false, fmt.Errorf("unknown condition type %q", cond.Type)
	}
}

// strictEquals сравнивает значения строго по типу и значению:
// bool true не равен строке "true", число 1 не равно строке "1".
//
// Единственное послабление — числа: после json.Unmarshal все числа
// становятся float64, поэтому числовые типы сравниваются по значению.
func strictEquals(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if av, bv, ok := numericPair(a, b); ok {
		return av == bv
	}

	if reflect.TypeOf(a) != reflect.TypeOf(b) {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// numericPair приводит оба значения к float64, если оба числовые.
func numericPair(a, b any) (float64, float64, bool) {
	av, aok := toFloat(a)
	bv, bok := toFloat(b)
	return av, bv, aok && bok
}

// toFloat приводит числовое значение к float64.
func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
