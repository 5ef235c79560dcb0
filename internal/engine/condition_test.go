package engine

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestEvaluate_Always(t *testing.T) {
	// always не инспектирует выходы — nil допустим
	taken, err := Evaluate(Condition{Type: ConditionAlways}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !taken {
		t.Error("always condition should be taken")
	}
}

func TestEvaluate_Equals(t *testing.T) {
	completed := map[string]map[string]any{
		"fetch_history": {
			"is_first_message": true,
			"message_count":    float64(3),
			"title":            "hello",
		},
	}

	tests := []struct {
		name   string
		source string
		value  any
		want   bool
	}{
		{"bool true", "fetch_history.is_first_message", true, true},
		{"bool vs string", "fetch_history.is_first_message", "true", false},
		{"string match", "fetch_history.title", "hello", true},
		{"string mismatch", "fetch_history.title", "bye", false},
		{"number int vs float64", "fetch_history.message_count", 3, true},
		{"number mismatch", "fetch_history.message_count", 4, false},
		{"number vs string", "fetch_history.message_count", "3", false},
		{"missing key", "fetch_history.no_such_key", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := Condition{
				Type:     ConditionExpression,
				Source:   tt.source,
				Operator: OpEquals,
				Value:    tt.value,
			}
			taken, err := Evaluate(cond, completed)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if taken != tt.want {
				t.Errorf("expected %v, got %v", tt.want, taken)
			}
		})
	}
}

func TestEvaluate_Operators(t *testing.T) {
	completed := map[string]map[string]any{
		"step": {
			"count": float64(5),
			"label": "ready",
			"empty": nil,
		},
	}

	tests := []struct {
		name     string
		source   string
		operator string
		value    any
		want     bool
	}{
		{"not_equals true", "step.label", OpNotEquals, "done", true},
		{"not_equals false", "step.label", OpNotEquals, "ready", false},
		{"exists present", "step.label", OpExists, nil, true},
		{"exists nil value", "step.empty", OpExists, nil, false},
		{"exists missing", "step.missing", OpExists, nil, false},
		{"gt true", "step.count", OpGreater, 3, true},
		{"gt false", "step.count", OpGreater, 5, false},
		{"lt true", "step.count", OpLess, 10, true},
		{"lt non-numeric", "step.label", OpLess, 10, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cond := Condition{
				Type:     ConditionExpression,
				Source:   tt.source,
				Operator: tt.operator,
				Value:    tt.value,
			}
			taken, err := Evaluate(cond, completed)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if taken != tt.want {
				t.Errorf("expected %v, got %v", tt.want, taken)
			}
		})
	}
}

func TestEvaluate_UnresolvedReference(t *testing.T) {
	cond := Condition{
		Type:     ConditionExpression,
		Source:   "never_ran.key",
		Operator: OpEquals,
		Value:    true,
	}

	_, err := Evaluate(cond, map[string]map[string]any{})
	if !errors.Is(err, ErrUnresolvedReference) {
		t.Errorf("expected ErrUnresolvedReference, got %v", err)
	}
}

func TestEvaluate_UnsupportedOperator(t *testing.T) {
	cond := Condition{
		Type:     ConditionExpression,
		Source:   "step.key",
		Operator: "matches_regex",
		Value:    ".*",
	}

	completed := map[string]map[string]any{"step": {"key": "x"}}
	_, err := Evaluate(cond, completed)
	if !errors.Is(err, ErrUnsupportedOperator) {
		t.Errorf("expected ErrUnsupportedOperator, got %v", err)
	}
}

func TestEvaluate_InvalidSource(t *testing.T) {
	for _, source := range []string{"nodot", ".key", "step."} {
		cond := Condition{
			Type:     ConditionExpression,
			Source:   source,
			Operator: OpEquals,
			Value:    1,
		}
		_, err := Evaluate(cond, map[string]map[string]any{"step": {}})
		if !errors.Is(err, ErrInvalidSource) {
			t.Errorf("source %q: expected ErrInvalidSource, got %v", source, err)
		}
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	cond := Condition{
		Type:     ConditionExpression,
		Source:   "a.flag",
		Operator: OpEquals,
		Value:    true,
	}
	completed := map[string]map[string]any{"a": {"flag": true}}

	for i := 0; i < 10; i++ {
		taken, err := Evaluate(cond, completed)
		if err != nil || !taken {
			t.Fatalf("iteration %d: taken=%v err=%v", i, taken, err)
		}
	}
}

func TestCondition_UnmarshalJSON(t *testing.T) {
	var always Condition
	if err := json.Unmarshal([]byte(`{"type": "always"}`), &always); err != nil {
		t.Fatalf("unmarshal always: %v", err)
	}
	if always.Type != ConditionAlways {
		t.Errorf("expected always, got %s", always.Type)
	}

	raw := `{
		"type": "expression",
		"config": {"source": "fetch_history.is_first_message", "operator": "equals", "value": true}
	}`
	var expr Condition
	if err := json.Unmarshal([]byte(raw), &expr); err != nil {
		t.Fatalf("unmarshal expression: %v", err)
	}
	if expr.Type != ConditionExpression {
		t.Errorf("expected expression, got %s", expr.Type)
	}
	if expr.Source != "fetch_history.is_first_message" {
		t.Errorf("unexpected source: %s", expr.Source)
	}
	if expr.Operator != OpEquals {
		t.Errorf("unexpected operator: %s", expr.Operator)
	}
	if expr.Value != true {
		t.Errorf("unexpected value: %v", expr.Value)
	}

	var unknown Condition
	if err := json.Unmarshal([]byte(`{"type": "sometimes"}`), &unknown); err == nil {
		t.Error("expected error for unknown condition type")
	}

	var noConfig Condition
	if err := json.Unmarshal([]byte(`{"type": "expression"}`), &noConfig); err == nil {
		t.Error("expected error for expression without config")
	}
}

func TestCondition_MarshalRoundTrip(t *testing.T) {
	orig := Condition{
		Type:     ConditionExpression,
		Source:   "a.b",
		Operator: OpEquals,
		Value:    "x",
	}

	data, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var parsed Condition
	if err := json.Unmarshal(data, &parsed); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if parsed != orig {
		t.Errorf("round trip mismatch: %+v != %+v", parsed, orig)
	}
}
