package engine

import (
	"encoding/json"
	"fmt"
)

// Pipeline — определение графового pipeline.
//
// Это "программа" для движка: набор шагов и направленные условные пути
// между ними. Определение неизменяемо после загрузки — один Pipeline
// может выполняться многими запусками одновременно.
type Pipeline struct {
	// ID — идентификатор pipeline (например, "simple_chat").
	ID string `json:"pipeline_id,omitempty"`

	// Name — человекочитаемое имя.
	Name string `json:"name,omitempty"`

	// Description — описание назначения.
	Description string `json:"description,omitempty"`

	// Steps — объявленные шаги.
	Steps []StepDef `json:"steps"`

	// Flow — стартовый шаг и пути между шагами.
	Flow Flow `json:"flow"`
}

// StepDef — объявление шага в pipeline.
type StepDef struct {
	// ID — уникальный идентификатор шага в рамках pipeline.
	// Используется в путях и как ключ в итоговом маппинге выходов.
	ID string `json:"id"`

	// Ref — имя исполняемой единицы в реестре (executable_ref).
	Ref string `json:"executable_ref"`

	// Config — конфигурация шага (непрозрачна для движка).
	Config map[string]any `json:"config,omitempty"`
}

// Flow — описание графа выполнения.
type Flow struct {
	// StartAt — ID стартового шага.
	StartAt string `json:"start_at"`

	// Paths — направленные условные пути между шагами.
	Paths []Path `json:"paths"`
}

// Path — направленное ребро (from, to, condition).
//
// Несколько путей могут иметь общий from (fan-out) или общий to (fan-in).
// Пара (from, to) уникальна в рамках pipeline.
type Path struct {
	From      string    `json:"from"`
	To        string    `json:"to"`
	Condition Condition `json:"condition"`
}

// Load разбирает определение pipeline из JSON и валидирует его.
//
// Возвращает *DefinitionError (через errors.As) при любой проблеме
// определения, включая циклы в графе путей.
func Load(data []byte) (*Pipeline, error) {
	var p Pipeline
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse pipeline: %w", err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &p, nil
}

// Step возвращает объявление шага по ID.
func (p *Pipeline) Step(id string) *StepDef {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i]
		}
	}
	return nil
}

// outbound возвращает пути, исходящие из шага.
func (p *Pipeline) outbound(stepID string) []Path {
	var paths []Path
	for _, path := range p.Flow.Paths {
		if path.From == stepID {
			paths = append(paths, path)
		}
	}
	return paths
}

// inbound возвращает пути, входящие в шаг.
func (p *Pipeline) inbound(stepID string) []Path {
	var paths []Path
	for _, path := range p.Flow.Paths {
		if path.To == stepID {
			paths = append(paths, path)
		}
	}
	return paths
}

// IsTerminal проверяет, является ли шаг терминальным (без исходящих путей).
func (p *Pipeline) IsTerminal(stepID string) bool {
	return len(p.outbound(stepID)) == 0
}
