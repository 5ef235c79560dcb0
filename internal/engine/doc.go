// Package engine содержит движок выполнения графовых pipelines.
//
// Включает:
//   - definition.go — определение pipeline (шаги, flow, пути) и загрузка из JSON
//   - condition.go  — вычисление условий путей (always / expression)
//   - validate.go   — валидация определения и проверка графа на циклы
//   - state.go      — состояние одного запуска (completed/running/resolved paths)
//   - runner.go     — цикл выполнения: dispatch, join, завершение
//
// Engine отвечает за семантику "Branching Tree": шаг может разветвляться
// на несколько независимых веток, каждая из которых отдельно гейтится
// условием по выходу предшественника. Ветки выполняются параллельно;
// сходящиеся пути (fan-in) ждут решения по всем входящим рёбрам.
//
// Бизнес-логика шагов (LLM, БД) живёт вне пакета — движок видит только
// Executable с одним методом Run.
package engine
