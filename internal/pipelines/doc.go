// Package pipelines — реестр определений pipeline.
//
// Определения — JSON-документы формата internal/engine. Реестр собирает
// их из трёх источников, в порядке возрастания приоритета: встроенное
// определение simple_chat, файлы *.json из каталога PIPELINES_DIR и
// определения, опубликованные через API (хранятся в БД). Все
// определения валидируются при регистрации.
package pipelines
