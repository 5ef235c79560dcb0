// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go          — Handler с DI (сервис чата, репозитории, logger)
//   - routes.go           — регистрация маршрутов
//   - middleware.go       — middleware (logging, recovery)
//   - response.go         — унифицированные JSON-ответы и обработка ошибок
//   - dto.go              — Data Transfer Objects (request/response)
//   - chat_handler.go     — обработчик POST /chat
//   - session_handler.go  — обработчики для /sessions (история, документы)
//   - pipeline_handler.go — обработчики для /pipelines (реестр, отладочные запуски)
//
// API предоставляет REST endpoints поверх чата и реестра pipeline.
package api
