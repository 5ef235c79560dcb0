// Package events — транспорт событий жизненного цикла запусков.
//
// Движок выполняет pipeline в одном процессе; RabbitMQ здесь не
// распределяет шаги по машинам, а доставляет события (run.started,
// step.completed, ...) от наблюдателя движка до WebSocket-подписчиков
// и любых внешних потребителей. Publisher подключается к движку через
// Observer(), Consumer скармливает события хабу.
package events
