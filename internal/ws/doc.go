// Package ws — WebSocket-поверхность чата.
//
// Клиент /ws/chat шлёт сообщения тем же содержимым, что и POST /chat,
// и получает три вида кадров: response (итог обработки), event
// (события жизненного цикла запусков, приходят через брокер) и error.
// Hub раздаёт события всем подключённым клиентам.
package ws
