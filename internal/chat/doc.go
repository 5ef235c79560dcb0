// Package chat — сценарий обработки сообщения пользователя.
//
// Service связывает хранилище сессий, реестр pipeline и движок:
// находит или создаёт сессию, сохраняет сообщение пользователя,
// выполняет pipeline, сохраняет ответ ассистента и подхватывает
// сгенерированный заголовок. HTTP- и WebSocket-обработчики — тонкие
// обёртки над этим пакетом.
package chat
