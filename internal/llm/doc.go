// Package llm — провайдеры генерации текста.
//
// Шаги pipeline работают с интерфейсом Provider; конкретная реализация
// (OpenAI-совместимый API) подключается при старте сервера. Блокирующие
// вызовы принимают context и уважают отмену.
package llm
