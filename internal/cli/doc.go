// Package cli реализует инструмент командной строки chatctl.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с chat API.
// Работает через HTTP; единственное исключение — pipeline validate,
// которая проверяет определение локально, без сервера.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для chat API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	sessions, err := client.ListSessions(0)
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: chatctl session list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - chat: send
//   - session: list, show, history, documents, attach
//   - pipeline: list, show, validate, publish, run
//
// Каждая группа создаётся через фабричную функцию (NewChatCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
