// Package janitor реализует фоновую уборку устаревших сессий.
//
// Janitor по cron-расписанию удаляет сессии, неактивные дольше
// заданного срока; сообщения и документы уходят каскадом на уровне
// схемы БД.
//
// Конфигурация через переменные окружения:
//   - SESSION_RETENTION_DAYS — срок хранения (default: 30)
//   - JANITOR_CRON — расписание уборки (default: "0 3 * * *")
package janitor
