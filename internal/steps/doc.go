// Package steps содержит исполняемые шаги chat pipeline.
//
// # Обзор
//
// Шаг — это лист графа выполнения: получает маппинг входов, делает
// работу (запрос к БД, вызов LLM) и возвращает маппинг именованных
// выходов. Каждый шаг реализует engine.Executable.
//
// Зависимости (хранилище, LLM-провайдер) передаются явно через Services
// при конструировании шага — никаких глобальных синглтонов и поиска
// реализаций по имени класса через рефлексию. Registry разрешает
// executable_ref из определения pipeline в фабрику шага.
//
// # Registry
//
//	registry := steps.DefaultRegistry(steps.Services{
//	    Store: store,
//	    LLM:   provider,
//	})
//	exec, err := registry.Resolve("chat", config)
//
// Registry реализует engine.ExecutableSet и отдаётся движку при запуске.
//
// # Типы шагов
//
// ## fetch_history (fetch_history.go)
//
// История сессии для контекста модели.
//
// Вход: session_id (опционален — новой сессии ещё нет).
//
// Outputs:
//
//	{
//	    "chat_history":     [{"role": "user", "content": "..."}, ...],
//	    "message_count":    3,
//	    "is_first_message": false
//	}
//
// is_first_message истинно, пока в сессии нет ни одного ответа
// ассистента. Отсутствующая сессия — пустая история и
// is_first_message=true, не ошибка.
//
// ## fetch_documents (fetch_documents.go)
//
// Документы сессии, нарезанные в цитируемый контекст.
//
// Конфигурация:
//
//	{"chunk_words": 500, "overlap_words": 50}
//
// Outputs:
//
//	{
//	    "document_context": "[doc1_chunk0] (report.pdf)\n...",
//	    "chunk_mapping":    {"doc1_chunk0": {"filename": "report.pdf", "chunk_index": 0}},
//	    "documents_used":   ["report.pdf"],
//	    "has_documents":    true
//	}
//
// ## chat (chat.go)
//
// Основной вызов LLM: системная инструкция (плюс контекст документов и
// правила цитирования, когда документы есть), история, сообщение
// пользователя.
//
// Конфигурация:
//
//	{"system_prompt": "...", "temperature": 0.7, "max_tokens": 0}
//
// Outputs:
//
//	{
//	    "response": "...",
//	    "metadata": {
//	        "provider": "openai", "model": "gpt-4o-mini",
//	        "prompt_tokens": 812, "completion_tokens": 128,
//	        "total_tokens": 940, "cost_usd": 0.0002,
//	        "documents_used": [...], "chunk_mapping": {...}
//	    }
//	}
//
// ## generate_title (generate_title.go)
//
// Короткий заголовок сессии (3-6 слов) по первому сообщению.
// Низкая температура, срезание кавычек, ограничение 60 символов.
//
// Outputs:
//
//	{"title": "Quarterly Report Questions", "title_metadata": {...}}
//
// # Обработка ошибок
//
// Шаги возвращают ошибку как есть — изоляция отказа по веткам и
// каскад пропусков находятся в движке, не здесь.
package steps
