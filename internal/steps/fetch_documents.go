package steps

import (
	"context"
	"fmt"
	"strings"

	"github.com/Fiberwise-AI/ia-chat-app/internal/engine"
)

// Дефолты нарезки документов.
const (
	defaultChunkWords   = 500
	defaultOverlapWords = 50
)

// FetchDocumentsStep собирает документы сессии в цитируемый контекст.
//
// Каждый документ режется на чанки по словам с перекрытием; каждый чанк
// получает идентификатор цитирования вида doc1_chunk0, по которому
// модель ссылается на источник, а фронтенд разворачивает ссылку через
// chunk_mapping.
type FetchDocumentsStep struct {
	svc     Services
	words   int
	overlap int
}

// NewFetchDocumentsStep — фабрика для Registry.
func NewFetchDocumentsStep(svc Services, config map[string]any) (engine.Executable, error) {
	words := configInt(config, "chunk_words", defaultChunkWords)
	overlap := configInt(config, "overlap_words", defaultOverlapWords)

	if words <= 0 || overlap < 0 || overlap >= words {
		return nil, fmt.Errorf("%w: chunk_words=%d overlap_words=%d", ErrInvalidConfig, words, overlap)
	}

	return &FetchDocumentsStep{svc: svc, words: words, overlap: overlap}, nil
}

// Run собирает контекст документов. Отсутствие сессии или документов —
// штатный случай: пустые выходы, has_documents=false.
func (s *FetchDocumentsStep) Run(ctx context.Context, input map[string]any) (map[string]any, error) {
	empty := map[string]any{
		"document_context": "",
		"chunk_mapping":    map[string]any{},
		"documents_used":   []string{},
		"has_documents":    false,
	}

	sessionID, ok := sessionIDFromInput(input)
	if !ok {
		return empty, nil
	}

	docs, err := s.svc.Store.SessionDocuments(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("fetch session documents: %w", err)
	}
	if len(docs) == 0 {
		return empty, nil
	}

	var sb strings.Builder
	mapping := make(map[string]any)
	used := make([]string, 0, len(docs))

	for i, doc := range docs {
		used = append(used, doc.Filename)

		for n, chunk := range chunkWords(doc.Content, s.words, s.overlap) {
			citeID := fmt.Sprintf("doc%d_chunk%d", i+1, n)
			mapping[citeID] = map[string]any{
				"filename":    doc.Filename,
				"chunk_index": n,
			}

			fmt.Fprintf(&sb, "[%s] (%s)\n%s\n\n", citeID, doc.Filename, chunk)
		}
	}

	s.svc.logger().Debug("documents fetched",
		"session_id", sessionID,
		"documents", len(docs),
		"chunks", len(mapping),
	)

	return map[string]any{
		"document_context": strings.TrimRight(sb.String(), "\n"),
		"chunk_mapping":    mapping,
		"documents_used":   used,
		"has_documents":    true,
	}, nil
}

// chunkWords режет текст на чанки по words слов с перекрытием overlap.
func chunkWords(text string, words, overlap int) []string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return nil
	}

	step := words - overlap
	var chunks []string
	for start := 0; start < len(fields); start += step {
		end := min(start+words, len(fields))
		chunks = append(chunks, strings.Join(fields[start:end], " "))
		if end == len(fields) {
			break
		}
	}
	return chunks
}
