package chat

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"

	"github.com/Fiberwise-AI/ia-chat-app/internal/domain"
	"github.com/Fiberwise-AI/ia-chat-app/internal/engine"
	"github.com/Fiberwise-AI/ia-chat-app/internal/pipelines"
)

// memSessions — in-memory SessionStore.
type memSessions struct {
	sessions map[uuid.UUID]*domain.Session
	touched  int
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: make(map[uuid.UUID]*domain.Session)}
}

func (m *memSessions) Create(_ context.Context, s *domain.Session) error {
	m.sessions[s.ID] = s
	return nil
}

func (m *memSessions) GetByID(_ context.Context, id uuid.UUID) (*domain.Session, error) {
	s, ok := m.sessions[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return s, nil
}

func (m *memSessions) UpdateTitle(_ context.Context, id uuid.UUID, title string) error {
	s, ok := m.sessions[id]
	if !ok {
		return errors.New("not found")
	}
	s.Title = title
	return nil
}

func (m *memSessions) Touch(_ context.Context, id uuid.UUID) error {
	m.touched++
	return nil
}

// memMessages — in-memory MessageStore.
type memMessages struct {
	messages []*domain.Message
}

func (m *memMessages) Create(_ context.Context, msg *domain.Message) error {
	m.messages = append(m.messages, msg)
	return nil
}

// stubExec — executable с фиксированными выходами.
type stubExec struct {
	outputs map[string]any
	err     error
}

func (e *stubExec) Run(_ context.Context, _ map[string]any) (map[string]any, error) {
	return e.outputs, e.err
}

// stubExecs — ExecutableSet, отдающий стабы по ref.
type stubExecs map[string]*stubExec

func (s stubExecs) Resolve(ref string, _ map[string]any) (engine.Executable, error) {
	exec, ok := s[ref]
	if !ok {
		return nil, fmt.Errorf("unknown ref %q", ref)
	}
	return exec, nil
}

func chatExecs(isFirst bool) stubExecs {
	return stubExecs{
		"fetch_history": {outputs: map[string]any{
			"chat_history":     []map[string]any{},
			"message_count":    0,
			"is_first_message": isFirst,
		}},
		"fetch_documents": {outputs: map[string]any{
			"document_context": "",
			"has_documents":    false,
		}},
		"chat": {outputs: map[string]any{
			"response": "assistant says hi",
			"metadata": map[string]any{"model": "test-model", "total_tokens": 15},
		}},
		"generate_title": {outputs: map[string]any{
			"title": "Greeting Conversation",
		}},
	}
}

func newTestService(sessions *memSessions, messages *memMessages, execs engine.ExecutableSet) *Service {
	registry, err := pipelines.NewRegistry(nil)
	if err != nil {
		panic(err)
	}
	return NewService(Config{
		Sessions: sessions,
		Messages: messages,
		Registry: registry,
		Runner:   engine.NewRunner(engine.Config{}),
		Execs:    execs,
	})
}

func TestSend_NewSessionGetsTitle(t *testing.T) {
	sessions := newMemSessions()
	messages := &memMessages{}
	svc := newTestService(sessions, messages, chatExecs(true))

	result, err := svc.Send(context.Background(), SendRequest{Message: "hello"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.NewSession {
		t.Error("expected a new session")
	}
	if result.Response != "assistant says hi" {
		t.Errorf("unexpected response: %q", result.Response)
	}
	if result.Title != "Greeting Conversation" {
		t.Errorf("expected generated title, got %q", result.Title)
	}

	session := sessions.sessions[result.SessionID]
	if session == nil {
		t.Fatal("session must be persisted")
	}
	if session.Title != "Greeting Conversation" {
		t.Errorf("session title not updated: %q", session.Title)
	}
	if session.Pipeline != pipelines.DefaultPipeline {
		t.Errorf("unexpected session pipeline: %q", session.Pipeline)
	}

	// user + assistant
	if len(messages.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(messages.messages))
	}
	if messages.messages[0].Role != domain.RoleUser || messages.messages[1].Role != domain.RoleAssistant {
		t.Errorf("unexpected message roles: %v, %v",
			messages.messages[0].Role, messages.messages[1].Role)
	}
	if messages.messages[1].Metadata["model"] != "test-model" {
		t.Errorf("assistant metadata not persisted: %v", messages.messages[1].Metadata)
	}
}

func TestSend_ContinuedSessionSkipsTitle(t *testing.T) {
	sessions := newMemSessions()
	existing := domain.NewSession(pipelines.DefaultPipeline)
	existing.Title = "Existing Title"
	sessions.sessions[existing.ID] = existing

	messages := &memMessages{}
	svc := newTestService(sessions, messages, chatExecs(false))

	result, err := svc.Send(context.Background(), SendRequest{
		SessionID: &existing.ID,
		Message:   "hello again",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.NewSession {
		t.Error("existing session must not be recreated")
	}
	if result.Title != "" {
		t.Errorf("skipped title branch must not yield a title, got %q", result.Title)
	}
	if existing.Title != "Existing Title" {
		t.Errorf("title must stay untouched: %q", existing.Title)
	}
	if sessions.touched != 1 {
		t.Errorf("session must be touched on activity, got %d", sessions.touched)
	}
}

func TestSend_EmptyMessage(t *testing.T) {
	svc := newTestService(newMemSessions(), &memMessages{}, chatExecs(true))

	_, err := svc.Send(context.Background(), SendRequest{Message: ""})
	if !errors.Is(err, ErrEmptyMessage) {
		t.Errorf("expected ErrEmptyMessage, got %v", err)
	}
}

func TestSend_UnknownPipeline(t *testing.T) {
	svc := newTestService(newMemSessions(), &memMessages{}, chatExecs(true))

	_, err := svc.Send(context.Background(), SendRequest{
		Message:  "hi",
		Pipeline: "no_such_pipeline",
	})
	if !errors.Is(err, pipelines.ErrPipelineNotFound) {
		t.Errorf("expected ErrPipelineNotFound, got %v", err)
	}
}

func TestSend_UnknownSession(t *testing.T) {
	svc := newTestService(newMemSessions(), &memMessages{}, chatExecs(true))

	missing := uuid.New()
	_, err := svc.Send(context.Background(), SendRequest{
		SessionID: &missing,
		Message:   "hi",
	})
	if err == nil {
		t.Error("unknown session must fail")
	}
}

func TestSend_TitleBranchFailureIsIsolated(t *testing.T) {
	// Падение generate_title не трогает ответ: ветки независимы
	execs := chatExecs(true)
	execs["generate_title"] = &stubExec{err: errors.New("llm hiccup")}

	sessions := newMemSessions()
	messages := &memMessages{}
	svc := newTestService(sessions, messages, execs)

	result, err := svc.Send(context.Background(), SendRequest{Message: "hello"})
	if err != nil {
		t.Fatalf("title branch failure must not fail the chat: %v", err)
	}

	if result.Response != "assistant says hi" {
		t.Errorf("unexpected response: %q", result.Response)
	}
	if result.Title != "" {
		t.Errorf("failed title branch must yield no title, got %q", result.Title)
	}

	session := sessions.sessions[result.SessionID]
	if session.Title != domain.DefaultTitle {
		t.Errorf("session must keep placeholder title: %q", session.Title)
	}
	if len(messages.messages) != 2 {
		t.Errorf("assistant response must still be saved, got %d messages", len(messages.messages))
	}
}

func TestSend_ChatStepFailure(t *testing.T) {
	// Падение единственной отвечающей ветки — это провал запроса
	execs := chatExecs(false)
	execs["chat"] = &stubExec{err: errors.New("provider down")}

	svc := newTestService(newMemSessions(), &memMessages{}, execs)

	_, err := svc.Send(context.Background(), SendRequest{Message: "hello"})
	if err == nil {
		t.Fatal("chat step failure must fail the request")
	}
}
