package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// ChatResult — итог обработки сообщения чата.
type ChatResult struct {
	SessionID  string         `json:"session_id"`
	RunID      string         `json:"run_id"`
	Response   string         `json:"response"`
	Title      string         `json:"title,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	NewSession bool           `json:"new_session"`
}

// SessionResponse — сессия из API.
type SessionResponse struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Pipeline  string `json:"pipeline"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// MessageResponse — сообщение из API.
type MessageResponse struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id"`
	Role      string         `json:"role"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// DocumentResponse — документ из API.
type DocumentResponse struct {
	ID         string `json:"id"`
	SessionID  string `json:"session_id"`
	Filename   string `json:"filename"`
	Size       int    `json:"size"`
	UploadedAt string `json:"uploaded_at"`
}

// PipelineSummary — запись в списке pipeline.
type PipelineSummary struct {
	Name string `json:"name"`
}

// PipelineResponse — pipeline с определением.
type PipelineResponse struct {
	Name       string          `json:"name"`
	Definition json.RawMessage `json:"definition"`
}

// RunResponse — итог запуска pipeline.
type RunResponse struct {
	RunID      string                    `json:"run_id"`
	PipelineID string                    `json:"pipeline_id"`
	Outputs    map[string]map[string]any `json:"outputs"`
	Statuses   map[string]string         `json:"statuses"`
	Failed     map[string]string         `json:"failed,omitempty"`
	StartedAt  string                    `json:"started_at"`
	DurationMS int64                     `json:"duration_ms"`
}

// --- Request types ---

// ChatRequest — сообщение чата.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
	Pipeline  string `json:"pipeline,omitempty"`
}

// UploadDocumentRequest — загрузка документа.
type UploadDocumentRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для chat API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			// Запрос тянет за собой вызов LLM, 30 секунд мало
			Timeout: 2 * time.Minute,
		},
	}
}

// --- Chat ---

// SendChat отправляет сообщение чата.
func (c *Client) SendChat(req ChatRequest) (*ChatResult, error) {
	var result ChatResult
	err := c.post("/api/v1/chat", req, &result)
	return &result, err
}

// --- Sessions ---

// ListSessions возвращает сессии, свежие сверху.
func (c *Client) ListSessions(limit int) ([]SessionResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var sessions []SessionResponse
	err := c.list("/api/v1/sessions", params, &sessions)
	return sessions, err
}

// GetSession возвращает сессию по ID.
func (c *Client) GetSession(id string) (*SessionResponse, error) {
	var session SessionResponse
	err := c.get("/api/v1/sessions/"+id, &session)
	return &session, err
}

// ListMessages возвращает историю сессии.
func (c *Client) ListMessages(sessionID string) ([]MessageResponse, error) {
	var messages []MessageResponse
	err := c.list("/api/v1/sessions/"+sessionID+"/messages", nil, &messages)
	return messages, err
}

// ListDocuments возвращает документы сессии.
func (c *Client) ListDocuments(sessionID string) ([]DocumentResponse, error) {
	var documents []DocumentResponse
	err := c.list("/api/v1/sessions/"+sessionID+"/documents", nil, &documents)
	return documents, err
}

// UploadDocument прикрепляет текстовый документ к сессии.
func (c *Client) UploadDocument(sessionID string, req UploadDocumentRequest) (*DocumentResponse, error) {
	var doc DocumentResponse
	err := c.post("/api/v1/sessions/"+sessionID+"/documents", req, &doc)
	return &doc, err
}

// --- Pipelines ---

// ListPipelines возвращает имена зарегистрированных pipeline.
func (c *Client) ListPipelines() ([]PipelineSummary, error) {
	var pipelines []PipelineSummary
	err := c.list("/api/v1/pipelines", nil, &pipelines)
	return pipelines, err
}

// GetPipeline возвращает определение pipeline.
func (c *Client) GetPipeline(name string) (*PipelineResponse, error) {
	var pipeline PipelineResponse
	err := c.get("/api/v1/pipelines/"+name, &pipeline)
	return &pipeline, err
}

// PublishPipeline публикует определение pipeline.
func (c *Client) PublishPipeline(definition json.RawMessage) (*PipelineResponse, error) {
	body := map[string]json.RawMessage{"definition": definition}
	var pipeline PipelineResponse
	err := c.post("/api/v1/pipelines", body, &pipeline)
	return &pipeline, err
}

// ErrRunFailed — запуск pipeline завершился падением шагов;
// частичный результат при этом возвращается.
var ErrRunFailed = errors.New("pipeline run failed")

// RunPipeline выполняет pipeline с произвольным входом.
//
// При падении шагов API отвечает 422 с частичным результатом: он
// возвращается вместе с ErrRunFailed.
func (c *Client) RunPipeline(name string, input map[string]any) (*RunResponse, error) {
	body := map[string]any{"input": input}

	resp, err := c.do(http.MethodPost, "/api/v1/pipelines/"+name+"/runs", body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnprocessableEntity {
		var dr dataResponse
		if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}
		var run RunResponse
		if err := json.Unmarshal(dr.Data, &run); err != nil {
			return nil, err
		}
		return &run, ErrRunFailed
	}

	if err := c.checkError(resp); err != nil {
		return nil, err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	var run RunResponse
	if err := json.Unmarshal(dr.Data, &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
