package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/foodscout/foodscout/pkg/errors"
)

// OllamaProvider implements the Provider interface for Ollama.
type OllamaProvider struct {
	baseURL string
	client  *http.Client
}

// NewOllama creates a new OllamaProvider.
func NewOllama(baseURL string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	return &OllamaProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 120 * time.Second},
	}
}

type ollamaRequest struct {
	Model    string                 `json:"model"`
	Messages []Message              `json:"messages"`
	Stream   bool                   `json:"stream"`
	Tools    []Tool                 `json:"tools,omitempty"`
	Options  map[string]interface{} `json:"options,omitempty"`
}

// ollamaMessage mirrors the wire shape of Ollama's chat message. It
// differs from Message in two ways: reasoning models emit a separate
// "thinking" field, and tool call arguments arrive as a JSON object
// rather than an encoded string.
type ollamaMessage struct {
	Role      Role             `json:"role"`
	Content   string           `json:"content"`
	Thinking  string           `json:"thinking,omitempty"`
	ToolCalls []ollamaToolCall `json:"tool_calls,omitempty"`
}

type ollamaToolCall struct {
	Function struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	} `json:"function"`
}

type ollamaResponse struct {
	Message         ollamaMessage `json:"message"`
	Done            bool          `json:"done"`
	TotalDuration   int64         `json:"total_duration"` // nanos
	EvalCount       int           `json:"eval_count"`
	PromptEvalCount int           `json:"prompt_eval_count"`
}

// Chat sends a chat request to Ollama and maps the response to ChatResponse.
// Reasoning output in the "thinking" field stays inside this adapter;
// callers only ever see the final content and tool calls.
func (p *OllamaProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	oReq := ollamaRequest{
		Model:    req.Model,
		Messages: req.Messages,
		Stream:   false,
		Tools:    req.Tools,
	}

	if req.Temperature != 0 {
		oReq.Options = map[string]interface{}{
			"temperature": req.Temperature,
		}
	}

	body, err := json.Marshal(oReq)
	if err != nil {
		return nil, errors.New(errors.CodeLLMError, "failed to marshal ollama request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, errors.New(errors.CodeLLMError, "failed to create http request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, errors.New(errors.CodeLLMError, "ollama api call failed", err).
			WithRecoverable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		aerr := errors.Newf(errors.CodeLLMError, "ollama api returned status %d", resp.StatusCode)
		if resp.StatusCode >= 500 {
			aerr = aerr.WithRecoverable(true)
		}
		return nil, aerr
	}

	var oResp ollamaResponse
	if err := json.NewDecoder(resp.Body).Decode(&oResp); err != nil {
		return nil, errors.New(errors.CodeLLMError, "failed to decode ollama response", err)
	}

	content := oResp.Message.Content
	if content == "" && len(oResp.Message.ToolCalls) == 0 {
		// Some reasoning models leave the answer in the thinking field.
		content = oResp.Message.Thinking
	}

	return &ChatResponse{
		Content:   content,
		ToolCalls: normalizeToolCalls(oResp.Message.ToolCalls),
		Usage: Usage{
			PromptTokens:     oResp.PromptEvalCount,
			CompletionTokens: oResp.EvalCount,
			TotalTokens:      oResp.PromptEvalCount + oResp.EvalCount,
		},
	}, nil
}

func normalizeToolCalls(calls []ollamaToolCall) []ToolCall {
	if len(calls) == 0 {
		return nil
	}
	out := make([]ToolCall, 0, len(calls))
	for _, c := range calls {
		args := string(c.Function.Arguments)
		if args == "" {
			args = "{}"
		}
		out = append(out, ToolCall{
			Type: ToolTypeFunction,
			Function: FunctionCall{
				Name:      c.Function.Name,
				Arguments: args,
			},
		})
	}
	return out
}
