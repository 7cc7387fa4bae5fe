// Package ollama implements llmclient.Client against Ollama's native HTTP
// API (/api/chat, /api/show, /api/tags), not the OpenAI-compatible
// surface. Streaming is NDJSON-over-HTTP rather than SSE: each line is a
// complete JSON object, the last one carrying done:true and usage.
//
// Grounded on the channel-based streaming shape of
// win30221-genesis/pkg/llm/ollama/client.go (handshake channel, thinking/
// content/tool-call chunk routing) and on the retry/backoff/error-
// classification policy pkg/devclaw/copilot/llm.go applies around its own
// HTTP calls, reimplemented here against llmclient.RetryPolicy instead of
// that file's fallback-chain variant since Skippy has exactly one
// provider and no model fallback list.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/UnfinishedBusiness/skippy/pkg/skippy/config"
	"github.com/UnfinishedBusiness/skippy/pkg/skippy/llmclient"
)

// Client talks to a single Ollama server.
type Client struct {
	baseURL      string
	apiKey       string
	defaultModel string
	http         *http.Client
	retry        llmclient.RetryPolicy
	stream       time.Duration
	logger       *slog.Logger
}

// New builds a Client from the Ollama section of the process config.
func New(cfg config.OllamaConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:      strings.TrimRight(cfg.Host, "/"),
		apiKey:       cfg.APIKey,
		defaultModel: cfg.Model,
		http:         &http.Client{Timeout: cfg.Timeout()},
		retry:        llmclient.RetryPolicy{MaxRetries: maxInt(cfg.MaxRetries, 0), Initial: time.Second, Max: 30 * time.Second},
		stream:       cfg.StreamInactivityTimeout(),
		logger:       logger,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

type wireMessage struct {
	Role      string         `json:"role"`
	Content   string         `json:"content,omitempty"`
	Images    []string       `json:"images,omitempty"`
	ToolCalls []wireToolCall `json:"tool_calls,omitempty"`
}

type wireToolCall struct {
	Function wireToolCallFn `json:"function"`
}

type wireToolCallFn struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []wireMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatStreamLine struct {
	Model      string      `json:"model"`
	CreatedAt  string      `json:"created_at"`
	Message    wireMessage `json:"message"`
	Done       bool        `json:"done"`
	DoneReason string      `json:"done_reason,omitempty"`

	PromptEvalCount int `json:"prompt_eval_count,omitempty"`
	EvalCount       int `json:"eval_count,omitempty"`
}

func toWireMessages(msgs []llmclient.Message) []wireMessage {
	out := make([]wireMessage, 0, len(msgs))
	for _, m := range msgs {
		wm := wireMessage{Role: m.Role, Content: m.Content, Images: m.Images}
		for _, tc := range m.ToolCalls {
			var args map[string]any
			_ = json.Unmarshal([]byte(tc.Arguments), &args)
			wm.ToolCalls = append(wm.ToolCalls, wireToolCall{Function: wireToolCallFn{Name: tc.Name, Arguments: args}})
		}
		out = append(out, wm)
	}
	return out
}

// Chat streams a chat completion. If the request fails before the stream
// starts, Chat returns the error. The returned channel is closed when the
// stream ends: after a ChunkFinal on success, or, when a failure happens
// once streaming has begun, after the error is logged, with no ChunkFinal
// sent — callers consume until the channel closes and check ctx.Err for
// cancellation.
func (c *Client) Chat(ctx context.Context, opts llmclient.ChatOptions) (<-chan llmclient.Chunk, error) {
	out := make(chan llmclient.Chunk)
	started := make(chan error, 1)

	go func() {
		defer close(out)
		err := c.retry.Do(ctx, func() error {
			return c.streamOnce(ctx, opts, out, started)
		})
		if err != nil {
			select {
			case started <- err:
			default:
			}
			c.logger.Error("ollama chat failed", "error", err)
		}
	}()

	select {
	case err := <-started:
		if err != nil {
			return nil, err
		}
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return out, nil
}

func (c *Client) streamOnce(ctx context.Context, opts llmclient.ChatOptions, out chan<- llmclient.Chunk, started chan<- error) error {
	model := opts.Model
	if model == "" {
		model = c.defaultModel
	}
	body, err := json.Marshal(chatRequest{Model: model, Messages: toWireMessages(opts.Messages), Stream: true})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := &llmclient.APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
		if ra := resp.Header.Get("Retry-After"); ra != "" {
			fmt.Sscanf(ra, "%d", &apiErr.RetryAfterSec)
		}
		return apiErr
	}

	select {
	case started <- nil:
	default:
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	inactivity := time.NewTimer(c.stream)
	defer inactivity.Stop()
	lineCh := make(chan string)
	scanErrCh := make(chan error, 1)
	go func() {
		for scanner.Scan() {
			lineCh <- scanner.Text()
		}
		scanErrCh <- scanner.Err()
		close(lineCh)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-inactivity.C:
			return &llmclient.APIError{StatusCode: 408, Body: "stream inactivity timeout"}
		case line, ok := <-lineCh:
			if !ok {
				return <-scanErrCh
			}
			if !inactivity.Stop() {
				<-inactivity.C
			}
			inactivity.Reset(c.stream)

			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			var sl chatStreamLine
			if err := json.Unmarshal([]byte(line), &sl); err != nil {
				c.logger.Warn("ollama stream line parse failed", "error", err)
				continue
			}

			if sl.Message.Content != "" {
				out <- llmclient.Chunk{Kind: llmclient.ChunkText, Text: sl.Message.Content}
			}
			if len(sl.Message.ToolCalls) > 0 {
				calls := make([]llmclient.ToolCall, 0, len(sl.Message.ToolCalls))
				for _, tc := range sl.Message.ToolCalls {
					argBytes, _ := json.Marshal(tc.Function.Arguments)
					calls = append(calls, llmclient.ToolCall{Name: tc.Function.Name, Arguments: string(argBytes)})
				}
				out <- llmclient.Chunk{Kind: llmclient.ChunkToolCall, ToolCalls: calls}
			}
			if sl.Done {
				out <- llmclient.Chunk{
					Kind:         llmclient.ChunkFinal,
					FinishReason: sl.DoneReason,
					Usage: llmclient.Usage{
						PromptTokens:     sl.PromptEvalCount,
						CompletionTokens: sl.EvalCount,
						TotalTokens:      sl.PromptEvalCount + sl.EvalCount,
					},
				}
				return nil
			}
		}
	}
}

type showRequest struct {
	Model string `json:"model"`
}

type showResponse struct {
	ModelInfo map[string]any `json:"model_info"`
	Details   struct {
		Family string `json:"family"`
	} `json:"details"`
}

// Introspect queries /api/show for a model's context window and family.
func (c *Client) Introspect(ctx context.Context, model string) (llmclient.ModelInfo, error) {
	body, _ := json.Marshal(showRequest{Model: model})
	var sr showResponse
	err := c.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/show", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return &llmclient.APIError{StatusCode: resp.StatusCode, Body: string(b)}
		}
		return json.NewDecoder(resp.Body).Decode(&sr)
	})
	if err != nil {
		return llmclient.ModelInfo{}, err
	}

	ctxWindow := 0
	for k, v := range sr.ModelInfo {
		if strings.HasSuffix(k, ".context_length") {
			if f, ok := v.(float64); ok {
				ctxWindow = int(f)
			}
		}
	}
	return llmclient.ModelInfo{Name: model, ContextWindow: ctxWindow, Family: sr.Details.Family}, nil
}

type tagsResponse struct {
	Models []struct {
		Name    string `json:"name"`
		Details struct {
			Family string `json:"family"`
		} `json:"details"`
	} `json:"models"`
}

// ListModels queries /api/tags for every model pulled on the server.
func (c *Client) ListModels(ctx context.Context) ([]llmclient.ModelInfo, error) {
	var tr tagsResponse
	err := c.retry.Do(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
		if err != nil {
			return err
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			b, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
			return &llmclient.APIError{StatusCode: resp.StatusCode, Body: string(b)}
		}
		return json.NewDecoder(resp.Body).Decode(&tr)
	})
	if err != nil {
		return nil, err
	}

	out := make([]llmclient.ModelInfo, 0, len(tr.Models))
	for _, m := range tr.Models {
		out = append(out, llmclient.ModelInfo{Name: m.Name, Family: m.Details.Family})
	}
	return out, nil
}

const summarizePrompt = "Condense the following tool capability documentation into a compact reference a language model can keep in its working context. Preserve every tool name, argument name, and behavioral constraint; drop prose and examples. Output only the condensed reference, no preamble."

// Summarize satisfies toolregistry.Summarizer: a single chat call, its
// streamed text chunks concatenated, that compresses text into the
// Condensed Tool Context.
func (c *Client) Summarize(ctx context.Context, text string) (string, error) {
	ch, err := c.Chat(ctx, llmclient.ChatOptions{
		Messages: []llmclient.Message{
			{Role: "system", Content: summarizePrompt},
			{Role: "user", Content: text},
		},
		Stream: true,
	})
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for chunk := range ch {
		if chunk.Kind == llmclient.ChunkText {
			sb.WriteString(chunk.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("ollama: summarize produced empty output")
	}
	return sb.String(), nil
}

var _ llmclient.Client = (*Client)(nil)
