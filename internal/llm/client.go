package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// Request es un pedido de completion: instruccion de sistema + prompt del usuario.
type Request struct {
	System string
	Prompt string
}

// Client define la interfaz de completion de texto.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// transport encapsula las llamadas JSON contra la API OpenAI-compatible.
type transport struct {
	baseURL    string
	apiKey     string
	client     *http.Client
	logger     *zap.Logger
	headers    map[string]string
	maxRetries uint64
	retryBase  time.Duration
}

func newTransport(baseURL, apiKey string, logger *zap.Logger) transport {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return transport{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		client:     &http.Client{Timeout: 60 * time.Second},
		logger:     logger,
		headers:    map[string]string{},
		maxRetries: 2,
		retryBase:  500 * time.Millisecond,
	}
}

// doJSON reintenta errores de conectividad y 5xx de gateway; 429 nunca se reintenta.
func (t transport) doJSON(ctx context.Context, method, path string, in, out any) error {
	var payload []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = b
	}

	backoff := retry.WithMaxRetries(t.maxRetries, retry.NewExponential(t.retryBase))
	var (
		respBody  []byte
		transient bool
	)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var body io.Reader
		if payload != nil {
			body = bytes.NewReader(payload)
		}
		transient = false
		req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+t.apiKey)
		req.Header.Set("Content-Type", "application/json")
		for k, v := range t.headers {
			req.Header.Set(k, v)
		}

		resp, err := t.client.Do(req)
		if err != nil {
			t.logger.Warn("llm request failed", zap.String("path", path), zap.Error(err))
			transient = true
			return retry.RetryableError(fmt.Errorf("do request: %w", err))
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			transient = true
			return retry.RetryableError(fmt.Errorf("read response: %w", err))
		}

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return &RateLimitError{RetryAfter: parseRetryAfter(resp.Header), Message: apiErrorMessage(respBody)}
		case resp.StatusCode == http.StatusBadGateway,
			resp.StatusCode == http.StatusServiceUnavailable,
			resp.StatusCode == http.StatusGatewayTimeout:
			t.logger.Warn("llm gateway error", zap.Int("status", resp.StatusCode), zap.String("path", path))
			transient = true
			return retry.RetryableError(fmt.Errorf("llm http error: status=%d", resp.StatusCode))
		case resp.StatusCode >= 400:
			t.logger.Error("llm error status", zap.Int("status", resp.StatusCode), zap.String("body", string(respBody)))
			return fmt.Errorf("llm http error: status=%d", resp.StatusCode)
		}
		return nil
	})
	if err != nil {
		var rl *RateLimitError
		if errors.As(err, &rl) || ctx.Err() != nil {
			return err
		}
		if transient {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func apiErrorMessage(body []byte) string {
	var env struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil || env.Error == nil {
		return ""
	}
	return env.Error.Message
}

// ChatClient implementa Client con una unica llamada a /chat/completions.
type ChatClient struct {
	transport
	model string
}

// NewChatClient construye un cliente apuntando a la API de chat completions.
func NewChatClient(baseURL, apiKey, model string, logger *zap.Logger) *ChatClient {
	return &ChatClient{
		transport: newTransport(baseURL, apiKey, logger),
		model:     model,
	}
}

func (c *ChatClient) Complete(ctx context.Context, r Request) (string, error) {
	reqBody := chatRequest{Model: c.model}
	if strings.TrimSpace(r.System) != "" {
		reqBody.Messages = append(reqBody.Messages, chatMessage{Role: "system", Content: r.System})
	}
	reqBody.Messages = append(reqBody.Messages, chatMessage{Role: "user", Content: r.Prompt})

	var cr chatResponse
	if err := c.doJSON(ctx, http.MethodPost, "/chat/completions", reqBody, &cr); err != nil {
		return "", err
	}
	if cr.Error != nil {
		return "", fmt.Errorf("llm api error: %s", cr.Error.Message)
	}
	if len(cr.Choices) == 0 || cr.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return cr.Choices[0].Message.Content, nil
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}
