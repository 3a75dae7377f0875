package llm

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// AssistantClient usa el modo con estado: thread + run + poll + lectura de mensajes.
type AssistantClient struct {
	transport
	assistantID     string
	pollInterval    time.Duration
	maxPollAttempts int
}

func NewAssistantClient(baseURL, apiKey, assistantID string, pollInterval time.Duration, maxPollAttempts int, logger *zap.Logger) *AssistantClient {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	if maxPollAttempts <= 0 {
		maxPollAttempts = 30
	}
	t := newTransport(baseURL, apiKey, logger)
	t.headers["OpenAI-Beta"] = "assistants=v2"
	return &AssistantClient{
		transport:       t,
		assistantID:     assistantID,
		pollInterval:    pollInterval,
		maxPollAttempts: maxPollAttempts,
	}
}

func (c *AssistantClient) Complete(ctx context.Context, r Request) (string, error) {
	if strings.TrimSpace(c.assistantID) == "" {
		return "", fmt.Errorf("assistant id not configured")
	}

	var thread idResponse
	if err := c.doJSON(ctx, http.MethodPost, "/threads", struct{}{}, &thread); err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}

	msg := map[string]string{"role": "user", "content": r.Prompt}
	if err := c.doJSON(ctx, http.MethodPost, "/threads/"+thread.ID+"/messages", msg, nil); err != nil {
		return "", fmt.Errorf("add message: %w", err)
	}

	runReq := map[string]string{"assistant_id": c.assistantID}
	if strings.TrimSpace(r.System) != "" {
		runReq["additional_instructions"] = r.System
	}
	var run runResponse
	if err := c.doJSON(ctx, http.MethodPost, "/threads/"+thread.ID+"/runs", runReq, &run); err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}

	if err := c.waitRun(ctx, thread.ID, &run); err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("order", "desc")
	q.Set("limit", "10")
	var list messageList
	if err := c.doJSON(ctx, http.MethodGet, "/threads/"+thread.ID+"/messages?"+q.Encode(), nil, &list); err != nil {
		return "", fmt.Errorf("list messages: %w", err)
	}
	for _, m := range list.Data {
		if m.Role != "assistant" {
			continue
		}
		var sb strings.Builder
		for _, part := range m.Content {
			if part.Type == "text" {
				sb.WriteString(part.Text.Value)
			}
		}
		if out := strings.TrimSpace(sb.String()); out != "" {
			return out, nil
		}
	}
	return "", ErrEmptyResponse
}

// waitRun sondea el run hasta un estado terminal o hasta agotar maxPollAttempts.
func (c *AssistantClient) waitRun(ctx context.Context, threadID string, run *runResponse) error {
	for attempt := 0; attempt < c.maxPollAttempts; attempt++ {
		switch run.Status {
		case "completed":
			return nil
		case "failed", "cancelled", "expired", "incomplete":
			if run.LastError != nil && run.LastError.Code == "rate_limit_exceeded" {
				return &RateLimitError{RetryAfter: defaultRetryAfter, Message: run.LastError.Message}
			}
			reason := run.Status
			if run.LastError != nil {
				reason += ": " + run.LastError.Message
			}
			return fmt.Errorf("assistant run %s", reason)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.pollInterval):
		}

		if err := c.doJSON(ctx, http.MethodGet, "/threads/"+threadID+"/runs/"+run.ID, nil, run); err != nil {
			return fmt.Errorf("poll run: %w", err)
		}
	}
	if run.Status == "completed" {
		return nil
	}
	c.logger.Warn("assistant run did not finish", zap.String("run_id", run.ID), zap.String("status", run.Status), zap.Int("attempts", c.maxPollAttempts))
	return ErrPollTimeout
}

type idResponse struct {
	ID string `json:"id"`
}

type runResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error,omitempty"`
}

type messageList struct {
	Data []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"data"`
}
