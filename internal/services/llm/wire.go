package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

type chatRequest struct {
	Model          string            `json:"model"`
	Messages       []chatMessage     `json:"messages"`
	Temperature    float64           `json:"temperature"`
	ResponseFormat map[string]string `json:"response_format,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse accepts the shapes seen from OpenRouter's upstream providers:
// message content, a streaming-style delta, legacy text, and function or tool
// call arguments.
type chatResponse struct {
	Choices []struct {
		Message      replyMessage `json:"message"`
		Delta        replyMessage `json:"delta"`
		Text         string       `json:"text"`
		FinishReason string       `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

type replyMessage struct {
	Content   string `json:"content"`
	Refusal   string `json:"refusal"`
	ToolCalls []struct {
		Function functionCall `json:"function"`
	} `json:"tool_calls"`
	FunctionCall *functionCall `json:"function_call"`
}

type functionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// arguments returns the first non-empty function or tool call payload.
func (m replyMessage) arguments() string {
	if m.FunctionCall != nil {
		if args := strings.TrimSpace(m.FunctionCall.Arguments); args != "" {
			return args
		}
	}
	for _, call := range m.ToolCalls {
		if args := strings.TrimSpace(call.Function.Arguments); args != "" {
			return args
		}
	}
	return ""
}

type reply struct {
	content      string
	finishReason string
	refusal      string
}

// firstReply picks the first choice that carries any text.
func (r chatResponse) firstReply() reply {
	var out reply
	for _, choice := range r.Choices {
		if out.finishReason == "" {
			out.finishReason = strings.TrimSpace(choice.FinishReason)
		}
		if out.refusal == "" {
			out.refusal = firstNonEmpty(choice.Message.Refusal, choice.Delta.Refusal)
		}
		content := firstNonEmpty(
			choice.Message.Content,
			choice.Delta.Content,
			choice.Text,
			choice.Message.arguments(),
			choice.Delta.arguments(),
		)
		if content != "" {
			out.content = content
			return out
		}
	}
	return out
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("llm request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type emptyContentError struct {
	Op           string
	FinishReason string
	Refusal      string
	Snippet      string
}

func (e *emptyContentError) Error() string {
	return fmt.Sprintf("%s: empty content (finish_reason=%q, refusal=%q, response_snippet=%s)",
		e.Op, e.FinishReason, e.Refusal, e.Snippet)
}

// send posts payload, retrying per the client's policy until a reply with
// content arrives.
func (c *Client) send(ctx context.Context, op string, payload chatRequest) (reply, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return reply{}, fmt.Errorf("%s: encode body: %w", op, err)
	}
	var last error
	attempts := c.retry.maxAttempts()
	for attempt := 1; attempt <= attempts; attempt++ {
		var got reply
		got, last = c.post(ctx, op, encoded)
		if last == nil {
			return got, nil
		}
		delay, again := c.retry.next(ctx, last, attempt)
		if !again {
			if attempt == 1 {
				return reply{}, last
			}
			return reply{}, fmt.Errorf("%s: failed after %d attempts: %w", op, attempt, last)
		}
		if err := c.retry.wait(ctx, delay); err != nil {
			return reply{}, err
		}
	}
	return reply{}, fmt.Errorf("%s: failed after %d attempts: %w", op, attempts, last)
}

func (c *Client) post(ctx context.Context, op string, body []byte) (reply, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return reply{}, fmt.Errorf("%s: new request: %w", op, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.Referer != "" {
		req.Header.Set("HTTP-Referer", c.cfg.Referer)
		req.Header.Set("Referer", c.cfg.Referer)
	}
	if c.cfg.Title != "" {
		req.Header.Set("X-Title", c.cfg.Title)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return reply{}, fmt.Errorf("%s: http error (timeout=%s): %w", op, c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return reply{}, fmt.Errorf("%s: read body: %w", op, err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return reply{}, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       string(raw),
			RetryAfter: resp.Header.Get("Retry-After"),
		}
	}

	var decoded chatResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return reply{}, fmt.Errorf("%s: decode response: %w", op, err)
	}
	if decoded.Error != nil {
		return reply{}, fmt.Errorf("%s: api error: %s", op, strings.TrimSpace(decoded.Error.Message))
	}
	if len(decoded.Choices) == 0 {
		return reply{}, fmt.Errorf("%s: empty choices", op)
	}
	got := decoded.firstReply()
	if got.content == "" {
		return reply{}, &emptyContentError{
			Op:           op,
			FinishReason: got.finishReason,
			Refusal:      got.refusal,
			Snippet:      snippet(string(raw)),
		}
	}
	return got, nil
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// snippet flattens whitespace and truncates content for error messages.
func snippet(content string) string {
	clean := strings.Join(strings.Fields(content), " ")
	if clean == "" {
		return "<empty>"
	}
	const limit = 160
	if runes := []rune(clean); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}
