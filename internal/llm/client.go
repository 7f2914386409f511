// Package llm is the client for the Groq-compatible chat-completion
// endpoint: model selection by ordered probing, plus streaming and
// non-streaming completions.
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// DefaultModels is the candidate list tried in strict priority order.
var DefaultModels = []string{
	"llama-3.1-8b-instant",
	"llama-3.1-70b-versatile",
	"llama3-70b-8192",
	"gemma-7b-it",
	"gemma2-9b-it",
}

// Message is one role-tagged fragment of a completion request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Messages    []Message `json:"messages"`
	Model       string    `json:"model"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client talks to one Groq-compatible endpoint. The first model to
// answer a probe is cached for the process lifetime; the client is
// otherwise stateless across calls.
type Client struct {
	BaseURL string
	APIKey  string
	Models  []string
	HTTP    *http.Client

	mu           sync.Mutex
	workingModel string
}

// NewClient builds a client against baseURL with the default candidate
// model list.
func NewClient(baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = "https://api.groq.com/openai/v1"
	}
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Models:  DefaultModels,
		// no global timeout: streams can run long, ctx controls them
		HTTP: &http.Client{},
	}
}

func (c *Client) endpoint() string {
	return fmt.Sprintf("%s/chat/completions", strings.TrimRight(c.BaseURL, "/"))
}

func (c *Client) newRequest(ctx context.Context, body any) (*http.Request, error) {
	b, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(), bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
	return req, nil
}

// ResolveModel returns the working model, probing the candidate list in
// priority order on first use. The first candidate to succeed is cached
// and returned on every later call without further network traffic.
// Returns ErrNoWorkingModel when every candidate is rejected.
func (c *Client) ResolveModel(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.workingModel != "" {
		return c.workingModel, nil
	}

	for _, model := range c.Models {
		if err := c.probe(ctx, model); err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			continue
		}
		c.workingModel = model
		return model, nil
	}
	return "", ErrNoWorkingModel
}

// probe issues a minimal low-cost completion against one candidate.
func (c *Client) probe(ctx context.Context, model string) error {
	pctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	req, err := c.newRequest(pctx, chatRequest{
		Messages:    []Message{{Role: "user", Content: "Hi"}},
		Model:       model,
		Temperature: 0.7,
		MaxTokens:   10,
		Stream:      false,
	})
	if err != nil {
		return err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{Status: resp.StatusCode}
	}
	return nil
}

// ResetModel drops the cached model so the next call re-probes.
func (c *Client) ResetModel() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.workingModel = ""
}

// Chat issues a non-streaming completion and returns the full reply.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	model, err := c.ResolveModel(ctx)
	if err != nil {
		return "", err
	}

	req, err := c.newRequest(ctx, chatRequest{
		Messages:    messages,
		Model:       model,
		Temperature: 0.7,
		MaxTokens:   2048,
		Stream:      false,
	})
	if err != nil {
		return "", err
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", readTransportError(resp)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return "", errors.New(decoded.Error.Message)
	}
	if len(decoded.Choices) == 0 {
		return "", errors.New("llm: empty response")
	}
	return decoded.Choices[0].Message.Content, nil
}

// StreamChat issues a streaming completion. Content deltas arrive on
// the first channel strictly in server order; at most one error arrives
// on the second. Both channels are closed when the stream ends.
func (c *Client) StreamChat(ctx context.Context, messages []Message) (<-chan string, <-chan error) {
	chunks := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(chunks)
		defer close(errs)

		model, err := c.ResolveModel(ctx)
		if err != nil {
			errs <- err
			return
		}

		req, err := c.newRequest(ctx, chatRequest{
			Messages:    messages,
			Model:       model,
			Temperature: 0.7,
			MaxTokens:   2048,
			Stream:      true,
		})
		if err != nil {
			errs <- err
			return
		}

		resp, err := c.HTTP.Do(req)
		if err != nil {
			errs <- err
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			errs <- readTransportError(resp)
			return
		}

		sc := bufio.NewScanner(resp.Body)
		buf := make([]byte, 0, 64*1024)
		sc.Buffer(buf, 2*1024*1024)

		for sc.Scan() {
			delta, outcome := decodeStreamLine(sc.Text())
			switch outcome {
			case lineDone:
				return
			case lineContent:
				select {
				case chunks <- delta:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
		}

		if err := sc.Err(); err != nil {
			errs <- &StreamReadError{Err: err}
		}
	}()

	return chunks, errs
}

func readTransportError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
	return &TransportError{
		Status: resp.StatusCode,
		Body:   strings.TrimSpace(string(body)),
	}
}
