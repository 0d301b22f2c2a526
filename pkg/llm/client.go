// Package llm provides a client for OpenAI-compatible chat completion APIs.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"codehelp-go/internal/config"
)

var (
	// ErrTimeout is returned when the request exceeds its deadline.
	ErrTimeout = errors.New("llm request timed out")
	// ErrNetwork covers transport failures and non-200 responses without an error payload.
	ErrNetwork = errors.New("llm network or api error")
	// ErrMalformedResponse is returned when a 200 response cannot be decoded.
	ErrMalformedResponse = errors.New("llm returned a malformed response")
)

// Kind tags the shape of a decoded upstream response.
type Kind int

const (
	// KindOK means at least one choice came back.
	KindOK Kind = iota
	// KindUpstreamError means the payload carried an error object.
	KindUpstreamError
	// KindEmpty means the payload had neither choices nor an error.
	KindEmpty
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindUpstreamError:
		return "upstream_error"
	case KindEmpty:
		return "empty"
	default:
		return "unknown"
	}
}

// Result is an upstream response resolved into a tagged variant.
// Content and Reasoning are set for KindOK, ErrorMessage for KindUpstreamError.
type Result struct {
	Kind         Kind
	Content      string
	Reasoning    string
	ErrorMessage string
}

// Message is a single role-tagged chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerationParams controls sampling. Nil fields are omitted from the request.
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// Request describes one completion call.
type Request struct {
	Model    string
	Messages []Message
	Params   *GenerationParams
	// Timeout bounds the whole call. Zero means only ctx applies.
	Timeout time.Duration
}

// Client defines the interface for an LLM client.
type Client interface {
	// Complete performs a single, non-streaming completion call.
	// Transport failures come back as errors wrapping ErrTimeout, ErrNetwork or
	// ErrMalformedResponse; everything the upstream said is in Result.
	Complete(ctx context.Context, req Request) (Result, error)
}

type openRouterClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewClient creates a client for the endpoint and credential in cfg.
func NewClient(cfg config.LLMConfig) Client {
	return NewClientWithHTTP(cfg.BaseURL, cfg.APIKey, &http.Client{})
}

// NewClientWithHTTP is NewClient with an explicit base URL and http.Client.
func NewClientWithHTTP(baseURL, apiKey string, httpClient *http.Client) Client {
	return &openRouterClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  httpClient,
	}
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream,omitempty"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
	Choices []struct {
		Message struct {
			Content   string `json:"content"`
			Reasoning string `json:"reasoning"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *openRouterClient) Complete(ctx context.Context, req Request) (Result, error) {
	reqBody := chatRequest{
		Model:    req.Model,
		Messages: req.Messages,
	}
	if req.Params != nil {
		reqBody.Temperature = req.Params.Temperature
		reqBody.TopP = req.Params.TopP
		reqBody.MaxTokens = req.Params.MaxTokens
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return Result{}, fmt.Errorf("failed to create chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return Result{}, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, classifyTransportError(err)
	}

	var decoded chatResponse
	decodeErr := json.Unmarshal(body, &decoded)
	if decodeErr == nil && decoded.Error != nil {
		return Result{Kind: KindUpstreamError, ErrorMessage: decoded.Error.Message}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("%w: status %s, body: %s", ErrNetwork, resp.Status, truncate(string(body), 200))
	}
	if decodeErr != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, decodeErr)
	}
	if len(decoded.Choices) == 0 {
		return Result{Kind: KindEmpty}, nil
	}

	msg := decoded.Choices[0].Message
	return Result{Kind: KindOK, Content: msg.Content, Reasoning: msg.Reasoning}, nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
