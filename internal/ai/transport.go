package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// Strategy selects how the output contract is enforced.
type Strategy string

const (
	StrategyStructured Strategy = "structured"
	StrategyDegraded   Strategy = "degraded"
)

// ChatRequest is one outbound completion call.
type ChatRequest struct {
	Model        string
	SystemPrompt string
	UserText     string
	Strategy     Strategy
	Temperature  float32
	MaxTokens    int
}

func (r ChatRequest) toOpenAI() openai.ChatCompletionRequest {
	system := r.SystemPrompt
	format := &openai.ChatCompletionResponseFormat{
		Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
		JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
			Name:   SchemaName,
			Schema: EventSchema,
			Strict: true,
		},
	}
	if r.Strategy == StrategyDegraded {
		system = appendSchemaInstructions(system)
		format = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	return openai.ChatCompletionRequest{
		Model: r.Model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: system,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: r.UserText,
			},
		},
		ResponseFormat: format,
		Temperature:    r.Temperature,
		MaxTokens:      r.MaxTokens,
	}
}

// Transport is one path to the completion endpoint. Upstream HTTP failures
// are returned as *openai.APIError or *openai.RequestError.
type Transport interface {
	Name() string
	Complete(ctx context.Context, req ChatRequest) (string, error)
}

// SDKTransport calls the endpoint through the go-openai client.
type SDKTransport struct {
	client *openai.Client
}

func NewSDKTransport(apiKey, baseURL string, httpClient *http.Client) *SDKTransport {
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL
	if httpClient != nil {
		config.HTTPClient = httpClient
	}

	return &SDKTransport{
		client: openai.NewClientWithConfig(config),
	}
}

func (t *SDKTransport) Name() string { return "sdk" }

func (t *SDKTransport) Complete(ctx context.Context, req ChatRequest) (string, error) {
	resp, err := t.client.CreateChatCompletion(ctx, req.toOpenAI())
	if err != nil {
		return "", fmt.Errorf("failed to call AI API: %w", err)
	}
	return firstContent(resp)
}

// HTTPTransport posts the request body directly with net/http. It exists for
// gateways that reject the SDK's request shape or headers.
type HTTPTransport struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPTransport(apiKey, baseURL string, httpClient *http.Client) *HTTPTransport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPTransport{
		endpoint: strings.TrimRight(baseURL, "/") + "/chat/completions",
		apiKey:   apiKey,
		client:   httpClient,
	}
}

func (t *HTTPTransport) Name() string { return "http" }

func (t *HTTPTransport) Complete(ctx context.Context, req ChatRequest) (string, error) {
	reqBody, err := json.Marshal(req.toOpenAI())
	if err != nil {
		return "", fmt.Errorf("failed to marshal request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to do request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read body: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusBadRequest {
		return "", upstreamError(resp, body)
	}

	var completion openai.ChatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return firstContent(completion)
}

// upstreamError builds the same error values the SDK returns for a non-2xx
// answer, so one Classifier serves both transports.
func upstreamError(resp *http.Response, body []byte) error {
	var errRes openai.ErrorResponse
	err := json.Unmarshal(body, &errRes)
	if err != nil || errRes.Error == nil {
		return &openai.RequestError{
			HTTPStatus:     resp.Status,
			HTTPStatusCode: resp.StatusCode,
			Err:            err,
			Body:           body,
		}
	}

	errRes.Error.HTTPStatus = resp.Status
	errRes.Error.HTTPStatusCode = resp.StatusCode
	return errRes.Error
}

func firstContent(resp openai.ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	content := resp.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", ErrEmptyCompletion
	}
	return content, nil
}

// NewHTTPClient returns the client both transports share. A nil proxy means
// direct connections; the process environment is not consulted again.
func NewHTTPClient(proxy *url.URL) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	if proxy != nil {
		transport.Proxy = http.ProxyURL(proxy)
	}
	return &http.Client{Transport: transport}
}
