package llm

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

const DefaultOpenAIURL = "https://api.openai.com/v1"

// OpenAIClient talks to OpenAI or any OpenAI-compatible endpoint such as an
// OpenClaw gateway.
type OpenAIClient struct {
	Client      *openai.Client
	Model       string
	MaxTokens   int
	Temperature float32
}

func NewOpenAIClient(apiKey, baseURL, model string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL = strings.TrimRight(baseURL, "/"); baseURL != "" && baseURL != DefaultOpenAIURL {
		cfg.BaseURL = baseURL
	}
	log.Infof("OpenAI client ready (model: %s)", model)
	return &OpenAIClient{
		Client:      openai.NewClientWithConfig(cfg),
		Model:       model,
		MaxTokens:   500,
		Temperature: 0.7,
	}
}

// GatewayBaseURL normalises an OpenClaw gateway URL to its /v1 API root.
func GatewayBaseURL(gatewayURL string) string {
	base := strings.TrimRight(gatewayURL, "/")
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base
}

func (c *OpenAIClient) Stream(ctx context.Context, messages []Message) (TextStream, error) {
	req := c.request(messages)
	req.Stream = true

	log.Debugf("sending chat request: model=%s, messages=%d", c.Model, len(messages))
	stream, err := c.Client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, errors.Wrap(err, "create chat completion stream")
	}
	return &openAIStream{stream: stream}, nil
}

func (c *OpenAIClient) Complete(ctx context.Context, messages []Message) (string, error) {
	resp, err := c.Client.CreateChatCompletion(ctx, c.request(messages))
	if err != nil {
		return "", errors.Wrap(err, "create chat completion")
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func (c *OpenAIClient) request(messages []Message) openai.ChatCompletionRequest {
	out := make([]openai.ChatCompletionMessage, 0, len(messages))
	for _, m := range messages {
		out = append(out, openai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	return openai.ChatCompletionRequest{
		Model:       c.Model,
		Messages:    out,
		MaxTokens:   c.MaxTokens,
		Temperature: c.Temperature,
	}
}

type openAIStream struct {
	stream *openai.ChatCompletionStream
}

func (s *openAIStream) Recv() (string, error) {
	for {
		resp, err := s.stream.Recv()
		if err != nil {
			return "", err
		}
		if len(resp.Choices) == 0 {
			continue
		}
		if text := resp.Choices[0].Delta.Content; text != "" {
			return text, nil
		}
	}
}

func (s *openAIStream) Close() error {
	return s.stream.Close()
}
