package llm

import (
	"context"
	"io"
	"iter"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/genai"
)

// GeminiClient serves chat replies from the Gemini API.
type GeminiClient struct {
	client      *genai.Client
	model       string
	maxTokens   int32
	temperature float32
}

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create gemini client")
	}
	return &GeminiClient{client: client, model: model, maxTokens: 500, temperature: 0.7}, nil
}

func (c *GeminiClient) Stream(ctx context.Context, messages []Message) (TextStream, error) {
	system, contents := geminiContents(messages)
	seq := c.client.Models.GenerateContentStream(ctx, c.model, contents, c.config(system))
	next, stop := iter.Pull2(seq)
	return &geminiStream{next: next, stop: stop}, nil
}

func (c *GeminiClient) Complete(ctx context.Context, messages []Message) (string, error) {
	system, contents := geminiContents(messages)
	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, c.config(system))
	if err != nil {
		return "", errors.Wrap(err, "gemini generate content")
	}
	return strings.TrimSpace(resp.Text()), nil
}

func (c *GeminiClient) config(system *genai.Content) *genai.GenerateContentConfig {
	return &genai.GenerateContentConfig{
		SystemInstruction: system,
		MaxOutputTokens:   c.maxTokens,
		Temperature:       genai.Ptr(c.temperature),
	}
}

// geminiContents splits out the system prompt; Gemini calls the assistant "model".
func geminiContents(messages []Message) (*genai.Content, []*genai.Content) {
	var system *genai.Content
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			system = genai.NewContentFromText(m.Content, genai.RoleUser)
		case RoleAssistant:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleModel))
		default:
			contents = append(contents, genai.NewContentFromText(m.Content, genai.RoleUser))
		}
	}
	return system, contents
}

type geminiStream struct {
	next func() (*genai.GenerateContentResponse, error, bool)
	stop func()
}

func (s *geminiStream) Recv() (string, error) {
	for {
		resp, err, ok := s.next()
		if !ok {
			return "", io.EOF
		}
		if err != nil {
			return "", errors.Wrap(err, "gemini stream")
		}
		if text := resp.Text(); text != "" {
			return text, nil
		}
	}
}

func (s *geminiStream) Close() error {
	s.stop()
	return nil
}
