package llm

import (
	"context"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2/log"
	"github.com/pkg/errors"
)

const (
	DefaultSystemPrompt = "You are a helpful voice assistant. Keep responses concise and conversational. " +
		"Aim for 1-2 sentences unless more detail is needed."

	// VoiceGatewayPrompt is used when replies come from an OpenClaw gateway agent.
	VoiceGatewayPrompt = "This conversation is happening via real-time voice chat. " +
		"Keep responses concise and conversational, a few sentences " +
		"at most unless the topic genuinely needs depth. " +
		"No markdown, bullet points, code blocks, or special formatting."

	// FailureReply is spoken when neither streaming nor the plain completion works.
	FailureReply = "Sorry, I had trouble processing that."

	historyWindow = 10
)

// Conversation is one connection's chat history on top of a shared Provider.
// It is not safe for concurrent use; the owning pipeline drives it from a
// single goroutine.
type Conversation struct {
	provider     Provider
	systemPrompt string
	history      []Message
}

func NewConversation(provider Provider, systemPrompt string) *Conversation {
	if strings.TrimSpace(systemPrompt) == "" {
		systemPrompt = DefaultSystemPrompt
	}
	return &Conversation{provider: provider, systemPrompt: systemPrompt}
}

// ChatStream records the user message and streams the reply. The assistant
// message is appended to the history once the returned stream reaches EOF or
// is closed.
func (c *Conversation) ChatStream(ctx context.Context, message string) (TextStream, error) {
	if c.provider == nil {
		return nil, errors.New("conversation has no provider")
	}
	c.history = append(c.history, Message{Role: RoleUser, Content: message})
	messages := c.messages()

	upstream, err := c.provider.Stream(ctx, messages)
	if err != nil {
		log.Warnf("chat stream failed to start, falling back to completion: %v", err)
	}
	return &conversationStream{
		conv:     c,
		ctx:      ctx,
		messages: messages,
		upstream: upstream,
		failed:   err != nil,
	}, nil
}

// History returns a copy of the recorded messages, oldest first.
func (c *Conversation) History() []Message {
	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}

func (c *Conversation) Clear() {
	c.history = nil
}

func (c *Conversation) messages() []Message {
	recent := c.history
	if len(recent) > historyWindow {
		recent = recent[len(recent)-historyWindow:]
	}
	out := make([]Message, 0, len(recent)+1)
	out = append(out, Message{Role: RoleSystem, Content: c.systemPrompt})
	return append(out, recent...)
}

type conversationStream struct {
	conv     *Conversation
	ctx      context.Context
	messages []Message
	upstream TextStream
	failed   bool

	full         strings.Builder
	fallbackDone bool
	done         bool
}

func (s *conversationStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}

	if s.upstream != nil {
		for {
			chunk, err := s.upstream.Recv()
			if err == nil {
				if chunk == "" {
					continue
				}
				s.full.WriteString(chunk)
				return chunk, nil
			}
			_ = s.upstream.Close()
			s.upstream = nil
			if !errors.Is(err, io.EOF) {
				log.Warnf("chat stream failed: %v", err)
				s.failed = true
			}
			break
		}
		if strings.TrimSpace(s.full.String()) != "" {
			s.finish()
			return "", io.EOF
		}
		if !s.failed {
			log.Warn("chat stream returned no text, retrying without streaming")
		}
	}

	if !s.fallbackDone {
		s.fallbackDone = true
		text, err := s.conv.provider.Complete(s.ctx, s.messages)
		if err != nil {
			log.Errorf("chat completion fallback failed: %v", err)
		}
		text = strings.TrimSpace(text)
		if text == "" && s.failed {
			text = FailureReply
		}
		if text != "" {
			s.full.WriteString(text)
			return text, nil
		}
	}

	s.finish()
	return "", io.EOF
}

func (s *conversationStream) Close() error {
	var err error
	if s.upstream != nil {
		err = s.upstream.Close()
		s.upstream = nil
	}
	s.finish()
	return err
}

func (s *conversationStream) finish() {
	if s.done {
		return
	}
	s.done = true
	s.conv.history = append(s.conv.history, Message{Role: RoleAssistant, Content: s.full.String()})
}
