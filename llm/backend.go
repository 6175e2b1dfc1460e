// Package llm drives the chat completion backend: provider clients, the
// per-connection conversation history, and sentence segmentation of the
// streamed reply.
package llm

import (
	"context"
	"io"
)

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	Role    Role
	Content string
}

// TextStream yields reply fragments in order. Recv returns io.EOF once the
// reply is complete.
type TextStream interface {
	Recv() (string, error)
	Close() error
}

// Provider is a stateless chat completion client shared by every connection.
type Provider interface {
	Stream(ctx context.Context, messages []Message) (TextStream, error)
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Backend streams a reply to one user message, keeping whatever history it
// needs between calls.
type Backend interface {
	ChatStream(ctx context.Context, message string) (TextStream, error)
}

// SliceStream replays fixed fragments. Used by the echo provider and as a
// fallback carrier.
type SliceStream struct {
	fragments []string
	pos       int
}

func NewSliceStream(fragments ...string) *SliceStream {
	return &SliceStream{fragments: fragments}
}

func (s *SliceStream) Recv() (string, error) {
	if s.pos >= len(s.fragments) {
		return "", io.EOF
	}
	f := s.fragments[s.pos]
	s.pos++
	return f, nil
}

func (s *SliceStream) Close() error { return nil }
