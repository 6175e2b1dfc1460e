package llm

import "context"

// EchoProvider repeats the last user message. It keeps the voice loop usable
// without any chat backend configured.
type EchoProvider struct{}

func (EchoProvider) Stream(_ context.Context, messages []Message) (TextStream, error) {
	return NewSliceStream(echo(messages)), nil
}

func (EchoProvider) Complete(_ context.Context, messages []Message) (string, error) {
	return echo(messages), nil
}

func echo(messages []Message) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return "I heard you say: " + messages[i].Content
		}
	}
	return ""
}
