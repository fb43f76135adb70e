package llm

import "context"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Request struct {
	Model       string
	Messages    []Message
	Temperature float64
	TopP        float64
}

// Stream is a finite, non-restartable sequence of text fragments produced
// incrementally by the upstream model. Recv returns io.EOF once generation
// completes; fragments are never empty.
type Stream interface {
	Recv() (string, error)
	Close() error
}

type StreamClient interface {
	ChatStream(ctx context.Context, req Request) (Stream, error)
}

const (
	DefaultModel       = "gpt-3.5-turbo"
	DefaultTemperature = 0.7
	DefaultTopP        = 1.0
)
