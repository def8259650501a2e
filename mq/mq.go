package mq

import (
	"context"
	"encoding/json"
	"fmt"
)

type MessageQueue interface {
	Send(ctx context.Context, body string) error
	// Receive long-polls for one message and returns nil when none arrived
	Receive(ctx context.Context, visibilityTimeout int32) (*Message, error)
	Delete(ctx context.Context, msg *Message) error
}

type Message struct {
	// Id is the receipt handle used to delete the message
	Id   string
	Body string
	// Number of times the message has been received, including this one
	Attempts int
}

// SendJSON sends v encoded as JSON
func SendJSON(ctx context.Context, queue MessageQueue, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}
	return queue.Send(ctx, string(body))
}

// Decode unmarshals the message body into v
func (m *Message) Decode(v any) error {
	return json.Unmarshal([]byte(m.Body), v)
}
