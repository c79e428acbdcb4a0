// Copyright (c) 2026 Fitclub. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package events publishes domain events to other Fitclub services.

Publishing happens after the database transaction has committed. A failed
publish is logged by the caller and never rolls back the change it describes.
*/
package events

import (
	"context"
	"sync"
)

// Publisher delivers a JSON-encodable payload to a named topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) error
}

// # Noop

// Noop discards every event. It is used when no broker is configured.
type Noop struct{}

// Publish implements [Publisher].
func (Noop) Publish(context.Context, string, any) error { return nil }

// # Recorder

// Message is one event captured by a [Recorder].
type Message struct {
	Topic   string
	Payload any
}

// Recorder keeps published events in memory. It is safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	messages []Message

	// Err, when set, is returned by every Publish call after recording.
	Err error
}

// Publish implements [Publisher].
func (recorder *Recorder) Publish(_ context.Context, topic string, payload any) error {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()

	recorder.messages = append(recorder.messages, Message{Topic: topic, Payload: payload})
	return recorder.Err
}

// Messages returns a copy of everything published so far.
func (recorder *Recorder) Messages() []Message {
	recorder.mu.Lock()
	defer recorder.mu.Unlock()

	out := make([]Message, len(recorder.messages))
	copy(out, recorder.messages)
	return out
}
