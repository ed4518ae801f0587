// Package mq carries portal events to a message broker.
package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrClosed is returned by backends used after Close.
var ErrClosed = errors.New("mq: backend closed")

// Message is one delivery, independent of the broker it came from.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Handler processes a delivery. A non-nil error asks the broker to deliver
// the message again.
type Handler func(ctx context.Context, msg Message) error

// Backend is implemented by each broker client.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, channel string, handler Handler) error
	Close() error
}

type MQ struct {
	backend Backend
}

func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Publish sends data to channel and returns the broker's message id.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// PublishJSON encodes v and publishes it with a JSON content-type attribute.
func (m *MQ) PublishJSON(ctx context.Context, channel string, v any, attrs map[string]string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding %s payload: %w", channel, err)
	}
	merged := map[string]string{"content_type": "application/json"}
	for k, val := range attrs {
		merged[k] = val
	}
	return m.backend.Publish(ctx, channel, data, merged)
}

// Subscribe blocks, passing each message on channel to handler, until ctx
// is done or the broker fails.
func (m *MQ) Subscribe(ctx context.Context, channel string, handler Handler) error {
	return m.backend.Subscribe(ctx, channel, handler)
}

func (m *MQ) Close() error {
	return m.backend.Close()
}
