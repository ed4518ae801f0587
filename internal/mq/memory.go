package mq

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// MemoryBackend delivers messages in-process. Published messages are kept
// per channel until a subscriber drains them; a full channel drops its
// oldest message so publishers never wait.
type MemoryBackend struct {
	mu     sync.Mutex
	queues map[string]chan Message
	closed bool
	size   int
}

// NewMemoryBackend creates a backend whose channels buffer up to size messages.
func NewMemoryBackend(size int) *MemoryBackend {
	if size <= 0 {
		size = 256
	}
	return &MemoryBackend{queues: make(map[string]chan Message), size: size}
}

// Publish enqueues data on channel without blocking. When the channel is
// full the oldest pending message is discarded.
func (m *MemoryBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("memory channel is required")
	}
	queue, err := m.queue(channel)
	if err != nil {
		return "", err
	}

	msg := Message{ID: uuid.NewString(), Data: append([]byte(nil), data...), Attributes: attrs}
	for {
		select {
		case queue <- msg:
			return msg.ID, nil
		default:
		}
		select {
		case <-queue:
		default:
		}
	}
}

// Subscribe hands messages to handler until ctx is done. A message whose
// handler fails is put back on the channel.
func (m *MemoryBackend) Subscribe(ctx context.Context, channel string, handler Handler) error {
	if strings.TrimSpace(channel) == "" {
		return errors.New("memory channel is required")
	}
	queue, err := m.queue(channel)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-queue:
			if err := handler(ctx, msg); err != nil {
				select {
				case queue <- msg:
				default:
				}
			}
		}
	}
}

// Close rejects further publishes.
func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryBackend) queue(channel string) (chan Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}
	q, ok := m.queues[channel]
	if !ok {
		q = make(chan Message, m.size)
		m.queues[channel] = q
	}
	return q, nil
}
