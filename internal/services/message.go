package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/admitportal/apiserver/internal/audit"
	"github.com/admitportal/apiserver/internal/logging"
	"github.com/admitportal/apiserver/internal/store"
	"github.com/admitportal/apiserver/types"
	"github.com/google/uuid"
)

// DefaultMessageType tags messages sent without a type.
const DefaultMessageType = "general"

// MessageRepository defines persistence operations for messages.
type MessageRepository interface {
	Load(ctx context.Context) []types.Message
	Update(ctx context.Context, fn func([]types.Message) ([]types.Message, error)) ([]types.Message, error)
}

// MessageService is the applicant to admin message board.
type MessageService struct {
	repo   MessageRepository
	audit  AuditLog
	events EventPublisher
	log    logging.Logger
	clock
}

func NewMessageService(repo MessageRepository, auditLog AuditLog, events EventPublisher, log logging.Logger, opts ...Option) *MessageService {
	if log == nil {
		log = logging.Discard()
	}
	return &MessageService{
		repo:   repo,
		audit:  auditLog,
		events: events,
		log:    log,
		clock:  newClock(opts),
	}
}

// Send posts a new unread message from sender.
func (s *MessageService) Send(ctx context.Context, sender, subject, body, messageType string) (types.Message, error) {
	if err := requireFields(map[string]string{
		"sender":  sender,
		"subject": subject,
		"message": body,
	}); err != nil {
		return types.Message{}, err
	}
	if messageType == "" {
		messageType = DefaultMessageType
	}

	msg := types.Message{
		ID:             uuid.NewString(),
		SenderUsername: sender,
		Subject:        strings.TrimSpace(subject),
		Body:           body,
		MessageType:    messageType,
		Timestamp:      types.NewTimestamp(s.now()),
	}
	_, err := s.repo.Update(ctx, func(messages []types.Message) ([]types.Message, error) {
		return append(messages, msg), nil
	})
	if err != nil {
		return types.Message{}, err
	}

	s.record(ctx, fmt.Sprintf("Message sent by %s: %s", sender, msg.Subject))
	publish(ctx, s.events, s.log, Event{
		Type:     EventMessageSent,
		Username: sender,
		ID:       msg.ID,
		Subject:  msg.Subject,
		At:       msg.Timestamp,
	})
	return msg, nil
}

// List returns messages newest first. With unreadOnly set, read messages
// are left out.
func (s *MessageService) List(ctx context.Context, unreadOnly bool) []types.Message {
	return s.filter(ctx, func(m types.Message) bool {
		return !unreadOnly || !m.IsRead
	})
}

// ByUser returns the messages sent by username, newest first.
func (s *MessageService) ByUser(ctx context.Context, username string) []types.Message {
	return s.filter(ctx, func(m types.Message) bool {
		return m.SenderUsername == username
	})
}

// CountUnread returns the number of messages not yet read.
func (s *MessageService) CountUnread(ctx context.Context) int {
	unread := 0
	for _, m := range s.repo.Load(ctx) {
		if !m.IsRead {
			unread++
		}
	}
	return unread
}

// Get returns one message.
func (s *MessageService) Get(ctx context.Context, id string) (types.Message, error) {
	for _, m := range s.repo.Load(ctx) {
		if m.ID == id {
			return m, nil
		}
	}
	return types.Message{}, store.ErrNotFound
}

// MarkRead flags a message as read.
func (s *MessageService) MarkRead(ctx context.Context, id string) (types.Message, error) {
	msg, err := s.modify(ctx, id, func(m *types.Message) {
		m.IsRead = true
	})
	if err != nil {
		return types.Message{}, err
	}
	s.record(ctx, fmt.Sprintf("Message %s marked as read", id))
	return msg, nil
}

// Reply attaches reply to a message and marks it read. A second reply
// replaces the first.
func (s *MessageService) Reply(ctx context.Context, id, reply string) (types.Message, error) {
	if strings.TrimSpace(reply) == "" {
		return types.Message{}, fmt.Errorf("%w: reply required", ErrInvalidInput)
	}
	now := types.NewTimestamp(s.now())
	msg, err := s.modify(ctx, id, func(m *types.Message) {
		m.Reply = &reply
		m.ReplyTimestamp = &now
		m.IsRead = true
	})
	if err != nil {
		return types.Message{}, err
	}

	s.record(ctx, fmt.Sprintf("Reply sent for message %s to %s", id, msg.SenderUsername))
	publish(ctx, s.events, s.log, Event{
		Type:     EventMessageReplied,
		Username: msg.SenderUsername,
		ID:       msg.ID,
		Subject:  msg.Subject,
		At:       now,
	})
	return msg, nil
}

// Delete removes a message. Deleting an unknown id is not an error; the
// document is rewritten either way.
func (s *MessageService) Delete(ctx context.Context, id string) error {
	removed := false
	_, err := s.repo.Update(ctx, func(messages []types.Message) ([]types.Message, error) {
		kept := messages[:0]
		for _, m := range messages {
			if m.ID == id {
				removed = true
				continue
			}
			kept = append(kept, m)
		}
		return kept, nil
	})
	if err != nil {
		return err
	}
	if removed {
		s.record(ctx, fmt.Sprintf("Message deleted: %s", id))
	}
	return nil
}

func (s *MessageService) modify(ctx context.Context, id string, fn func(*types.Message)) (types.Message, error) {
	var updated types.Message
	_, err := s.repo.Update(ctx, func(messages []types.Message) ([]types.Message, error) {
		for i := range messages {
			if messages[i].ID == id {
				fn(&messages[i])
				updated = messages[i]
				return messages, nil
			}
		}
		return nil, store.ErrNotFound
	})
	if err != nil {
		return types.Message{}, err
	}
	return updated, nil
}

func (s *MessageService) filter(ctx context.Context, keep func(types.Message) bool) []types.Message {
	all := s.repo.Load(ctx)
	list := make([]types.Message, 0, len(all))
	for _, m := range all {
		if keep(m) {
			list = append(list, m)
		}
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].Timestamp.After(list[j].Timestamp.Time)
	})
	return list
}

func (s *MessageService) record(ctx context.Context, line string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Append(ctx, audit.Messages, line); err != nil {
		s.log.Warn(ctx, "audit append failed", "file", audit.Messages, "error", err)
	}
}
