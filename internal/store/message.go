package store

import (
	"context"

	"github.com/admitportal/apiserver/internal/docstore"
	"github.com/admitportal/apiserver/types"
)

const MessagesDocument = "messages"

// MessageRepository handles persistence for support messages, stored as one
// JSON array in creation order.
type MessageRepository struct {
	doc *docstore.Document[[]types.Message]
}

func NewMessageRepository(s *docstore.Store) *MessageRepository {
	return &MessageRepository{
		doc: docstore.NewDocument(s, MessagesDocument, func() []types.Message { return []types.Message{} }),
	}
}

func (r *MessageRepository) Load(ctx context.Context) []types.Message {
	messages := r.doc.Load(ctx)
	if messages == nil {
		return []types.Message{}
	}
	return messages
}

// Update passes the current messages to fn and persists the slice it returns.
func (r *MessageRepository) Update(ctx context.Context, fn func([]types.Message) ([]types.Message, error)) ([]types.Message, error) {
	var fnErr error
	messages, err := r.doc.Update(ctx, func(messages []types.Message) ([]types.Message, error) {
		var next []types.Message
		if next, fnErr = fn(messages); fnErr != nil {
			return nil, fnErr
		}
		if next == nil {
			next = []types.Message{}
		}
		return next, nil
	})
	if fnErr != nil {
		return nil, fnErr
	}
	if err != nil {
		return nil, persistenceError(err)
	}
	return messages, nil
}
