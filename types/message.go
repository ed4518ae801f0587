package types

// Message is a support message sent by a user to the administrators.
type Message struct {
	// ID is the generated unique identifier.
	ID string `json:"id"`

	// SenderUsername identifies the user who sent the message.
	SenderUsername string `json:"sender_username"`

	Subject string `json:"subject"`

	// Body is the message text.
	Body string `json:"message"`

	// MessageType is a free-form category tag chosen by the sender.
	MessageType string `json:"message_type"`

	// Timestamp is the creation time.
	Timestamp Timestamp `json:"timestamp"`

	// IsRead only ever moves from false to true.
	IsRead bool `json:"is_read"`

	// Reply is the administrator's answer, nil until replied.
	Reply *string `json:"reply"`

	// ReplyTimestamp is set together with Reply.
	ReplyTimestamp *Timestamp `json:"reply_timestamp"`
}

// Replied reports whether an administrator has answered the message.
func (m Message) Replied() bool {
	return m.Reply != nil
}
