package model

import "time"

// MessageTypeMessage is the messageType of a user post. Other types are system events.
const MessageTypeMessage = "message"

// ChatMessage is a Microsoft Graph chatMessage resource
type ChatMessage struct {
	ID              string         `json:"id"`
	MessageType     string         `json:"messageType"`
	CreatedDateTime time.Time      `json:"createdDateTime"`
	From            *MessageFrom   `json:"from,omitempty"`
	Body            MessageBody    `json:"body"`
	Reactions       []ChatReaction `json:"reactions,omitempty"`
}

// MessageFrom is the sender of a chat message. User is nil for application and system senders.
type MessageFrom struct {
	User *Identity `json:"user,omitempty"`
}

type Identity struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

type MessageBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type ChatReaction struct {
	ReactionType    string    `json:"reactionType"`
	CreatedDateTime time.Time `json:"createdDateTime"`
	User            struct {
		User *Identity `json:"user,omitempty"`
	} `json:"user"`
}

// Sender returns the posting user, or nil for system messages
func (m *ChatMessage) Sender() *Identity {
	if m == nil || m.From == nil {
		return nil
	}
	return m.From.User
}

// IsUserPost reports whether the message is a regular post from a user
func (m *ChatMessage) IsUserPost() bool {
	return m.Sender() != nil && m.MessageType == MessageTypeMessage
}
