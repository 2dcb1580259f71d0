package models

import "time"

// Conversation links exactly two connected users. A conversation may only be
// started once the pair holds an accepted match.
type Conversation struct {
	ID        string    `json:"id" db:"id"`
	User1ID   string    `json:"user1_id" db:"user1_id"`
	User2ID   string    `json:"user2_id" db:"user2_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// OtherParty returns the conversation member that is not selfID.
func (c *Conversation) OtherParty(selfID string) string {
	if c.User1ID == selfID {
		return c.User2ID
	}
	return c.User1ID
}

type Message struct {
	ID             string    `json:"id" db:"id"`
	ConversationID string    `json:"conversation_id" db:"conversation_id"`
	SenderID       string    `json:"sender_id" db:"sender_id"`
	Content        string    `json:"content" db:"content"`
	IsRead         bool      `json:"is_read" db:"is_read"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// ConversationSummary is the list view of a conversation: the other
// participant, the latest message and the unread count.
type ConversationSummary struct {
	ID              string        `json:"id"`
	OtherUser       PublicProfile `json:"other_user"`
	LastMessage     *string       `json:"last_message,omitempty"`
	LastMessageTime *time.Time    `json:"last_message_time,omitempty"`
	UnreadCount     int           `json:"unread_count"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}
