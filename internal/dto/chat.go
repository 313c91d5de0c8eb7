package dto

import "automate-chat/internal/wire"

// Conversation is the REST view of a conversation, already projected for the
// requesting role: counterpart fields describe the other participant and
// UnreadCount is the caller's own counter.
type Conversation struct {
	ConversationID    string        `json:"conversationId"`
	CustomerID        string        `json:"customerId"`
	WorkshopID        string        `json:"workshopId"`
	CounterpartName   string        `json:"counterpartName,omitempty"`
	CounterpartAvatar string        `json:"counterpartAvatar,omitempty"`
	LatestMessage     *wire.Message `json:"latestMessage,omitempty"`
	UnreadCount       int           `json:"unreadCount"`
	CreatedAt         string        `json:"createdAt"`
	UpdatedAt         string        `json:"updatedAt"`
	LastMessageAt     string        `json:"lastMessageAt"`
}

type FallbackUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type StartConversationRequest struct {
	CustomerID string `json:"customerId"`
	WorkshopID string `json:"workshopId"`
}

type StartConversationResponse struct {
	Conversation Conversation `json:"conversation"`
}

type ListConversationsResponse struct {
	Conversations []Conversation `json:"conversations"`
}

type ListFallbackUsersResponse struct {
	Users []FallbackUser `json:"users"`
}

type ListMessagesResponse struct {
	Messages []wire.Message `json:"messages"`
}

type MarkReadResponse struct {
	ConversationID string   `json:"conversationId"`
	MessageIDs     []string `json:"messageIds"`
}

type UploadResponse struct {
	URL string `json:"url"`
}
