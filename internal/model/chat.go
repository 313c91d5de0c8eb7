package model

import "fmt"

const (
	MessageStatusSent      = "sent"
	MessageStatusDelivered = "delivered"
	MessageStatusRead      = "read"
)

func MessagePK(conversationID, messageID string) string {
	return fmt.Sprintf("%s#%s", conversationID, messageID)
}

type ConversationItem struct {
	ConversationID string `dynamodbav:"conversationId"`
	PairPK         string `dynamodbav:"pairPk"`
	CustomerID     string `dynamodbav:"customerId"`
	WorkshopID     string `dynamodbav:"workshopId"`
	CustomerName   string `dynamodbav:"customerName,omitempty"`
	WorkshopName   string `dynamodbav:"workshopName,omitempty"`
	CustomerAvatar string `dynamodbav:"customerAvatar,omitempty"`
	WorkshopAvatar string `dynamodbav:"workshopAvatar,omitempty"`

	// Latest message snapshot shown in the conversation list.
	LatestBody     string `dynamodbav:"latestBody,omitempty"`
	LatestImageURL string `dynamodbav:"latestImageUrl,omitempty"`
	LatestSender   string `dynamodbav:"latestSender,omitempty"`

	// Unread counters are kept per role so marking one side read never
	// touches the other side's counter.
	CustomerUnread int `dynamodbav:"customerUnread"`
	WorkshopUnread int `dynamodbav:"workshopUnread"`

	CreatedAt     string `dynamodbav:"createdAt"`
	UpdatedAt     string `dynamodbav:"updatedAt"`
	LastMessageAt string `dynamodbav:"lastMessageAt"`
}

// UnreadFor returns the unread counter belonging to the given role.
func (c ConversationItem) UnreadFor(role string) int {
	if role == RoleCustomer {
		return c.CustomerUnread
	}
	return c.WorkshopUnread
}

// CounterpartOf returns the participant id a given role talks to.
func (c ConversationItem) CounterpartOf(role string) string {
	if role == RoleCustomer {
		return c.WorkshopID
	}
	return c.CustomerID
}

// ParticipantOf returns the participant id holding the given role.
func (c ConversationItem) ParticipantOf(role string) string {
	if role == RoleCustomer {
		return c.CustomerID
	}
	return c.WorkshopID
}

type MessageItem struct {
	PK             string `dynamodbav:"pk"`
	ConversationID string `dynamodbav:"conversationId"`
	MessageID      string `dynamodbav:"messageId"`
	ClientID       string `dynamodbav:"clientId,omitempty"`
	SenderRole     string `dynamodbav:"senderRole"`
	Content        string `dynamodbav:"content,omitempty"`
	ImageURL       string `dynamodbav:"imageUrl,omitempty"`
	Status         string `dynamodbav:"status"`
	CreatedAt      string `dynamodbav:"createdAt"`
}
