package chat

import (
	"context"
	"errors"
	"strings"
	"time"

	"automate-chat/internal/database"
	"automate-chat/internal/model"
	"automate-chat/internal/wire"

	"github.com/google/uuid"
)

type ErrorCode string

const (
	ErrorCodeValidation   ErrorCode = "validation_error"
	ErrorCodeUnauthorized ErrorCode = "unauthorized"
	ErrorCodeForbidden    ErrorCode = "forbidden"
	ErrorCodeNotFound     ErrorCode = "not_found"
	ErrorCodeConflict     ErrorCode = "conflict"
	ErrorCodeInternal     ErrorCode = "internal_error"
)

type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Identity is a chat participant as recovered from the access token.
type Identity struct {
	ParticipantID string
	Role          string
}

type AppendMessageParams struct {
	ConversationID string
	SenderRole     string
	Content        string
	ImageURL       string
	ClientID       string
	Timestamp      string
}

type MessageResult struct {
	Conversation model.ConversationItem
	Message      model.MessageItem
}

type MarkReadResult struct {
	Conversation model.ConversationItem
	MessageIDs   []string
}

type Service struct {
	repo Repository
	now  func() time.Time
}

func New(db *database.Database) *Service {
	return &Service{
		repo: NewDynamoRepository(db),
		now:  time.Now,
	}
}

func NewWithRepository(repo Repository, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo: repo,
		now:  now,
	}
}

// StartConversation creates the conversation between a customer and a
// workshop, or returns the existing one. Starting a chat twice with the same
// pair must never fork the timeline.
func (s *Service) StartConversation(ctx context.Context, customerID, workshopID string) (model.ConversationItem, error) {
	customerID = strings.TrimSpace(customerID)
	workshopID = strings.TrimSpace(workshopID)

	if customerID == "" || workshopID == "" {
		return model.ConversationItem{}, newError(ErrorCodeValidation, "customerId and workshopId are required", nil)
	}

	customer, err := s.repo.GetUser(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ConversationItem{}, newError(ErrorCodeNotFound, "customer not found", err)
		}
		return model.ConversationItem{}, newError(ErrorCodeInternal, "failed to load customer", err)
	}
	if customer.Role != model.RoleCustomer {
		return model.ConversationItem{}, newError(ErrorCodeValidation, "customerId does not refer to a customer", nil)
	}

	workshop, err := s.repo.GetUser(ctx, workshopID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ConversationItem{}, newError(ErrorCodeNotFound, "workshop not found", err)
		}
		return model.ConversationItem{}, newError(ErrorCodeInternal, "failed to load workshop", err)
	}
	if workshop.Role != model.RoleWorkshop {
		return model.ConversationItem{}, newError(ErrorCodeValidation, "workshopId does not refer to a workshop", nil)
	}

	if existing, err := s.repo.GetConversationByPair(ctx, customerID, workshopID); err == nil {
		return existing, nil
	} else if !errors.Is(err, ErrNotFound) {
		return model.ConversationItem{}, newError(ErrorCodeInternal, "failed to lookup conversation", err)
	}

	now := s.now().UTC()
	nowStr := now.Format(time.RFC3339)

	conversation := model.ConversationItem{
		ConversationID: uuid.NewString(),
		PairPK:         model.PairPK(customerID, workshopID),
		CustomerID:     customerID,
		WorkshopID:     workshopID,
		CustomerName:   customer.Name,
		WorkshopName:   workshop.Name,
		CustomerAvatar: customer.AvatarURL,
		WorkshopAvatar: workshop.AvatarURL,
		CreatedAt:      nowStr,
		UpdatedAt:      nowStr,
		LastMessageAt:  nowStr,
	}

	if err := s.repo.CreateConversation(ctx, conversation); err != nil {
		return model.ConversationItem{}, newError(ErrorCodeInternal, "failed to create conversation", err)
	}

	return conversation, nil
}

func (s *Service) ListConversations(ctx context.Context, identity Identity, limit int) ([]model.ConversationItem, error) {
	if identity.ParticipantID == "" || !model.ValidRole(identity.Role) {
		return nil, newError(ErrorCodeUnauthorized, "invalid participant identity", nil)
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	conversations, err := s.repo.ListConversationsByParticipant(ctx, identity.Role, identity.ParticipantID, limit)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list conversations", err)
	}

	return conversations, nil
}

// ListFallbackUsers returns counterpart candidates a participant can open a
// brand-new conversation with when their list is empty.
func (s *Service) ListFallbackUsers(ctx context.Context, role string) ([]model.UserItem, error) {
	if !model.ValidRole(role) {
		return nil, newError(ErrorCodeValidation, "role must be customer or workshop", nil)
	}

	users, err := s.repo.ListUsersByRole(ctx, model.CounterpartRole(role))
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list users", err)
	}

	return users, nil
}

func (s *Service) ListMessages(ctx context.Context, identity Identity, conversationID string, limit int) ([]model.MessageItem, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, newError(ErrorCodeValidation, "conversationId is required", nil)
	}
	if limit <= 0 || limit > 200 {
		limit = 100
	}

	if _, err := s.requireMember(ctx, identity, conversationID); err != nil {
		return nil, err
	}

	messages, err := s.repo.ListMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list messages", err)
	}

	return messages, nil
}

// MarkRead zeroes the caller's unread counter and flips the counterpart's
// messages to read. The returned ids feed the messageRead room event so the
// counterpart's sent-message checkmarks update in realtime.
func (s *Service) MarkRead(ctx context.Context, identity Identity, conversationID string) (MarkReadResult, error) {
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return MarkReadResult{}, newError(ErrorCodeValidation, "conversationId is required", nil)
	}

	conversation, err := s.requireMember(ctx, identity, conversationID)
	if err != nil {
		return MarkReadResult{}, err
	}

	now := s.now().UTC()
	nowStr := now.Format(time.RFC3339)

	if err := s.repo.ResetUnread(ctx, conversationID, identity.Role, nowStr); err != nil {
		return MarkReadResult{}, newError(ErrorCodeInternal, "failed to reset unread counter", err)
	}

	ids, err := s.repo.MarkMessagesRead(ctx, conversationID, model.CounterpartRole(identity.Role))
	if err != nil {
		return MarkReadResult{}, newError(ErrorCodeInternal, "failed to mark messages read", err)
	}

	if identity.Role == model.RoleCustomer {
		conversation.CustomerUnread = 0
	} else {
		conversation.WorkshopUnread = 0
	}
	conversation.UpdatedAt = nowStr

	return MarkReadResult{
		Conversation: conversation,
		MessageIDs:   ids,
	}, nil
}

// AppendMessage persists an inbound channel message and updates the owning
// conversation's latest-message snapshot and the counterpart's unread
// counter.
func (s *Service) AppendMessage(ctx context.Context, params AppendMessageParams) (MessageResult, error) {
	conversationID := strings.TrimSpace(params.ConversationID)
	content := strings.TrimSpace(params.Content)
	imageURL := strings.TrimSpace(params.ImageURL)

	if conversationID == "" {
		return MessageResult{}, newError(ErrorCodeValidation, "conversationId is required", nil)
	}
	if !model.ValidRole(params.SenderRole) {
		return MessageResult{}, newError(ErrorCodeValidation, "sender must be customer or workshop", nil)
	}
	// A message carries text and/or an attachment, never neither.
	if content == "" && imageURL == "" {
		return MessageResult{}, newError(ErrorCodeValidation, "message needs content or an attachment", nil)
	}

	conversation, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return MessageResult{}, newError(ErrorCodeNotFound, "conversation not found", err)
		}
		return MessageResult{}, newError(ErrorCodeInternal, "failed to fetch conversation", err)
	}

	createdAt := strings.TrimSpace(params.Timestamp)
	if createdAt == "" {
		createdAt = s.now().UTC().Format(time.RFC3339)
	}

	messageID := uuid.NewString()
	message := model.MessageItem{
		PK:             model.MessagePK(conversationID, messageID),
		ConversationID: conversationID,
		MessageID:      messageID,
		ClientID:       strings.TrimSpace(params.ClientID),
		SenderRole:     params.SenderRole,
		Content:        content,
		ImageURL:       imageURL,
		Status:         model.MessageStatusSent,
		CreatedAt:      createdAt,
	}

	if err := s.repo.CreateMessage(ctx, message); err != nil {
		return MessageResult{}, newError(ErrorCodeInternal, "failed to store message", err)
	}

	if err := s.repo.UpdateConversationOnMessage(ctx, conversationID, params.SenderRole, content, imageURL, createdAt); err != nil {
		return MessageResult{}, newError(ErrorCodeInternal, "failed to update conversation", err)
	}

	if params.SenderRole == model.RoleCustomer {
		conversation.WorkshopUnread++
	} else {
		conversation.CustomerUnread++
	}
	conversation.LatestBody = content
	conversation.LatestImageURL = imageURL
	conversation.LatestSender = params.SenderRole
	conversation.UpdatedAt = createdAt
	conversation.LastMessageAt = createdAt

	return MessageResult{
		Conversation: conversation,
		Message:      message,
	}, nil
}

// RequireMember verifies the identity belongs to the conversation. The
// channel handlers apply it before joining a room or appending a message,
// the same gate the REST handlers get through requireMember.
func (s *Service) RequireMember(ctx context.Context, identity Identity, conversationID string) error {
	_, err := s.requireMember(ctx, identity, conversationID)
	return err
}

func (s *Service) requireMember(ctx context.Context, identity Identity, conversationID string) (model.ConversationItem, error) {
	if identity.ParticipantID == "" || !model.ValidRole(identity.Role) {
		return model.ConversationItem{}, newError(ErrorCodeUnauthorized, "invalid participant identity", nil)
	}

	conversation, err := s.repo.GetConversation(ctx, conversationID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ConversationItem{}, newError(ErrorCodeNotFound, "conversation not found", err)
		}
		return model.ConversationItem{}, newError(ErrorCodeInternal, "failed to fetch conversation", err)
	}

	if conversation.ParticipantOf(identity.Role) != identity.ParticipantID {
		return model.ConversationItem{}, newError(ErrorCodeForbidden, "participant does not belong to conversation", nil)
	}

	return conversation, nil
}

// WireMessage converts a stored message to its channel representation.
func WireMessage(m model.MessageItem) wire.Message {
	return wire.Message{
		ID:             m.MessageID,
		ConversationID: m.ConversationID,
		ClientID:       m.ClientID,
		Content:        m.Content,
		Sender:         m.SenderRole,
		Timestamp:      m.CreatedAt,
		Status:         m.Status,
		ImageURL:       m.ImageURL,
	}
}
