package endpoints

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"automate-chat/internal/api"
	"automate-chat/internal/dto"
	internaljwt "automate-chat/internal/jwt"
	"automate-chat/internal/model"
	chatservice "automate-chat/internal/service/chat"
	"automate-chat/internal/websocket"
	"automate-chat/internal/wire"
)

type ChatEndpoints interface {
	Conversations(http.ResponseWriter, *http.Request) error
	ConversationResource(http.ResponseWriter, *http.Request) error
	FallbackUsers(http.ResponseWriter, *http.Request) error
	Websocket(http.ResponseWriter, *http.Request) error
}

type ChatPaths struct {
	ConversationsPath  string
	ConversationPrefix string
	FallbackUsersPath  string
	WebsocketPath      string
}

type chatEndpoints struct {
	service *chatservice.Service
	handler *websocket.Handler
	paths   ChatPaths

	parseIdentity func(string) (internaljwt.Identity, error)
}

func NewChatEndpoints(service *chatservice.Service, handler *websocket.Handler, prefix string) ChatEndpoints {
	base := strings.TrimRight(prefix, "/")
	return NewChatEndpointsWithPaths(service, handler, ChatPaths{
		ConversationsPath:  base + "/conversations",
		ConversationPrefix: base + "/conversations/",
		FallbackUsersPath:  base + "/users/fallback",
		WebsocketPath:      base + "/ws",
	})
}

func NewChatEndpointsWithPaths(service *chatservice.Service, handler *websocket.Handler, paths ChatPaths) ChatEndpoints {
	return &chatEndpoints{
		service:       service,
		handler:       handler,
		paths:         paths,
		parseIdentity: internaljwt.ParseIdentity,
	}
}

func (h *chatEndpoints) Conversations(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet:  h.handleListConversations,
		http.MethodPost: h.handleStartConversation,
	})
}

func (h *chatEndpoints) ConversationResource(w http.ResponseWriter, r *http.Request) error {
	conversationID, action, err := h.extractConversationPath(r.URL.Path)
	if err != nil {
		return err
	}

	switch action {
	case "messages":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
				return h.handleListMessages(w, r, conversationID)
			},
		})
	case "read":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPatch: func(w http.ResponseWriter, r *http.Request) error {
				return h.handleMarkRead(w, r, conversationID)
			},
		})
	default:
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Not found",
			ErrorLog:   fmt.Errorf("unknown conversation action %q", action),
		}
	}
}

func (h *chatEndpoints) FallbackUsers(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleListFallbackUsers,
	})
}

// Websocket upgrades the session channel. The token travels as a query
// parameter because browser websocket clients cannot set headers.
func (h *chatEndpoints) Websocket(w http.ResponseWriter, r *http.Request) error {
	token := strings.TrimSpace(r.URL.Query().Get("token"))
	if token == "" {
		token = ExtractTokenFromHeaders(r)
	}
	if token == "" {
		return &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Missing token",
			ErrorLog:   fmt.Errorf("websocket missing token"),
		}
	}

	identity, err := h.parseIdentity(token)
	if err != nil {
		return &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("websocket token rejected: %w", err),
		}
	}

	h.handler.Serve(w, r, identity.ParticipantID, identity.Role)
	return nil
}

func (h *chatEndpoints) handleListConversations(w http.ResponseWriter, r *http.Request) error {
	identity, err := h.identity(r)
	if err != nil {
		return err
	}

	conversations, err := h.service.ListConversations(r.Context(), identity, queryLimit(r))
	if err != nil {
		return h.serviceError(err)
	}

	resp := dto.ListConversationsResponse{Conversations: make([]dto.Conversation, len(conversations))}
	for i, conversation := range conversations {
		resp.Conversations[i] = toConversationDTO(conversation, identity.Role)
	}

	return api.WriteJSON(w, http.StatusOK, resp)
}

func (h *chatEndpoints) handleStartConversation(w http.ResponseWriter, r *http.Request) error {
	identity, err := h.identity(r)
	if err != nil {
		return err
	}

	var req dto.StartConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request payload",
			ErrorLog:   fmt.Errorf("decode start conversation request: %w", err),
		}
	}

	// The caller is always their own side of the pair.
	if identity.Role == model.RoleCustomer {
		req.CustomerID = identity.ParticipantID
	} else {
		req.WorkshopID = identity.ParticipantID
	}

	conversation, err := h.service.StartConversation(r.Context(), req.CustomerID, req.WorkshopID)
	if err != nil {
		return h.serviceError(err)
	}

	return api.WriteJSON(w, http.StatusCreated, dto.StartConversationResponse{
		Conversation: toConversationDTO(conversation, identity.Role),
	})
}

func (h *chatEndpoints) handleListMessages(w http.ResponseWriter, r *http.Request, conversationID string) error {
	identity, err := h.identity(r)
	if err != nil {
		return err
	}

	messages, err := h.service.ListMessages(r.Context(), identity, conversationID, queryLimit(r))
	if err != nil {
		return h.serviceError(err)
	}

	resp := dto.ListMessagesResponse{Messages: make([]wire.Message, len(messages))}
	for i, message := range messages {
		resp.Messages[i] = chatservice.WireMessage(message)
	}

	return api.WriteJSON(w, http.StatusOK, resp)
}

func (h *chatEndpoints) handleMarkRead(w http.ResponseWriter, r *http.Request, conversationID string) error {
	identity, err := h.identity(r)
	if err != nil {
		return err
	}

	result, err := h.service.MarkRead(r.Context(), identity, conversationID)
	if err != nil {
		return h.serviceError(err)
	}

	if len(result.MessageIDs) > 0 {
		h.notifyMessagesRead(conversationID, result.MessageIDs)
	}

	return api.WriteJSON(w, http.StatusOK, dto.MarkReadResponse{
		ConversationID: conversationID,
		MessageIDs:     result.MessageIDs,
	})
}

func (h *chatEndpoints) handleListFallbackUsers(w http.ResponseWriter, r *http.Request) error {
	identity, err := h.identity(r)
	if err != nil {
		return err
	}

	users, err := h.service.ListFallbackUsers(r.Context(), identity.Role)
	if err != nil {
		return h.serviceError(err)
	}

	resp := dto.ListFallbackUsersResponse{Users: make([]dto.FallbackUser, len(users))}
	for i, user := range users {
		resp.Users[i] = dto.FallbackUser{ID: user.UserID, Name: user.Name}
	}

	return api.WriteJSON(w, http.StatusOK, resp)
}

// notifyMessagesRead pushes the read flip into the room so the sender's
// checkmarks update without a refetch.
func (h *chatEndpoints) notifyMessagesRead(conversationID string, messageIDs []string) {
	envelope, err := wire.NewEnvelope(wire.EventMessageRead, wire.ReadEvent{
		ConversationID: conversationID,
		MessageIDs:     messageIDs,
	})
	if err != nil {
		log.Printf("endpoints: build messageRead event for %s: %v", conversationID, err)
		return
	}
	if err := websocket.Publish(conversationID, envelope); err != nil {
		log.Printf("endpoints: publish messageRead event for %s: %v", conversationID, err)
	}
}

func (h *chatEndpoints) identity(r *http.Request) (chatservice.Identity, error) {
	token := ExtractTokenFromHeaders(r)
	if token == "" {
		return chatservice.Identity{}, &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Missing token",
			ErrorLog:   fmt.Errorf("authorization header missing"),
		}
	}

	identity, err := h.parseIdentity(token)
	if err != nil {
		return chatservice.Identity{}, &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("token rejected: %w", err),
		}
	}

	return chatservice.Identity{
		ParticipantID: identity.ParticipantID,
		Role:          identity.Role,
	}, nil
}

func (h *chatEndpoints) extractConversationPath(path string) (string, string, error) {
	prefix := h.paths.ConversationPrefix
	if prefix == "" {
		return "", "", &HTTPError{StatusCode: http.StatusNotFound, Message: "Not found", ErrorLog: fmt.Errorf("conversation routes not configured")}
	}
	trimmed := strings.TrimPrefix(path, prefix)
	if trimmed == path {
		return "", "", &HTTPError{StatusCode: http.StatusNotFound, Message: "Not found", ErrorLog: fmt.Errorf("conversation path mismatch: %s", path)}
	}
	parts := strings.Split(strings.Trim(trimmed, "/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		return "", "", &HTTPError{StatusCode: http.StatusNotFound, Message: "Not found", ErrorLog: fmt.Errorf("invalid conversation path: %s", path)}
	}
	return parts[0], parts[1], nil
}

func (h *chatEndpoints) serviceError(err error) error {
	if err == nil {
		return nil
	}

	svcErr, ok := err.(*chatservice.Error)
	if !ok {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("chat service: %w", err),
		}
	}

	var logErr error
	if svcErr.Err != nil {
		logErr = fmt.Errorf("%s: %w", svcErr.Message, svcErr.Err)
	} else {
		logErr = svcErr
	}

	switch svcErr.Code {
	case chatservice.ErrorCodeValidation:
		return &HTTPError{StatusCode: http.StatusBadRequest, Message: svcErr.Message, ErrorLog: logErr}
	case chatservice.ErrorCodeUnauthorized:
		return &HTTPError{StatusCode: http.StatusUnauthorized, Message: svcErr.Message, ErrorLog: logErr}
	case chatservice.ErrorCodeForbidden:
		return &HTTPError{StatusCode: http.StatusForbidden, Message: svcErr.Message, ErrorLog: logErr}
	case chatservice.ErrorCodeNotFound:
		return &HTTPError{StatusCode: http.StatusNotFound, Message: svcErr.Message, ErrorLog: logErr}
	case chatservice.ErrorCodeConflict:
		return &HTTPError{StatusCode: http.StatusConflict, Message: svcErr.Message, ErrorLog: logErr}
	default:
		return &HTTPError{StatusCode: http.StatusInternalServerError, Message: "Internal server error", ErrorLog: logErr}
	}
}

func queryLimit(r *http.Request) int {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return 0
	}
	return limit
}

func toConversationDTO(item model.ConversationItem, role string) dto.Conversation {
	counterpartName := item.WorkshopName
	counterpartAvatar := item.WorkshopAvatar
	if role == model.RoleWorkshop {
		counterpartName = item.CustomerName
		counterpartAvatar = item.CustomerAvatar
	}

	var latest *wire.Message
	if item.LatestBody != "" || item.LatestImageURL != "" {
		latest = &wire.Message{
			ConversationID: item.ConversationID,
			Content:        item.LatestBody,
			ImageURL:       item.LatestImageURL,
			Sender:         item.LatestSender,
			Timestamp:      item.LastMessageAt,
			Status:         model.MessageStatusSent,
		}
	}

	return dto.Conversation{
		ConversationID:    item.ConversationID,
		CustomerID:        item.CustomerID,
		WorkshopID:        item.WorkshopID,
		CounterpartName:   counterpartName,
		CounterpartAvatar: counterpartAvatar,
		LatestMessage:     latest,
		UnreadCount:       item.UnreadFor(role),
		CreatedAt:         item.CreatedAt,
		UpdatedAt:         item.UpdatedAt,
		LastMessageAt:     item.LastMessageAt,
	}
}
