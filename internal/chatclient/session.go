// Package chatclient is the client-side session engine of the conversation
// system: one persistent channel per session, a per-conversation timeline,
// counterpart presence and read-receipt handling. Components are constructed
// explicitly and injected; there is no package-level connection state.
package chatclient

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"automate-chat/internal/dto"
	"automate-chat/internal/model"
)

type SessionConfig struct {
	ChannelURL    string
	Token         string
	ParticipantID string
	Role          string

	Rest     RestClient
	Uploader Uploader
	Logger   *log.Logger

	// Optional reconnect tuning, passed through to the channel.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Session owns the engine for one logged-in participant, created on login
// and closed on logout.
type Session struct {
	role          string
	participantID string
	logger        *log.Logger

	rest     RestClient
	conn     *Conn
	store    *Store
	presence *Tracker
	composer *Composer
	receipts *ReadReceipts

	mu       sync.Mutex
	selected dto.Conversation
	hasOpen  bool
}

func NewSession(cfg SessionConfig) (*Session, error) {
	if cfg.Rest == nil {
		return nil, fmt.Errorf("chatclient: session requires a rest client")
	}
	if !model.ValidRole(cfg.Role) {
		return nil, fmt.Errorf("chatclient: invalid role %q", cfg.Role)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	store := NewStore(cfg.Rest, cfg.Role, logger)
	presence := NewTracker()

	conn := NewConn(ConnConfig{
		URL:            cfg.ChannelURL,
		ParticipantID:  cfg.ParticipantID,
		Token:          cfg.Token,
		OnMessage:      store.Apply,
		OnPresence:     presence.Apply,
		OnRead:         store.MarkMessagesRead,
		InitialBackoff: cfg.InitialBackoff,
		MaxBackoff:     cfg.MaxBackoff,
		Logger:         logger,
	})

	return &Session{
		role:          cfg.Role,
		participantID: cfg.ParticipantID,
		logger:        logger,
		rest:          cfg.Rest,
		conn:          conn,
		store:         store,
		presence:      presence,
		composer:      NewComposer(conn, cfg.Uploader, store, cfg.Role, logger),
		receipts:      NewReadReceipts(cfg.Rest, store, logger),
	}, nil
}

// Start connects the channel and primes the sidebar. A failed list fetch is
// logged; the channel staying up matters more than the first paint.
func (s *Session) Start(ctx context.Context) error {
	if err := s.conn.Connect(ctx); err != nil {
		return err
	}
	if err := s.RefreshConversations(ctx); err != nil {
		s.logger.Printf("chatclient: initial conversation list fetch failed: %v", err)
	}
	return nil
}

func (s *Session) RefreshConversations(ctx context.Context) error {
	conversations, err := s.rest.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("chatclient: list conversations: %w", err)
	}
	s.store.SetConversations(conversations)
	return nil
}

// ListFallbackUsers returns candidates to start a conversation with when
// the sidebar is empty.
func (s *Session) ListFallbackUsers(ctx context.Context) ([]dto.FallbackUser, error) {
	return s.rest.ListFallbackUsers(ctx)
}

// StartConversation opens (or re-opens, idempotently) the conversation with
// a counterpart and selects it.
func (s *Session) StartConversation(ctx context.Context, counterpartID string) (dto.Conversation, error) {
	customerID, workshopID := s.participantID, counterpartID
	if s.role == model.RoleWorkshop {
		customerID, workshopID = counterpartID, s.participantID
	}

	conversation, err := s.rest.StartConversation(ctx, customerID, workshopID)
	if err != nil {
		return dto.Conversation{}, fmt.Errorf("chatclient: start conversation: %w", err)
	}
	if err := s.SelectConversation(ctx, conversation); err != nil {
		return dto.Conversation{}, err
	}
	return conversation, nil
}

// SelectConversation runs the open-conversation flow: mark read, rebuild the
// timeline from history, move the room subscription over, then track and
// request the counterpart's presence.
func (s *Session) SelectConversation(ctx context.Context, conversation dto.Conversation) error {
	s.mu.Lock()
	prior := s.selected
	hadOpen := s.hasOpen
	s.selected = conversation
	s.hasOpen = true
	s.mu.Unlock()

	if err := s.receipts.MarkAsRead(ctx, conversation.ConversationID); err != nil {
		s.logger.Printf("chatclient: %v", err)
	}

	s.store.Reset(conversation.ConversationID)
	if err := s.store.LoadHistory(ctx); err != nil {
		return err
	}

	if hadOpen && prior.ConversationID != conversation.ConversationID {
		if err := s.conn.LeaveRoom(prior.ConversationID); err != nil {
			s.logger.Printf("chatclient: leave room %s: %v", prior.ConversationID, err)
		}
	}
	if err := s.conn.JoinRoom(conversation.ConversationID); err != nil {
		s.logger.Printf("chatclient: join room %s: %v", conversation.ConversationID, err)
	}

	counterpartID := s.counterpartID(conversation)
	s.presence.Track(counterpartID)
	if err := s.conn.RequestPresence(counterpartID); err != nil {
		s.logger.Printf("chatclient: presence request for %s: %v", counterpartID, err)
	}
	return nil
}

func (s *Session) counterpartID(conversation dto.Conversation) string {
	if s.role == model.RoleCustomer {
		return conversation.WorkshopID
	}
	return conversation.CustomerID
}

func (s *Session) SelectedConversation() (dto.Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected, s.hasOpen
}

func (s *Session) Conn() *Conn         { return s.conn }
func (s *Session) Store() *Store       { return s.store }
func (s *Session) Presence() *Tracker  { return s.presence }
func (s *Session) Composer() *Composer { return s.composer }

// Close tears the channel down for good.
func (s *Session) Close() {
	s.conn.Close()
}
