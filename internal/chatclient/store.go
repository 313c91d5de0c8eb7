package chatclient

import (
	"context"
	"fmt"
	"log"
	"sync"

	"automate-chat/internal/dto"
	"automate-chat/internal/wire"
)

type storeEntry struct {
	msg     wire.Message
	pending bool
}

// Store holds the open conversation's in-memory timeline plus the sidebar
// conversation metadata. The timeline is destroyed and rebuilt on every
// conversation switch; display order is receipt order, never a timestamp
// re-sort, with duplicates dropped by server id.
type Store struct {
	rest   RestClient
	role   string
	logger *log.Logger

	mu             sync.Mutex
	conversationID string
	hasLoaded      bool
	entries        []storeEntry
	byID           map[string]int
	byClientID     map[string]int

	// Events that raced ahead of the history load. Replayed in receipt
	// order once the snapshot is in.
	buffered []wire.Message

	conversations []dto.Conversation
}

func NewStore(rest RestClient, role string, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Default()
	}
	return &Store{
		rest:       rest,
		role:       role,
		logger:     logger,
		byID:       make(map[string]int),
		byClientID: make(map[string]int),
	}
}

// Reset clears the timeline for a conversation switch. Sidebar metadata
// survives; only the per-conversation state is dropped.
func (s *Store) Reset(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversationID = conversationID
	s.hasLoaded = false
	s.entries = nil
	s.buffered = nil
	s.byID = make(map[string]int)
	s.byClientID = make(map[string]int)
}

// LoadHistory fetches the message list once per conversation selection.
// Re-renders calling it again are a no-op until the next Reset. Events that
// arrived during the fetch are replayed after the snapshot.
func (s *Store) LoadHistory(ctx context.Context) error {
	s.mu.Lock()
	conversationID := s.conversationID
	if conversationID == "" {
		s.mu.Unlock()
		return fmt.Errorf("chatclient: no conversation selected")
	}
	if s.hasLoaded {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	history, err := s.rest.ListMessages(ctx, conversationID)
	if err != nil {
		return fmt.Errorf("chatclient: load history for %s: %w", conversationID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conversationID != conversationID {
		// Selection moved on while the fetch was in flight.
		return nil
	}

	s.entries = make([]storeEntry, 0, len(history))
	s.byID = make(map[string]int)
	s.byClientID = make(map[string]int)
	for _, msg := range history {
		s.insertLocked(msg, false)
	}
	s.hasLoaded = true

	for _, msg := range s.buffered {
		s.applyLocked(msg)
	}
	s.buffered = nil
	return nil
}

// AppendPending inserts an optimistic entry for a just-composed message,
// keyed by its correlation id so the echo can confirm it in place.
func (s *Store) AppendPending(msg wire.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ConversationID != s.conversationID {
		return
	}
	s.insertLocked(msg, true)
}

// Apply folds an inbound receiveMessage event into local state. Timeline
// updates only touch the open conversation; sidebar metadata updates the
// owning conversation whichever it is.
func (s *Store) Apply(msg wire.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.updateSidebarLocked(msg)

	if msg.ConversationID != s.conversationID {
		return
	}
	if !s.hasLoaded {
		s.buffered = append(s.buffered, msg)
		return
	}
	s.applyLocked(msg)
}

func (s *Store) applyLocked(msg wire.Message) {
	if msg.ClientID != "" {
		if idx, ok := s.byClientID[msg.ClientID]; ok {
			s.entries[idx].msg = msg
			s.entries[idx].pending = false
			if msg.ID != "" {
				s.byID[msg.ID] = idx
			}
			return
		}
	}
	if msg.ID != "" {
		if _, ok := s.byID[msg.ID]; ok {
			// Duplicate delivery.
			return
		}
	}
	s.insertLocked(msg, false)
}

func (s *Store) insertLocked(msg wire.Message, pending bool) {
	idx := len(s.entries)
	s.entries = append(s.entries, storeEntry{msg: msg, pending: pending})
	if msg.ID != "" {
		s.byID[msg.ID] = idx
	}
	if msg.ClientID != "" {
		s.byClientID[msg.ClientID] = idx
	}
}

// MarkMessagesRead flips the listed messages to read, the push path for the
// sender's checkmarks.
func (s *Store) MarkMessagesRead(ev wire.ReadEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ev.ConversationID != s.conversationID {
		return
	}
	for _, id := range ev.MessageIDs {
		if idx, ok := s.byID[id]; ok {
			s.entries[idx].msg.Status = "read"
		}
	}
}

func (s *Store) Messages() []wire.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]wire.Message, len(s.entries))
	for i, entry := range s.entries {
		out[i] = entry.msg
	}
	return out
}

func (s *Store) IsPending(clientID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.byClientID[clientID]
	return ok && s.entries[idx].pending
}

func (s *Store) HasLoaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasLoaded
}

func (s *Store) ConversationID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conversationID
}

func (s *Store) SetConversations(conversations []dto.Conversation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.conversations = conversations
}

func (s *Store) Conversations() []dto.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]dto.Conversation, len(s.conversations))
	copy(out, s.conversations)
	return out
}

// ZeroUnread clears the local sidebar counter after a successful mark-read,
// without waiting for the list refetch.
func (s *Store) ZeroUnread(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.conversations {
		if s.conversations[i].ConversationID == conversationID {
			s.conversations[i].UnreadCount = 0
			return
		}
	}
}

func (s *Store) updateSidebarLocked(msg wire.Message) {
	for i := range s.conversations {
		if s.conversations[i].ConversationID != msg.ConversationID {
			continue
		}
		snapshot := msg
		s.conversations[i].LatestMessage = &snapshot
		s.conversations[i].LastMessageAt = msg.Timestamp
		if msg.Sender != s.role && msg.ConversationID != s.conversationID {
			s.conversations[i].UnreadCount++
		}
		return
	}
}
