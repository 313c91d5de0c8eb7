package chatclient

import (
	"context"
	"fmt"
	"log"
)

// ReadReceipts clears unread state when a conversation is opened and keeps
// the sidebar in sync with the server afterwards.
type ReadReceipts struct {
	rest   RestClient
	store  *Store
	logger *log.Logger
}

func NewReadReceipts(rest RestClient, store *Store, logger *log.Logger) *ReadReceipts {
	if logger == nil {
		logger = log.Default()
	}
	return &ReadReceipts{
		rest:   rest,
		store:  store,
		logger: logger,
	}
}

// MarkAsRead zeroes the server-side counter, mirrors that locally, then
// refetches the conversation list. A failed refetch keeps the local zero;
// only the mark-read call itself is surfaced as an error.
func (r *ReadReceipts) MarkAsRead(ctx context.Context, conversationID string) error {
	if err := r.rest.MarkRead(ctx, conversationID); err != nil {
		return fmt.Errorf("chatclient: mark read %s: %w", conversationID, err)
	}

	r.store.ZeroUnread(conversationID)

	conversations, err := r.rest.ListConversations(ctx)
	if err != nil {
		r.logger.Printf("chatclient: conversation list refresh failed: %v", err)
		return nil
	}
	r.store.SetConversations(conversations)
	return nil
}
