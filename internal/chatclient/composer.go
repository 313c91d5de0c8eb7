package chatclient

import (
	"bytes"
	"context"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"automate-chat/internal/wire"

	"github.com/google/uuid"
)

// Sender is the outbound half of the channel the composer emits through.
type Sender interface {
	Send(roomID string, message wire.Message) error
}

// Uploader pushes an attachment to the media host and returns its public
// URL. Satisfied by media.Uploader.
type Uploader interface {
	Upload(ctx context.Context, filename string, file io.Reader) (string, error)
}

// Attachment is a draft image kept in memory so a failed upload can be
// retried with the same bytes.
type Attachment struct {
	Filename string
	Data     []byte
}

// Composer builds outgoing messages from the current draft. An empty submit
// is a silent no-op; an upload failure aborts the send and preserves the
// draft for manual retry.
type Composer struct {
	sender   Sender
	uploader Uploader
	store    *Store
	role     string
	now      func() time.Time
	newID    func() string
	logger   *log.Logger

	mu         sync.Mutex
	text       string
	attachment *Attachment
}

func NewComposer(sender Sender, uploader Uploader, store *Store, role string, logger *log.Logger) *Composer {
	if logger == nil {
		logger = log.Default()
	}
	return &Composer{
		sender:   sender,
		uploader: uploader,
		store:    store,
		role:     role,
		now:      time.Now,
		newID:    uuid.NewString,
		logger:   logger,
	}
}

func (c *Composer) SetText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
}

func (c *Composer) SetAttachment(attachment *Attachment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.attachment = attachment
}

func (c *Composer) Draft() (string, *Attachment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text, c.attachment
}

// Send validates and emits the current draft into the given room. Failures
// never panic and never lose the draft; they are reported on the logging
// channel only.
func (c *Composer) Send(ctx context.Context, roomID string) {
	c.mu.Lock()
	text := strings.TrimSpace(c.text)
	attachment := c.attachment
	c.mu.Unlock()

	if text == "" && attachment == nil {
		return
	}

	var imageURL string
	if attachment != nil {
		url, err := c.uploader.Upload(ctx, attachment.Filename, bytes.NewReader(attachment.Data))
		if err != nil {
			c.logger.Printf("chatclient: attachment upload failed, send aborted: %v", err)
			return
		}
		imageURL = url
	}

	msg := wire.Message{
		ConversationID: roomID,
		ClientID:       c.newID(),
		Content:        text,
		Sender:         c.role,
		Timestamp:      c.now().UTC().Format(time.RFC3339),
		Status:         "sent",
		ImageURL:       imageURL,
	}

	if err := c.sender.Send(roomID, msg); err != nil {
		c.logger.Printf("chatclient: send failed, draft kept: %v", err)
		return
	}

	c.store.AppendPending(msg)

	c.mu.Lock()
	c.text = ""
	c.attachment = nil
	c.mu.Unlock()
}
