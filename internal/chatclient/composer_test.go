package chatclient

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"automate-chat/internal/wire"
)

type fakeSender struct {
	sent []wire.SendMessage
	err  error
}

func (f *fakeSender) Send(roomID string, message wire.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, wire.SendMessage{RoomID: roomID, Message: message})
	return nil
}

type fakeUploader struct {
	url   string
	err   error
	calls int
}

func (f *fakeUploader) Upload(ctx context.Context, filename string, file io.Reader) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.url, nil
}

func newTestComposer(sender Sender, uploader Uploader) (*Composer, *Store) {
	store := NewStore(&fakeRest{messages: map[string][]wire.Message{}}, "customer", quietLogger())
	store.Reset("conv-1")
	if err := store.LoadHistory(context.Background()); err != nil {
		panic(err)
	}
	composer := NewComposer(sender, uploader, store, "customer", quietLogger())
	composer.now = func() time.Time { return time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC) }
	composer.newID = func() string { return "client-1" }
	return composer, store
}

func TestEmptySubmitIsSilentNoOp(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"tabs and newlines", " \t\n "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender := &fakeSender{}
			composer, store := newTestComposer(sender, &fakeUploader{})

			composer.SetText(tt.text)
			composer.Send(context.Background(), "conv-1")

			if len(sender.sent) != 0 {
				t.Errorf("empty submit emitted %d sendMessage events", len(sender.sent))
			}
			if len(store.Messages()) != 0 {
				t.Error("empty submit must not touch the timeline")
			}
		})
	}
}

func TestTextSendStampsCorrelationID(t *testing.T) {
	sender := &fakeSender{}
	composer, store := newTestComposer(sender, &fakeUploader{})

	composer.SetText("  see you at 9  ")
	composer.Send(context.Background(), "conv-1")

	if len(sender.sent) != 1 {
		t.Fatalf("got %d emissions, want 1", len(sender.sent))
	}
	sent := sender.sent[0].Message
	if sent.Content != "see you at 9" {
		t.Errorf("content = %q, want trimmed text", sent.Content)
	}
	if sent.ClientID != "client-1" {
		t.Errorf("clientId = %q", sent.ClientID)
	}
	if sent.Sender != "customer" || sent.Status != "sent" {
		t.Errorf("sender/status = %q/%q", sent.Sender, sent.Status)
	}
	if sent.Timestamp != "2026-08-01T12:00:00Z" {
		t.Errorf("timestamp = %q", sent.Timestamp)
	}

	if !store.IsPending("client-1") {
		t.Error("sent message should appear as pending immediately")
	}
	if text, attachment := composer.Draft(); text != "" || attachment != nil {
		t.Error("draft must clear after a successful send")
	}
}

func TestImageOnlySend(t *testing.T) {
	sender := &fakeSender{}
	uploader := &fakeUploader{url: "https://cdn.example.com/photo.png"}
	composer, _ := newTestComposer(sender, uploader)

	composer.SetAttachment(&Attachment{Filename: "photo.png", Data: []byte("bytes")})
	composer.Send(context.Background(), "conv-1")

	if len(sender.sent) != 1 {
		t.Fatalf("got %d emissions, want 1", len(sender.sent))
	}
	sent := sender.sent[0].Message
	if sent.ImageURL != "https://cdn.example.com/photo.png" {
		t.Errorf("imageUrl = %q", sent.ImageURL)
	}
	if sent.Content != "" {
		t.Errorf("content = %q, want empty for image-only message", sent.Content)
	}
}

func TestUploadFailureAbortsSendAndKeepsDraft(t *testing.T) {
	sender := &fakeSender{}
	uploader := &fakeUploader{err: errors.New("media host down")}
	composer, store := newTestComposer(sender, uploader)

	composer.SetText("look at this")
	composer.SetAttachment(&Attachment{Filename: "dent.png", Data: []byte("bytes")})
	composer.Send(context.Background(), "conv-1")

	if len(sender.sent) != 0 {
		t.Error("upload failure must never reach sendMessage")
	}
	if len(store.Messages()) != 0 {
		t.Error("upload failure must not touch the timeline")
	}
	text, attachment := composer.Draft()
	if text != "look at this" || attachment == nil || attachment.Filename != "dent.png" {
		t.Error("draft must survive an upload failure for retry")
	}

	// Retry after the host recovers.
	uploader.err = nil
	uploader.url = "https://cdn.example.com/dent.png"
	composer.Send(context.Background(), "conv-1")
	if len(sender.sent) != 1 {
		t.Fatalf("retry emitted %d events, want 1", len(sender.sent))
	}
	if uploader.calls != 2 {
		t.Errorf("uploader called %d times, want 2", uploader.calls)
	}
}

func TestEmitFailureKeepsDraft(t *testing.T) {
	sender := &fakeSender{err: errors.New("channel down")}
	composer, store := newTestComposer(sender, &fakeUploader{})

	composer.SetText("hello")
	composer.Send(context.Background(), "conv-1")

	if len(store.Messages()) != 0 {
		t.Error("failed emit must not leave a pending entry")
	}
	if text, _ := composer.Draft(); text != "hello" {
		t.Error("draft must survive a failed emit")
	}
}
