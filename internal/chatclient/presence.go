package chatclient

import (
	"sync"

	"automate-chat/internal/wire"
)

// Tracker mirrors the open conversation's counterpart online flag. Events
// for any other participant are ignored so one conversation's presence never
// bleeds into another's view. Last write wins, no staleness detection.
type Tracker struct {
	mu            sync.Mutex
	counterpartID string
	online        bool
}

func NewTracker() *Tracker {
	return &Tracker{}
}

// Track switches the tracked counterpart and resets the flag until the next
// event or presence reply arrives.
func (t *Tracker) Track(counterpartID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.counterpartID = counterpartID
	t.online = false
}

func (t *Tracker) Apply(ev wire.PresenceEvent) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ev.ID != t.counterpartID {
		return
	}
	t.online = ev.Online
}

func (t *Tracker) Online() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.online
}

func (t *Tracker) CounterpartID() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counterpartID
}
