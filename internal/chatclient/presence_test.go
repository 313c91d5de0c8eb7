package chatclient

import (
	"testing"

	"automate-chat/internal/wire"
)

func TestPresenceIgnoresOtherParticipants(t *testing.T) {
	tracker := NewTracker()
	tracker.Track("shop-1")

	tracker.Apply(wire.PresenceEvent{ID: "shop-2", Online: true})
	if tracker.Online() {
		t.Error("event for another participant must not flip the flag")
	}

	tracker.Apply(wire.PresenceEvent{ID: "shop-1", Online: true})
	if !tracker.Online() {
		t.Error("event for the tracked counterpart must apply")
	}
}

func TestPresenceLastWriteWins(t *testing.T) {
	tracker := NewTracker()
	tracker.Track("shop-1")

	tracker.Apply(wire.PresenceEvent{ID: "shop-1", Online: true})
	tracker.Apply(wire.PresenceEvent{ID: "shop-1", Online: false})
	if tracker.Online() {
		t.Error("flag must mirror the last received event")
	}
}

func TestTrackResetsFlagOnSwitch(t *testing.T) {
	tracker := NewTracker()
	tracker.Track("shop-1")
	tracker.Apply(wire.PresenceEvent{ID: "shop-1", Online: true})

	tracker.Track("shop-2")
	if tracker.Online() {
		t.Error("previous counterpart's presence leaked into the new conversation")
	}
}
