// Package presence tracks which participants currently hold at least one
// open channel connection. The registry is a plain last-write-wins mirror in
// Redis so every ws node sees the same answer; no staleness detection is
// done beyond the key TTL safety net.
package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

const keyPrefix = "presence:"

// Connections are refreshed by the websocket keepalive, so a key older than
// this belongs to a process that died without cleaning up.
const keyTTL = 2 * time.Minute

type Registry struct {
	client *redis.Client
}

func NewRegistry(client *redis.Client) *Registry {
	return &Registry{client: client}
}

func key(participantID string) string {
	return keyPrefix + participantID
}

// Connect records one more open connection for the participant and reports
// whether this was the first one (offline -> online transition).
func (r *Registry) Connect(ctx context.Context, participantID string) (bool, error) {
	count, err := r.client.Incr(ctx, key(participantID)).Result()
	if err != nil {
		return false, fmt.Errorf("presence connect %s: %w", participantID, err)
	}
	if err := r.client.Expire(ctx, key(participantID), keyTTL).Err(); err != nil {
		return false, fmt.Errorf("presence expire %s: %w", participantID, err)
	}
	return count == 1, nil
}

// Disconnect records one connection gone and reports whether the participant
// is now offline (last connection closed).
func (r *Registry) Disconnect(ctx context.Context, participantID string) (bool, error) {
	count, err := r.client.Decr(ctx, key(participantID)).Result()
	if err != nil {
		return false, fmt.Errorf("presence disconnect %s: %w", participantID, err)
	}
	if count <= 0 {
		if err := r.client.Del(ctx, key(participantID)).Err(); err != nil {
			return false, fmt.Errorf("presence delete %s: %w", participantID, err)
		}
		return true, nil
	}
	return false, nil
}

// Touch refreshes the TTL for a participant with a live connection.
func (r *Registry) Touch(ctx context.Context, participantID string) error {
	return r.client.Expire(ctx, key(participantID), keyTTL).Err()
}

func (r *Registry) IsOnline(ctx context.Context, participantID string) (bool, error) {
	count, err := r.client.Get(ctx, key(participantID)).Int64()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("presence lookup %s: %w", participantID, err)
	}
	return count > 0, nil
}
