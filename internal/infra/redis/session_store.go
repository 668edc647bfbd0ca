package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"client-manager-bot/internal/flow"
)

var _ flow.Store = (*SessionStore)(nil)

// SessionStore keeps flow sessions in Redis with a TTL, so sessions abandoned
// mid-flow expire on their own instead of lingering until the next /cancel.
type SessionStore struct {
	client RedisClient
	ttl    time.Duration
}

func NewSessionStore(client RedisClient, ttl time.Duration) *SessionStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) key(userID int64) string {
	return fmt.Sprintf("flow_session:%d", userID)
}

func (s *SessionStore) Get(ctx context.Context, userID int64) (*flow.Session, error) {
	data, err := s.client.Get(ctx, s.key(userID))
	if err != nil {
		if IsNil(err) {
			return nil, nil
		}
		return nil, err
	}
	var sess flow.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

// Set overwrites whatever session the user had and refreshes the TTL.
func (s *SessionStore) Set(ctx context.Context, userID int64, sess *flow.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	return s.client.Set(ctx, s.key(userID), data, s.ttl)
}

func (s *SessionStore) Clear(ctx context.Context, userID int64) error {
	return s.client.Del(ctx, s.key(userID))
}
