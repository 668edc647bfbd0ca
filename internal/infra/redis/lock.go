package redis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"client-manager-bot/internal/domain"
)

// Locker is a best-effort distributed lock, used by the notice scheduler so
// only one instance runs the daily sweep.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}

type RedisLocker struct {
	client RedisClient
}

func NewLocker(client RedisClient) *RedisLocker {
	return &RedisLocker{client: client}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	for i := 0; i < 5; i++ {
		ok, err := l.client.SetNX(ctx, key, token, ttl)
		if err != nil {
			continue
		}
		if ok {
			return token, nil
		}
		time.Sleep(50 * time.Millisecond)
	}
	return "", domain.ErrAlreadyExists
}

// Unlock releases the lock only when the token still matches; a lock that
// expired and was re-taken by another instance is left alone.
func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	current, err := l.client.Get(ctx, key)
	if err != nil {
		if IsNil(err) {
			return nil
		}
		return err
	}
	if current != token {
		return nil
	}
	return l.client.Del(ctx, key)
}
