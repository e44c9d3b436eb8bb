package stores

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrSessionRedisUnavailable = errors.New("session redis unavailable")

const sessionScanBatch = 128

// SessionRegistry tracks live sessions per user. Each session is one key with
// a TTL matching the session lifetime, so expiry needs no reaper.
type SessionRegistry struct {
	redis  redis.UniversalClient
	prefix string
}

func NewSessionRegistry(redisClient redis.UniversalClient, prefix string) *SessionRegistry {
	if prefix == "" {
		prefix = "sess"
	}
	return &SessionRegistry{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *SessionRegistry) key(userID, sessionID string) string {
	return s.prefix + ":" + userID + ":" + sessionID
}

// Register marks a session live for the given lifetime. Registering the same
// session twice refreshes its TTL.
func (s *SessionRegistry) Register(ctx context.Context, userID, sessionID string, lifetime time.Duration) error {
	if err := s.redis.Set(ctx, s.key(userID, sessionID), "1", lifetime).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionRedisUnavailable, err)
	}
	return nil
}

// Count returns the number of live sessions for a user.
func (s *SessionRegistry) Count(ctx context.Context, userID string) (int, error) {
	var (
		cursor uint64
		count  int
	)
	match := s.prefix + ":" + userID + ":*"

	for {
		keys, next, err := s.redis.Scan(ctx, cursor, match, sessionScanBatch).Result()
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrSessionRedisUnavailable, err)
		}
		count += len(keys)
		cursor = next
		if cursor == 0 {
			return count, nil
		}
	}
}

// Remove drops a session marker. Missing keys are not an error.
func (s *SessionRegistry) Remove(ctx context.Context, userID, sessionID string) error {
	if err := s.redis.Del(ctx, s.key(userID, sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrSessionRedisUnavailable, err)
	}
	return nil
}
