package stores

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	ErrHistoryUnavailable = errors.New("grant history redis unavailable")
	ErrHistoryCorrupt     = errors.New("grant history record corrupt")
)

// GrantHistoryStore persists per-client grant timestamps as a JSON array of
// unix millisecond values. The newest timestamp is last.
type GrantHistoryStore struct {
	redis   redis.UniversalClient
	prefix  string
	maxSize int
}

func NewGrantHistoryStore(redisClient redis.UniversalClient, prefix string, maxSize int) *GrantHistoryStore {
	if prefix == "" {
		prefix = "grh"
	}
	if maxSize <= 0 {
		maxSize = 100
	}
	return &GrantHistoryStore{
		redis:   redisClient,
		prefix:  prefix,
		maxSize: maxSize,
	}
}

func (s *GrantHistoryStore) key(clientID string) string {
	return s.prefix + ":" + clientID
}

// Load returns the stored history for a client, oldest first. A missing key
// yields an empty history, not an error.
func (s *GrantHistoryStore) Load(ctx context.Context, clientID string) ([]time.Time, error) {
	data, err := s.redis.Get(ctx, s.key(clientID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrHistoryUnavailable, err)
	}

	var millis []int64
	if err := json.Unmarshal(data, &millis); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHistoryCorrupt, err)
	}

	stamps := make([]time.Time, 0, len(millis))
	for _, ms := range millis {
		stamps = append(stamps, time.UnixMilli(ms))
	}
	return stamps, nil
}

// Save replaces the stored history. Histories longer than the configured
// ceiling are truncated to the newest entries before writing. The key expires
// with the rate window so idle clients cost nothing.
func (s *GrantHistoryStore) Save(ctx context.Context, clientID string, stamps []time.Time, ttl time.Duration) error {
	if len(stamps) > s.maxSize {
		stamps = stamps[len(stamps)-s.maxSize:]
	}

	millis := make([]int64, 0, len(stamps))
	for _, t := range stamps {
		millis = append(millis, t.UnixMilli())
	}

	data, err := json.Marshal(millis)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrHistoryCorrupt, err)
	}

	if err := s.redis.Set(ctx, s.key(clientID), data, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrHistoryUnavailable, err)
	}
	return nil
}
