package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const jobKeyPrefix = "checkin:job:"

// RedisJobStore persists job ids in Redis with a TTL, matching the lifetime
// of the longest check-in offset.
type RedisJobStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisJobStore(client *redis.Client) *RedisJobStore {
	return &RedisJobStore{client: client, ttl: JobTTL}
}

func (s *RedisJobStore) Save(ctx context.Context, jobID string, at time.Time) error {
	if err := s.client.Set(ctx, jobKeyPrefix+jobID, at.UTC().Format(time.RFC3339), s.ttl).Err(); err != nil {
		return fmt.Errorf("save job %s: %w", jobID, err)
	}
	return nil
}

func (s *RedisJobStore) Delete(ctx context.Context, jobID string) error {
	if err := s.client.Del(ctx, jobKeyPrefix+jobID).Err(); err != nil {
		return fmt.Errorf("delete job %s: %w", jobID, err)
	}
	return nil
}

func (s *RedisJobStore) ListByPrefix(ctx context.Context, prefix string) ([]string, error) {
	var ids []string
	iter := s.client.Scan(ctx, 0, jobKeyPrefix+prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		ids = append(ids, iter.Val()[len(jobKeyPrefix):])
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan jobs with prefix %s: %w", prefix, err)
	}
	return ids, nil
}
