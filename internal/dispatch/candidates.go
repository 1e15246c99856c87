package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// candidateTTL keeps offer sets around long enough for the reaper's
// REQUESTED cutoff plus slack.
const candidateTTL = 30 * time.Minute

type redisCandidateLog struct {
	client *redis.Client
}

// NewRedisCandidateLog stores offered-driver sets in Redis so they survive
// handler restarts within the offer window.
func NewRedisCandidateLog(client *redis.Client) CandidateLog {
	return &redisCandidateLog{client: client}
}

func candidateKey(rideID uint) string {
	return fmt.Sprintf("dispatch:candidates:%d", rideID)
}

func (l *redisCandidateLog) Record(ctx context.Context, rideID uint, driverIDs []uint) error {
	if len(driverIDs) == 0 {
		return nil
	}
	key := candidateKey(rideID)
	members := make([]interface{}, 0, len(driverIDs))
	for _, id := range driverIDs {
		members = append(members, id)
	}
	if err := l.client.SAdd(ctx, key, members...).Err(); err != nil {
		return err
	}
	return l.client.Expire(ctx, key, candidateTTL).Err()
}

func (l *redisCandidateLog) Get(ctx context.Context, rideID uint) ([]uint, error) {
	vals, err := l.client.SMembers(ctx, candidateKey(rideID)).Result()
	if err != nil {
		return nil, err
	}
	ids := make([]uint, 0, len(vals))
	for _, v := range vals {
		var id uint
		if _, err := fmt.Sscanf(v, "%d", &id); err == nil {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (l *redisCandidateLog) Clear(ctx context.Context, rideID uint) error {
	return l.client.Del(ctx, candidateKey(rideID)).Err()
}
