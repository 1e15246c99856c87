package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

// presenceTTL bounds how stale a presence key can get if a process dies
// without unregistering its connections.
const presenceTTL = 2 * time.Minute

// InitRedis initializes the Redis client
func InitRedis() error {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://redis:6379" // Default Redis address for Docker
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %v", err)
	}

	RedisClient = redis.NewClient(opt)

	// Test the connection
	ctx := context.Background()
	_, err = RedisClient.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %v", err)
	}

	return nil
}

// SetUserPresence mirrors a hub registration into Redis so other processes
// can see which users are reachable. The hub map stays the in-process truth;
// this mirror is the path to multi-worker broadcast correctness.
func SetUserPresence(ctx context.Context, userID uint, userType string) error {
	if RedisClient == nil {
		return nil
	}
	key := fmt.Sprintf("presence:user:%d", userID)
	return RedisClient.Set(ctx, key, userType, presenceTTL).Err()
}

// RefreshUserPresence extends the presence TTL for a still-connected user.
func RefreshUserPresence(ctx context.Context, userID uint) error {
	if RedisClient == nil {
		return nil
	}
	key := fmt.Sprintf("presence:user:%d", userID)
	return RedisClient.Expire(ctx, key, presenceTTL).Err()
}

// ClearUserPresence removes the presence mirror on disconnect.
func ClearUserPresence(ctx context.Context, userID uint) error {
	if RedisClient == nil {
		return nil
	}
	key := fmt.Sprintf("presence:user:%d", userID)
	return RedisClient.Del(ctx, key).Err()
}

// PublishRideUpdate publishes ride status update to Redis pub/sub
func PublishRideUpdate(ctx context.Context, rideID uint, event string, data map[string]interface{}) error {
	if RedisClient == nil {
		return nil
	}
	updateData := map[string]interface{}{
		"rideId":    rideID,
		"event":     event,
		"data":      data,
		"timestamp": time.Now().Unix(),
	}

	jsonData, err := json.Marshal(updateData)
	if err != nil {
		return err
	}

	return RedisClient.Publish(ctx, "ride:updates", jsonData).Err()
}
