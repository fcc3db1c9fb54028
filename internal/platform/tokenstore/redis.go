package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"blog_api/internal/common"
	"blog_api/internal/platform/config"

	"github.com/redis/go-redis/v9"
)

var RDB *redis.Client

func ConnectRedis() {
	RDB = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisDB,
	})

	ctx := context.Background()
	_, err := RDB.Ping(ctx).Result()
	if err != nil {
		log.Fatalf("Could not connect to Redis: %v", err)
	}
	fmt.Println("Successfully connected to Redis!")
}

func CloseRedis() {
	if RDB != nil {
		RDB.Close()
		fmt.Println("Redis connection closed.")
	}
}

// RefreshTokenStore keeps opaque refresh tokens keyed by their value, each
// expiring with the configured TTL. Tokens are single-use: Consume removes
// the token while returning its user ID, so rotation is atomic.
type RefreshTokenStore interface {
	Save(ctx context.Context, token, userID string, ttl time.Duration) error
	Consume(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
}

type redisTokenStore struct {
	rdb *redis.Client
}

func NewRedisTokenStore(rdb *redis.Client) RefreshTokenStore {
	return &redisTokenStore{rdb: rdb}
}

func tokenKey(token string) string {
	return "refresh_token:" + token
}

func (s *redisTokenStore) Save(ctx context.Context, token, userID string, ttl time.Duration) error {
	if err := s.rdb.Set(ctx, tokenKey(token), userID, ttl).Err(); err != nil {
		return fmt.Errorf("redisTokenStore.Save: %w", err)
	}
	return nil
}

func (s *redisTokenStore) Consume(ctx context.Context, token string) (string, error) {
	userID, err := s.rdb.GetDel(ctx, tokenKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("refresh token unknown or expired: %w", common.ErrUnauthorized)
		}
		return "", fmt.Errorf("redisTokenStore.Consume: %w", err)
	}
	return userID, nil
}

func (s *redisTokenStore) Delete(ctx context.Context, token string) error {
	if err := s.rdb.Del(ctx, tokenKey(token)).Err(); err != nil {
		return fmt.Errorf("redisTokenStore.Delete: %w", err)
	}
	return nil
}
