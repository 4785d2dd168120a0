package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

const (
	redisAccountKeyPrefix = "gateway:account:"
	redisAccountIndexKey  = "gateway:accounts"
)

// RedisStore persists accounts as JSON values plus a set index of ids.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects and pings the server.
func NewRedisStore(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// List loads every indexed account, dropping disabled ones.
func (s *RedisStore) List(ctx context.Context) ([]*Account, error) {
	ids, err := s.client.SMembers(ctx, redisAccountIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list accounts: %w", err)
	}
	accounts := make([]*Account, 0, len(ids))
	for _, id := range ids {
		data, err := s.client.Get(ctx, redisAccountKeyPrefix+id).Result()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis get account %s: %w", id, err)
		}
		var acc Account
		if err = json.Unmarshal([]byte(data), &acc); err != nil {
			log.Warnf("account %s unparsable in redis: %v", id, err)
			continue
		}
		if acc.Token == nil || !acc.IsActive {
			continue
		}
		accounts = append(accounts, &acc)
	}
	return accounts, nil
}

// Save upserts the account value and its index entry.
func (s *RedisStore) Save(ctx context.Context, acc *Account) error {
	data, err := json.Marshal(acc)
	if err != nil {
		return err
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, redisAccountKeyPrefix+acc.ID, data, 0)
	pipe.SAdd(ctx, redisAccountIndexKey, acc.ID)
	_, err = pipe.Exec(ctx)
	return err
}

// Delete removes the account value and index entry.
func (s *RedisStore) Delete(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, redisAccountKeyPrefix+id)
	pipe.SRem(ctx, redisAccountIndexKey, id)
	_, err := pipe.Exec(ctx)
	return err
}

// Close releases the connection pool.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
