package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the latest record under <prefix>:position:<symbol> and
// appends each save to <prefix>:history:<symbol>. Durability follows the
// server's persistence settings.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(ctx context.Context, addr, password string, db int, prefix string) (*RedisStore, error) {
	if prefix == "" {
		prefix = "sigtrade"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client, prefix: prefix}, nil
}

func (s *RedisStore) positionKey(symbol string) string {
	return s.prefix + ":position:" + Key(symbol)
}

func (s *RedisStore) historyKey(symbol string) string {
	return s.prefix + ":history:" + Key(symbol)
}

func (s *RedisStore) Save(ctx context.Context, position Position) error {
	if err := position.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(position)
	if err != nil {
		return err
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.positionKey(position.Symbol), data, 0)
		pipe.RPush(ctx, s.historyKey(position.Symbol), data)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save position: %w", err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, symbol string) (Position, bool, error) {
	data, err := s.client.Get(ctx, s.positionKey(symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Position{}, false, nil
	}
	if err != nil {
		return Position{}, false, fmt.Errorf("redis load position: %w", err)
	}
	var position Position
	if err := json.Unmarshal(data, &position); err != nil {
		return Position{}, false, fmt.Errorf("decode position for %s: %w", symbol, err)
	}
	return position, true, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
