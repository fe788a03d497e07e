package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/blkluv/NFTVs/internal/apperr"
	"github.com/blkluv/NFTVs/internal/crypto"
	"github.com/blkluv/NFTVs/internal/domain"
)

const sessionKey = "bubblestreamr:session"

// RedisStore keeps the snapshot as a JSON value under a single key.
type RedisStore struct {
	rdb    *goredis.Client
	cipher crypto.Cipher
}

var _ domain.SnapshotStore = (*RedisStore)(nil)

// NewRedisClient builds a go-redis client from a URL with the metrics and
// circuit-breaker hooks attached, and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	rdb := goredis.NewClient(opts)
	rdb.AddHook(&MetricsHook{})
	rdb.AddHook(NewBreakerHook())

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return rdb, nil
}

func NewRedisStore(rdb *goredis.Client, cipher crypto.Cipher) *RedisStore {
	return &RedisStore{rdb: rdb, cipher: cipher}
}

func (s *RedisStore) Read(ctx context.Context) (domain.SessionSnapshot, bool, error) {
	data, err := s.rdb.Get(ctx, sessionKey).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return domain.SessionSnapshot{}, false, nil
		}
		return domain.SessionSnapshot{}, false, apperr.External("failed to read session key", err)
	}

	var snapshot domain.SessionSnapshot
	if err := json.Unmarshal([]byte(data), &snapshot); err != nil {
		slog.Warn("Malformed session value, treating as absent", "key", sessionKey, "error", err)
		return domain.SessionSnapshot{}, false, nil
	}

	if snapshot.Authorization.Token != "" {
		token, err := s.cipher.Decrypt(snapshot.Authorization.Token)
		if err != nil {
			slog.Warn("Undecryptable session token, treating as absent", "key", sessionKey, "error", err)
			return domain.SessionSnapshot{}, false, nil
		}
		snapshot.Authorization.Token = token
	}

	if !snapshot.Valid() {
		return domain.SessionSnapshot{}, false, nil
	}
	return snapshot, true, nil
}

func (s *RedisStore) Write(ctx context.Context, snapshot domain.SessionSnapshot) error {
	token, err := s.cipher.Encrypt(snapshot.Authorization.Token)
	if err != nil {
		return fmt.Errorf("failed to encrypt token: %w", err)
	}
	snapshot.Authorization.Token = token

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	// No TTL: the snapshot persists until overwritten or cleared.
	if err := s.rdb.Set(ctx, sessionKey, string(data), 0).Err(); err != nil {
		return apperr.External("failed to write session key", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, sessionKey).Err(); err != nil {
		return apperr.External("failed to clear session key", err)
	}
	return nil
}
