package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"deathfun-backend/internal/config"

	"github.com/redis/go-redis/v9"
)

type RedisService struct {
	client *redis.Client
}

func NewRedisService(ctx context.Context, cfg *config.Config) (*RedisService, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisURL,
		Password:     cfg.RedisPass,
		DB:           cfg.RedisDB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisService{client: client}, nil
}

// NewRedisServiceFromClient wraps an existing client without pinging it.
func NewRedisServiceFromClient(client *redis.Client) *RedisService {
	return &RedisService{client: client}
}

func (s *RedisService) Client() *redis.Client {
	return s.client
}

func (s *RedisService) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return storeError("ping", err)
	}
	return nil
}

func (s *RedisService) Close() error {
	return s.client.Close()
}

func (s *RedisService) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrStoreMiss
	}
	if err != nil {
		return nil, storeError("get", err)
	}
	return data, nil
}

func (s *RedisService) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return storeError("set", err)
	}
	return nil
}

func (s *RedisService) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return storeError("delete", err)
	}
	return nil
}

func (s *RedisService) GetMany(ctx context.Context, keys []string) ([][]byte, error) {
	out := make([][]byte, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringCmd, len(keys))
	for i, key := range keys {
		cmds[i] = pipe.Get(ctx, key)
	}

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, storeError("get many", err)
	}

	for i, cmd := range cmds {
		data, err := cmd.Bytes()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, storeError("get many", err)
		}
		out[i] = data
	}

	return out, nil
}

func (s *RedisService) SetMany(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	pipe := s.client.TxPipeline()
	for _, e := range entries {
		pipe.Set(ctx, e.Key, e.Value, e.TTL)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return storeError("set many", err)
	}
	return nil
}

func (s *RedisService) DeleteMany(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return storeError("delete many", err)
	}
	return nil
}

// Returns -1 when the key is gone, 0 when the value changed, 1 on swap.
var compareAndSwapScript = redis.NewScript(`
	local current = redis.call("GET", KEYS[1])
	if not current then
		return -1
	end

	if current ~= ARGV[1] then
		return 0
	end

	local ttl = redis.call("PTTL", KEYS[1])
	if ttl > 0 then
		redis.call("SET", KEYS[1], ARGV[2], "PX", tostring(ttl))
	else
		redis.call("SET", KEYS[1], ARGV[2])
	end

	return 1
`)

func (s *RedisService) CompareAndSwap(ctx context.Context, key string, expected, next []byte) (bool, error) {
	res, err := compareAndSwapScript.Run(ctx, s.client, []string{key}, expected, next).Int()
	if err != nil {
		return false, storeError("compare and swap", err)
	}

	switch res {
	case -1:
		return false, ErrStoreMiss
	case 1:
		return true, nil
	default:
		return false, nil
	}
}

func (s *RedisService) LinkOwnerSession(ctx context.Context, ownerID, sessionID string, ttl time.Duration) error {
	if err := s.client.Set(ctx, ownerSessionKey(ownerID), sessionID, ttl).Err(); err != nil {
		return storeError("link owner", err)
	}
	return nil
}

var unlinkOwnerScript = redis.NewScript(`
	if redis.call("GET", KEYS[1]) == ARGV[1] then
		return redis.call("DEL", KEYS[1])
	end
	return 0
`)

// UnlinkOwnerSession clears the owner's last-session pointer if it still names sessionID.
func (s *RedisService) UnlinkOwnerSession(ctx context.Context, ownerID, sessionID string) error {
	if err := unlinkOwnerScript.Run(ctx, s.client, []string{ownerSessionKey(ownerID)}, sessionID).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return storeError("unlink owner", err)
	}
	return nil
}

func (s *RedisService) LastSessionID(ctx context.Context, ownerID string) (string, error) {
	id, err := s.client.Get(ctx, ownerSessionKey(ownerID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrStoreMiss
	}
	if err != nil {
		return "", storeError("last session", err)
	}
	return id, nil
}

func (s *RedisService) RecordFinished(ctx context.Context, ownerID, sessionID string, at time.Time) error {
	key := ownerHistoryKey(ownerID)

	pipe := s.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(at.UnixMilli()), Member: sessionID})
	pipe.ZRemRangeByRank(ctx, key, 0, -(MaxHistoryEntries + 1))
	pipe.Expire(ctx, key, TTLGameSession)

	if _, err := pipe.Exec(ctx); err != nil {
		return storeError("record finished", err)
	}
	return nil
}

func (s *RedisService) SessionHistory(ctx context.Context, ownerID string, limit int64) ([]string, error) {
	if limit <= 0 || limit > MaxHistoryEntries {
		limit = 50
	}

	ids, err := s.client.ZRevRange(ctx, ownerHistoryKey(ownerID), 0, limit-1).Result()
	if err != nil {
		return nil, storeError("session history", err)
	}
	return ids, nil
}

// PruneExpiredHistory drops history members whose session record has expired.
func (s *RedisService) PruneExpiredHistory(ctx context.Context) (int, error) {
	removed := 0

	iter := s.client.Scan(ctx, 0, KeyHistoryPattern, 100).Iterator()
	for iter.Next(ctx) {
		historyKey := iter.Val()

		ids, err := s.client.ZRange(ctx, historyKey, 0, -1).Result()
		if err != nil {
			return removed, storeError("prune history", err)
		}
		if len(ids) == 0 {
			continue
		}

		pipe := s.client.Pipeline()
		cmds := make([]*redis.IntCmd, len(ids))
		for i, id := range ids {
			cmds[i] = pipe.Exists(ctx, SessionKey(id))
		}
		if _, err := pipe.Exec(ctx); err != nil {
			return removed, storeError("prune history", err)
		}

		var stale []any
		for i, cmd := range cmds {
			if cmd.Val() == 0 {
				stale = append(stale, ids[i])
			}
		}
		if len(stale) == 0 {
			continue
		}

		n, err := s.client.ZRem(ctx, historyKey, stale...).Result()
		if err != nil {
			return removed, storeError("prune history", err)
		}
		removed += int(n)
	}

	if err := iter.Err(); err != nil {
		return removed, storeError("prune history", err)
	}

	return removed, nil
}

// Counts one hit and (re)arms the window when the counter has no TTL.
var rateLimitScript = redis.NewScript(`
	local count = redis.call("INCR", KEYS[1])
	if count == 1 or redis.call("PTTL", KEYS[1]) < 0 then
		redis.call("PEXPIRE", KEYS[1], ARGV[1])
	end
	return count
`)

func (s *RedisService) CheckRateLimit(ctx context.Context, subject, action string, limit int, window time.Duration) (bool, error) {
	key := fmt.Sprintf(KeyRateLimit, subject, action)

	count, err := rateLimitScript.Run(ctx, s.client, []string{key}, strconv.FormatInt(window.Milliseconds(), 10)).Int64()
	if err != nil {
		return false, storeError("rate limit", err)
	}

	return count <= int64(limit), nil
}
