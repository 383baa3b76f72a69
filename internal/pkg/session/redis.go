package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"github.com/yigit/campusreg/internal/app/models"
	"github.com/yigit/campusreg/internal/pkg/apperrors"
)

// RedisClient is the subset of go-redis the store uses.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	SAdd(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisStore keeps sessions in Redis as JSON with a TTL. Calls go through a
// circuit breaker; an open breaker surfaces as apperrors.ErrUnavailable.
type RedisStore struct {
	client     RedisClient
	cb         *gobreaker.CircuitBreaker
	prefix     string
	pendingTTL time.Duration
	sessionTTL time.Duration
}

// RedisOptions configures a RedisStore
type RedisOptions struct {
	KeyPrefix  string
	PendingTTL time.Duration
	SessionTTL time.Duration
}

// NewRedisStore creates a Redis backed store
func NewRedisStore(client RedisClient, cb *gobreaker.CircuitBreaker, opts RedisOptions) *RedisStore {
	return &RedisStore{
		client:     client,
		cb:         cb,
		prefix:     opts.KeyPrefix,
		pendingTTL: opts.PendingTTL,
		sessionTTL: opts.SessionTTL,
	}
}

var _ Store = (*RedisStore)(nil)

func (s *RedisStore) PutPending(ctx context.Context, sid string, p *models.PendingSession) error {
	if err := s.setJSON(ctx, pendingKey(s.prefix, sid, p.TempUserID), p, s.pendingTTL); err != nil {
		return err
	}
	idx := pendingIndexKey(s.prefix, sid)
	_, err := s.execute(func() (interface{}, error) {
		if err := s.client.SAdd(ctx, idx, p.TempUserID).Err(); err != nil {
			return nil, err
		}
		return nil, s.client.Expire(ctx, idx, s.pendingTTL).Err()
	})
	return err
}

func (s *RedisStore) GetPending(ctx context.Context, sid, tempUserID string) (*models.PendingSession, error) {
	var p models.PendingSession
	found, err := s.getJSON(ctx, pendingKey(s.prefix, sid, tempUserID), &p)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperrors.ErrPendingNotFound
	}
	return &p, nil
}

func (s *RedisStore) DeletePending(ctx context.Context, sid, tempUserID string) error {
	return s.del(ctx, pendingKey(s.prefix, sid, tempUserID))
}

func (s *RedisStore) Load(ctx context.Context, sid string) (*models.SessionState, error) {
	var st models.SessionState
	if _, err := s.getJSON(ctx, stateKey(s.prefix, sid), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *RedisStore) Save(ctx context.Context, sid string, state *models.SessionState) error {
	return s.setJSON(ctx, stateKey(s.prefix, sid), state, s.sessionTTL)
}

func (s *RedisStore) Delete(ctx context.Context, sid string) error {
	idx := pendingIndexKey(s.prefix, sid)
	raw, err := s.execute(func() (interface{}, error) {
		return s.client.SMembers(ctx, idx).Result()
	})
	if err != nil {
		return err
	}
	ids, _ := raw.([]string)

	keys := []string{stateKey(s.prefix, sid), idx}
	for _, id := range ids {
		keys = append(keys, pendingKey(s.prefix, sid, id))
	}
	return s.del(ctx, keys...)
}

func (s *RedisStore) Ping(ctx context.Context) error {
	_, err := s.execute(func() (interface{}, error) {
		return nil, s.client.Ping(ctx).Err()
	})
	return err
}

func (s *RedisStore) setJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode session value: %w", err)
	}
	_, err = s.execute(func() (interface{}, error) {
		return nil, s.client.Set(ctx, key, string(data), ttl).Err()
	})
	return err
}

// getJSON reports found=false for a missing key. A missing key is not a
// breaker failure.
func (s *RedisStore) getJSON(ctx context.Context, key string, v interface{}) (bool, error) {
	raw, err := s.execute(func() (interface{}, error) {
		val, err := s.client.Get(ctx, key).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return val, err
	})
	if err != nil {
		return false, err
	}
	str, ok := raw.(string)
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(str), v); err != nil {
		return false, fmt.Errorf("failed to decode session value: %w", err)
	}
	return true, nil
}

func (s *RedisStore) del(ctx context.Context, keys ...string) error {
	_, err := s.execute(func() (interface{}, error) {
		return nil, s.client.Del(ctx, keys...).Err()
	})
	return err
}

func (s *RedisStore) execute(fn func() (interface{}, error)) (interface{}, error) {
	v, err := s.cb.Execute(fn)
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: session store: %v", apperrors.ErrUnavailable, err)
	}
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}
	return v, nil
}
