package wizard

import (
	"context"
	"errors"
	"fmt"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound signals an unknown or expired session id.
var ErrSessionNotFound = errors.New("wizard: session not found")

// Store keeps session snapshots. Get returns a copy the caller may mutate.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, sess *Session) error
	Delete(ctx context.Context, id string) error
}

// MemoryStore keeps encoded sessions in process memory with a TTL.
type MemoryStore struct {
	cache *gocache.Cache
	ttl   time.Duration
}

// NewMemoryStore keeps sessions in process for ttl after their last save.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		cache: gocache.New(ttl, ttl*2),
		ttl:   ttl,
	}
}

// Get returns a copy of the stored session.
func (m *MemoryStore) Get(_ context.Context, id string) (*Session, error) {
	val, found := m.cache.Get(id)
	if !found {
		return nil, ErrSessionNotFound
	}
	return decodeSession(val.([]byte))
}

// Save stores a snapshot of sess and refreshes its expiry.
func (m *MemoryStore) Save(_ context.Context, sess *Session) error {
	raw, err := encodeSession(sess)
	if err != nil {
		return err
	}
	m.cache.Set(sess.ID, raw, m.ttl)
	return nil
}

// Delete drops the session.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.cache.Delete(id)
	return nil
}

const redisKeyPrefix = "disputeai:wizard:session:"

// RedisStore keeps sessions as JSON snapshots so any API replica can serve
// the next turn.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore keeps sessions in Redis for ttl after their last save.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// ConnectRedis accepts a redis:// URL or a bare host:port.
func ConnectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	var client *redis.Client
	if opt, err := redis.ParseURL(redisURL); err == nil {
		client = redis.NewClient(opt)
	} else {
		client = redis.NewClient(&redis.Options{Addr: redisURL})
	}
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("wizard: ping redis: %w", err)
	}
	return client, nil
}

// Get loads and decodes the session.
func (r *RedisStore) Get(ctx context.Context, id string) (*Session, error) {
	raw, err := r.client.Get(ctx, redisKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("wizard: load session %s: %w", id, err)
	}
	return decodeSession(raw)
}

// Save encodes sess and refreshes its expiry.
func (r *RedisStore) Save(ctx context.Context, sess *Session) error {
	raw, err := encodeSession(sess)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, redisKeyPrefix+sess.ID, raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("wizard: save session %s: %w", sess.ID, err)
	}
	return nil
}

// Delete drops the session.
func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, redisKeyPrefix+id).Err()
}
