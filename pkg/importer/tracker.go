package importer

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Tracker remembers units that were imported completely.
type Tracker interface {
	Done(ctx context.Context, u Unit) (bool, error)
	Mark(ctx context.Context, u Unit) error
}

// Fingerprint identifies a unit by its path, file count and newest modification time.
// Adding or touching a file changes it.
func Fingerprint(u Unit) string {
	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%d|%d", u.Dir, len(u.Files), u.Newest.UnixNano())))
	return hex.EncodeToString(sum[:])
}

type NopTracker struct{}

func (NopTracker) Done(context.Context, Unit) (bool, error) { return false, nil }
func (NopTracker) Mark(context.Context, Unit) error         { return nil }

type RedisTracker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisTracker(client *redis.Client, prefix string, ttl time.Duration) *RedisTracker {
	return &RedisTracker{client: client, prefix: prefix, ttl: ttl}
}

func (t *RedisTracker) key(u Unit) string {
	return t.prefix + "import:" + Fingerprint(u)
}

func (t *RedisTracker) Done(ctx context.Context, u Unit) (bool, error) {
	n, err := t.client.Exists(ctx, t.key(u)).Result()
	if err != nil {
		return false, fmt.Errorf("check resume key: %w", err)
	}
	return n > 0, nil
}

func (t *RedisTracker) Mark(ctx context.Context, u Unit) error {
	if err := t.client.Set(ctx, t.key(u), u.Dir, t.ttl).Err(); err != nil {
		return fmt.Errorf("set resume key: %w", err)
	}
	return nil
}
