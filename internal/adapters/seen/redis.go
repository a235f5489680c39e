package seen

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"opportunity-radar/internal/domain"
	"opportunity-radar/internal/infra/metrics"
)

const defaultPrefix = "radar:seen:"

// Redis хранит увиденные письма ключами с необязательным TTL.
type Redis struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

var _ domain.SeenStore = (*Redis)(nil)

// NewRedis создаёт хранилище; ttl 0 означает бессрочное хранение.
func NewRedis(client redis.Cmdable, prefix string, ttl time.Duration) *Redis {
	if prefix == "" {
		prefix = defaultPrefix
	}
	if ttl < 0 {
		ttl = 0
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(messageID string) string {
	return r.prefix + messageID
}

// Contains реализует domain.SeenStore.
func (r *Redis) Contains(ctx context.Context, messageID string) (bool, error) {
	start := time.Now()
	n, err := r.client.Exists(ctx, r.key(messageID)).Result()
	metrics.ObserveNetworkRequest("redis", "seen_exists", r.prefix, start, err)
	if err != nil {
		return false, fmt.Errorf("проверка письма %s: %w", messageID, err)
	}
	return n > 0, nil
}

// MarkSeen ставит ключ только если его нет, исход первой отметки сохраняется.
func (r *Redis) MarkSeen(ctx context.Context, messageID, outcome string) error {
	if outcome == "" {
		outcome = "seen"
	}
	start := time.Now()
	err := r.client.SetNX(ctx, r.key(messageID), outcome, r.ttl).Err()
	metrics.ObserveNetworkRequest("redis", "seen_mark", r.prefix, start, err)
	if err != nil {
		return fmt.Errorf("отметка письма %s: %w", messageID, err)
	}
	return nil
}
