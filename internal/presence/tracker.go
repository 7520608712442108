// internal/presence/tracker.go
package presence

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"kalikascan-admin/internal/common/config"
	"kalikascan-admin/internal/common/logger"
)

const keyPrefix = "admin:lastseen:"

// Tracker records admin console activity in Redis. Each heartbeat refreshes a
// per-admin key whose TTL defines the online window.
type Tracker struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewTracker(cfg config.PresenceConfig, client *redis.Client, log logger.Logger) *Tracker {
	ttl := time.Duration(cfg.TTL) * time.Second
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Tracker{
		client: client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "presence"}),
	}
}

// Touch refreshes the admin's last-seen marker and returns when it expires.
func (t *Tracker) Touch(ctx context.Context, uid string) (time.Time, error) {
	now := time.Now().UTC()
	err := t.client.Set(ctx, keyPrefix+uid, now.Format(time.RFC3339), t.ttl).Err()
	if err != nil {
		return time.Time{}, err
	}
	return now.Add(t.ttl), nil
}

// LastSeen returns the admin's last heartbeat time. The second return is
// false when the marker has expired or was never set.
func (t *Tracker) LastSeen(ctx context.Context, uid string) (time.Time, bool, error) {
	val, err := t.client.Get(ctx, keyPrefix+uid).Result()
	if err == redis.Nil {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	seen, err := time.Parse(time.RFC3339, val)
	if err != nil {
		return time.Time{}, false, err
	}
	return seen, true, nil
}

// Online lists the uids of admins with a live marker.
func (t *Tracker) Online(ctx context.Context) ([]string, error) {
	var uids []string
	iter := t.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		uids = append(uids, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return uids, nil
}
