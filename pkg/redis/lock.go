package redis

import (
	"context"
	"time"

	"github.com/pkg/errors"
	redisclient "github.com/redis/go-redis/v9"
)

// WebhookLocker holds a short-lived SETNX lock per payment transaction so
// concurrent redeliveries of one notification are processed once.
type WebhookLocker struct {
	client *redisclient.Client
	ttl    time.Duration
}

func NewWebhookLocker(client *redisclient.Client, ttl time.Duration) *WebhookLocker {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &WebhookLocker{client: client, ttl: ttl}
}

func lockKey(ref string) string {
	return "webhook:lock:" + ref
}

func (l *WebhookLocker) Lock(ctx context.Context, ref string) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey(ref), time.Now().UTC().Format(time.RFC3339), l.ttl).Result()
	if err != nil {
		return false, errors.Wrapf(err, "acquire webhook lock %s", ref)
	}
	return ok, nil
}

func (l *WebhookLocker) Unlock(ctx context.Context, ref string) error {
	if err := l.client.Del(ctx, lockKey(ref)).Err(); err != nil {
		return errors.Wrapf(err, "release webhook lock %s", ref)
	}
	return nil
}
