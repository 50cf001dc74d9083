package redis

import (
	"github.com/redis/go-redis/v9"

	"storefront.local/checkout-api/pkg/global"
)

func NewClient(cfg global.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddress,
		Password: cfg.RedisPassword,
		DB:       0,
		Protocol: 2,
	})
}
