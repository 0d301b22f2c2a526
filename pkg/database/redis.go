package database

import (
	"context"
	"fmt"

	"github.com/go-redis/redis/v8"

	"codehelp-go/pkg/log"
)

// RDB is the shared Redis client, set by InitRedis.
var RDB *redis.Client

// InitRedis connects to Redis and verifies the connection with a PING.
func InitRedis(addr, password string, db int) error {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	RDB = client
	log.Info("Redis client connected successfully")
	return nil
}
