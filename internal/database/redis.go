package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisPingTimeout = 3 * time.Second

// ConnectRedis builds the statistics cache client from a redis:// URL and
// verifies the server answers a ping.
func ConnectRedis(url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url must not be empty")
	}

	options, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("unable to connect to redis: %w", err)
	}

	return client, nil
}

// RedisPinger adapts a redis client to the PingContext shape used by health checks.
type RedisPinger struct {
	Client *redis.Client
}

// PingContext pings the redis server.
func (p RedisPinger) PingContext(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}
