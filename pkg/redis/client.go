package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultTimeout = 5 * time.Second

// NewClientFromURL parses a redis:// or rediss:// URL and verifies the
// connection with a PING.
func NewClientFromURL(ctx context.Context, redisURL string) (*goredis.Client, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	if opts.DialTimeout == 0 {
		opts.DialTimeout = defaultTimeout
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = defaultTimeout
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = defaultTimeout
	}

	client := goredis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

// Key joins a prefix and key parts with ':'. Empty parts are skipped.
func Key(prefix string, parts ...string) string {
	all := make([]string, 0, len(parts)+1)
	if prefix != "" {
		all = append(all, prefix)
	}
	for _, p := range parts {
		if p != "" {
			all = append(all, p)
		}
	}
	return strings.Join(all, ":")
}
