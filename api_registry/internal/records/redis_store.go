package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/rax0nrax/punyfunny/pkg/redis"
)

// RedisStore keeps one JSON document per label under <prefix>:record:<label>.
type RedisStore struct {
	client goredis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisStore(client goredis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) key(label string) string {
	return redis.Key(s.prefix, "record", label)
}

func (s *RedisStore) Get(ctx context.Context, label string) (*Record, error) {
	data, err := s.client.Get(ctx, s.key(label)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", label, err)
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode record %q: %w", label, err)
	}
	return &rec, nil
}

func (s *RedisStore) Set(ctx context.Context, rec *Record) error {
	out, payload, err := s.encode(rec)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(out.Subdomain), payload, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", out.Subdomain, err)
	}
	return nil
}

func (s *RedisStore) Create(ctx context.Context, rec *Record) error {
	out, payload, err := s.encode(rec)
	if err != nil {
		return err
	}
	created, err := s.client.SetNX(ctx, s.key(out.Subdomain), payload, 0).Result()
	if err != nil {
		return fmt.Errorf("redis setnx %q: %w", out.Subdomain, err)
	}
	if !created {
		return ErrExists
	}
	return nil
}

func (s *RedisStore) encode(rec *Record) (*Record, []byte, error) {
	out, err := prepare(rec, s.now())
	if err != nil {
		return nil, nil, err
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return nil, nil, fmt.Errorf("encode record: %w", err)
	}
	return out, payload, nil
}
