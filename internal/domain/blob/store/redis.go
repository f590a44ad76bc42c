package store

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"imgconv-server-go/internal/platform/errors"
)

const (
	fieldMeta    = "meta"
	fieldPayload = "payload"
)

type redisStore struct {
	client    *redis.Client
	ttl       time.Duration
	prefix    string
	threshold int
}

// NewRedis constructs a redis-backed blob store. 过期由 redis 原生 TTL 处理。
func NewRedis(cfg Config) (Store, error) {
	if cfg.Redis == nil {
		return nil, errors.New(errors.KindConfig, "blob.redis", "redis configuration missing")
	}
	if cfg.Redis.Addr == "" {
		return nil, errors.New(errors.KindConfig, "blob.redis", "redis address required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Username: cfg.Redis.Username,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(errors.KindStorage, "blob.redis", "redis ping failed", err)
	}

	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "imgconv:blob:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &redisStore{
		client:    client,
		ttl:       ttl,
		prefix:    prefix,
		threshold: cfg.CompressThreshold,
	}, nil
}

func (s *redisStore) key(id string) string {
	return s.prefix + id
}

func (s *redisStore) Put(ctx context.Context, id string, blob *Blob) error {
	if err := validID("blob.put", id); err != nil {
		return err
	}
	b := stamp(blob, s.ttl)
	payload, encoding, err := compress(b.Data, s.threshold)
	if err != nil {
		return err
	}
	raw, err := marshalMeta(metaOf(b, encoding))
	if err != nil {
		return errors.Wrap(errors.KindStorage, "blob.put", "encode metadata", err)
	}

	expiry := s.ttl
	if b.ExpiresAt != nil {
		expiry = time.Until(*b.ExpiresAt)
	}
	if expiry <= 0 {
		return nil
	}

	key := s.key(id)
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key, fieldMeta, raw, fieldPayload, payload)
		pipe.Expire(ctx, key, expiry)
		return nil
	})
	if err != nil {
		return errors.Wrap(errors.KindStorage, "blob.put", "redis write failed", err)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, id string) (*Blob, error) {
	fields, err := s.client.HGetAll(ctx, s.key(id)).Result()
	if err != nil {
		return nil, errors.Wrap(errors.KindStorage, "blob.get", "redis read failed", err)
	}
	rawMeta, ok := fields[fieldMeta]
	if !ok {
		return nil, ErrNotFound
	}
	m, err := unmarshalMeta([]byte(rawMeta))
	if err != nil {
		return nil, err
	}
	if m.ExpiresAt != nil && time.Now().After(*m.ExpiresAt) {
		_ = s.Delete(ctx, id)
		return nil, ErrNotFound
	}
	data, err := decompress([]byte(fields[fieldPayload]), m.Encoding)
	if err != nil {
		return nil, err
	}
	return m.blob(data), nil
}

func (s *redisStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return errors.Wrap(errors.KindStorage, "blob.delete", "redis delete failed", err)
	}
	return nil
}

func (s *redisStore) CleanupExpired(context.Context) error {
	// Redis handles expiration via TTL.
	return nil
}

func (s *redisStore) Stats(ctx context.Context) (Stats, error) {
	st := Stats{Driver: DriverRedis, TTLSeconds: int(s.ttl.Seconds())}
	var cursor uint64
	for {
		keys, next, err := s.client.Scan(ctx, cursor, s.prefix+"*", 100).Result()
		if err != nil {
			return Stats{}, errors.Wrap(errors.KindStorage, "blob.stats", "redis scan failed", err)
		}
		for _, key := range keys {
			if strings.HasPrefix(key, s.prefix) {
				st.Entries++
				n, err := s.client.HStrLen(ctx, key, fieldPayload).Result()
				if err == nil {
					st.Bytes += n
				}
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	return st, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
