package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/redis/go-redis/v9"

	"databox/internal/databox"
)

// RedisOptions configures a RedisStore.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string // key prefix, defaults to "databox:"
}

// RedisStore keeps each tenant record in a hash with "version" and "data"
// fields. Writes use WATCH/MULTI so a concurrent writer aborts the transaction.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore creates a client for opts. No connection is made until first use.
func NewRedisStore(opts RedisOptions) *RedisStore {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "databox:"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &RedisStore{client: client, prefix: prefix}
}

func (s *RedisStore) key(tenant databox.TenantID) string {
	return s.prefix + "tenant:" + string(tenant)
}

// Get writes the tenant record to w.
func (s *RedisStore) Get(ctx context.Context, tenant databox.TenantID, w io.Writer) (int64, error) {
	vals, err := s.client.HMGet(ctx, s.key(tenant), "version", "data").Result()
	if err != nil {
		return 0, fmt.Errorf("reading tenant record: %w", err)
	}
	if vals[0] == nil {
		return 0, nil
	}
	version, err := strconv.ParseInt(fmt.Sprint(vals[0]), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing version: %w", err)
	}
	data, _ := vals[1].(string)
	if _, err := io.WriteString(w, data); err != nil {
		return 0, fmt.Errorf("writing record: %w", err)
	}
	return version, nil
}

// Version returns the stored version, 0 if the tenant has no record.
func (s *RedisStore) Version(ctx context.Context, tenant databox.TenantID) (int64, error) {
	return s.version(ctx, s.client, s.key(tenant))
}

func (s *RedisStore) version(ctx context.Context, c redis.HashCmdable, key string) (int64, error) {
	version, err := c.HGet(ctx, key, "version").Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading tenant version: %w", err)
	}
	return version, nil
}

// Put replaces the tenant record if baseVersion is current.
func (s *RedisStore) Put(ctx context.Context, tenant databox.TenantID, r io.Reader, size int64, baseVersion int64) (int64, error) {
	data, err := readExactly(r, size)
	if err != nil {
		return 0, err
	}
	key := s.key(tenant)
	next := baseVersion + 1

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := s.version(ctx, tx, key)
		if err != nil {
			return err
		}
		if current != baseVersion {
			return staleError(tenant, baseVersion, current)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, "version", next, "data", data)
			return nil
		})
		return err
	}, key)
	if errors.Is(err, redis.TxFailedErr) {
		return 0, fmt.Errorf("tenant %s changed during write: %w", tenant, databox.ErrStaleVersion)
	}
	if err != nil {
		if errors.Is(err, databox.ErrStaleVersion) {
			return 0, err
		}
		return 0, fmt.Errorf("writing tenant record: %w", err)
	}
	return next, nil
}

// ValidateSetup pings the server.
func (s *RedisStore) ValidateSetup(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("pinging redis: %w", err)
	}
	return nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ databox.Store = (*RedisStore)(nil)
