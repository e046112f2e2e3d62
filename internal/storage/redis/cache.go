package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"lockScope/internal/model"
)

const (
	defaultTTL     = 5 * time.Minute
	defaultPrefix  = "lockscope"
	defaultTxLimit = 100
)

// ErrNotFound is returned when no snapshot is cached for an account.
var ErrNotFound = errors.New("snapshot not cached")

// Cache keeps the latest snapshot per account and a bounded list of recent
// transactions.
type Cache struct {
	client   *goredis.Client
	ttl      time.Duration
	prefix   string
	addr     string
	db       int
	password string
	txLimit  int64
}

type Option func(*Cache)

func WithPassword(password string) Option {
	return func(c *Cache) { c.password = password }
}

func WithDB(db int) Option {
	return func(c *Cache) { c.db = db }
}

func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

func WithPrefix(prefix string) Option {
	return func(c *Cache) {
		if strings.TrimSpace(prefix) != "" {
			c.prefix = strings.TrimSpace(prefix)
		}
	}
}

func New(addr string, opts ...Option) (*Cache, error) {
	if strings.TrimSpace(addr) == "" {
		return nil, fmt.Errorf("redis addr is required")
	}

	c := &Cache{
		ttl:     defaultTTL,
		prefix:  defaultPrefix,
		addr:    addr,
		txLimit: defaultTxLimit,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.client = goredis.NewClient(&goredis.Options{
		Addr:     c.addr,
		Password: c.password,
		DB:       c.db,
	})

	if err := c.client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return c, nil
}

func (c *Cache) Close() error {
	return c.client.Close()
}

// PutSnapshots caches each snapshot unless a newer block is already cached.
func (c *Cache) PutSnapshots(ctx context.Context, snapshots []model.AccountSnapshot) error {
	for _, snap := range snapshots {
		current, err := c.Latest(ctx, snap.ChainID, snap.Account)
		if err == nil && current.BlockNumber > snap.BlockNumber {
			continue
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			return err
		}

		raw, err := json.Marshal(snap)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		if err := c.client.Set(ctx, c.snapshotKey(snap.ChainID, snap.Account), raw, c.ttl).Err(); err != nil {
			return fmt.Errorf("failed to cache snapshot: %w", err)
		}
	}
	return nil
}

// Latest returns the cached snapshot for an account.
func (c *Cache) Latest(ctx context.Context, chainID uint64, account string) (model.AccountSnapshot, error) {
	raw, err := c.client.Get(ctx, c.snapshotKey(chainID, account)).Bytes()
	if err != nil {
		if err == goredis.Nil {
			return model.AccountSnapshot{}, ErrNotFound
		}
		return model.AccountSnapshot{}, fmt.Errorf("failed to load snapshot: %w", err)
	}
	var snap model.AccountSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return model.AccountSnapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return snap, nil
}

// PutTxRecords prepends records to the account's recent transaction list.
func (c *Cache) PutTxRecords(ctx context.Context, records []model.TxRecord) error {
	if len(records) == 0 {
		return nil
	}
	pipe := c.client.TxPipeline()
	for _, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal tx record: %w", err)
		}
		key := c.txKey(rec.ChainID, rec.Account)
		pipe.LPush(ctx, key, raw)
		pipe.LTrim(ctx, key, 0, c.txLimit-1)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to cache tx records: %w", err)
	}
	return nil
}

// RecentTx returns up to limit cached transactions, newest first.
func (c *Cache) RecentTx(ctx context.Context, chainID uint64, account string, limit int64) ([]model.TxRecord, error) {
	if limit <= 0 || limit > c.txLimit {
		limit = c.txLimit
	}
	values, err := c.client.LRange(ctx, c.txKey(chainID, account), 0, limit-1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tx records: %w", err)
	}
	out := make([]model.TxRecord, 0, len(values))
	for _, value := range values {
		var rec model.TxRecord
		if err := json.Unmarshal([]byte(value), &rec); err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (c *Cache) snapshotKey(chainID uint64, account string) string {
	return c.prefix + ":snapshot:" + strconv.FormatUint(chainID, 10) + ":" + strings.ToLower(account)
}

func (c *Cache) txKey(chainID uint64, account string) string {
	return c.prefix + ":tx:" + strconv.FormatUint(chainID, 10) + ":" + strings.ToLower(account)
}
