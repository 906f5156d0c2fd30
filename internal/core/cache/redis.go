package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// genTTL 失效代数 key 的存活时间，需远大于单次回源耗时
const genTTL = 24 * time.Hour

var errStale = errors.New("cache: invalidated during load")

type Cache struct {
	RDB    *redis.Client
	Prefix string
	sf     singleflight.Group
}

func New(addr, pass string, db int) *Cache {
	return NewWithClient(redis.NewClient(&redis.Options{Addr: addr, Password: pass, DB: db}))
}

func NewWithClient(rdb *redis.Client) *Cache {
	return &Cache{RDB: rdb, Prefix: "account-api:"}
}

func (c *Cache) key(k string) string { return c.Prefix + k }

// genKey 每次 Delete 自增，回源期间若变化则放弃回写
func (c *Cache) genKey(k string) string { return c.Prefix + "gen:" + k }

func (c *Cache) Ping(ctx context.Context) error { return c.RDB.Ping(ctx).Err() }

func (c *Cache) Close() error { return c.RDB.Close() }

// GetOrLoad 先读缓存，未命中时 singleflight 合并回源并回写
func (c *Cache) GetOrLoad(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	k := c.key(key)
	b, err := c.RDB.Get(ctx, k).Bytes()
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, redis.Nil) && ctx.Err() != nil {
		return nil, ctx.Err()
	}
	v, err, _ := c.sf.Do(k, func() (any, error) {
		gen := c.RDB.Get(ctx, c.genKey(key)).Val()
		b, e := load(ctx)
		if e != nil {
			return nil, e
		}
		// 回写失败或已被失效都不影响本次结果
		_ = c.setIfCurrent(ctx, k, c.genKey(key), gen, b, ttl)
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// setIfCurrent 仅在 gen 未变时写入；WATCH 保证检查和写入之间没有插入 Delete
func (c *Cache) setIfCurrent(ctx context.Context, k, gk, gen string, b []byte, ttl time.Duration) error {
	return c.RDB.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, gk).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, k, b, ttl)
			return nil
		})
		return err
	}, gk)
}

// Delete 删除 key 并推进其代数，让进行中的回源不再回写旧值
func (c *Cache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	ks := make([]string, len(keys))
	for i, k := range keys {
		ks[i] = c.key(k)
	}
	_, err := c.RDB.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, k := range keys {
			p.Incr(ctx, c.genKey(k))
			p.Expire(ctx, c.genKey(k), genTTL)
		}
		p.Del(ctx, ks...)
		return nil
	})
	return err
}
