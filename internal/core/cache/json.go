package cache

import (
	"context"
	"encoding/json"
	"time"
)

// GetOrLoadJSON 以 JSON 编码缓存 *T；缓存里的内容解不开时删掉该 key 并直接回源
func GetOrLoadJSON[T any](c *Cache, ctx context.Context, key string, ttl time.Duration, load func(context.Context) (*T, error)) (*T, error) {
	var fresh *T
	b, err := c.GetOrLoad(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		fresh = v
		return json.Marshal(v)
	})
	if err != nil {
		return nil, err
	}
	if fresh != nil {
		return fresh, nil
	}

	out := new(T)
	if err := json.Unmarshal(b, out); err != nil {
		_ = c.Delete(ctx, key)
		return load(ctx)
	}
	return out, nil
}
