package intgen

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type RedisOptions struct {
	Addr      string        `cfg:"addr" def:"localhost:6379"`
	Password  string        `cfg:"password"`
	DB        int           `cfg:"db"`
	KeyPrefix string        `cfg:"keyPrefix" def:"nbadmin:seq"`
	Timeout   time.Duration `cfg:"timeout" def:"3s"`
}

// RedisSequence 每个序列对应一个键，用 INCR 保证多实例下不重复
type RedisSequence struct {
	client  redis.UniversalClient
	prefix  string
	timeout time.Duration
}

func NewRedisSequenceWithOptions(options *RedisOptions) *RedisSequence {
	if options == nil {
		options = &RedisOptions{Addr: "localhost:6379", KeyPrefix: "nbadmin:seq", Timeout: 3 * time.Second}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     options.Addr,
		Password: options.Password,
		DB:       options.DB,
	})
	return NewRedisSequence(client, options.KeyPrefix, options.Timeout)
}

func NewRedisSequence(client redis.UniversalClient, prefix string, timeout time.Duration) *RedisSequence {
	return &RedisSequence{client: client, prefix: prefix, timeout: timeout}
}

func (s *RedisSequence) key(name string) string {
	name = strings.ToUpper(name)
	if s.prefix == "" {
		return name
	}
	return s.prefix + ":" + name
}

// Next Redis 不可用时直接返回错误，不降级
func (s *RedisSequence) Next(ctx context.Context, name string) (int64, error) {
	if err := validName(name); err != nil {
		return 0, err
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	n, err := s.client.Incr(ctx, s.key(name)).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "redis incr %s", s.key(name))
	}
	return n, nil
}

// Reset 测试和数据迁移时把序列设置为指定值
func (s *RedisSequence) Reset(ctx context.Context, name string, value int64) error {
	if err := validName(name); err != nil {
		return err
	}
	return errors.Wrap(s.client.Set(ctx, s.key(name), value, 0).Err(), "redis set")
}

func (s *RedisSequence) Close() error {
	return s.client.Close()
}
