// Package lock 提供按商户账户加锁的短期互斥原语。
//
// 锁在 TTL 到期后自动失效，持有者崩溃不会永久占用账户。
// 任何存储错误都视为未获取锁。
package lock

import (
	"context"
	"strings"
	"time"

	"github.com/dfinsell-next/internal/constants"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// DefaultTTL 默认锁有效期
const DefaultTTL = 10 * time.Second

// Locker 账户锁接口
type Locker interface {
	// Acquire 原子获取锁，失败或存储异常时返回 false
	Acquire(ctx context.Context, key string) bool
	// Release 无条件释放锁
	Release(ctx context.Context, key string)
}

// AccountKey 生成账户锁键
func AccountKey(title string) string {
	return constants.LockKeyPrefix + strings.TrimSpace(title)
}

// Options 锁构建参数
type Options struct {
	Driver string
	TTL    time.Duration
	Prefix string
}

// New 按配置选择锁实现：Redis 可用时优先使用原生过期，否则退回数据库行锁
func New(opts Options, client *redis.Client, db *gorm.DB) Locker {
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	driver := strings.ToLower(strings.TrimSpace(opts.Driver))
	if driver != constants.LockDriverDB && client != nil {
		return NewRedisLocker(client, opts.Prefix, ttl)
	}
	return NewDBLocker(db, ttl)
}
