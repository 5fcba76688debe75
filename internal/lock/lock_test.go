package lock

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dfinsell-next/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func setupDBLocker(t *testing.T) *DBLocker {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite failed: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql db failed: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&models.PaymentLock{}); err != nil {
		t.Fatalf("migrate lock table failed: %v", err)
	}
	return NewDBLocker(db, DefaultTTL)
}

func setupRedisLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, "test", DefaultTTL), mr
}

func assertExclusive(t *testing.T, locker Locker) {
	t.Helper()
	ctx := context.Background()
	var acquired int32
	var g errgroup.Group
	for i := 0; i < 16; i++ {
		g.Go(func() error {
			if locker.Acquire(ctx, AccountKey("Main")) {
				atomic.AddInt32(&acquired, 1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent acquire failed: %v", err)
	}
	if acquired != 1 {
		t.Fatalf("exactly one acquire should win, got %d", acquired)
	}
}

func TestAccountKey(t *testing.T) {
	if got := AccountKey(" Main "); got != "lock_Main" {
		t.Fatalf("key want lock_Main got %s", got)
	}
}

func TestDBLockerMutualExclusion(t *testing.T) {
	assertExclusive(t, setupDBLocker(t))
}

func TestDBLockerReleaseAndExpiry(t *testing.T) {
	locker := setupDBLocker(t)
	ctx := context.Background()
	base := time.Now()
	locker.now = func() time.Time { return base }

	if !locker.Acquire(ctx, "lock_A") {
		t.Fatalf("first acquire should succeed")
	}
	if locker.Acquire(ctx, "lock_A") {
		t.Fatalf("second acquire before expiry should fail")
	}
	locker.Release(ctx, "lock_A")
	if !locker.Acquire(ctx, "lock_A") {
		t.Fatalf("acquire after release should succeed")
	}

	locker.now = func() time.Time { return base.Add(11 * time.Second) }
	if !locker.Acquire(ctx, "lock_A") {
		t.Fatalf("acquire after ttl should take over stale lock")
	}
}

func TestDBLockerFailsClosed(t *testing.T) {
	locker := setupDBLocker(t)
	if err := locker.db.Migrator().DropTable(&models.PaymentLock{}); err != nil {
		t.Fatalf("drop table failed: %v", err)
	}
	if locker.Acquire(context.Background(), "lock_A") {
		t.Fatalf("acquire must fail when the store write fails")
	}
}

func TestRedisLockerMutualExclusion(t *testing.T) {
	locker, _ := setupRedisLocker(t)
	assertExclusive(t, locker)
}

func TestRedisLockerExpiryAndRelease(t *testing.T) {
	locker, mr := setupRedisLocker(t)
	ctx := context.Background()

	if !locker.Acquire(ctx, "lock_B") {
		t.Fatalf("first acquire should succeed")
	}
	if !mr.Exists("test:lock_B") {
		t.Fatalf("lock key missing, keys=%v", mr.Keys())
	}
	if locker.Acquire(ctx, "lock_B") {
		t.Fatalf("second acquire before expiry should fail")
	}
	mr.FastForward(11 * time.Second)
	if !locker.Acquire(ctx, "lock_B") {
		t.Fatalf("acquire after ttl should succeed")
	}
	locker.Release(ctx, "lock_B")
	if mr.Exists("test:lock_B") {
		t.Fatalf("lock key should be deleted on release")
	}
}

func TestRedisLockerFailsClosed(t *testing.T) {
	locker, mr := setupRedisLocker(t)
	mr.Close()
	if locker.Acquire(context.Background(), "lock_C") {
		t.Fatalf("acquire must fail when redis is unreachable")
	}
}

func TestNewFallsBackToDatabase(t *testing.T) {
	if _, ok := New(Options{Driver: "redis"}, nil, nil).(*DBLocker); !ok {
		t.Fatalf("nil redis client should fall back to database locker")
	}
}
