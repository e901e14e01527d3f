package testutil

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisDBLockPrefix names the reservation keys kept in DB 0.
const redisDBLockPrefix = "trackanalysis:testutil:db_lock:"

// redisCandidates lists addresses to probe, in order.
func redisCandidates() []string {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		return []string{addr}
	}
	return []string{envOr("TEST_REDIS_ADDR", "localhost:56379"), "redis:6379", "localhost:6379"}
}

func pingRedis(addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, DB: db})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}

// SetupTestRedis returns a client on an emptied logical database reserved
// for the calling test. With TEST_REDIS_CONTAINER=1 a container is started
// when no local Redis answers.
func SetupTestRedis(t TestingTB) *redis.Client {
	t.Helper()

	addr := ""
	for _, candidate := range redisCandidates() {
		if c, err := pingRedis(candidate, 0); err == nil {
			closeAndLog(t, "redis probe", c)
			addr = candidate
			break
		}
	}
	if addr == "" && envBool("TEST_REDIS_CONTAINER") {
		addr, _ = startRedisContainer(t)
	}
	if addr == "" {
		unavailable(t, requireRedis(), "redis not available for testing (tried %v)", redisCandidates())
	}

	db := reserveRedisDB(t, addr)
	client, err := pingRedis(addr, db)
	if err != nil {
		unavailable(t, requireRedis(), "redis not available at %s: %v", addr, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("flush redis db %d: %v", db, err)
	}
	return client
}

// reserveRedisDB claims a DB index in 1..15 so packages running in parallel
// do not flush each other's data. TEST_REDIS_DB pins the index.
func reserveRedisDB(t TestingTB, addr string) int {
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
		t.Logf("ignoring invalid TEST_REDIS_DB=%q", v)
	}

	meta := redis.NewClient(&redis.Options{Addr: addr})
	defer closeAndLog(t, "redis meta client", meta)

	owner := fmt.Sprintf("%d:%d", os.Getpid(), time.Now().UnixNano())
	for i := 1; i <= 15; i++ {
		key := redisDBLockPrefix + strconv.Itoa(i)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		ok, err := meta.SetNX(ctx, key, owner, 30*time.Minute).Result()
		cancel()
		if err != nil || !ok {
			continue
		}
		t.Cleanup(func() { releaseRedisDB(t, addr, key) })
		return i
	}

	t.Logf("no free redis db at %s, sharing db 1", addr)
	return 1
}

func releaseRedisDB(t TestingTB, addr, key string) {
	c := redis.NewClient(&redis.Options{Addr: addr})
	defer closeAndLog(t, "redis cleanup client", c)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Del(ctx, key).Err(); err != nil {
		t.Logf("warning: release %s: %v", key, err)
	}
}
