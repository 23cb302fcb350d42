package redis

import (
	"context"
	"strings"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	redislib "github.com/redis/go-redis/v9"
)

// newTestRedisClient starts an in-process redis and a client bound to it.
// Both are closed when the test ends.
func newTestRedisClient(t *testing.T) (*redislib.Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redislib.NewClient(&redislib.Options{
		Addr:     mr.Addr(),
		PoolSize: 4,
	})
	t.Cleanup(func() { _ = client.Close() })

	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("ping miniredis: %v", err)
	}

	return client, mr
}

// ledgerdKeys lists the keys this package has written.
func ledgerdKeys(mr *miniredis.Miniredis) []string {
	var keys []string
	for _, key := range mr.Keys() {
		if strings.HasPrefix(key, "ledgerd:") {
			keys = append(keys, key)
		}
	}
	return keys
}
