package redis

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lease only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// TickLock is a best-effort distributed lease so only one replica runs a
// scheduler tick at a time.
type TickLock struct {
	client redis.UniversalClient
	prefix string
}

// NewTickLock creates a new TickLock.
func NewTickLock(client redis.UniversalClient) *TickLock {
	return &TickLock{
		client: client,
		prefix: "ledgerd:lease:",
	}
}

// Acquire takes the lease for ttl. It returns a release func when the
// lease was won and false when another holder has it.
func (l *TickLock) Acquire(ctx context.Context, name string, ttl time.Duration) (func(context.Context) error, bool, error) {
	token, err := newToken()
	if err != nil {
		return nil, false, err
	}

	key := l.prefix + name
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}

	release := func(ctx context.Context) error {
		return releaseScript.Run(ctx, l.client, []string{key}, token).Err()
	}
	return release, true, nil
}

func newToken() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
