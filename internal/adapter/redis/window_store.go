package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	windowKeyPrefix = "ratelimit:"
	storeOpTimeout  = 500 * time.Millisecond
)

// incrWindow increments the counter and starts its expiry on the first hit,
// atomically, so a crash cannot leave a counter without a TTL.
var incrWindow = goredis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// WindowStore is a fixed-window request counter shared by every panel
// process pointed at the same Redis.
type WindowStore struct {
	rdb    goredis.UniversalClient
	scope  string
	limit  int
	window time.Duration
}

func NewWindowStore(rdb goredis.UniversalClient, scope string, limit int, window time.Duration) *WindowStore {
	return &WindowStore{rdb: rdb, scope: scope, limit: limit, window: window}
}

// Allow counts one request for identifier and reports whether it fits the
// current window.
func (s *WindowStore) Allow(identifier string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeOpTimeout)
	defer cancel()

	n, err := incrWindow.Run(ctx, s.rdb, []string{s.key(identifier)}, s.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate window: %w", err)
	}
	return n <= int64(s.limit), nil
}

func (s *WindowStore) key(identifier string) string {
	return windowKeyPrefix + s.scope + ":" + identifier
}
