// Package lock implements the per-(ticker, timeframe, indicator) advisory
// lock used to serialize batch indicator writes (spec §4.10). Grounded on
// the teacher's pkg/cache/redis.go client construction; the lock protocol
// itself is the classic single-instance Redis recipe (SET NX PX to
// acquire, a Lua check-and-delete to release) since no extra library earns
// its keep over three Redis commands.
package lock

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes key only if its value still matches the token this
// holder set, so a lock that expired and was re-acquired by someone else is
// never deleted out from under them.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
else
	return 0
end
`

var ErrAcquireTimeout = errors.New("lock: acquire timed out")

// Manager issues and releases advisory locks against a shared Redis
// instance. Locks are best-effort: expiry is enforced purely by TTL, never
// by comparing client clocks.
type Manager struct {
	client *redis.Client
	script *redis.Script
}

func NewManager(client *redis.Client) *Manager {
	return &Manager{client: client, script: redis.NewScript(releaseScript)}
}

// Handle is the token returned by a successful Acquire, required to
// Release the same lock.
type Handle struct {
	Key   string
	token string
}

// Acquire polls for key every pollInterval, up to timeout, setting it with
// ttl on success. Returns ErrAcquireTimeout if the window elapses without
// acquiring.
func (m *Manager) Acquire(ctx context.Context, key string, timeout, pollInterval, ttl time.Duration) (*Handle, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(timeout)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		ok, err := m.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return &Handle{Key: key, token: token}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrAcquireTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// Release deletes the lock iff it still holds the token this Handle was
// issued with.
func (m *Manager) Release(ctx context.Context, h *Handle) error {
	return m.script.Run(ctx, m.client, []string{h.Key}, h.token).Err()
}
