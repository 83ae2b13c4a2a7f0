package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// QueueCounter issues walk-in queue numbers with INCR on one key per
// department and day. INCR is atomic in Redis, so concurrent joins from any
// number of API instances never share a number.
// nextNumberScript increments the counter and refreshes its expiry in one
// atomic step. ARGV[1] is the ttl in milliseconds, 0 for no expiry.
var nextNumberScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
local ttl = tonumber(ARGV[1])
if ttl > 0 then
	redis.call("PEXPIRE", KEYS[1], ttl)
end
return n
`)

type QueueCounter struct {
	client *redis.Client
	ttl    time.Duration
}

// NewQueueCounter returns a counter whose keys expire ttl after the last join.
// The ttl only needs to outlive the day the key belongs to.
func NewQueueCounter(client *redis.Client, ttl time.Duration) *QueueCounter {
	return &QueueCounter{client: client, ttl: ttl}
}

func QueueCounterKey(departmentID uuid.UUID, day time.Time) string {
	return fmt.Sprintf("queue:seq:%s:%s", departmentID, day.Format("2006-01-02"))
}

func (c *QueueCounter) NextQueueNumber(ctx context.Context, departmentID uuid.UUID, day time.Time) (int, error) {
	key := QueueCounterKey(departmentID, day)

	n, err := nextNumberScript.Run(ctx, c.client, []string{key}, c.ttl.Milliseconds()).Int64()
	if err != nil {
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}

	return int(n), nil
}
