package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/marcelsud/webhook-gateway/queue"
	goredis "github.com/redis/go-redis/v9"
)

/* Redis implementation of the delayed task queue: a single sorted set
 * scored by due time in unix milliseconds. Popping due tasks runs as a
 * Lua script so that a task dequeued by one worker is gone before any
 * other worker can see it.
 */

const tasksKey = "tasks:delayed"

var dueScript = goredis.NewScript(`
local due = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, tonumber(ARGV[2]))
for i, member in ipairs(due) do
  redis.call("ZREM", KEYS[1], member)
end
return due
`)

var (
	_ queue.TaskQueue = (*Queue)(nil)
	_ queue.Consumer  = (*Queue)(nil)
)

type Queue struct {
	client *goredis.Client
}

// NewQueue creates a Redis-backed delayed task queue.
func NewQueue(client *goredis.Client) (*Queue, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &Queue{client: client}, nil
}

// Enqueue schedules a task to become due after the delay.
func (q *Queue) Enqueue(ctx context.Context, task queue.Task, delay time.Duration) error {
	if err := task.Kind.Validate(); err != nil {
		return fmt.Errorf("validating task: %w", err)
	}
	if task.ID == "" {
		return fmt.Errorf("task ID is required")
	}

	member, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("marshaling task: %w", err)
	}

	due := time.Now().Add(delay).UnixMilli()
	err = q.client.ZAdd(ctx, tasksKey, goredis.Z{
		Score:  float64(due),
		Member: string(member),
	}).Err()
	if err != nil {
		return fmt.Errorf("enqueuing task: %w", err)
	}

	return nil
}

// Due pops up to limit tasks due at or before now.
func (q *Queue) Due(ctx context.Context, now time.Time, limit int64) ([]queue.Task, error) {
	if limit <= 0 {
		limit = 10
	}

	cutoff := strconv.FormatInt(now.UnixMilli(), 10)
	members, err := dueScript.Run(ctx, q.client, []string{tasksKey}, cutoff, limit).StringSlice()
	if err == goredis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("popping due tasks: %w", err)
	}

	tasks := make([]queue.Task, 0, len(members))
	for _, member := range members {
		var task queue.Task
		if err := json.Unmarshal([]byte(member), &task); err != nil {
			// A malformed member would wedge the queue forever if we
			// errored out here; it was already removed, so skip it.
			continue
		}
		tasks = append(tasks, task)
	}

	return tasks, nil
}

// Depth returns the number of scheduled tasks.
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	depth, err := q.client.ZCard(ctx, tasksKey).Result()
	if err != nil {
		return 0, fmt.Errorf("reading queue depth: %w", err)
	}
	return depth, nil
}
