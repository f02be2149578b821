package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisQueue hands report job ids to workers. A popped id moves into an
// in-flight sorted set scored by its lease deadline until it is acked.
type RedisQueue struct {
	client        *redis.Client
	readyKey      string
	inflightKey   string
	visibilityTTL time.Duration
}

// NewRedisQueue builds a queue on client under the given name.
func NewRedisQueue(client *redis.Client, name string, visibility time.Duration) *RedisQueue {
	if name == "" {
		name = "reports"
	}
	if visibility == 0 {
		visibility = 10 * time.Minute
	}
	return &RedisQueue{
		client:        client,
		readyKey:      fmt.Sprintf("queue:%s:ready", name),
		inflightKey:   fmt.Sprintf("queue:%s:inflight", name),
		visibilityTTL: visibility,
	}
}

// Enqueue appends a job to the ready list.
func (q *RedisQueue) Enqueue(ctx context.Context, jobID string) error {
	return q.client.RPush(ctx, q.readyKey, jobID).Err()
}

// DequeueWithLease pops the oldest ready job and leases it. It returns "" when
// the queue is empty.
func (q *RedisQueue) DequeueWithLease(ctx context.Context) (string, error) {
	deadline := time.Now().Add(q.visibilityTTL).UnixMilli()
	res, err := dequeueScript.Run(ctx, q.client, []string{q.readyKey, q.inflightKey}, deadline).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	jobID, ok := res.(string)
	if !ok {
		return "", fmt.Errorf("unexpected type from dequeue script: %T", res)
	}
	return jobID, nil
}

// ExtendLease pushes the visibility deadline forward for an in-flight job.
func (q *RedisQueue) ExtendLease(ctx context.Context, jobID string) error {
	return q.client.ZAddXX(ctx, q.inflightKey, redis.Z{
		Score:  float64(time.Now().Add(q.visibilityTTL).UnixMilli()),
		Member: jobID,
	}).Err()
}

// LeaseUntil puts a job back in flight with the given deadline, leased or not.
func (q *RedisQueue) LeaseUntil(ctx context.Context, jobID string, deadline time.Time) error {
	return q.client.ZAdd(ctx, q.inflightKey, redis.Z{
		Score:  float64(deadline.UnixMilli()),
		Member: jobID,
	}).Err()
}

// Ack removes a job from in-flight tracking.
func (q *RedisQueue) Ack(ctx context.Context, jobID string) error {
	return q.client.ZRem(ctx, q.inflightKey, jobID).Err()
}

// ClaimExpired removes up to limit leases whose deadline passed before now and
// returns their job ids. Claimed jobs are not re-queued.
func (q *RedisQueue) ClaimExpired(ctx context.Context, now time.Time, limit int64) ([]string, error) {
	res, err := claimExpiredScript.Run(ctx, q.client, []string{q.inflightKey}, now.UnixMilli(), limit).StringSlice()
	if err != nil && err != redis.Nil {
		return nil, err
	}
	return res, nil
}

// ReadyDepth returns the number of jobs waiting for a worker.
func (q *RedisQueue) ReadyDepth(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.readyKey).Result()
}

var dequeueScript = redis.NewScript(`
local job = redis.call('LPOP', KEYS[1])
if job then
  redis.call('ZADD', KEYS[2], ARGV[1], job)
  return job
end
return nil
`)

var claimExpiredScript = redis.NewScript(`
local ids = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, id in ipairs(ids) do
  redis.call('ZREM', KEYS[1], id)
end
return ids
`)
