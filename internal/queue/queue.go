// Package queue implements a durable redis-backed job queue with
// at-least-once delivery. Immediate jobs live in a list, delayed jobs in a
// sorted set scored by due time; a promoter moves due jobs onto the list in
// one atomic step. Consumers move each job onto a per-consumer processing
// list and ack it only after the handler returns, so a worker crash
// mid-handler leaves the job parked in redis instead of lost. Consumers must
// be idempotent against redelivery.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Well-known queue names. Money movement runs at low concurrency to keep
// lock contention down; webhook sends are independent per transaction and
// run wide.
const (
	QueuePayments = "payments"
	QueueWebhooks = "webhooks"
)

// redisClient is the slice of the redis API the queue uses. Satisfied by
// *redis.Client.
type redisClient interface {
	redis.Scripter
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	ZAdd(ctx context.Context, key string, members ...redis.Z) *redis.IntCmd
	ZRangeByScore(ctx context.Context, key string, opt *redis.ZRangeBy) *redis.StringSliceCmd
	BLMove(ctx context.Context, source, destination, srcpos, destpos string, timeout time.Duration) *redis.StringCmd
	LMove(ctx context.Context, source, destination, srcpos, destpos string) *redis.StringCmd
	LRem(ctx context.Context, key string, count int64, value interface{}) *redis.IntCmd
}

// Job is the wire form of one unit of work.
type Job struct {
	ID         string          `json:"id"`
	Type       string          `json:"type"`
	Payload    json.RawMessage `json:"payload"`
	Attempts   int             `json:"attempts"`
	EnqueuedAt time.Time       `json:"enqueued_at"`

	// raw is the exact bytes the job occupies on the processing list,
	// kept for the ack.
	raw string
}

// DecodePayload unmarshals the job payload into v.
func (j *Job) DecodePayload(v interface{}) error {
	return json.Unmarshal(j.Payload, v)
}

type enqueueOptions struct {
	delay time.Duration
	jobID string
}

// Option configures a single Enqueue call.
type Option func(*enqueueOptions)

// WithDelay defers the job's visibility by d.
func WithDelay(d time.Duration) Option {
	return func(o *enqueueOptions) { o.delay = d }
}

// WithJobID pins the job id instead of generating one.
func WithJobID(id string) Option {
	return func(o *enqueueOptions) { o.jobID = id }
}

// Queue is a named job queue on a shared redis client.
type Queue struct {
	client redisClient
	name   string
}

// New creates a queue handle. Multiple handles to the same name share state.
func New(client *redis.Client, name string) *Queue {
	if client == nil {
		panic("redis client is required")
	}
	return &Queue{client: client, name: name}
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

func (q *Queue) listKey() string    { return fmt.Sprintf("queue:%s", q.name) }
func (q *Queue) delayedKey() string { return fmt.Sprintf("queue:%s:delayed", q.name) }
func (q *Queue) deadKey() string    { return fmt.Sprintf("queue:%s:dead", q.name) }

func (q *Queue) processingKey(consumer string) string {
	return fmt.Sprintf("queue:%s:processing:%s", q.name, consumer)
}

// Enqueue pushes a job. Delayed jobs are parked in the sorted set until due.
func (q *Queue) Enqueue(ctx context.Context, jobType string, payload interface{}, opts ...Option) error {
	options := enqueueOptions{}
	for _, opt := range opts {
		opt(&options)
	}
	if options.jobID == "" {
		options.jobID = uuid.NewString()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	job := Job{
		ID:         options.jobID,
		Type:       jobType,
		Payload:    data,
		EnqueuedAt: time.Now().UTC(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}

	if options.delay > 0 {
		due := float64(time.Now().Add(options.delay).UnixMilli())
		if err := q.client.ZAdd(ctx, q.delayedKey(), redis.Z{Score: due, Member: raw}).Err(); err != nil {
			return fmt.Errorf("enqueue delayed %s/%s: %w", q.name, jobType, err)
		}
		return nil
	}

	if err := q.client.LPush(ctx, q.listKey(), raw).Err(); err != nil {
		return fmt.Errorf("enqueue %s/%s: %w", q.name, jobType, err)
	}
	return nil
}

// retryLater parks a failed job in the delayed set, attempts preserved.
func (q *Queue) retryLater(ctx context.Context, job *Job, delay time.Duration) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	due := float64(time.Now().Add(delay).UnixMilli())
	return q.client.ZAdd(ctx, q.delayedKey(), redis.Z{Score: due, Member: raw}).Err()
}

func (q *Queue) deadLetter(ctx context.Context, job *Job) error {
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.client.LPush(ctx, q.deadKey(), raw).Err()
}

// promoteScript moves one due member from the delayed set onto the list in a
// single atomic step, so a crash between the remove and the push can never
// strand the member. The ZREM winner is the only pusher, so a job seen by
// two racing pollers is still delivered once.
var promoteScript = redis.NewScript(`
if redis.call("zrem", KEYS[1], ARGV[1]) == 1 then
	return redis.call("lpush", KEYS[2], ARGV[1])
else
	return 0
end
`)

// promoteDue moves delayed jobs whose due time has passed onto the list.
func (q *Queue) promoteDue(ctx context.Context, now time.Time) error {
	members, err := q.client.ZRangeByScore(ctx, q.delayedKey(), &redis.ZRangeBy{
		Min:   "-inf",
		Max:   fmt.Sprintf("%d", now.UnixMilli()),
		Count: 100,
	}).Result()
	if err != nil {
		return err
	}

	for _, member := range members {
		if err := promoteScript.Run(ctx, q.client, []string{q.delayedKey(), q.listKey()}, member).Err(); err != nil {
			return err
		}
	}
	return nil
}

// dequeue blocks for up to timeout moving the next job onto the consumer's
// processing list. The job stays parked there until ack.
func (q *Queue) dequeue(ctx context.Context, consumer string, timeout time.Duration) (*Job, error) {
	raw, err := q.client.BLMove(ctx, q.listKey(), q.processingKey(consumer), "RIGHT", "LEFT", timeout).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		// Undecodable bytes must not wedge the processing list.
		q.client.LRem(ctx, q.processingKey(consumer), 1, raw)
		return nil, fmt.Errorf("decode job: %w", err)
	}
	job.raw = raw
	return &job, nil
}

// ack removes a handled job from the consumer's processing list. An acked
// job that failed has already been parked for retry or dead-lettered, so at
// no point does it exist only in process memory.
func (q *Queue) ack(ctx context.Context, consumer string, job *Job) error {
	return q.client.LRem(ctx, q.processingKey(consumer), 1, job.raw).Err()
}

// recoverProcessing requeues jobs a previous run of this consumer left on
// its processing list, returning how many were moved.
func (q *Queue) recoverProcessing(ctx context.Context, consumer string) (int, error) {
	moved := 0
	for {
		_, err := q.client.LMove(ctx, q.processingKey(consumer), q.listKey(), "RIGHT", "LEFT").Result()
		if err == redis.Nil {
			return moved, nil
		}
		if err != nil {
			return moved, err
		}
		moved++
	}
}
