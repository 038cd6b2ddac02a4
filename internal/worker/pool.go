package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cspacehr/internal/model"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueSwitchLog = "jobs:operator_switch_log"

	JobSwitchLog = "operator_switch_log"

	// MaxAttempts is how many times the pool retries a job before dead-lettering it.
	MaxAttempts = 5

	popTimeout        = 5 * time.Second
	defaultRetryDelay = 2 * time.Second
)

// Queue is the subset of the Redis client the dispatcher and pool use.
type Queue interface {
	LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	BRPop(ctx context.Context, timeout time.Duration, keys ...string) *redis.StringSliceCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
}

// errPermanent marks failures that retrying cannot fix.
var errPermanent = errors.New("permanent failure")

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	q Queue
}

func NewDispatcher(q Queue) *Dispatcher {
	return &Dispatcher{q: q}
}

// EnqueueSwitchLog hands an audit entry whose synchronous insert failed to
// the retry queue.
func (d *Dispatcher) EnqueueSwitchLog(ctx context.Context, entry model.OperatorSwitchLog) error {
	return d.enqueue(ctx, QueueSwitchLog, JobSwitchLog, entry)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.q.LPush(ctx, queue, encoded).Err()
}

// SwitchLogWriter persists audit entries. Inserts must be idempotent on the
// entry ID since a job can be retried after a partial failure.
type SwitchLogWriter interface {
	Create(ctx context.Context, entry *model.OperatorSwitchLog) error
}

// Pool consumes the job queues with a fixed number of goroutines.
type Pool struct {
	q          Queue
	logs       SwitchLogWriter
	size       int
	retryDelay time.Duration
}

func NewPool(q Queue, logs SwitchLogWriter, size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{q: q, logs: logs, size: size, retryDelay: defaultRetryDelay}
}

// Start launches the workers. Each goroutine blocks on BRPOP, so idle
// workers cost nothing; all of them stop when ctx is done.
func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.size; i++ {
		go p.run(ctx, i)
	}
	log.Info().Int("workers", p.size).Msg("worker pool started")
}

func (p *Pool) run(ctx context.Context, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Int("worker", id).Msg("worker shutting down")
			return
		default:
			// Waits up to popTimeout then loops to check ctx.
			result, err := p.q.BRPop(ctx, popTimeout, QueueSwitchLog).Result()
			if err != nil && !errors.Is(err, redis.Nil) && ctx.Err() == nil {
				log.Warn().Err(err).Int("worker", id).Msg("queue pop failed")
				select {
				case <-ctx.Done():
				case <-time.After(p.retryDelay):
				}
				continue
			}
			if err != nil || len(result) < 2 {
				continue
			}
			p.process(ctx, result[0], result[1])
		}
	}
}

func (p *Pool) process(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		SendToDLQ(ctx, p.q, queue, "unknown", json.RawMessage(raw), "malformed job: "+err.Error(), 0)
		return
	}

	err := p.execute(ctx, job)
	if err == nil {
		return
	}

	job.Attempts++
	if job.Attempts >= MaxAttempts || errors.Is(err, errPermanent) {
		SendToDLQ(ctx, p.q, queue, job.Type, job.Payload, err.Error(), job.Attempts)
		return
	}
	log.Warn().Err(err).Str("queue", queue).Str("type", job.Type).Int("attempts", job.Attempts).Msg("job failed, requeueing")

	select {
	case <-ctx.Done():
	case <-time.After(time.Duration(job.Attempts) * p.retryDelay):
	}
	// Requeue even on shutdown so the job survives a restart.
	encoded, mErr := json.Marshal(job)
	if mErr != nil {
		log.Error().Err(mErr).Str("queue", queue).Msg("failed to re-encode job")
		return
	}
	if pErr := p.q.LPush(context.WithoutCancel(ctx), queue, encoded).Err(); pErr != nil {
		log.Error().Err(pErr).Str("queue", queue).Msg("failed to requeue job")
	}
}

func (p *Pool) execute(ctx context.Context, job Job) error {
	switch job.Type {
	case JobSwitchLog:
		var entry model.OperatorSwitchLog
		if err := json.Unmarshal(job.Payload, &entry); err != nil {
			return fmt.Errorf("%w: decode switch log: %v", errPermanent, err)
		}
		if err := p.logs.Create(ctx, &entry); err != nil {
			return err
		}
		log.Info().
			Str("entry_id", entry.ID.String()).
			Str("branch_id", entry.BranchID).
			Int("attempts", job.Attempts+1).
			Msg("operator switch log recovered")
		return nil
	default:
		return fmt.Errorf("%w: unknown job type %q", errPermanent, job.Type)
	}
}
