package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cspacehr/internal/model"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memQueue is an in-process stand-in for the Redis list commands.
type memQueue struct {
	mu    sync.Mutex
	lists map[string][]string
}

func newMemQueue() *memQueue { return &memQueue{lists: map[string][]string{}} }

func (q *memQueue) LPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, v := range values {
		var s string
		switch t := v.(type) {
		case []byte:
			s = string(t)
		case string:
			s = t
		}
		q.lists[key] = append([]string{s}, q.lists[key]...)
	}
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(q.lists[key])))
	return cmd
}

func (q *memQueue) BRPop(ctx context.Context, _ time.Duration, keys ...string) *redis.StringSliceCmd {
	q.mu.Lock()
	defer q.mu.Unlock()
	cmd := redis.NewStringSliceCmd(ctx)
	for _, k := range keys {
		if l := q.lists[k]; len(l) > 0 {
			cmd.SetVal([]string{k, l[len(l)-1]})
			q.lists[k] = l[:len(l)-1]
			return cmd
		}
	}
	cmd.SetErr(redis.Nil)
	return cmd
}

func (q *memQueue) LLen(ctx context.Context, key string) *redis.IntCmd {
	q.mu.Lock()
	defer q.mu.Unlock()
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(q.lists[key])))
	return cmd
}

func (q *memQueue) pop(t *testing.T, key string) string {
	t.Helper()
	res, err := q.BRPop(context.Background(), 0, key).Result()
	require.NoError(t, err)
	return res[1]
}

type flakyLogs struct {
	mu       sync.Mutex
	failures int
	calls    int
	saved    []model.OperatorSwitchLog
}

func (f *flakyLogs) Create(_ context.Context, e *model.OperatorSwitchLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return errors.New("connection refused")
	}
	f.saved = append(f.saved, *e)
	return nil
}

func sampleEntry() model.OperatorSwitchLog {
	return model.OperatorSwitchLog{
		ID:           uuid.New(),
		BranchID:     "yunusabad",
		SessionID:    "kiosk-1",
		EmployeeID:   uuid.New(),
		EmployeeName: "Dilnoza Karimova",
		HomeBranchID: "yunusabad",
		SwitchedAt:   time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC),
	}
}

// downQueue fails every pop like an unreachable Redis.
type downQueue struct {
	memQueue
	pops atomic.Int32
}

func (q *downQueue) BRPop(ctx context.Context, _ time.Duration, _ ...string) *redis.StringSliceCmd {
	q.pops.Add(1)
	cmd := redis.NewStringSliceCmd(ctx)
	cmd.SetErr(errors.New("dial tcp 127.0.0.1:6379: connect: connection refused"))
	return cmd
}

func newTestPool(q Queue, logs SwitchLogWriter) *Pool {
	p := NewPool(q, logs, 1)
	p.retryDelay = 0
	return p
}

func TestDispatcher_EnqueueSwitchLog(t *testing.T) {
	q := newMemQueue()
	entry := sampleEntry()
	require.NoError(t, NewDispatcher(q).EnqueueSwitchLog(context.Background(), entry))

	var job Job
	require.NoError(t, json.Unmarshal([]byte(q.pop(t, QueueSwitchLog)), &job))
	assert.Equal(t, JobSwitchLog, job.Type)
	assert.Zero(t, job.Attempts)

	var decoded model.OperatorSwitchLog
	require.NoError(t, json.Unmarshal(job.Payload, &decoded))
	assert.Equal(t, entry.ID, decoded.ID)
	assert.True(t, entry.SwitchedAt.Equal(decoded.SwitchedAt))
}

func TestPool_RetriesUntilInsertSucceeds(t *testing.T) {
	q := newMemQueue()
	logs := &flakyLogs{failures: 2}
	p := newTestPool(q, logs)
	ctx := context.Background()
	require.NoError(t, NewDispatcher(q).EnqueueSwitchLog(ctx, sampleEntry()))

	for i := 0; i < 3; i++ {
		p.process(ctx, QueueSwitchLog, q.pop(t, QueueSwitchLog))
	}

	assert.Len(t, logs.saved, 1)
	n, err := q.LLen(ctx, QueueSwitchLog).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
	dead, err := DLQLength(ctx, q, QueueSwitchLog)
	require.NoError(t, err)
	assert.Zero(t, dead)
}

func TestPool_DeadLettersAfterMaxAttempts(t *testing.T) {
	q := newMemQueue()
	logs := &flakyLogs{failures: 100}
	p := newTestPool(q, logs)
	ctx := context.Background()
	require.NoError(t, NewDispatcher(q).EnqueueSwitchLog(ctx, sampleEntry()))

	for i := 0; i < MaxAttempts; i++ {
		p.process(ctx, QueueSwitchLog, q.pop(t, QueueSwitchLog))
	}
	assert.Equal(t, MaxAttempts, logs.calls)

	n, _ := q.LLen(ctx, QueueSwitchLog).Result()
	assert.Zero(t, n, "job is not requeued after the last attempt")

	var entry DLQEntry
	require.NoError(t, json.Unmarshal([]byte(q.pop(t, DLQPrefix+QueueSwitchLog)), &entry))
	assert.Equal(t, MaxAttempts, entry.Attempts)
	assert.Equal(t, JobSwitchLog, entry.JobType)
	assert.Contains(t, entry.Reason, "connection refused")
}

func TestPool_PermanentFailuresSkipRetries(t *testing.T) {
	q := newMemQueue()
	logs := &flakyLogs{}
	p := newTestPool(q, logs)
	ctx := context.Background()

	p.process(ctx, QueueSwitchLog, `{"type":"mystery","payload":{}}`)
	p.process(ctx, QueueSwitchLog, `not json`)

	dead, err := DLQLength(ctx, q, QueueSwitchLog)
	require.NoError(t, err)
	assert.Equal(t, int64(2), dead)
	assert.Zero(t, logs.calls)

	// Malformed input is preserved as a JSON string.
	var first DLQEntry
	raw := q.pop(t, DLQPrefix+QueueSwitchLog)
	require.NoError(t, json.Unmarshal([]byte(raw), &first))
	assert.Equal(t, "mystery", first.JobType)
	var second DLQEntry
	require.NoError(t, json.Unmarshal([]byte(q.pop(t, DLQPrefix+QueueSwitchLog)), &second))
	assert.JSONEq(t, `"not json"`, string(second.Payload))
}

func TestPool_BacksOffWhileQueueIsDown(t *testing.T) {
	q := &downQueue{memQueue: memQueue{lists: map[string][]string{}}}
	p := NewPool(q, &flakyLogs{}, 1)
	p.retryDelay = 50 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.run(ctx, 0)
		close(done)
	}()

	time.Sleep(120 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
	pops := q.pops.Load()
	assert.GreaterOrEqual(t, pops, int32(2))
	assert.LessOrEqual(t, pops, int32(4), "a failing pop must wait retryDelay before the next one")
}
