package worker

// Audit entries the pool gave up on land in dlq:{queue} with the failure
// reason, so they can be replayed by hand once the database is healthy.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"
)

const DLQPrefix = "dlq:"

// DLQEntry is one dead-lettered job.
type DLQEntry struct {
	OriginalQueue string          `json:"original_queue"`
	JobType       string          `json:"job_type"`
	Payload       json.RawMessage `json:"payload"`
	Reason        string          `json:"reason"`
	FailedAt      string          `json:"failed_at"` // ISO 8601
	Attempts      int             `json:"attempts"`
}

// SendToDLQ records a job the pool will not retry. Payloads that are not
// valid JSON are kept as a JSON string.
func SendToDLQ(ctx context.Context, q Queue, queue string, jobType string, payload json.RawMessage, reason string, attempts int) {
	if !json.Valid(payload) {
		raw, _ := json.Marshal(string(payload))
		payload = raw
	}
	entry := DLQEntry{
		OriginalQueue: queue,
		JobType:       jobType,
		Payload:       payload,
		Reason:        reason,
		FailedAt:      time.Now().UTC().Format(time.RFC3339),
		Attempts:      attempts,
	}

	data, err := json.Marshal(entry)
	if err != nil {
		log.Error().Err(err).Str("queue", queue).Msg("dlq: failed to marshal entry")
		return
	}

	dlqKey := DLQPrefix + queue
	if err := q.LPush(context.WithoutCancel(ctx), dlqKey, data).Err(); err != nil {
		log.Error().Err(err).Str("dlq_key", dlqKey).Msg("dlq: failed to push to DLQ")
		return
	}

	log.Warn().
		Str("queue", queue).
		Str("job_type", jobType).
		Str("reason", reason).
		Int("attempts", attempts).
		Msg("dlq: job moved to dead letter queue")
}

func DLQLength(ctx context.Context, q Queue, queue string) (int64, error) {
	return q.LLen(ctx, DLQPrefix+queue).Result()
}

// StartDLQMonitor logs the switch-log DLQ depth every interval while it is
// non-empty, so lost audit entries show up in alerts.
func StartDLQMonitor(ctx context.Context, q Queue, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := DLQLength(ctx, q, QueueSwitchLog)
				if err != nil {
					log.Debug().Err(err).Msg("dlq: length check failed")
					continue
				}
				if n > 0 {
					log.Warn().Int64("entries", n).Str("queue", QueueSwitchLog).Msg("dlq: audit entries awaiting manual replay")
				}
			}
		}
	}()
}
