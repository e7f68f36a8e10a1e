// internal/dispatch/queue.go
// Deferred dispatch for providers too slow or unreliable to call on the
// request path. Jobs live in a Redis list and are popped one at a time, so
// two concurrent drains each take distinct jobs instead of racing over a
// shared snapshot. Jobs that exhaust their attempts land on a dead-letter
// list rather than vanishing.

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/formhive/formhive-backend/internal/forms"
	"github.com/formhive/formhive-backend/internal/validation"
)

const (
	// MaxAttempts bounds retries per job
	MaxAttempts = 3
	// DefaultBatchSize limits jobs processed per drain
	DefaultBatchSize = 10

	queueKey      = "formhive:integration_queue"
	deadLetterKey = "formhive:integration_queue:dead"

	dispatchTimeout = 15 * time.Second
)

// queueable lists integration ids whose dispatch is deferred. Webhook-style
// and CRM calls are slow and flaky; everything else runs synchronously.
var queueable = map[string]bool{
	IntegrationWebhook:      true,
	IntegrationGoogleSheets: true,
	IntegrationSMS:          true,
}

// ErrQueueEmpty signals an empty queue to Process
var ErrQueueEmpty = errors.New("queue empty")

// Job is one deferred integration dispatch
type Job struct {
	IntegrationID string                 `json:"integration_id"`
	Settings      map[string]string      `json:"settings,omitempty"`
	Form          *forms.Form            `json:"form"`
	Payload       map[string]interface{} `json:"payload"`
	Context       SubmissionContext      `json:"context"`
	FieldMeta     []validation.FieldMeta `json:"field_meta,omitempty"`
	Attempts      int                    `json:"attempts"`
}

// Store is the minimal list contract the queue needs. RedisStore is the
// production implementation; tests substitute an in-memory one.
type Store interface {
	Push(ctx context.Context, key string, value []byte) error
	Pop(ctx context.Context, key string) ([]byte, error) // ErrQueueEmpty when drained
	Len(ctx context.Context, key string) (int64, error)
}

// Queue defers and retries integration dispatches
type Queue struct {
	store Store
}

func NewQueue(store Store) *Queue {
	return &Queue{store: store}
}

// ShouldQueue reports whether the integration's dispatch is deferred
func (q *Queue) ShouldQueue(integrationID string) bool {
	return queueable[integrationID]
}

// Enqueue appends a job with zero attempts
func (q *Queue) Enqueue(ctx context.Context, job *Job) error {
	job.Attempts = 0
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return q.store.Push(ctx, queueKey, data)
}

// Depth returns the number of pending jobs
func (q *Queue) Depth(ctx context.Context) (int64, error) {
	return q.store.Len(ctx, queueKey)
}

// Process drains up to batchSize jobs in FIFO order. A job whose dispatcher
// is unregistered is dropped without retry: registration is a configuration
// error, not a transient one. A failed dispatch is requeued until the job
// has been attempted MaxAttempts times, then moved to the dead-letter list.
// The loop is bounded by the depth at entry, so a requeued job waits for a
// later call instead of burning its remaining attempts immediately.
func (q *Queue) Process(ctx context.Context, registry *Registry, batchSize int) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	limit := int64(batchSize)
	if depth, err := q.store.Len(ctx, queueKey); err == nil && depth < limit {
		limit = depth
	}

	for i := int64(0); i < limit; i++ {
		data, err := q.store.Pop(ctx, queueKey)
		if errors.Is(err, ErrQueueEmpty) {
			return
		}
		if err != nil {
			log.Printf("queue: failed to pop job: %v", err)
			return
		}

		var job Job
		if err := json.Unmarshal(data, &job); err != nil {
			log.Printf("queue: dropping undecodable job: %v", err)
			continue
		}

		dispatcher, ok := registry.Get(job.IntegrationID)
		if !ok {
			log.Printf("queue: no dispatcher registered for %q, dropping job", job.IntegrationID)
			continue
		}

		dctx, cancel := context.WithTimeout(ctx, dispatchTimeout)
		err = dispatcher.Dispatch(dctx, job.Settings, job.Form, job.Payload, &job.Context, job.FieldMeta)
		cancel()
		if err == nil {
			continue
		}

		job.Attempts++
		log.Printf("queue: dispatch %q failed (attempt %d/%d): %v", job.IntegrationID, job.Attempts, MaxAttempts, err)

		encoded, mErr := json.Marshal(&job)
		if mErr != nil {
			log.Printf("queue: failed to re-encode job: %v", mErr)
			continue
		}

		if job.Attempts < MaxAttempts {
			if pErr := q.store.Push(ctx, queueKey, encoded); pErr != nil {
				log.Printf("queue: failed to requeue job: %v", pErr)
			}
			continue
		}

		if pErr := q.store.Push(ctx, deadLetterKey, encoded); pErr != nil {
			log.Printf("queue: failed to dead-letter job: %v", pErr)
		}
	}
}

// RedisStore implements Store on a Redis list
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Push(ctx context.Context, key string, value []byte) error {
	return s.client.RPush(ctx, key, value).Err()
}

func (s *RedisStore) Pop(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.LPop(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrQueueEmpty
	}
	return data, err
}

func (s *RedisStore) Len(ctx context.Context, key string) (int64, error) {
	return s.client.LLen(ctx, key).Result()
}
