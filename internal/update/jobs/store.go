package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is the stored state of one asynchronous bulk update.
type Job struct {
	ID          string              `json:"id"`
	Status      Status              `json:"status"`
	ItemCount   int                 `json:"item_count"`
	Success     *bool               `json:"success,omitempty"`
	Errors      map[string][]string `json:"errors,omitempty"`
	Error       string              `json:"error,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	CompletedAt *time.Time          `json:"completed_at,omitempty"`
}

// Store keeps job state in Redis with a TTL so finished jobs expire on
// their own.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

func jobKey(id string) string {
	return "bulk_update:job:" + id
}

func (s *Store) Put(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, jobKey(job.ID), data, s.ttl).Err()
}

// Get returns nil when the job does not exist or has expired.
func (s *Store) Get(ctx context.Context, id string) (*Job, error) {
	val, err := s.client.Get(ctx, jobKey(id)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var job Job
	if err := json.Unmarshal([]byte(val), &job); err != nil {
		return nil, err
	}
	return &job, nil
}
