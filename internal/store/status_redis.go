// Package store persists job status and final compression results in
// Redis hashes so any instance can answer progress and download queries.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/local/pdfsqueeze/internal/compress"
)

// Status is one job's externally visible state.
type Status struct {
	Status     string     `json:"status"`
	Stage      string     `json:"stage,omitempty"`
	Progress   int        `json:"progress"`
	Message    string     `json:"message,omitempty"`
	OutputPath string     `json:"output_path,omitempty"`
	Start      *time.Time `json:"start_time,omitempty"`
	End        *time.Time `json:"end_time,omitempty"`
}

// Job lifecycle states.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusDone       = "done"
	StatusFailed     = "failed"
	StatusCancelled  = "cancelled"
)

type RedisStatus struct {
	client *redis.Client
	keyNS  string
	ttl    time.Duration
}

func NewRedisStatus(redisURL string, ttl time.Duration) (*RedisStatus, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(opt)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisStatus{client: c, keyNS: "pdfjob", ttl: ttl}, nil
}

func (s *RedisStatus) key(jobID string) string { return fmt.Sprintf("%s:%s:status", s.keyNS, jobID) }

func (s *RedisStatus) resultKey(jobID string) string {
	return fmt.Sprintf("%s:%s:result", s.keyNS, jobID)
}

func (s *RedisStatus) Set(ctx context.Context, jobID string, st Status) error {
	m := map[string]interface{}{
		"status":   st.Status,
		"stage":    st.Stage,
		"progress": st.Progress,
		"message":  st.Message,
		"output":   st.OutputPath,
	}
	if st.Start != nil {
		m["start"] = st.Start.Format(time.RFC3339Nano)
	}
	if st.End != nil {
		m["end"] = st.End.Format(time.RFC3339Nano)
	}
	key := s.key(jobID)
	if err := s.client.HSet(ctx, key, m).Err(); err != nil {
		return err
	}
	return s.client.Expire(ctx, key, s.ttl).Err()
}

// SetProgress updates only the stage and percent of a running job.
func (s *RedisStatus) SetProgress(ctx context.Context, jobID, stage string, progress int) error {
	return s.client.HSet(ctx, s.key(jobID), map[string]interface{}{
		"stage":    stage,
		"progress": progress,
	}).Err()
}

func (s *RedisStatus) Get(ctx context.Context, jobID string) (Status, bool, error) {
	res, err := s.client.HGetAll(ctx, s.key(jobID)).Result()
	if err != nil {
		return Status{}, false, err
	}
	if len(res) == 0 {
		return Status{}, false, nil
	}
	st := Status{
		Status:     res["status"],
		Stage:      res["stage"],
		Message:    res["message"],
		OutputPath: res["output"],
	}
	if p := res["progress"]; p != "" {
		var pi int
		fmt.Sscan(p, &pi)
		st.Progress = pi
	}
	if v := res["start"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			st.Start = &t
		}
	}
	if v := res["end"]; v != "" {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			st.End = &t
		}
	}
	return st, true, nil
}

// SetResult stores the terminal compression result as JSON.
func (s *RedisStatus) SetResult(ctx context.Context, jobID string, res *compress.Result) error {
	b, err := json.Marshal(res)
	if err != nil {
		return err
	}
	key := s.resultKey(jobID)
	if err := s.client.Set(ctx, key, b, s.ttl).Err(); err != nil {
		return err
	}
	return nil
}

// GetResult fetches the stored result; found=false when absent.
func (s *RedisStatus) GetResult(ctx context.Context, jobID string) (*compress.Result, bool, error) {
	b, err := s.client.Get(ctx, s.resultKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	var res compress.Result
	if err := json.Unmarshal(b, &res); err != nil {
		return nil, false, err
	}
	return &res, true, nil
}

func (s *RedisStatus) Close() error { return s.client.Close() }

// Client returns the underlying Redis client.
func (s *RedisStatus) Client() *redis.Client { return s.client }
