package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"telbill/internal/constants"
	"telbill/internal/pipeline"
	"telbill/pkg/metrics"
)

// createScript writes the hash only when the key is absent.
var createScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 1 then
  return 0
end
redis.call('HSET', KEYS[1], 'job_id', ARGV[1], 'status', ARGV[2], 'result', ARGV[3], 'created_at', ARGV[4], 'updated_at', ARGV[4])
if ARGV[5] ~= '' then
  redis.call('HSET', KEYS[1], 'service', ARGV[5])
end
if tonumber(ARGV[6]) > 0 then
  redis.call('EXPIRE', KEYS[1], ARGV[6])
end
return 1
`)

// transitionScript is a compare-and-set on the status field.
// ARGV: to, updated_at, has_result, result, allowed from statuses...
var transitionScript = redis.NewScript(`
local current = redis.call('HGET', KEYS[1], 'status')
if not current then
  return -1
end
for i = 5, #ARGV do
  if ARGV[i] == current then
    redis.call('HSET', KEYS[1], 'status', ARGV[1], 'updated_at', ARGV[2])
    if ARGV[3] == '1' then
      redis.call('HSET', KEYS[1], 'result', ARGV[4])
    end
    return 1
  end
end
return 0
`)

type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	return &RedisRepository{client: client, ttl: ttl}
}

func key(jobID string) string {
	return constants.CacheKeyPrefixTask + jobID
}

func (r *RedisRepository) Create(ctx context.Context, task pipeline.Task) (pipeline.Task, error) {
	service := ""
	if task.Service != nil {
		service = *task.Service
	}
	result := task.Result
	if len(result) == 0 {
		result = json.RawMessage("null")
	}

	_, err := createScript.Run(ctx, r.client, []string{key(task.JobID)},
		task.JobID,
		string(task.Status),
		string(result),
		task.CreatedAt.UTC().Format(time.RFC3339Nano),
		service,
		int64(r.ttl.Seconds()),
	).Int()
	if err != nil {
		return pipeline.Task{}, fmt.Errorf("redis create task failed: %w", err)
	}

	return r.Get(ctx, task.JobID)
}

func (r *RedisRepository) Get(ctx context.Context, jobID string) (pipeline.Task, error) {
	fields, err := r.client.HGetAll(ctx, key(jobID)).Result()
	if err != nil {
		return pipeline.Task{}, fmt.Errorf("redis get task failed: %w", err)
	}
	if len(fields) == 0 {
		return pipeline.Task{}, pipeline.ErrTaskNotFound
	}
	return decodeTask(fields)
}

func (r *RedisRepository) Transition(ctx context.Context, jobID string, from []pipeline.TaskStatus, to pipeline.TaskStatus, result json.RawMessage) (pipeline.Task, error) {
	hasResult := "0"
	if result != nil {
		hasResult = "1"
	}

	args := []interface{}{
		string(to),
		time.Now().UTC().Format(time.RFC3339Nano),
		hasResult,
		string(result),
	}
	for _, s := range from {
		args = append(args, string(s))
	}

	res, err := transitionScript.Run(ctx, r.client, []string{key(jobID)}, args...).Int()
	if err != nil {
		metrics.IncTaskTransition(string(to), "error")
		return pipeline.Task{}, fmt.Errorf("redis transition task failed: %w", err)
	}

	switch res {
	case -1:
		return pipeline.Task{}, pipeline.ErrTaskNotFound
	case 0:
		metrics.IncTaskTransition(string(to), "rejected")
		return pipeline.Task{}, fmt.Errorf("%w: to %s", pipeline.ErrInvalidTransition, to)
	}

	metrics.IncTaskTransition(string(to), "applied")
	return r.Get(ctx, jobID)
}

func decodeTask(fields map[string]string) (pipeline.Task, error) {
	task := pipeline.Task{
		JobID:  fields["job_id"],
		Status: pipeline.TaskStatus(fields["status"]),
		Result: json.RawMessage(fields["result"]),
	}
	if s, ok := fields["service"]; ok && s != "" {
		task.Service = &s
	}
	if len(task.Result) == 0 {
		task.Result = json.RawMessage("null")
	}

	var err error
	if task.CreatedAt, err = time.Parse(time.RFC3339Nano, fields["created_at"]); err != nil {
		return pipeline.Task{}, fmt.Errorf("decode created_at: %w", err)
	}
	if task.UpdatedAt, err = time.Parse(time.RFC3339Nano, fields["updated_at"]); err != nil {
		return pipeline.Task{}, fmt.Errorf("decode updated_at: %w", err)
	}
	return task, nil
}
