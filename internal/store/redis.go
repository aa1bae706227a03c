package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/makeasinger/studio/internal/model"
)

const maxTxRetries = 64

// Redis stores records as JSON documents. Job updates run inside a
// WATCH/MULTI transaction so concurrent writers never interleave a
// read-modify-write.
type Redis struct {
	client redis.UniversalClient
	jobTTL time.Duration
	now    func() time.Time
}

var _ Store = (*Redis)(nil)

// NewRedis creates a Redis-backed store. Job records expire after jobTTL;
// zero keeps them forever.
func NewRedis(client redis.UniversalClient, jobTTL time.Duration) *Redis {
	return &Redis{client: client, jobTTL: jobTTL, now: time.Now}
}

func jobKey(id string) string     { return fmt.Sprintf("job:%s", id) }
func assetKey(id string) string   { return fmt.Sprintf("asset:%s", id) }
func projectKey(id string) string { return fmt.Sprintf("project:%s", id) }
func voiceKey(id string) string   { return fmt.Sprintf("voice:%s", id) }

func (s *Redis) CreateJob(ctx context.Context, job *model.Job) error {
	return s.create(ctx, jobKey(job.ID), job, s.jobTTL)
}

func (s *Redis) GetJob(ctx context.Context, id string) (*model.Job, error) {
	var job model.Job
	if err := s.get(ctx, jobKey(id), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *Redis) UpdateJob(ctx context.Context, id string, u JobUpdate) error {
	return s.mutateJob(ctx, id, func(j *model.Job) error {
		return u.Apply(j, s.now())
	})
}

func (s *Redis) AppendJobLog(ctx context.Context, id, line string) error {
	return s.mutateJob(ctx, id, func(j *model.Job) error {
		return appendLog(j, line, s.now())
	})
}

func (s *Redis) mutateJob(ctx context.Context, id string, fn func(*model.Job) error) error {
	key := jobKey(id)

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to read job: %w", err)
		}

		var job model.Job
		if err := json.Unmarshal(data, &job); err != nil {
			return fmt.Errorf("failed to unmarshal job: %w", err)
		}
		if err := fn(&job); err != nil {
			return err
		}

		out, err := json.Marshal(&job)
		if err != nil {
			return fmt.Errorf("failed to marshal job: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, redis.KeepTTL)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return err
	}
	return fmt.Errorf("failed to update job %s: %w", id, redis.TxFailedErr)
}

func (s *Redis) CreateAsset(ctx context.Context, a *model.Asset) error {
	return s.create(ctx, assetKey(a.ID), a, 0)
}

func (s *Redis) GetAsset(ctx context.Context, id string) (*model.Asset, error) {
	var a model.Asset
	if err := s.get(ctx, assetKey(id), &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Redis) CreateProject(ctx context.Context, p *model.Project) error {
	return s.create(ctx, projectKey(p.ID), p, 0)
}

func (s *Redis) GetProject(ctx context.Context, id string) (*model.Project, error) {
	var p model.Project
	if err := s.get(ctx, projectKey(id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Redis) CreateVoice(ctx context.Context, v *model.VoiceProfile) error {
	return s.create(ctx, voiceKey(v.ID), v, 0)
}

func (s *Redis) GetVoice(ctx context.Context, id string) (*model.VoiceProfile, error) {
	var v model.VoiceProfile
	if err := s.get(ctx, voiceKey(id), &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func (s *Redis) DeleteVoice(ctx context.Context, id string) error {
	n, err := s.client.Del(ctx, voiceKey(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to delete voice: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close leaves the shared client open; its owner closes it.
func (s *Redis) Close() error { return nil }

func (s *Redis) create(ctx context.Context, key string, v any, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	ok, err := s.client.SetNX(ctx, key, data, ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	if !ok {
		return ErrConflict
	}
	return nil
}

func (s *Redis) get(ctx context.Context, key string, v any) error {
	data, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", key, err)
	}
	return nil
}
