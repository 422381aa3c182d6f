package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/incidentflow/workflow"
)

// RedisConfig configures the Redis checkpoint store.
type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password" json:"password"`
	DB        int    `yaml:"db" json:"db"`
	PoolSize  int    `yaml:"pool_size" json:"pool_size"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

// Redis stores each run's checkpoints in a sorted set scored by sequence
// number, so the current checkpoint is a single ZREVRANGE away.
type Redis struct {
	client    *redis.Client
	keyPrefix string
	logger    *zap.Logger
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(cfg RedisConfig, logger *zap.Logger) (*Redis, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "incidentflow:"
	}
	return &Redis{
		client:    client,
		keyPrefix: prefix + "ckpt:",
		logger:    logger.With(zap.String("component", "redis_store")),
	}, nil
}

// NewRedisWithClient wraps an existing client, used by tests.
func NewRedisWithClient(client *redis.Client, keyPrefix string, logger *zap.Logger) *Redis {
	if logger == nil {
		logger = zap.NewNop()
	}
	if keyPrefix == "" {
		keyPrefix = "incidentflow:"
	}
	return &Redis{
		client:    client,
		keyPrefix: keyPrefix + "ckpt:",
		logger:    logger.With(zap.String("component", "redis_store")),
	}
}

func (s *Redis) runKey(runID string) string {
	return s.keyPrefix + runID
}

// Put appends a checkpoint for its run.
func (s *Redis) Put(ctx context.Context, cp *workflow.Checkpoint) error {
	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("failed to marshal checkpoint: %w", err)
	}
	err = s.client.ZAdd(ctx, s.runKey(cp.RunID), redis.Z{
		Score:  float64(cp.Seq),
		Member: data,
	}).Err()
	if err != nil {
		return fmt.Errorf("failed to write checkpoint run=%s seq=%d: %w", cp.RunID, cp.Seq, err)
	}
	return nil
}

// Latest returns the checkpoint with the highest sequence number.
func (s *Redis) Latest(ctx context.Context, runID string) (*workflow.Checkpoint, error) {
	members, err := s.client.ZRevRange(ctx, s.runKey(runID), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}
	if len(members) == 0 {
		return nil, workflow.ErrNotFound
	}
	var cp workflow.Checkpoint
	if err := json.Unmarshal([]byte(members[0]), &cp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
	}
	return &cp, nil
}

// History returns all checkpoints for a run in sequence order.
func (s *Redis) History(ctx context.Context, runID string) ([]*workflow.Checkpoint, error) {
	members, err := s.client.ZRange(ctx, s.runKey(runID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list checkpoints: %w", err)
	}
	out := make([]*workflow.Checkpoint, 0, len(members))
	for _, m := range members {
		var cp workflow.Checkpoint
		if err := json.Unmarshal([]byte(m), &cp); err != nil {
			return nil, fmt.Errorf("failed to unmarshal checkpoint: %w", err)
		}
		out = append(out, &cp)
	}
	return out, nil
}

// Close closes the Redis client.
func (s *Redis) Close() error {
	return s.client.Close()
}

// Ping checks store health.
func (s *Redis) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
