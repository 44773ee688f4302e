// Package redis mirrors live task state into Redis and publishes lifecycle
// events on a pub/sub channel so other processes can watch the queue.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aiadmin/ai-admin/internal/events"
	"github.com/redis/go-redis/v9"
)

const (
	// DefaultTTL bounds how long a mirrored task outlives its last change.
	DefaultTTL = 24 * time.Hour

	// DefaultChannel is the pub/sub channel events are published on.
	DefaultChannel = "ai-admin:task-events"
)

// StateKey is the key a task snapshot is stored under.
func StateKey(taskID string) string { return "task:state:" + taskID }

// commander is the subset of redis.Cmdable the mirror uses.
type commander interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// NewClient creates and returns a new Redis client.
func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  1 * time.Second,
		WriteTimeout: 1 * time.Second,
		PoolSize:     10,
	})
}

// StateMirror is an events.EventHandler that keeps task:state:<id> current.
type StateMirror struct {
	client  commander
	ttl     time.Duration
	channel string
	logger  *slog.Logger
}

// NewStateMirror creates a mirror. Zero values fall back to DefaultTTL and
// DefaultChannel.
func NewStateMirror(client commander, ttl time.Duration, channel string, logger *slog.Logger) *StateMirror {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if channel == "" {
		channel = DefaultChannel
	}
	return &StateMirror{
		client:  client,
		ttl:     ttl,
		channel: channel,
		logger:  logger.With("component", "redis_state_mirror"),
	}
}

// HandleEvent stores or deletes the task snapshot and publishes the event.
func (m *StateMirror) HandleEvent(ctx context.Context, event *events.TaskEvent) error {
	key := StateKey(event.TaskID)

	if event.Type == events.TypeTaskEvicted {
		if err := m.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("redis delete state for %s: %w", event.TaskID, err)
		}
	} else {
		data, err := json.Marshal(event.Task)
		if err != nil {
			return fmt.Errorf("marshal task state: %w", err)
		}
		if err := m.client.Set(ctx, key, data, m.ttl).Err(); err != nil {
			return fmt.Errorf("redis set state for %s: %w", event.TaskID, err)
		}
	}

	payload, err := event.Marshal()
	if err != nil {
		return fmt.Errorf("marshal task event: %w", err)
	}
	if err := m.client.Publish(ctx, m.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish to %s: %w", m.channel, err)
	}

	m.logger.Debug("task state mirrored",
		"task_id", event.TaskID,
		"event_type", event.Type)
	return nil
}
