package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/aiadmin/ai-admin/internal/events"
	"github.com/aiadmin/ai-admin/internal/task"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (f *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msgs...)
	return nil
}

func (f *fakeWriter) Close() error {
	f.closed = true
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPublisher_HandleEvent(t *testing.T) {
	w := &fakeWriter{}
	p := NewPublisher(w, testLogger())

	tk := task.NewTask("ollama_pull", task.Parameters{"model_name": "llama3"})
	event := events.NewTaskEvent(events.TypeTaskSubmitted, tk.Snapshot())

	require.NoError(t, p.HandleEvent(context.Background(), event))
	require.Len(t, w.messages, 1)

	msg := w.messages[0]
	assert.Equal(t, tk.ID(), string(msg.Key))
	assert.Empty(t, msg.Topic, "topic is set on the writer")
	assert.Equal(t, event.OccurredAt, msg.Time)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, "task.submitted", string(msg.Headers[0].Value))
	assert.Equal(t, "ollama_pull", string(msg.Headers[1].Value))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, tk.ID(), decoded["task_id"])

	require.NoError(t, p.Close())
	assert.True(t, w.closed)
}

func TestPublisher_WriteError(t *testing.T) {
	p := NewPublisher(&fakeWriter{err: errors.New("leader not available")}, testLogger())
	event := events.NewTaskEvent(events.TypeTaskStatus, task.NewTask("ollama_pull", nil).Snapshot())

	err := p.HandleEvent(context.Background(), event)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kafka publish task.status")
	assert.Contains(t, err.Error(), "leader not available")
}

func TestNewWriter(t *testing.T) {
	w := NewWriter([]string{"localhost:9092"}, "")
	defer func() { _ = w.Close() }()
	assert.Equal(t, DefaultTopic, w.Topic)
	assert.Equal(t, kafka.RequireOne, w.RequiredAcks)
}
