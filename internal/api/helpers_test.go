package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/aiadmin/ai-admin/internal/jobs"
	"github.com/aiadmin/ai-admin/internal/task"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

// blockingRunners holds every task until release is closed and records the
// parameters each kind received.
type blockingRunners struct {
	release chan struct{}

	mu     sync.Mutex
	params map[task.Kind]task.Parameters
}

func (b *blockingRunners) runner(kind task.Kind) task.JobRunner {
	return task.RunnerFunc(func(ctx context.Context, params task.Parameters, progress task.Progress) (task.Result, error) {
		b.mu.Lock()
		b.params[kind] = params
		b.mu.Unlock()

		select {
		case <-b.release:
			return task.Result{"kind": string(kind)}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})
}

func (b *blockingRunners) paramsFor(kind task.Kind) task.Parameters {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.params[kind]
}

type testEnv struct {
	queue    *task.TaskQueue
	registry *task.Registry
	runners  *blockingRunners
	router   http.Handler
}

func newTestEnv(t *testing.T, maxConcurrent int, archive TaskArchive) *testEnv {
	t.Helper()

	runners := &blockingRunners{release: make(chan struct{}), params: map[task.Kind]task.Parameters{}}
	registry := task.NewRegistry()
	for _, kind := range []task.Kind{
		jobs.KindDockerPush, jobs.KindDockerBuild, jobs.KindDockerPull,
		jobs.KindOllamaPull, jobs.KindOllamaRun, jobs.KindLLMGenerate,
	} {
		require.NoError(t, registry.Register(kind, runners.runner(kind)))
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	queue := task.NewTaskQueue(registry, task.QueueConfig{MaxConcurrent: maxConcurrent}, logger)
	t.Cleanup(func() {
		select {
		case <-runners.release:
		default:
			close(runners.release)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = queue.Shutdown(ctx)
	})

	return &testEnv{
		queue:    queue,
		registry: registry,
		runners:  runners,
		router:   newTestRouter(queue, registry, archive),
	}
}

func newTestRouter(queue TaskQueue, kinds KindLister, archive TaskArchive) http.Handler {
	health := NewHealthHandler(queue, kinds)

	r := chi.NewRouter()
	r.Get("/health", health.Health)
	r.Route("/api", func(r chi.Router) {
		RegisterRoutes(r, queue, archive)
	})
	return r
}

func doRequest(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		encoded, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(encoded)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func (e *testEnv) submit(t *testing.T, path string, body any) SubmitTaskResponse {
	t.Helper()
	rec := doRequest(t, e.router, http.MethodPost, path, body)
	require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	return decodeBody[SubmitTaskResponse](t, rec)
}
