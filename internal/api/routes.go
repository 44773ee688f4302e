package api

import (
	"github.com/aiadmin/ai-admin/internal/jobs"
	"github.com/go-chi/chi/v5"
)

// RegisterRoutes mounts the task, queue and (when archive is non-nil)
// archive endpoints on r. Callers mount r under /api.
func RegisterRoutes(r chi.Router, queue TaskQueue, archive TaskArchive) {
	tasks := NewTaskHandler(queue)
	queueHandler := NewQueueHandler(queue)

	r.Post("/tasks", tasks.SubmitTask)
	r.Get("/tasks", tasks.ListTasks)
	r.Delete("/tasks", tasks.ClearTasks)
	r.Get("/tasks/{id}", tasks.GetTask)
	r.Get("/tasks/{id}/logs", tasks.GetTaskLogs)
	r.Post("/tasks/{id}/cancel", tasks.CancelTask)

	r.Post("/tasks/docker/push", tasks.SubmitKind(jobs.KindDockerPush, func() paramsRequest { return &DockerPushRequest{} }))
	r.Post("/tasks/docker/build", tasks.SubmitKind(jobs.KindDockerBuild, func() paramsRequest { return &DockerBuildRequest{} }))
	r.Post("/tasks/docker/pull", tasks.SubmitKind(jobs.KindDockerPull, func() paramsRequest { return &DockerPullRequest{} }))
	r.Post("/tasks/ollama/pull", tasks.SubmitKind(jobs.KindOllamaPull, func() paramsRequest { return &OllamaPullRequest{} }))
	r.Post("/tasks/ollama/run", tasks.SubmitKind(jobs.KindOllamaRun, func() paramsRequest { return &OllamaRunRequest{} }))
	r.Post("/tasks/llm/generate", tasks.SubmitKind(jobs.KindLLMGenerate, func() paramsRequest { return &LLMGenerateRequest{} }))

	r.Get("/queue", queueHandler.GetStatus)
	r.Get("/queue/stats", queueHandler.GetStats)
	r.Post("/queue/pause", queueHandler.Pause)
	r.Post("/queue/resume", queueHandler.Resume)
	r.Put("/queue/concurrency", queueHandler.SetConcurrency)

	if archive != nil {
		archiveHandler := NewArchiveHandler(archive)
		r.Get("/archive", archiveHandler.ListArchived)
		r.Get("/archive/{id}", archiveHandler.GetArchived)
	}
}
