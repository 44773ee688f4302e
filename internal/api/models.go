package api

import (
	"github.com/aiadmin/ai-admin/internal/task"
)

// SubmitTaskRequest submits a task of any registered kind.
type SubmitTaskRequest struct {
	Kind   string         `json:"task_type" validate:"required"`
	Params map[string]any `json:"params"`
}

// Parameters returns the task parameters.
func (r SubmitTaskRequest) Parameters() task.Parameters { return task.Parameters(r.Params) }

// DockerPushRequest pushes an image to its registry.
type DockerPushRequest struct {
	ImageName string `json:"image_name" validate:"required"`
	Tag       string `json:"tag"`
}

// Parameters returns the task parameters.
func (r DockerPushRequest) Parameters() task.Parameters {
	return task.Parameters{"image_name": r.ImageName, "tag": r.Tag}
}

// DockerPullRequest pulls an image.
type DockerPullRequest struct {
	ImageName string `json:"image_name" validate:"required"`
	Tag       string `json:"tag"`
}

// Parameters returns the task parameters.
func (r DockerPullRequest) Parameters() task.Parameters {
	return task.Parameters{"image_name": r.ImageName, "tag": r.Tag}
}

// DockerBuildRequest builds an image from a local context.
type DockerBuildRequest struct {
	DockerfilePath string            `json:"dockerfile_path"`
	ContextPath    string            `json:"context_path"`
	Tag            string            `json:"tag"`
	BuildArgs      map[string]string `json:"build_args"`
	NoCache        bool              `json:"no_cache"`
	Platform       string            `json:"platform"`
	Target         string            `json:"target"`
}

// Parameters returns the task parameters.
func (r DockerBuildRequest) Parameters() task.Parameters {
	p := task.Parameters{
		"dockerfile_path": r.DockerfilePath,
		"context_path":    r.ContextPath,
		"tag":             r.Tag,
		"no_cache":        r.NoCache,
		"platform":        r.Platform,
		"target":          r.Target,
	}
	if len(r.BuildArgs) > 0 {
		p["build_args"] = r.BuildArgs
	}
	return p
}

// OllamaPullRequest downloads a model.
type OllamaPullRequest struct {
	ModelName string `json:"model_name" validate:"required"`
}

// Parameters returns the task parameters.
func (r OllamaPullRequest) Parameters() task.Parameters {
	return task.Parameters{"model_name": r.ModelName}
}

// OllamaRunRequest runs one inference on a local model.
type OllamaRunRequest struct {
	ModelName   string   `json:"model_name" validate:"required"`
	Prompt      string   `json:"prompt" validate:"required"`
	MaxTokens   int      `json:"max_tokens" validate:"gte=0"`
	Temperature *float64 `json:"temperature" validate:"omitempty,gte=0,lte=2"`
}

// Parameters returns the task parameters.
func (r OllamaRunRequest) Parameters() task.Parameters {
	p := task.Parameters{"model_name": r.ModelName, "prompt": r.Prompt}
	setGenerationOptions(p, r.MaxTokens, r.Temperature)
	return p
}

// LLMGenerateRequest generates text with the hosted model.
type LLMGenerateRequest struct {
	Prompt      string   `json:"prompt" validate:"required"`
	ModelName   string   `json:"model_name"`
	MaxTokens   int      `json:"max_tokens" validate:"gte=0"`
	Temperature *float64 `json:"temperature" validate:"omitempty,gte=0,lte=2"`
}

// Parameters returns the task parameters.
func (r LLMGenerateRequest) Parameters() task.Parameters {
	p := task.Parameters{"prompt": r.Prompt}
	if r.ModelName != "" {
		p["model_name"] = r.ModelName
	}
	setGenerationOptions(p, r.MaxTokens, r.Temperature)
	return p
}

func setGenerationOptions(p task.Parameters, maxTokens int, temperature *float64) {
	if maxTokens > 0 {
		p["max_tokens"] = maxTokens
	}
	if temperature != nil {
		p["temperature"] = *temperature
	}
}

// ConcurrencyRequest sets the admission bound. Zero pauses admission.
type ConcurrencyRequest struct {
	MaxConcurrent *int `json:"max_concurrent" validate:"required,gte=0"`
}

// ResumeRequest restores admission after a pause. The body is optional; a
// missing bound resumes with task.DefaultMaxConcurrent.
type ResumeRequest struct {
	MaxConcurrent *int `json:"max_concurrent" validate:"omitempty,gt=0"`
}

// Bound returns the requested bound or the default.
func (r ResumeRequest) Bound() int {
	if r.MaxConcurrent == nil {
		return task.DefaultMaxConcurrent
	}
	return *r.MaxConcurrent
}

// SubmitTaskResponse acknowledges an accepted task.
type SubmitTaskResponse struct {
	TaskID  string          `json:"task_id"`
	Kind    task.Kind       `json:"task_type"`
	Status  task.TaskStatus `json:"status"`
	Message string          `json:"message"`
}

// TaskListResponse lists tasks.
type TaskListResponse struct {
	Tasks []task.Snapshot `json:"tasks"`
	Count int             `json:"count"`
}

// TaskLogsResponse carries one task's log.
type TaskLogsResponse struct {
	TaskID string   `json:"task_id"`
	Logs   []string `json:"logs"`
}

// CancelTaskResponse reports whether a cancel took effect.
type CancelTaskResponse struct {
	TaskID    string `json:"task_id"`
	Cancelled bool   `json:"cancelled"`
	Message   string `json:"message"`
}

// ClearTasksResponse reports how many terminal tasks were removed.
type ClearTasksResponse struct {
	Cleared int `json:"cleared"`
}

// HealthResponse is the liveness payload.
type HealthResponse struct {
	Status  string      `json:"status"`
	Kinds   []task.Kind `json:"task_types"`
	Running int         `json:"running"`
	Pending int         `json:"pending"`
}
