// Package jobs holds the JobRunner adapters for every task kind the service
// accepts. Each runner translates task parameters into one external call, a
// docker or ollama subprocess or an HTTP request, and reports progress at
// fixed checkpoints.
package jobs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/aiadmin/ai-admin/internal/platform/cli"
	"github.com/aiadmin/ai-admin/internal/redact"
	"github.com/aiadmin/ai-admin/internal/task"
)

// Task kinds. The string values are part of the API.
const (
	KindDockerPush  task.Kind = "docker_push"
	KindDockerBuild task.Kind = "docker_build"
	KindDockerPull  task.Kind = "docker_pull"
	KindOllamaPull  task.Kind = "ollama_pull"
	KindOllamaRun   task.Kind = "ollama_run"
	KindLLMGenerate task.Kind = "llm_generate"
)

// ErrMissingParameter is returned when a required parameter is absent.
var ErrMissingParameter = errors.New("missing required parameter")

// Dependencies are the collaborators runners need. Kinds whose dependency is
// nil are not registered.
type Dependencies struct {
	Exec             cli.Runner
	DockerBinary     string
	OllamaBinary     string
	OllamaModelsPath string
	Ollama           OllamaClient
	LLM              TextGenerator
}

// Register binds a runner for every available kind.
func Register(registry *task.Registry, deps Dependencies) error {
	runners := map[task.Kind]task.JobRunner{}

	if deps.Exec != nil {
		docker := NewDocker(deps.Exec, deps.DockerBinary)
		runners[KindDockerPush] = docker.Push()
		runners[KindDockerBuild] = docker.Build()
		runners[KindDockerPull] = docker.Pull()
		runners[KindOllamaPull] = NewOllamaPull(deps.Exec, deps.OllamaBinary, deps.OllamaModelsPath)
	}
	if deps.Ollama != nil {
		runners[KindOllamaRun] = NewOllamaRun(deps.Ollama)
	}
	if deps.LLM != nil {
		runners[KindLLMGenerate] = NewLLMGenerate(deps.LLM)
	}

	for kind, runner := range runners {
		if err := registry.Register(kind, runner); err != nil {
			return fmt.Errorf("register %s: %w", kind, err)
		}
	}
	return nil
}

func requireString(params task.Parameters, key string) (string, error) {
	v := strings.TrimSpace(params.String(key, ""))
	if v == "" {
		return "", fmt.Errorf("%w: %s", ErrMissingParameter, key)
	}
	return v, nil
}

// recordCommand stores the redacted command line on the task and logs it.
func recordCommand(progress task.Progress, cmd cli.Command) {
	line := redact.Command(cmd.Argv())
	progress.SetCommand(line)
	progress.Log("Executing: " + line)
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// nullable maps an empty string to nil so it serialises as JSON null.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
