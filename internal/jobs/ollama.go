package jobs

import (
	"context"
	"fmt"
	"strings"

	"github.com/aiadmin/ai-admin/internal/platform/cli"
	"github.com/aiadmin/ai-admin/internal/platform/ollama"
	"github.com/aiadmin/ai-admin/internal/task"
)

// Defaults for ollama_run when the request leaves them out
const (
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7
)

// OllamaClient is the part of the Ollama HTTP client ollama_run needs.
type OllamaClient interface {
	Generate(ctx context.Context, req ollama.GenerateRequest) (*ollama.GenerateResponse, error)
	GenerateURL() string
}

// NewOllamaPull returns the ollama_pull runner. modelsPath, when set, is
// exported to the subprocess as OLLAMA_MODELS.
func NewOllamaPull(exec cli.Runner, binary, modelsPath string) task.JobRunner {
	binary = orDefault(binary, "ollama")

	return task.RunnerFunc(func(ctx context.Context, params task.Parameters, progress task.Progress) (task.Result, error) {
		model, err := requireString(params, "model_name")
		if err != nil {
			return nil, err
		}

		progress.Advance(5, "Starting pull of Ollama model: "+model)

		cmd := cli.Command{Name: binary, Args: []string{"pull", model}}
		if modelsPath != "" {
			cmd.Env = []string{"OLLAMA_MODELS=" + modelsPath}
		}
		recordCommand(progress, cmd)
		progress.Advance(15, "Downloading model layers...")

		out, err := exec.Run(ctx, cmd)
		if err != nil {
			return nil, fmt.Errorf("Ollama pull failed: %w", err)
		}

		progress.Advance(95, "Finalizing model download...")

		lines := out.Lines()
		if lines == nil {
			lines = []string{}
		}
		return task.Result{
			"status":     "success",
			"message":    fmt.Sprintf("Ollama model %s pulled successfully", model),
			"model_name": model,
			"model_size": nullable(parseModelSize(lines)),
			"output":     lines,
		}, nil
	})
}

// parseModelSize picks the first size token from a "pulled" summary line.
func parseModelSize(lines []string) string {
	for _, line := range lines {
		lower := strings.ToLower(line)
		if !strings.Contains(lower, "pulled") {
			continue
		}
		for _, part := range strings.Fields(line) {
			p := strings.ToLower(part)
			if strings.HasSuffix(p, "mb") || strings.HasSuffix(p, "gb") {
				return part
			}
		}
	}
	return ""
}

// NewOllamaRun returns the ollama_run runner.
func NewOllamaRun(client OllamaClient) task.JobRunner {
	return task.RunnerFunc(func(ctx context.Context, params task.Parameters, progress task.Progress) (task.Result, error) {
		model, err := requireString(params, "model_name")
		if err != nil {
			return nil, err
		}
		prompt, err := requireString(params, "prompt")
		if err != nil {
			return nil, err
		}
		maxTokens := params.Int("max_tokens", DefaultMaxTokens)
		temperature := params.Float("temperature", DefaultTemperature)

		progress.Advance(10, "Starting inference with model: "+model)
		progress.SetCommand("POST " + client.GenerateURL())
		progress.Advance(25, "Sending request to Ollama...")
		progress.Advance(50, "Processing inference...")

		resp, err := client.Generate(ctx, ollama.GenerateRequest{
			Model:  model,
			Prompt: prompt,
			Options: &ollama.Options{
				NumPredict:  maxTokens,
				Temperature: temperature,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("Ollama inference failed: %w", err)
		}

		progress.Advance(90, "Parsing response...")

		return task.Result{
			"status":            "success",
			"message":           fmt.Sprintf("Inference completed with model %s", model),
			"model_name":        model,
			"prompt":            prompt,
			"generated_text":    resp.Response,
			"prompt_tokens":     resp.PromptEvalCount,
			"generated_tokens":  resp.EvalCount,
			"total_duration":    resp.EvalDuration,
			"tokens_per_second": resp.TokensPerSecond(),
		}, nil
	})
}
