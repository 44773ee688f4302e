package jobs

import (
	"context"
	"fmt"

	"github.com/aiadmin/ai-admin/internal/platform/gemini"
	"github.com/aiadmin/ai-admin/internal/task"
)

// TextGenerator is the hosted model client used by llm_generate.
type TextGenerator interface {
	Generate(ctx context.Context, req gemini.Request) (*gemini.Response, error)
	DefaultModel() string
}

// NewLLMGenerate returns the llm_generate runner.
func NewLLMGenerate(gen TextGenerator) task.JobRunner {
	return task.RunnerFunc(func(ctx context.Context, params task.Parameters, progress task.Progress) (task.Result, error) {
		prompt, err := requireString(params, "prompt")
		if err != nil {
			return nil, err
		}
		model := params.String("model_name", gen.DefaultModel())

		req := gemini.Request{
			Model:           model,
			Prompt:          prompt,
			MaxOutputTokens: int32(params.Int("max_tokens", 0)),
		}
		if _, ok := params["temperature"]; ok {
			temp := float32(params.Float("temperature", DefaultTemperature))
			req.Temperature = &temp
		}

		progress.Advance(10, "Starting generation with model: "+model)
		progress.SetCommand("gemini generateContent " + model)
		progress.Advance(50, "Waiting for model response...")

		resp, err := gen.Generate(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("LLM generation failed: %w", err)
		}

		progress.Advance(90, "Parsing response...")

		return task.Result{
			"status":           "success",
			"message":          fmt.Sprintf("Generation completed with model %s", resp.Model),
			"model_name":       resp.Model,
			"generated_text":   resp.Text,
			"prompt_tokens":    resp.PromptTokens,
			"generated_tokens": resp.OutputTokens,
			"finish_reason":    resp.FinishReason,
		}, nil
	})
}
