package jobs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aiadmin/ai-admin/internal/platform/cli"
	"github.com/aiadmin/ai-admin/internal/task"
)

// Docker runs docker CLI jobs.
type Docker struct {
	exec   cli.Runner
	binary string
}

// NewDocker creates docker runners that invoke binary, "docker" by default.
func NewDocker(exec cli.Runner, binary string) *Docker {
	return &Docker{exec: exec, binary: orDefault(binary, "docker")}
}

// Push returns the docker_push runner.
func (d *Docker) Push() task.JobRunner { return task.RunnerFunc(d.push) }

// Build returns the docker_build runner.
func (d *Docker) Build() task.JobRunner { return task.RunnerFunc(d.build) }

// Pull returns the docker_pull runner.
func (d *Docker) Pull() task.JobRunner { return task.RunnerFunc(d.pull) }

func (d *Docker) push(ctx context.Context, params task.Parameters, progress task.Progress) (task.Result, error) {
	image, err := requireString(params, "image_name")
	if err != nil {
		return nil, err
	}
	tag := params.String("tag", "latest")
	ref := image + ":" + tag

	progress.Advance(10, "Starting push of "+ref)

	cmd := cli.Command{Name: d.binary, Args: []string{"push", ref}}
	recordCommand(progress, cmd)
	progress.Advance(25, "Pushing layers...")

	out, err := d.exec.Run(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("Docker push failed: %w", err)
	}

	progress.Advance(90, "Finalizing push...")

	return task.Result{
		"status":          "success",
		"message":         "Docker image pushed successfully",
		"image_name":      image,
		"tag":             tag,
		"full_image_name": ref,
		"digest":          nullable(parseDigest(out.Lines())),
	}, nil
}

func (d *Docker) pull(ctx context.Context, params task.Parameters, progress task.Progress) (task.Result, error) {
	image, err := requireString(params, "image_name")
	if err != nil {
		return nil, err
	}
	tag := params.String("tag", "latest")
	ref := image + ":" + tag

	progress.Advance(10, "Starting pull of "+ref)

	cmd := cli.Command{Name: d.binary, Args: []string{"pull", ref}}
	recordCommand(progress, cmd)
	progress.Advance(25, "Pulling layers...")

	out, err := d.exec.Run(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("Docker pull failed: %w", err)
	}

	progress.Advance(90, "Finalizing pull...")

	return task.Result{
		"status":          "success",
		"message":         "Docker image pulled successfully",
		"image_name":      image,
		"tag":             tag,
		"full_image_name": ref,
		"digest":          nullable(parseDigest(out.Lines())),
	}, nil
}

// BuildArgs renders the docker build argument vector for params.
func BuildArgs(params task.Parameters) []string {
	dockerfile := params.String("dockerfile_path", "Dockerfile")
	contextPath := params.String("context_path", ".")

	args := []string{"build", "-f", dockerfile}
	if tag := params.String("tag", ""); tag != "" {
		args = append(args, "-t", tag)
	}
	buildArgs := params.StringMap("build_args")
	for _, k := range task.SortedKeys(buildArgs) {
		args = append(args, "--build-arg", k+"="+buildArgs[k])
	}
	if params.Bool("no_cache", false) {
		args = append(args, "--no-cache")
	}
	if platform := params.String("platform", ""); platform != "" {
		args = append(args, "--platform", platform)
	}
	if target := params.String("target", ""); target != "" {
		args = append(args, "--target", target)
	}
	return append(args, contextPath)
}

// dockerfilePath resolves a relative Dockerfile against the build context.
func dockerfilePath(contextPath, dockerfile string) string {
	if filepath.IsAbs(dockerfile) {
		return dockerfile
	}
	return filepath.Join(contextPath, dockerfile)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func (d *Docker) build(ctx context.Context, params task.Parameters, progress task.Progress) (task.Result, error) {
	dockerfile := params.String("dockerfile_path", "Dockerfile")
	contextPath := params.String("context_path", ".")
	tag := params.String("tag", "")

	if _, err := os.Stat(contextPath); err != nil {
		return nil, fmt.Errorf("build context path does not exist: %s", contextPath)
	}
	if path := dockerfilePath(contextPath, dockerfile); !fileExists(path) {
		return nil, fmt.Errorf("Dockerfile does not exist: %s", path)
	}

	progress.Advance(10, "Starting build of "+orDefault(tag, contextPath))

	cmd := cli.Command{Name: d.binary, Args: BuildArgs(params)}
	recordCommand(progress, cmd)
	progress.Advance(25, "Building image...")

	out, err := d.exec.Run(ctx, cmd)
	if err != nil {
		return nil, fmt.Errorf("Docker build failed: %w", err)
	}

	progress.Advance(90, "Finalizing build...")

	lines := out.Lines()
	lines = append(lines, strings.Split(out.Stderr, "\n")...)

	return task.Result{
		"status":                 "success",
		"message":                "Docker image built successfully",
		"image_id":               nullable(parseImageID(lines)),
		"tag":                    nullable(tag),
		"build_duration_seconds": out.Duration.Seconds(),
		"dockerfile_path":        dockerfile,
		"context_path":           contextPath,
		"build_args":             params.StringMap("build_args"),
		"build_options": map[string]any{
			"no_cache": params.Bool("no_cache", false),
			"platform": nullable(params.String("platform", "")),
			"target":   nullable(params.String("target", "")),
		},
	}, nil
}

// parseDigest finds the first "digest: <value>" in docker output.
func parseDigest(lines []string) string {
	const marker = "digest: "
	for _, line := range lines {
		idx := strings.Index(strings.ToLower(line), marker)
		if idx < 0 {
			continue
		}
		if fields := strings.Fields(line[idx+len(marker):]); len(fields) > 0 {
			return fields[0]
		}
	}
	return ""
}

// parseImageID understands both the classic builder and BuildKit output.
func parseImageID(lines []string) string {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "Successfully built ") {
			fields := strings.Fields(line)
			return fields[len(fields)-1]
		}
		if idx := strings.Index(line, "writing image sha256:"); idx >= 0 {
			fields := strings.Fields(line[idx+len("writing image "):])
			return fields[0]
		}
	}
	return ""
}
