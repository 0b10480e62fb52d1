package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"showrunner/internal/config"
	"showrunner/internal/deps"
	"showrunner/internal/secrets"
	"showrunner/internal/services/llm"
)

// CheckOpenAI verifies that the chat API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckOpenAI(ctx context.Context, cfg *config.Config) Result {
	const name = "OpenAI API"

	if strings.TrimSpace(cfg.OpenAI.APIKey) == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.ChatModel,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeAPIError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckTokenKey verifies the platform token key can build a sealer. Account
// tokens sealed at connect time cannot be opened without it, so every
// publish job parks until it is fixed.
func CheckTokenKey(cfg *config.Config) Result {
	const name = "Platform token key"

	if strings.TrimSpace(cfg.Platforms.TokenKey) == "" {
		return Result{Name: name, Detail: "platforms.token_key not set (publishing will park)"}
	}
	if _, err := secrets.NewSealer(cfg.Platforms.TokenKey); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	return Result{Name: name, Passed: true, Detail: "sealer ready"}
}

// CheckNtfy reports notification configuration. Notifications are optional,
// so a blank topic passes as disabled.
func CheckNtfy(cfg *config.Config) Result {
	const name = "Notifications"

	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	return Result{Name: name, Passed: true, Detail: "ntfy topic configured"}
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckSystemDeps evaluates the external binaries the pipeline shells out
// to. The daemon and the CLI doctor command both use this, so the
// requirements list lives in one place.
func CheckSystemDeps(cfg *config.Config) []deps.Status {
	requirements := []deps.Requirement{
		{
			Name:        "FFmpeg",
			Command:     cfg.FFmpegBinary(),
			Description: "Required for video assembly",
		},
		{
			Name:        "FFprobe",
			Command:     cfg.FFprobeBinary(),
			Description: "Required for audio duration probes",
		},
	}
	return deps.CheckBinaries(requirements)
}

// summarizeAPIError produces a human-readable summary for API health check failures.
func summarizeAPIError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (API unreachable)"
	}
	return err.Error()
}
