package preflight

import (
	"context"

	"showrunner/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes the preflight checks for the given config: directory
// access for every configured path, OpenAI reachability, the platform token
// key, and the notification topic.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}
	return []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Work directory", cfg.Paths.WorkDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("Storage directory", cfg.Storage.Dir),
		CheckOpenAI(ctx, cfg),
		CheckTokenKey(cfg),
		CheckNtfy(cfg),
	}
}
