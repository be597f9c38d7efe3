package preflight

import (
	"context"

	"scenesmith/internal/config"
	"scenesmith/internal/project"
)

// MinFreeBytes is the free space below which the disk check fails.
const MinFreeBytes = 512 << 20

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
	// Optional results do not make the overall run fail.
	Optional bool
}

// Options selects the checks RunAll performs.
type Options struct {
	// CheckLLM pings the collaborator endpoint. It costs one request.
	CheckLLM bool
}

// RunAll executes the preflight checks for layout under cfg.
func RunAll(ctx context.Context, cfg *config.Config, layout project.Layout, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("Project directory", layout.Root),
		CheckDirectoryAccess("Project logs", layout.LogsDir()),
		CheckDiskSpace("Free space", layout.Root, MinFreeBytes),
		CheckProjectRecord(layout),
		CheckScaffold(layout),
		CheckLedger(cfg.Paths.LedgerPath),
	}
	results = append(results, CheckTools()...)

	if opts.CheckLLM {
		results = append(results, CheckLLM(ctx, "Collaborator LLM", cfg.GetLLM()))
	} else {
		results = append(results, CheckLLMConfigured("Collaborator LLM", cfg.GetLLM()))
	}
	return results
}

// Failed reports whether any required check failed.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return true
		}
	}
	return false
}
