package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sys/unix"

	"scenesmith/internal/config"
	"scenesmith/internal/deps"
	"scenesmith/internal/ledger"
	"scenesmith/internal/project"
	"scenesmith/internal/scaffold"
	"scenesmith/internal/services/llm"
	"scenesmith/internal/state"
)

// CheckLLM verifies that the LLM API is reachable and the key is valid.
// It uses a 30-second timeout and a single attempt (no retries).
func CheckLLM(ctx context.Context, name string, cfg config.LLMConfig) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Detail: "API key missing"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	client := llm.NewClient(llm.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Model,
		Referer: cfg.Referer,
		Title:   cfg.Title,
	}, llm.WithRetryMaxAttempts(1))

	if err := client.HealthCheck(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeLLMError(err)}
	}
	return Result{Name: name, Passed: true, Detail: "API reachable"}
}

// CheckLLMConfigured reports whether collaborator settings are present
// without contacting the endpoint. Only the generate command needs them.
func CheckLLMConfigured(name string, cfg config.LLMConfig) Result {
	if cfg.APIKey == "" {
		return Result{Name: name, Optional: true, Detail: "API key missing (generate unavailable)"}
	}
	return Result{Name: name, Passed: true, Optional: true, Detail: fmt.Sprintf("%s (not contacted)", cfg.Model)}
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

// CheckDiskSpace fails when the filesystem holding path has less than
// minFree bytes available to unprivileged users.
func CheckDiskSpace(name, path string, minFree uint64) Result {
	var fs unix.Statfs_t
	if err := unix.Statfs(path, &fs); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("statfs %s: %v", path, err)}
	}
	free := fs.Bavail * uint64(fs.Bsize)
	detail := fmt.Sprintf("%s available", humanize.IBytes(free))
	if free < minFree {
		return Result{Name: name, Detail: fmt.Sprintf("%s (need at least %s)", detail, humanize.IBytes(minFree))}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckProjectRecord reports the phase stored in the project record.
func CheckProjectRecord(layout project.Layout) Result {
	const name = "Project record"
	if err := layout.Require(); err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	store := state.NewStore(layout.StatePath(), time.Now)
	if !store.Exists() {
		return Result{Name: name, Detail: fmt.Sprintf("%s missing (run scenesmith init)", project.StateFile)}
	}
	st := store.Load()
	detail := fmt.Sprintf("phase %s, %d/%d scenes built", st.Phase, st.BuiltCount(), len(st.Scenes))
	if st.Flags.NeedsHumanReview {
		return Result{Name: name, Detail: detail + " (needs human review)"}
	}
	return Result{Name: name, Passed: true, Detail: detail}
}

// CheckScaffold verifies the scene scaffold carries exactly one slot.
func CheckScaffold(layout project.Layout) Result {
	const name = "Scene scaffold"
	data, err := os.ReadFile(layout.ScaffoldPath())
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s: %v", layout.Rel(layout.ScaffoldPath()), err)}
	}
	slot, err := scaffold.FindSlot(string(data))
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	tokens := scaffold.Tokens(string(data))
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("slot at lines %d-%d, tokens: %s", slot.Start+1, slot.End+1, strings.Join(tokens, ", "))}
}

// CheckLedger opens the attempt ledger and reports its location.
func CheckLedger(path string) Result {
	const name = "Attempt ledger"
	store, err := ledger.Open(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	defer store.Close()
	return Result{Name: name, Passed: true, Detail: store.Path()}
}

// CheckTools reports the optional external tools the render steps use.
func CheckTools() []Result {
	statuses := deps.CheckBinaries(deps.ProjectTools())
	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		r := Result{Name: status.Name, Passed: status.Available, Optional: status.Optional}
		if status.Available {
			r.Detail = status.Path
		} else {
			r.Detail = fmt.Sprintf("%s (%s)", status.Detail, status.Description)
		}
		results = append(results, r)
	}
	return results
}

// summarizeLLMError produces a human-readable summary for LLM health check failures.
func summarizeLLMError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (LLM API unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (LLM API unreachable)"
	}
	return err.Error()
}
