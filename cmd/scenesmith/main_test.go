package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type cliTestEnv struct {
	configPath string
	projectDir string
	ledgerPath string
	baseDir    string
}

// setupCLITestEnv writes a config with small plan bounds so scenarios can
// use two scenes.
func setupCLITestEnv(t *testing.T, extra string) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	homeDir := filepath.Join(base, "home")
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		t.Fatalf("mkdir home: %v", err)
	}
	t.Setenv("HOME", homeDir)
	t.Setenv("XDG_DATA_HOME", filepath.Join(base, "data"))
	t.Setenv("NO_COLOR", "1")
	t.Setenv("SCENESMITH_LLM_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")

	env := &cliTestEnv{
		configPath: filepath.Join(base, "config.toml"),
		projectDir: filepath.Join(base, "project"),
		ledgerPath: filepath.Join(base, "state", "ledger.db"),
		baseDir:    base,
	}
	content := fmt.Sprintf(`[paths]
log_dir = %q
ledger_path = %q

[plan]
min_scenes = 2
max_scenes = 3
min_scene_seconds = 20
max_scene_seconds = 45
min_total_seconds = 40
max_total_seconds = 135

[logging]
level = "error"
%s`, filepath.Join(base, "logs"), env.ledgerPath, extra)
	if err := os.WriteFile(env.configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return env
}

func runCLI(t *testing.T, env *cliTestEnv, stdin string, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetIn(strings.NewReader(stdin))
	flags := []string{"--config", env.configPath, "--project-dir", env.projectDir}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, haystack, needle string) {
	t.Helper()
	if !strings.Contains(haystack, needle) {
		t.Fatalf("expected output to contain %q\n---\n%s", needle, haystack)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
