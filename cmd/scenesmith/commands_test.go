package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scenesmith/internal/services"
	"scenesmith/internal/testsupport"
)

func initProject(t *testing.T, env *cliTestEnv) {
	t.Helper()
	if _, _, err := runCLI(t, env, "", "init", "--topic", "How waves move", "--name", "waves"); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, _, err := runCLI(t, env, "", "advance"); err != nil {
		t.Fatalf("advance init: %v", err)
	}
}

func statusPhase(t *testing.T, env *cliTestEnv) map[string]any {
	t.Helper()
	out, _, err := runCLI(t, env, "", "status", "--json")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	var st map[string]any
	if err := json.Unmarshal([]byte(out), &st); err != nil {
		t.Fatalf("decode status: %v\n%s", err, out)
	}
	return st
}

func TestInitAndStatus(t *testing.T) {
	env := setupCLITestEnv(t, "")
	out, _, err := runCLI(t, env, "", "init", "--topic", "How waves move")
	if err != nil {
		t.Fatalf("init: %v", err)
	}
	requireContains(t, out, "Initialized project project")

	out, _, err = runCLI(t, env, "", "init", "--topic", "Other")
	if err != nil {
		t.Fatalf("second init: %v", err)
	}
	requireContains(t, out, "already initialized")

	st := statusPhase(t, env)
	if st["phase"] != "init" || st["topic"] != "How waves move" {
		t.Fatalf("unexpected state: %v", st)
	}

	out, _, err = runCLI(t, env, "", "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "== Project ==")
	requireContains(t, out, "[INFO] init")
}

func TestInitRequiresTopic(t *testing.T) {
	env := setupCLITestEnv(t, "")
	_, _, err := runCLI(t, env, "", "init")
	if err == nil || services.ExitCode(err) != services.ExitRecoverable {
		t.Fatalf("expected usage error with exit 1, got %v", err)
	}
}

func TestAdvanceWithoutProject(t *testing.T) {
	env := setupCLITestEnv(t, "")
	_, _, err := runCLI(t, env, "", "advance")
	if err == nil || services.ExitCode(err) != services.ExitRecoverable {
		t.Fatalf("expected exit 1 for missing project, got %v", err)
	}
}

func TestPipelineThroughBuildScenes(t *testing.T) {
	env := setupCLITestEnv(t, "")
	initProject(t, env)

	plan := testsupport.PlanJSON(t, 2, 30)
	out, _, err := runCLI(t, env, plan, "ingest", "--phase", "plan", "--advance")
	if err != nil {
		t.Fatalf("ingest plan: %v\n%s", err, out)
	}
	requireContains(t, out, "Wrote plan.json")
	requireContains(t, out, "Advanced plan -> review")

	if _, _, err := runCLI(t, env, "", "advance"); err != nil {
		t.Fatalf("advance review: %v", err)
	}

	_, _, err = runCLI(t, env, "ok", "ingest", "--phase", "training", "--advance")
	if err == nil || services.ExitCode(err) != services.ExitRecoverable {
		t.Fatalf("expected retryable training failure, got %v", err)
	}
	if _, _, err := runCLI(t, env, "Understood.", "ingest", "--phase", "training", "--advance"); err != nil {
		t.Fatalf("ingest training: %v", err)
	}

	narration := testsupport.NarrationScript("scene_01_wave_part_1", "scene_02_wave_part_2")
	if _, _, err := runCLI(t, env, narration, "ingest", "--phase", "narration", "--advance"); err != nil {
		t.Fatalf("ingest narration: %v", err)
	}
	if st := statusPhase(t, env); st["phase"] != "build_scenes" {
		t.Fatalf("expected build_scenes, got %v", st["phase"])
	}

	body := "```python\ntitle = Text(\"Waves\")\nself.play(Write(title))\n```"
	out, _, err = runCLI(t, env, body, "ingest", "--phase", "build_scenes", "--advance")
	if err != nil {
		t.Fatalf("ingest scene 1: %v\n%s", err, out)
	}
	requireContains(t, out, "Wrote scenes/scene_01_wave_part_1.py")
	requireContains(t, out, "Scene 1 of 2 built")

	if _, _, err := runCLI(t, env, body, "ingest", "--phase", "build_scenes", "--advance"); err != nil {
		t.Fatalf("ingest scene 2: %v", err)
	}
	st := statusPhase(t, env)
	if st["phase"] != "precache_voiceovers" {
		t.Fatalf("expected precache_voiceovers, got %v", st["phase"])
	}

	out, _, err = runCLI(t, env, "", "history", "--limit", "0")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, out, "ingest:plan")
	requireContains(t, out, "retryable")
}

func TestIngestRejectionsExitCodes(t *testing.T) {
	env := setupCLITestEnv(t, "")
	initProject(t, env)

	_, _, err := runCLI(t, env, testsupport.PlanJSON(t, 5, 30), "ingest", "--phase", "plan")
	if services.ExitCode(err) != services.ExitSemantic {
		t.Fatalf("expected exit 3 for too many scenes, got %v", err)
	}
	_, _, err = runCLI(t, env, "no plan here", "ingest", "--phase", "plan")
	if services.ExitCode(err) != services.ExitStructural {
		t.Fatalf("expected exit 2 for missing artifact, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(env.projectDir, "plan.json")); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("rejected plan was written")
	}
	diagnostics, _ := os.ReadDir(filepath.Join(env.projectDir, "logs", "diagnostics"))
	if len(diagnostics) != 2 {
		t.Fatalf("expected 2 diagnostics, got %d", len(diagnostics))
	}
}

func TestIngestDryRunAndResponseFile(t *testing.T) {
	env := setupCLITestEnv(t, "")
	initProject(t, env)

	response := filepath.Join(env.baseDir, "plan.txt")
	writeFile(t, response, testsupport.PlanJSON(t, 2, 30))
	out, _, err := runCLI(t, env, "", "ingest", "--phase", "plan", "--response-file", response, "--dry-run", "--json")
	if err != nil {
		t.Fatalf("dry-run ingest: %v", err)
	}
	var report ingestReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if !report.DryRun || len(report.Written) != 1 || report.Written[0] != "plan.json" {
		t.Fatalf("unexpected report: %+v", report)
	}
	if _, statErr := os.Stat(filepath.Join(env.projectDir, "plan.json")); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatal("dry run wrote plan.json")
	}
}

func TestAdvanceJSONAndForceReplan(t *testing.T) {
	env := setupCLITestEnv(t, "")
	initProject(t, env)
	writeFile(t, filepath.Join(env.projectDir, "plan.json"), testsupport.PlanJSON(t, 2, 30))

	out, _, err := runCLI(t, env, "", "advance", "--json")
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	var report advanceReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if report.From != "plan" || report.To != "review" || report.Scenes != 2 || report.RequestID == "" {
		t.Fatalf("unexpected report: %+v", report)
	}

	out, _, err = runCLI(t, env, "", "advance", "--phase", "plan", "--json")
	if err != nil {
		t.Fatalf("satisfied advance: %v", err)
	}
	report = advanceReport{}
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !report.Satisfied || report.To != "review" {
		t.Fatalf("expected satisfied no-op, got %+v", report)
	}

	_, _, err = runCLI(t, env, "", "advance", "--phase", "final_render")
	if !services.IsRetryable(err) {
		t.Fatalf("expected retryable mismatch, got %v", err)
	}

	writeFile(t, filepath.Join(env.projectDir, "plan.json"), testsupport.PlanJSON(t, 3, 30))
	if _, _, err := runCLI(t, env, "", "advance", "--force-replan"); err != nil {
		t.Fatalf("force replan: %v", err)
	}
	st := statusPhase(t, env)
	if scenes, _ := st["scenes"].([]any); len(scenes) != 3 || st["phase"] != "review" {
		t.Fatalf("expected re-planned project with 3 scenes, got phase %v scenes %d", st["phase"], len(scenes))
	}

	_, _, err = runCLI(t, env, "", "advance", "--phase", "nonsense")
	if services.ExitCode(err) != services.ExitRecoverable {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestGenerateSceneWithCollaborator(t *testing.T) {
	var prompts []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&payload)
		for _, m := range payload.Messages {
			prompts = append(prompts, m.Content)
		}
		content := "Here you go:\n```python\nself.play(Create(Circle()))\n```"
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []any{map[string]any{
				"message":       map[string]any{"content": content},
				"finish_reason": "stop",
			}},
		})
	}))
	defer srv.Close()

	extra := "\n[llm]\napi_key = \"test-key\"\nbase_url = \"" + srv.URL + "\"\nmax_retries = 0\ntimeout_seconds = 5\n"
	env := setupCLITestEnv(t, extra)
	initProject(t, env)
	writeFile(t, filepath.Join(env.projectDir, "plan.json"), testsupport.PlanJSON(t, 2, 30))
	writeFile(t, filepath.Join(env.projectDir, "training_ack.txt"), "understood\n")
	writeFile(t, filepath.Join(env.projectDir, "narration_script.py"), testsupport.NarrationScript("scene_01_wave_part_1", "scene_02_wave_part_2"))
	for i := 0; i < 4; i++ {
		if _, _, err := runCLI(t, env, "", "advance"); err != nil {
			t.Fatalf("advance %d: %v", i, err)
		}
	}

	out, _, err := runCLI(t, env, "", "generate", "--phase", "build_scenes")
	if err != nil {
		t.Fatalf("generate: %v\n%s", err, out)
	}
	requireContains(t, out, "Wrote scenes/scene_01_wave_part_1.py")
	requireContains(t, out, "Scene 1 of 2 built")
	if !strings.Contains(strings.Join(prompts, "\n"), "Wave Part 1") {
		t.Fatalf("prompt did not mention the scene: %q", prompts)
	}
	source, err := os.ReadFile(filepath.Join(env.projectDir, "scenes", "scene_01_wave_part_1.py"))
	if err != nil {
		t.Fatalf("read scene: %v", err)
	}
	requireContains(t, string(source), "class Scene01WavePart1(VoiceoverScene):")
	requireContains(t, string(source), "self.play(Create(Circle()))")
}

func TestGenerateRequiresAPIKey(t *testing.T) {
	env := setupCLITestEnv(t, "")
	initProject(t, env)
	_, _, err := runCLI(t, env, "", "generate", "--phase", "plan")
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestDoctor(t *testing.T) {
	env := setupCLITestEnv(t, "")
	initProject(t, env)
	out, _, _ := runCLI(t, env, "", "doctor")
	requireContains(t, out, "== Doctor ==")
	requireContains(t, out, "Project record")
	requireContains(t, out, "Scene scaffold")
	requireContains(t, out, "Attempt ledger")
}

func TestConfigInitAndShow(t *testing.T) {
	env := setupCLITestEnv(t, "\n[llm]\napi_key = \"sk-secret-1234\"\n")

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err := runCLI(t, env, "", "config", "init", "--path", target)
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, _, err := runCLI(t, env, "", "config", "init", "--path", target); err == nil {
		t.Fatal("expected refusal to overwrite")
	}

	out, _, err = runCLI(t, env, "", "config", "show")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "# Config path: "+env.configPath)
	requireContains(t, out, "****1234")
	if strings.Contains(out, "sk-secret") {
		t.Fatal("api key leaked in config show")
	}
}

func TestLogsFiltersByProject(t *testing.T) {
	env := setupCLITestEnv(t, "")
	if _, _, err := runCLI(t, env, "", "init", "--topic", "How waves move"); err != nil {
		t.Fatalf("init: %v", err)
	}
	logPath := filepath.Join(env.baseDir, "logs", "scenesmith.log")
	writeFile(t, logPath, strings.Join([]string{
		`{"ts":"2026-05-04T10:30:00Z","level":"info","msg":"phase advanced","project":"project","phase":"plan"}`,
		`{"ts":"2026-05-04T10:31:00Z","level":"warn","msg":"artifact rejected","project":"elsewhere","phase":"plan"}`,
	}, "\n")+"\n")

	out, _, err := runCLI(t, env, "", "logs")
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "phase advanced")
	if strings.Contains(out, "artifact rejected") {
		t.Fatalf("other project's record leaked:\n%s", out)
	}

	out, _, err = runCLI(t, env, "", "logs", "--all", "--level", "warn")
	if err != nil {
		t.Fatalf("logs --all: %v", err)
	}
	requireContains(t, out, "artifact rejected")
	if strings.Contains(out, "phase advanced") {
		t.Fatalf("level filter ignored:\n%s", out)
	}
}

func TestAdvanceDryRunKeepsRecord(t *testing.T) {
	env := setupCLITestEnv(t, "")
	initProject(t, env)
	writeFile(t, filepath.Join(env.projectDir, "plan.json"), testsupport.PlanJSON(t, 2, 30))

	out, _, err := runCLI(t, env, "", "advance", "--dry-run", "--json")
	if err != nil {
		t.Fatalf("dry-run advance: %v", err)
	}
	var report advanceReport
	if err := json.Unmarshal([]byte(out), &report); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if !report.DryRun || report.To != "review" {
		t.Fatalf("unexpected report: %+v", report)
	}

	st := statusPhase(t, env)
	if st["phase"] != "plan" {
		t.Fatalf("dry run saved the record: phase=%v", st["phase"])
	}
	if flags, _ := st["flags"].(map[string]any); flags["dry_run"] != false {
		t.Fatalf("dry_run persisted: %v", st["flags"])
	}
}
