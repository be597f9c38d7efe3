package logging_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"scenesmith/internal/config"
	"scenesmith/internal/logging"
	"scenesmith/internal/services"
)

func TestNewFromConfigWritesJSONLogFile(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = filepath.Join(t.TempDir(), "logs")
	cfg.Logging.Level = "error"

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	logger.Error("ledger unavailable", logging.String(logging.FieldEventType, "ledger_open_failed"))

	content, err := os.ReadFile(cfg.LogFilePath())
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(content), &record); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", content, err)
	}
	if record["msg"] != "ledger unavailable" || record["event_type"] != "ledger_open_failed" {
		t.Fatalf("unexpected record: %v", record)
	}
}

func TestConsoleLoggerSourceByLevel(t *testing.T) {
	tests := []struct {
		level      string
		wantSource bool
	}{
		{"info", false},
		{"debug", true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := logging.New(logging.Options{Format: "console", Level: tt.level, Writer: &buf})
			if err != nil {
				t.Fatalf("New returned error: %v", err)
			}
			logger.Info("message")
			if got := strings.Contains(buf.String(), ".go:"); got != tt.wantSource {
				t.Fatalf("source present = %v, want %v: %q", got, tt.wantSource, buf.String())
			}
		})
	}
}

func TestConsoleLoggerLiftsComponent(t *testing.T) {
	var buf bytes.Buffer
	base, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.NewComponentLogger(base, "engine").Info("phase advanced", logging.String("to", "review"))

	out := buf.String()
	if !strings.Contains(out, "INFO engine: phase advanced") {
		t.Fatalf("expected component prefix, got %q", out)
	}
	if !strings.Contains(out, "to=review") {
		t.Fatalf("expected attr, got %q", out)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestWithContextAddsFields(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithProject(ctx, "fourier")
	ctx = services.WithPhase(ctx, "build_scenes")
	ctx = services.WithSceneID(ctx, "scene_01_intro")
	ctx = services.WithRequestID(ctx, "req-xyz")

	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WithContext(ctx, logger).Info("contextual log")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	want := map[string]string{
		logging.FieldProject:   "fourier",
		logging.FieldPhase:     "build_scenes",
		logging.FieldSceneID:   "scene_01_intro",
		logging.FieldRequestID: "req-xyz",
	}
	for key, value := range want {
		if record[key] != value {
			t.Fatalf("field %s = %v, want %q", key, record[key], value)
		}
	}
}

func TestWarnWithContextInjectsDefaults(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logging.WarnWithContext(logger, "diagnostic not written", "diagnostic_write_failed", logging.Error(errors.New("disk full")))

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	for _, key := range []string{logging.FieldEventType, logging.FieldErrorHint, logging.FieldImpact} {
		if _, ok := record[key]; !ok {
			t.Fatalf("expected %s in %v", key, record)
		}
	}
	if record["error"] != "disk full" {
		t.Fatalf("unexpected error field: %v", record["error"])
	}
}

func TestNopLoggerDiscards(t *testing.T) {
	logger := logging.NewNop()
	if logger.Enabled(context.Background(), 12) {
		t.Fatal("nop logger should not be enabled")
	}
}

func TestConsoleLoggerHidesInvocationFields(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "console", Level: "info", Writer: &buf})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	ctx := services.WithRequestID(services.WithProject(context.Background(), "fourier"), "req-xyz")
	logging.WithContext(ctx, logger).Info("decided", logging.DecisionAttrs("phase_request", "satisfied", "already past plan")...)

	out := buf.String()
	if strings.Contains(out, "req-xyz") || strings.Contains(out, "fourier") {
		t.Fatalf("invocation fields leaked to console: %q", out)
	}
	if !strings.Contains(out, `decision_reason="already past plan"`) || !strings.Contains(out, "decision_result=satisfied") {
		t.Fatalf("decision attributes missing: %q", out)
	}
}
