package project

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"scenesmith/internal/fileutil"
	"scenesmith/internal/scaffold"
	"scenesmith/internal/state"
	"scenesmith/internal/textutil"
)

// File and directory names inside a project.
const (
	StateFile       = "project_state.json"
	PlanFile        = "plan.json"
	TrainingAckFile = "training_ack.txt"
	NarrationFile   = "narration_script.py"
	VoiceConfigFile = "voice_config.yaml"
	ScaffoldFile    = "scene_scaffold.py"
	FinalVideoFile  = "final_video.mp4"
	VoiceCacheIndex = "cache.json"
	SceneQCReport   = "scene_qc_report.md"
	LockFile        = ".scenesmith.lock"
	templatesDir    = "templates"
	scenesDir       = "scenes"
	mediaDir        = "media"
	voiceoversDir   = "voiceovers"
	videosDir       = "videos"
	logsDir         = "logs"
	diagnosticsDir  = "diagnostics"
	responsesDir    = "responses"
	sceneSourceExt  = ".py"
	sceneVideoExt   = ".mp4"
)

// ErrMissingProject reports a project directory that does not exist.
var ErrMissingProject = errors.New("project directory not found")

// Layout resolves artifact paths under a project root.
type Layout struct {
	Root string
}

// NewLayout returns a Layout for root, made absolute when possible.
func NewLayout(root string) Layout {
	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	return Layout{Root: filepath.Clean(root)}
}

func (l Layout) path(parts ...string) string {
	return filepath.Join(append([]string{l.Root}, parts...)...)
}

func (l Layout) StatePath() string       { return l.path(StateFile) }
func (l Layout) PlanPath() string        { return l.path(PlanFile) }
func (l Layout) TrainingAckPath() string { return l.path(TrainingAckFile) }
func (l Layout) NarrationPath() string   { return l.path(NarrationFile) }
func (l Layout) VoiceConfigPath() string { return l.path(VoiceConfigFile) }
func (l Layout) ScaffoldPath() string    { return l.path(templatesDir, ScaffoldFile) }
func (l Layout) ScenesDir() string       { return l.path(scenesDir) }
func (l Layout) VoiceoversDir() string   { return l.path(mediaDir, voiceoversDir) }
func (l Layout) VoiceCachePath() string  { return l.path(mediaDir, voiceoversDir, VoiceCacheIndex) }
func (l Layout) VideosDir() string       { return l.path(mediaDir, videosDir) }
func (l Layout) FinalVideoPath() string  { return l.path(FinalVideoFile) }
func (l Layout) LogsDir() string         { return l.path(logsDir) }
func (l Layout) DiagnosticsDir() string  { return l.path(logsDir, diagnosticsDir) }
func (l Layout) ResponsesDir() string    { return l.path(logsDir, responsesDir) }
func (l Layout) QCReportPath() string    { return l.path(logsDir, SceneQCReport) }
func (l Layout) LockPath() string        { return l.path(LockFile) }

// ScenePath returns the source file for a scene ID.
func (l Layout) ScenePath(sceneID string) string {
	return l.path(scenesDir, sceneID+sceneSourceExt)
}

// SceneVideoPath returns the rendered video for a scene ID.
func (l Layout) SceneVideoPath(sceneID string) string {
	return l.path(mediaDir, videosDir, sceneID+sceneVideoExt)
}

// Rel returns path relative to the project root, or path itself when it is
// outside the root.
func (l Layout) Rel(path string) string {
	rel, err := filepath.Rel(l.Root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return filepath.ToSlash(rel)
}

// Abs resolves a project-relative path.
func (l Layout) Abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return l.path(filepath.FromSlash(rel))
}

// Require checks that the project root exists and is a directory.
func (l Layout) Require() error {
	info, err := os.Stat(l.Root)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrMissingProject, l.Root)
		}
		return fmt.Errorf("stat project directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrMissingProject, l.Root)
	}
	return nil
}

// Directories lists every directory a project needs.
func (l Layout) Directories() []string {
	return []string{
		l.Root,
		l.path(templatesDir),
		l.ScenesDir(),
		l.VoiceoversDir(),
		l.VideosDir(),
		l.LogsDir(),
		l.DiagnosticsDir(),
		l.ResponsesDir(),
	}
}

// InitOptions configures Init.
type InitOptions struct {
	Name  string
	Topic string
	Now   time.Time
	// Force replaces an existing state record.
	Force bool
}

// Init creates the project tree, writes the default scaffold if none is
// present, and writes a fresh state record. An existing record is left
// untouched unless Force is set; the returned bool reports whether a record
// was written.
func Init(l Layout, opts InitOptions) (state.ProjectState, bool, error) {
	for _, dir := range l.Directories() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return state.ProjectState{}, false, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	if !fileutil.Exists(l.ScaffoldPath()) {
		if err := fileutil.WriteFileAtomic(l.ScaffoldPath(), []byte(scaffold.Default()), 0o644); err != nil {
			return state.ProjectState{}, false, fmt.Errorf("write scaffold: %w", err)
		}
	}

	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}
	store := state.NewStore(l.StatePath(), func() time.Time { return now })
	if store.Exists() && !opts.Force {
		return store.Load(), false, nil
	}

	name := strings.TrimSpace(opts.Name)
	if name == "" {
		name = textutil.Slugify(filepath.Base(l.Root), 0)
	}
	st := state.New(name, opts.Topic, now)
	if err := store.Save(&st); err != nil {
		return state.ProjectState{}, false, err
	}
	return st, true, nil
}
