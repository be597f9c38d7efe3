package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains locations shared by every project.
type Paths struct {
	LogDir     string `toml:"log_dir"`
	LedgerPath string `toml:"ledger_path"`
}

// LLM contains connection settings for the text-generation collaborator.
type LLM struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	Referer        string `toml:"referer"`
	Title          string `toml:"title"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries"`
}

// Plan contains the business-rule bounds applied to plan artifacts.
type Plan struct {
	MinScenes       int     `toml:"min_scenes"`
	MaxScenes       int     `toml:"max_scenes"`
	MinSceneSeconds float64 `toml:"min_scene_seconds"`
	MaxSceneSeconds float64 `toml:"max_scene_seconds"`
	MinTotalSeconds float64 `toml:"min_total_seconds"`
	MaxTotalSeconds float64 `toml:"max_total_seconds"`
}

// Fragments contains the contract applied to collaborator code fragments.
type Fragments struct {
	// FillerPhrases are case-insensitive substrings left over from the
	// scaffold template's demonstration body.
	FillerPhrases []string `toml:"filler_phrases"`
	// PlaceholderPatterns are regular expressions matching unresolved
	// template tokens.
	PlaceholderPatterns []string `toml:"placeholder_patterns"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Engine contains phase transition settings.
type Engine struct {
	AckToken string `toml:"ack_token"`
}

// Config encapsulates all configuration values for scenesmith.
//
// Configuration sections:
//   - Paths: log directory and transition ledger location
//   - LLM: collaborator connection settings used by `generate`
//   - Plan: scene count and duration bounds
//   - Fragments: filler phrases and placeholder patterns
//   - Logging: log format and level
//   - Engine: training acknowledgment token
type Config struct {
	Paths     Paths     `toml:"paths"`
	LLM       LLM       `toml:"llm"`
	Plan      Plan      `toml:"plan"`
	Fragments Fragments `toml:"fragments"`
	Logging   Logging   `toml:"logging"`
	Engine    Engine    `toml:"engine"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("scenesmith.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the log directory and the ledger's parent directory.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir}
	if strings.TrimSpace(c.Paths.LedgerPath) != "" {
		dirs = append(dirs, filepath.Dir(c.Paths.LedgerPath))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LogFilePath returns the path of the persistent log file.
func (c *Config) LogFilePath() string {
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return ""
	}
	return filepath.Join(c.Paths.LogDir, "scenesmith.log")
}

// LLMTimeout returns the collaborator request timeout.
func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSeconds) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultDataDir() string {
	if base, ok := os.LookupEnv("XDG_DATA_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "scenesmith")
	}
	return "~/.local/share/scenesmith"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// SampleConfig returns the embedded sample configuration.
func SampleConfig() string {
	return sampleConfig
}

// LLMConfig contains the collaborator settings in the shape the client expects.
type LLMConfig struct {
	APIKey         string
	BaseURL        string
	Model          string
	Referer        string
	Title          string
	TimeoutSeconds int
	MaxRetries     int
}

// GetLLM returns the collaborator connection settings.
func (c *Config) GetLLM() LLMConfig {
	return LLMConfig{
		APIKey:         strings.TrimSpace(c.LLM.APIKey),
		BaseURL:        strings.TrimSpace(c.LLM.BaseURL),
		Model:          strings.TrimSpace(c.LLM.Model),
		Referer:        strings.TrimSpace(c.LLM.Referer),
		Title:          strings.TrimSpace(c.LLM.Title),
		TimeoutSeconds: c.LLM.TimeoutSeconds,
		MaxRetries:     c.LLM.MaxRetries,
	}
}
