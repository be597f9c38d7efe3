package voice

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	ErrCacheMissing = errors.New("voice cache index not found")
	ErrCacheInvalid = errors.New("voice cache index invalid")
)

// Config mirrors voice_config.yaml.
type Config struct {
	Service        string  `yaml:"service"`
	Voice          string  `yaml:"voice"`
	Model          string  `yaml:"model,omitempty"`
	Language       string  `yaml:"language,omitempty"`
	ReferenceAudio string  `yaml:"reference_audio,omitempty"`
	Speed          float64 `yaml:"speed,omitempty"`
}

// LoadConfig decodes and validates the voice config at path. Unknown keys
// are rejected.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read voice config: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return Config{}, errors.New("voice config is empty")
		}
		return Config{}, fmt.Errorf("decode voice config: %w", err)
	}
	cfg.Service = strings.ToLower(strings.TrimSpace(cfg.Service))
	cfg.Voice = strings.TrimSpace(cfg.Voice)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks required fields and ranges.
func (c Config) Validate() error {
	if c.Service == "" {
		return errors.New("voice config: service is required")
	}
	if c.Voice == "" && c.ReferenceAudio == "" {
		return errors.New("voice config: voice or reference_audio is required")
	}
	if c.Speed < 0 || c.Speed > 3 {
		return fmt.Errorf("voice config: speed %v outside [0, 3]", c.Speed)
	}
	return nil
}

// CacheIndex summarizes a voice cache index file.
type CacheIndex struct {
	Entries int
}

// ReadCacheIndex requires path to exist and hold a JSON object or array.
func ReadCacheIndex(path string) (CacheIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return CacheIndex{}, fmt.Errorf("%w: %s", ErrCacheMissing, path)
		}
		return CacheIndex{}, fmt.Errorf("read voice cache index: %w", err)
	}
	var decoded any
	if err := json.Unmarshal(data, &decoded); err != nil {
		return CacheIndex{}, fmt.Errorf("%w: %v", ErrCacheInvalid, err)
	}
	switch v := decoded.(type) {
	case map[string]any:
		return CacheIndex{Entries: len(v)}, nil
	case []any:
		return CacheIndex{Entries: len(v)}, nil
	default:
		return CacheIndex{}, fmt.Errorf("%w: expected object or array", ErrCacheInvalid)
	}
}
