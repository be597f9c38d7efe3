package config

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePlan(); err != nil {
		return err
	}
	if err := c.validateFragments(); err != nil {
		return err
	}
	if err := c.validateLLM(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	if strings.TrimSpace(c.Engine.AckToken) == "" {
		return errors.New("engine.ack_token must be set")
	}
	return nil
}

// ValidateLLM reports whether collaborator calls can be made. Only the
// generate command needs an API key, so Validate does not require one.
func (c *Config) ValidateLLM() error {
	if strings.TrimSpace(c.LLM.APIKey) != "" {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return fmt.Errorf("llm.api_key is required. Set SCENESMITH_LLM_API_KEY or OPENROUTER_API_KEY, or edit %s (create with 'scenesmith config init')", defaultPath)
}

func (c *Config) validatePlan() error {
	p := c.Plan
	if p.MinScenes <= 0 {
		return errors.New("plan.min_scenes must be positive")
	}
	if p.MaxScenes < p.MinScenes {
		return errors.New("plan.max_scenes must be >= plan.min_scenes")
	}
	if p.MinSceneSeconds <= 0 {
		return errors.New("plan.min_scene_seconds must be positive")
	}
	if p.MaxSceneSeconds < p.MinSceneSeconds {
		return errors.New("plan.max_scene_seconds must be >= plan.min_scene_seconds")
	}
	if p.MinTotalSeconds <= 0 {
		return errors.New("plan.min_total_seconds must be positive")
	}
	if p.MaxTotalSeconds < p.MinTotalSeconds {
		return errors.New("plan.max_total_seconds must be >= plan.min_total_seconds")
	}
	return nil
}

func (c *Config) validateFragments() error {
	for _, pattern := range c.Fragments.PlaceholderPatterns {
		if _, err := regexp.Compile(pattern); err != nil {
			return fmt.Errorf("fragments.placeholder_patterns: invalid pattern %q: %w", pattern, err)
		}
	}
	return nil
}

func (c *Config) validateLLM() error {
	if c.LLM.TimeoutSeconds <= 0 {
		return errors.New("llm.timeout_seconds must be positive")
	}
	if c.LLM.MaxRetries < 0 {
		return errors.New("llm.max_retries must be >= 0")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
}
