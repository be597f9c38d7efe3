package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"scenesmith/internal/config"
	"scenesmith/internal/ledger"
	"scenesmith/internal/logging"
	"scenesmith/internal/project"
	"scenesmith/internal/services"
	"scenesmith/internal/state"
	"scenesmith/internal/validate"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	projectFlag  *string

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
}

func newCommandContext(configFlag, logLevelFlag, projectFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		projectFlag:  projectFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "config", "load", "invalid configuration", err)
			return
		}
		if c.logLevelFlag != nil {
			if level := strings.ToLower(strings.TrimSpace(*c.logLevelFlag)); level != "" {
				cfg.Logging.Level = level
				if err := cfg.Validate(); err != nil {
					c.configErr = services.Wrap(services.ErrConfiguration, "config", "log level", "invalid --log-level", err)
					return
				}
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "config", "directories", "cannot create directories", err)
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// loggerValue builds the logger once. Failures fall back to a console
// logger so a bad log directory never blocks a command.
func (c *commandContext) loggerValue() *slog.Logger {
	c.loggerOnce.Do(func() {
		logger, err := logging.NewFromConfig(c.configValue())
		if err != nil {
			logger, _ = logging.New(logging.Options{Level: "info", Format: "console"})
			logging.WarnWithContext(logger, "log file unavailable", "logger_fallback",
				logging.Error(err),
				logging.String(logging.FieldImpact, "logs go to stderr only"),
			)
		}
		c.logger = logger
	})
	return c.logger
}

func (c *commandContext) layout() project.Layout {
	dir := "."
	if c.projectFlag != nil && strings.TrimSpace(*c.projectFlag) != "" {
		dir = strings.TrimSpace(*c.projectFlag)
	}
	if expanded, err := config.ExpandPath(dir); err == nil {
		dir = expanded
	}
	return project.NewLayout(dir)
}

func (c *commandContext) planBounds() validate.PlanBounds {
	cfg := c.configValue()
	if cfg == nil {
		return validate.DefaultPlanBounds()
	}
	return validate.PlanBounds{
		MinScenes:       cfg.Plan.MinScenes,
		MaxScenes:       cfg.Plan.MaxScenes,
		MinSceneSeconds: cfg.Plan.MinSceneSeconds,
		MaxSceneSeconds: cfg.Plan.MaxSceneSeconds,
		MinTotalSeconds: cfg.Plan.MinTotalSeconds,
		MaxTotalSeconds: cfg.Plan.MaxTotalSeconds,
	}
}

func (c *commandContext) fragmentRules() (validate.FragmentRules, error) {
	cfg := c.configValue()
	if cfg == nil {
		return validate.DefaultFragmentRules(), nil
	}
	rules, err := validate.NewFragmentRules(cfg.Fragments.FillerPhrases, cfg.Fragments.PlaceholderPatterns)
	if err != nil {
		return validate.FragmentRules{}, services.Wrap(services.ErrConfiguration, "config", "fragments", "invalid fragment rules", err)
	}
	return rules, nil
}

// session is one locked invocation against an initialized project.
type session struct {
	ctx       context.Context
	layout    project.Layout
	store     *state.Store
	lock      *project.Lock
	ledger    *ledger.Store
	logger    *slog.Logger
	requestID string
	command   string
}

// openSession takes the project lock and opens the ledger. The ledger is
// optional: when it cannot be opened the command still runs.
func (c *commandContext) openSession(cmd *cobra.Command) (*session, error) {
	layout := c.layout()
	if err := layout.Require(); err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "project", "open", "project directory unavailable", err)
	}
	store := state.NewStore(layout.StatePath(), time.Now)
	if !store.Exists() {
		return nil, services.Wrap(services.ErrConfiguration, "project", "open",
			fmt.Sprintf("%s has no %s; run scenesmith init first", layout.Root, project.StateFile), project.ErrMissingProject)
	}
	lock, err := project.Acquire(layout)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "project", "lock", "project busy", err)
	}

	requestID := uuid.NewString()
	ctx := services.WithRequestID(cmd.Context(), requestID)
	ctx = services.WithProject(ctx, store.Load().ProjectName)
	logger := c.loggerValue()

	s := &session{
		ctx:       ctx,
		layout:    layout,
		store:     store,
		lock:      lock,
		logger:    logger,
		requestID: requestID,
		command:   cmd.Name(),
	}
	if cfg := c.configValue(); cfg != nil {
		ledgerStore, err := ledger.Open(cfg.Paths.LedgerPath)
		if err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, logger), "ledger unavailable", "ledger_open_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "this attempt is not recorded in history"),
			)
		} else {
			s.ledger = ledgerStore
		}
	}
	return s, nil
}

func (s *session) Close() {
	if s.ledger != nil {
		_ = s.ledger.Close()
	}
	if err := s.lock.Release(); err != nil {
		logging.WarnWithContext(s.logger, "project lock not released", "lock_release_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "the lock file is released when this process exits"),
		)
	}
}

// record writes one ledger entry. Failures are logged.
func (s *session) record(requested string, before, after state.ProjectState, err error) {
	if s.ledger == nil {
		return
	}
	entry := ledger.Entry{
		ProjectDir:     s.layout.Root,
		ProjectName:    after.ProjectName,
		RequestID:      s.requestID,
		Command:        s.command,
		RequestedPhase: requested,
		FromPhase:      string(before.Phase),
		ToPhase:        string(after.Phase),
		SceneIndex:     after.CurrentSceneIndex,
		RunCount:       after.RunCount,
	}
	if err != nil {
		entry.ErrorKind = services.Kind(err)
		entry.Message = err.Error()
	}
	if _, recErr := s.ledger.Record(s.ctx, entry); recErr != nil {
		logging.WarnWithContext(logging.WithContext(s.ctx, s.logger), "ledger entry not recorded", "ledger_record_failed",
			logging.Error(recErr),
			logging.String(logging.FieldImpact, "history omits this attempt"),
		)
	}
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

func usageError(format string, args ...any) error {
	return services.Wrap(services.ErrConfiguration, "cli", "usage", fmt.Sprintf(format, args...), nil)
}
