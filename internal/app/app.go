package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/bdskit/ontomake/internal/config"
	"github.com/bdskit/ontomake/internal/ctxlog"
	"github.com/bdskit/ontomake/internal/metrics"
	"github.com/bdskit/ontomake/internal/ruleset"
)

// ErrNoTargets is returned when an invocation names no targets and the
// project declares no default ones either.
var ErrNoTargets = errors.New("no targets requested and the project declares no default targets")

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	BuildfilePath string // a single .hcl file or a directory of them

	LogFormat       string
	LogLevel        string
	Workers         int
	DryRun          bool
	AlwaysBuild     bool
	FlagOverrides   map[string]bool
	HealthcheckPort int
	Debounce        time.Duration
}

// NewConfig validates a Config and returns it ready for use.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.BuildfilePath == "" {
		return nil, errors.New("BuildfilePath is a required configuration field and cannot be empty")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	return &cfg, nil
}

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW    io.Writer
	cfg     *Config
	logger  *slog.Logger
	loader  config.Loader
	model   *config.Model
	eval    config.Evaluator
	table   *ruleset.Table
	metrics *metrics.Metrics

	serverOnce sync.Once
}

// New is the constructor for the main application. It loads the buildfile
// through the given loader and returns a fully initialized App instance
// with its own isolated logger and metrics registry.
func New(outW io.Writer, cfg *Config, loader config.Loader) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	model, eval, err := loader.Load(ctx, cfg.BuildfilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load buildfile: %w", err)
	}
	logger.Debug("Buildfile loaded and translated into the rule model.",
		"tools", len(model.Tools), "rules", len(model.Rules))

	return &App{
		outW:    outW,
		cfg:     cfg,
		logger:  logger,
		loader:  loader,
		model:   model,
		eval:    eval,
		table:   ruleset.New(model),
		metrics: metrics.New(),
	}, nil
}

// Model returns the loaded rule model. This is primarily for testing.
func (a *App) Model() *config.Model {
	return a.model
}

// reload re-reads the buildfile and swaps in the fresh model and rule
// table. Watch mode calls this when a buildfile itself changes.
func (a *App) reload(ctx context.Context) error {
	model, eval, err := a.loader.Load(ctx, a.cfg.BuildfilePath)
	if err != nil {
		return err
	}
	a.model, a.eval, a.table = model, eval, ruleset.New(model)
	a.logger.Info("Buildfile reloaded.", "rules", len(model.Rules))
	return nil
}

// resolveTargets falls back to the project's declared default targets when
// the invocation named none.
func (a *App) resolveTargets(targets []string) ([]string, error) {
	if len(targets) > 0 {
		return targets, nil
	}
	if len(a.model.Project.Default) > 0 {
		return a.model.Project.Default, nil
	}
	return nil, ErrNoTargets
}
