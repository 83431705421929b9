package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"carbonscan/internal/analyze"
	"carbonscan/internal/config"
	"carbonscan/internal/download"
	"carbonscan/internal/extract"
	"carbonscan/internal/logging"
	"carbonscan/internal/pipeline"
	"carbonscan/internal/projectstore"
	"carbonscan/internal/runstate"
	"carbonscan/internal/search"
)

const defaultProjectID = "default"

type commandContext struct {
	configFlag  *string
	projectFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, projectFlag *string) *commandContext {
	return &commandContext{
		configFlag:  configFlag,
		projectFlag: projectFlag,
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
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) projectID() string {
	if c.projectFlag != nil {
		if id := strings.TrimSpace(*c.projectFlag); id != "" {
			return id
		}
	}
	return defaultProjectID
}

// session bundles everything a command needs against one open project: the
// loaded run state, the project database holding it, and a runner wired with
// the real stage services.
type session struct {
	cfg     *config.Config
	logger  *slog.Logger
	project *projectstore.Store
	store   *runstate.Store
	runner  *pipeline.Runner
}

// withSession opens the project, runs fn, and flushes and closes everything
// on the way out. The project lock is held for the duration.
func (c *commandContext) withSession(cmd *cobra.Command, fn func(ctx context.Context, sess *session) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	sess, err := openSession(ctx, cfg, c.projectID())
	if err != nil {
		return err
	}
	defer sess.close(ctx)
	return fn(ctx, sess)
}

func openSession(ctx context.Context, cfg *config.Config, projectID string) (*session, error) {
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
		LogDir: cfg.Paths.LogDir,
	})
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}

	project, err := projectstore.Open(cfg)
	if err != nil {
		return nil, err
	}
	store, err := runstate.Load(ctx, runstate.StoreOptions{
		Persister: project,
		ProjectID: projectID,
		Debounce:  time.Duration(cfg.Store.DebounceMillis) * time.Millisecond,
		Logger:    logger,
	})
	if err != nil {
		_ = project.Close()
		return nil, err
	}

	runner, err := buildRunner(cfg, store, logger)
	if err != nil {
		_ = store.Close(ctx)
		_ = project.Close()
		return nil, err
	}

	return &session{
		cfg:     cfg,
		logger:  logger,
		project: project,
		store:   store,
		runner:  runner,
	}, nil
}

// buildRunner wires the stage services, honoring per-run setting overrides
// for the filter keywords and the analysis model.
func buildRunner(cfg *config.Config, store *runstate.Store, logger *slog.Logger) (*pipeline.Runner, error) {
	var settings runstate.Settings
	store.View(func(state *runstate.RunState) {
		settings = state.Settings
	})

	runCfg := *cfg
	if settings.AnalysisModel != "" {
		runCfg.LLM.Model = settings.AnalysisModel
	}

	filter, err := extract.NewFilter(&runCfg, logger)
	if err != nil {
		return nil, err
	}
	if len(settings.Keywords) > 0 {
		filter, err = filter.WithKeywords(settings.Keywords)
		if err != nil {
			return nil, err
		}
	}

	collab := pipeline.Collaborators{
		Finder:    search.NewFinder(&runCfg, nil, logger),
		Fetcher:   download.New(&runCfg, nil, logger),
		Extractor: extract.NewExtractor(&runCfg, logger),
		Filter:    filter,
		Analyzer:  analyze.New(&runCfg, logger),
	}
	return pipeline.NewRunner(store, collab, logger), nil
}

func (s *session) close(ctx context.Context) {
	if err := s.store.Close(ctx); err != nil {
		s.logger.Warn("close run state", logging.Error(err))
	}
	if err := s.project.Close(); err != nil {
		s.logger.Warn("close project store", logging.Error(err))
	}
}
