package main

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"log/slog"

	"citelink/internal/actions"
	"citelink/internal/batch"
	"citelink/internal/config"
	"citelink/internal/content"
	"citelink/internal/llmextract"
	"citelink/internal/logging"
	"citelink/internal/notifications"
	"citelink/internal/pipeline"
	"citelink/internal/records"
	"citelink/internal/stages"
	"citelink/internal/state"
	"citelink/internal/zotero"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
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

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
		LogDir: cfg.Paths.LogDir,
	})
}

// withStore opens the record store for commands that only read or mutate
// records without running the pipeline.
func (c *commandContext) withStore(fn func(cfg *config.Config, store *records.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := records.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

// services bundles the wired processing components for a command invocation.
type services struct {
	cfg       *config.Config
	store     *records.Store
	machine   *state.Machine
	orch      *pipeline.Orchestrator
	actions   *actions.Service
	processor *batch.Processor
	notifier  notifications.Service
	logger    *slog.Logger
}

func (s *services) close() {
	if s.processor != nil {
		s.processor.Close()
	}
	if s.store != nil {
		s.store.Close()
	}
}

// withServices wires the full pipeline: store, state machine with the
// suggestion hook, reference client, stages, orchestrator, action service,
// and batch processor.
func (c *commandContext) withServices(fn func(*services) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.logger()
	if err != nil {
		return err
	}

	store, err := records.Open(cfg)
	if err != nil {
		return err
	}

	svcs := &services{cfg: cfg, store: store, logger: logger}
	defer func() { svcs.close() }()

	notifier := notifications.NewService(cfg)
	machine := state.NewMachine(store, logger)
	machine.OnTransition(notifications.TransitionHook(notifier, logger))

	zclient, err := zotero.New(cfg.Zotero)
	if err != nil {
		return fmt.Errorf("reference client: %w", err)
	}
	fetcher := content.NewFetcher(cfg)

	stageList := []pipeline.Stage{
		stages.NewLookup(zclient, store, logger),
		stages.NewScan(fetcher, store, logger),
	}
	if cfg.LLM.Enabled {
		extractor, err := llmextract.New(cfg.LLM)
		if err != nil {
			return fmt.Errorf("extraction client: %w", err)
		}
		stageList = append(stageList, stages.NewExtract(extractor, fetcher, store, cfg.LLM.MinConfidence, logger))
	}

	orch := pipeline.New(store, machine, stageList, logger,
		pipeline.WithStageTimeout(time.Duration(cfg.Batch.StageTimeoutSeconds)*time.Second),
		pipeline.WithExtractionEnabled(cfg.LLM.Enabled),
	)

	svcs.machine = machine
	svcs.orch = orch
	svcs.actions = actions.NewService(store, machine, zclient, logger)
	svcs.processor = batch.NewProcessor(cfg, store, orch, logger)
	svcs.notifier = notifier

	return fn(svcs)
}
