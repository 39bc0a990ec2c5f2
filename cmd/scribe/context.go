package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"scribe/internal/blobstore"
	"scribe/internal/config"
	"scribe/internal/engine"
	"scribe/internal/logging"
	"scribe/internal/metasync"
	"scribe/internal/workflow"
)

// newEngine is swapped out by tests.
var newEngine = engine.New

type commandContext struct {
	configFlag *string
	verbose    *bool

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag *string, verbose *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		verbose:    verbose,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		if c.verbose != nil && *c.verbose {
			cfg.Logging.Level = "debug"
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromConfig(cfg)
}

// runtime bundles what job-running commands need.
type runtime struct {
	cfg    *config.Config
	logger *slog.Logger
	blobs  blobstore.Store
	runner *workflow.Runner
}

func (r *runtime) Close() error {
	return r.blobs.Close()
}

func (c *commandContext) openRuntime(withEngine bool) (*runtime, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.logger()
	if err != nil {
		return nil, err
	}
	blobs, err := blobstore.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open blob store: %w", err)
	}
	rt := &runtime{cfg: cfg, logger: logger, blobs: blobs}
	if withEngine {
		eng, err := newEngine(cfg)
		if err != nil {
			_ = blobs.Close()
			return nil, fmt.Errorf("configure engine: %w", err)
		}
		rt.runner = workflow.NewRunner(cfg, blobs, eng, logger)
	}
	return rt, nil
}

func (r *runtime) syncer() *metasync.Syncer {
	if r.runner != nil {
		return r.runner.Syncer()
	}
	return metasync.New(r.blobs, r.logger)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func folderOrDefault(folder string, cfg *config.Config) string {
	if folder = strings.Trim(strings.TrimSpace(folder), "/"); folder != "" {
		return folder
	}
	return cfg.Storage.AudioFolder
}
