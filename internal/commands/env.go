package commands

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/cleared-dev/journalrag/internal/accounts"
	"github.com/cleared-dev/journalrag/internal/config"
	"github.com/cleared-dev/journalrag/internal/logging"
	"github.com/cleared-dev/journalrag/internal/model"
	"github.com/cleared-dev/journalrag/internal/pipeline"
)

// env is a loaded project: its root, configuration and logger.
type env struct {
	repoRoot string
	cfg      *config.Config
	logger   *zap.Logger
}

func (o *rootOptions) load() (*env, error) {
	repoRoot, err := filepath.Abs(o.repo)
	if err != nil {
		return nil, fmt.Errorf("resolving path: %w", err)
	}
	path := o.configPath
	if path == "" {
		path = filepath.Join(repoRoot, config.FileName)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	return &env{repoRoot: repoRoot, cfg: cfg, logger: logger}, nil
}

func (e *env) close() {
	_ = e.logger.Sync()
}

func (e *env) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(e.repoRoot, path)
}

func (e *env) pipeline(ctx context.Context) (*pipeline.Pipeline, error) {
	return pipeline.New(ctx, e.cfg, e.logger, pipeline.Options{RepoRoot: e.repoRoot})
}

// chart reads the chart of accounts without embedding it.
func (e *env) chart() ([]model.COAEntry, error) {
	path := e.resolve(e.cfg.COA.Path)
	f, err := os.Open(path)
	if err != nil {
		return nil, &accounts.ParseError{Path: path, Err: err}
	}
	defer f.Close()

	entries, err := accounts.ParseLines(f)
	if err != nil {
		return nil, &accounts.ParseError{Path: path, Err: err}
	}
	return entries, nil
}
