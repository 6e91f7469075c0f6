package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"snipsense/internal/analysis"
	"snipsense/internal/config"
	"snipsense/internal/embedcache"
	"snipsense/internal/errors"
	"snipsense/internal/llmclient"
	"snipsense/internal/ops"
	"snipsense/internal/promptlog"
	"snipsense/internal/secret"
	"snipsense/internal/stats"
)

// dataDir resolves the data directory: SNIPSENSE_HOME or ~/.snipsense.
func dataDir() (string, error) {
	if dir := os.Getenv("SNIPSENSE_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".snipsense"), nil
}

// openEnv builds the operations environment over the data directory.
func openEnv() (*ops.Env, func(), error) {
	baseDir, err := dataDir()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(baseDir, 0700); err != nil {
		return nil, nil, fmt.Errorf("create data dir: %w", err)
	}

	cfg, err := config.Load(baseDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	statsStore, err := stats.Open(baseDir)
	if err != nil {
		return nil, nil, fmt.Errorf("open stats store: %w", err)
	}

	env := &ops.Env{
		Cfg:     cfg,
		DataDir: baseDir,
		Log:     promptlog.NewStore(baseDir),
		Stats:   statsStore,
		Secrets: secret.Default(baseDir),
	}
	env.Run = newPipelineRunner(env)

	cleanup := func() { statsStore.Close() }
	return env, cleanup, nil
}

// newPipelineRunner wires one analysis run: the LLM client is built from the
// stored credential per run, so a credential change needs no restart, and the
// data dir holds the cross-process run lock.
func newPipelineRunner(env *ops.Env) ops.RunnerFunc {
	return func(ctx context.Context) (*analysis.Result, error) {
		key, err := env.Secrets.Get()
		if err != nil {
			return nil, err
		}
		if key == "" {
			return nil, errors.NewMissingCredential()
		}

		client, err := llmclient.New(ctx, env.Cfg.Provider, key, env.Cfg.EmbedModel, env.Cfg.CompleteModel, env.Cfg.RequestsPerSecond)
		if err != nil {
			return nil, err
		}
		defer client.Close()

		cache := openCache(env.DataDir)
		if cache != nil {
			defer cache.Close()
		}

		runner := analysis.New(env.Log, client, cache, env.Stats, env.Cfg, env.DataDir)
		return runner.Run(ctx)
	}
}

// openCache opens the embedding cache. A broken cache degrades to uncached
// runs; it never fails the pipeline.
func openCache(dataDir string) *embedcache.Cache {
	cache, err := embedcache.Open(filepath.Join(dataDir, "embedcache.db"))
	if err != nil {
		log.Printf("embedcache: open failed, continuing uncached: %v", err)
		return nil
	}
	return cache
}
