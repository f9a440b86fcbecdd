package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/terrencegiggy/content-pipeline/internal/crawler"
	"github.com/terrencegiggy/content-pipeline/internal/crawlstate"
	"github.com/terrencegiggy/content-pipeline/internal/extract"
	"github.com/terrencegiggy/content-pipeline/internal/extract/llmextractor"
	"github.com/terrencegiggy/content-pipeline/internal/githubapi"
	"github.com/terrencegiggy/content-pipeline/internal/logging"
	"github.com/terrencegiggy/content-pipeline/internal/manifest"
	"github.com/terrencegiggy/content-pipeline/internal/monitor"
	"github.com/terrencegiggy/content-pipeline/internal/pipeline"
	"github.com/terrencegiggy/content-pipeline/internal/registry"
	"github.com/terrencegiggy/content-pipeline/internal/scheduler"
	"github.com/terrencegiggy/content-pipeline/internal/store"
	"go.uber.org/zap"
)

// wiredPipeline bundles every component a run needs, built once per
// invocation from cfg.
type wiredPipeline struct {
	backend  *store.Switchable
	github   *githubapi.Client
	registry *registry.Registry
	manifest *manifest.Manifest
	crawler  *crawler.Crawler
	runner   *pipeline.Runner
	extract  *extract.Driver
}

// wire builds every pipeline component against either the local
// filesystem backend or the GitHub-backed remote backend, chosen by
// githubapi.IsGitHubActions(), mirroring the teacher's own pattern of
// branching CLI behavior on its runtime environment.
func wire() (*wiredPipeline, error) {
	var initial store.Backend
	var gh *githubapi.Client

	if githubapi.IsGitHubActions() {
		client, err := githubapi.FromEnvironment()
		if err != nil {
			return nil, err
		}
		if client == nil {
			return nil, fmt.Errorf("GITHUB_ACTIONS is set but GITHUB_TOKEN/GITHUB_REPOSITORY are missing")
		}
		gh = client
		initial = store.NewRemote(gh, githubapi.WorkingRef())
	} else {
		local, err := store.NewLocal(cfg.StorageRoot)
		if err != nil {
			return nil, fmt.Errorf("open local store at %s: %w", cfg.StorageRoot, err)
		}
		initial = local
	}

	backend := store.NewSwitchable(initial)
	reg := registry.New(backend)
	mani := manifest.New(backend)
	crawlStates := crawlstate.New(backend)
	if cache, err := crawlstate.OpenCache(filepath.Join(cfg.StorageRoot, "crawl-state-cache.db")); err != nil {
		log.Warn("crawl-state cache unavailable, falling back to the backend on every load", zap.Error(err))
	} else {
		crawlStates = crawlStates.WithCache(cache)
	}
	mon := monitor.New(0)

	cw := crawler.New(crawler.Config{
		Backend:     backend,
		Manifest:    mani,
		CrawlStates: crawlStates,
		Politeness:  cfg.Politeness,
		UserAgent:   cfg.UserAgent,
	})

	runner := &pipeline.Runner{
		Registry:     reg,
		Monitor:      mon,
		Manifest:     mani,
		Crawler:      cw,
		Politeness:   cfg.Politeness,
		GitHub:       gh,
		Backend:      backend,
		DryRun:       cfg.DryRun,
		CreateIssues: cfg.CreateIssues,
		Log:          logging.Scope(log, logging.ComponentPipeline),
	}

	var driver *extract.Driver
	if cfg.Extraction.Provider == "genai" && cfg.Extraction.APIKey != "" {
		completer, err := llmextractor.NewGenAICompleter(context.Background(), cfg.Extraction.APIKey, cfg.Extraction.Model)
		if err != nil {
			return nil, fmt.Errorf("build extraction backend: %w", err)
		}
		driver = extract.New(mani, backend, llmextractor.New(completer), logging.Scope(log, logging.ComponentExtraction), nil)
	}

	return &wiredPipeline{
		backend:  backend,
		github:   gh,
		registry: reg,
		manifest: mani,
		crawler:  cw,
		runner:   runner,
		extract:  driver,
	}, nil
}

// schedulerFor builds a fresh DomainScheduler for a standalone status
// check outside a full pipeline run.
func schedulerFor() *scheduler.DomainScheduler {
	return scheduler.New(cfg.Politeness)
}
