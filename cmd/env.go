package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/dogfriendly/venue-cli/internal/pipeline"
	"github.com/dogfriendly/venue-cli/internal/store"
	anthropicpkg "github.com/dogfriendly/venue-cli/pkg/anthropic"
	"github.com/dogfriendly/venue-cli/pkg/apify"
	"github.com/dogfriendly/venue-cli/pkg/firecrawl"
	storagepkg "github.com/dogfriendly/venue-cli/pkg/storage"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "venues.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// pipelineEnv bundles the store and pipeline a command needs, with a
// single Close.
type pipelineEnv struct {
	Store    store.Store
	Pipeline *pipeline.Pipeline
}

func (e *pipelineEnv) Close() {
	if e.Store != nil {
		e.Store.Close() //nolint:errcheck
	}
}

func initPipeline(ctx context.Context) (*pipelineEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "migrate store")
	}

	apifyClient := apify.NewClient(cfg.Apify.Key, apify.WithBaseURL(cfg.Apify.BaseURL))
	firecrawlClient := firecrawl.NewClient(cfg.Firecrawl.Key, firecrawl.WithBaseURL(cfg.Firecrawl.BaseURL))
	anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key)
	storageClient := storagepkg.NewClient(cfg.Storage.BaseURL, cfg.Storage.Key, cfg.Storage.Bucket)

	return &pipelineEnv{
		Store:    st,
		Pipeline: pipeline.New(cfg, st, apifyClient, firecrawlClient, anthropicClient, storageClient),
	}, nil
}
