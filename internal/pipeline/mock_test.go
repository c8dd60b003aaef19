package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dogfriendly/venue-cli/pkg/anthropic"
	"github.com/dogfriendly/venue-cli/pkg/apify"
	"github.com/dogfriendly/venue-cli/pkg/firecrawl"
)

// --- Apify Mock ---

type mockApifyClient struct {
	mock.Mock
}

func (m *mockApifyClient) RunActor(ctx context.Context, actorID string, input any) (*apify.Run, error) {
	args := m.Called(ctx, actorID, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apify.Run), args.Error(1)
}

func (m *mockApifyClient) GetRun(ctx context.Context, runID string) (*apify.Run, error) {
	args := m.Called(ctx, runID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*apify.Run), args.Error(1)
}

func (m *mockApifyClient) GetDatasetItems(ctx context.Context, datasetID string, out any) error {
	args := m.Called(ctx, datasetID, out)
	return args.Error(0)
}

// --- Firecrawl Mock ---

type mockFirecrawlClient struct {
	mock.Mock
}

func (m *mockFirecrawlClient) Scrape(ctx context.Context, req firecrawl.ScrapeRequest) (*firecrawl.ScrapeResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*firecrawl.ScrapeResponse), args.Error(1)
}

func (m *mockFirecrawlClient) BatchScrape(ctx context.Context, req firecrawl.BatchScrapeRequest) (*firecrawl.BatchScrapeResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*firecrawl.BatchScrapeResponse), args.Error(1)
}

func (m *mockFirecrawlClient) GetBatchScrapeStatus(ctx context.Context, id string) (*firecrawl.BatchScrapeStatusResponse, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*firecrawl.BatchScrapeStatusResponse), args.Error(1)
}

func (m *mockFirecrawlClient) Search(ctx context.Context, req firecrawl.SearchRequest) (*firecrawl.SearchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*firecrawl.SearchResponse), args.Error(1)
}

// --- Anthropic Mock ---

type mockAnthropicClient struct {
	mock.Mock
}

func (m *mockAnthropicClient) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}
