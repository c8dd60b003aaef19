package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dogfriendly/venue-cli/internal/model"
	"github.com/dogfriendly/venue-cli/pkg/firecrawl"
)

func TestMenuLinksFromHomepage(t *testing.T) {
	home := &model.SourcePage{
		Source:   "homepage",
		Markdown: "[Our Menu](/menu) [Contact](/contact) [Sunday Lunch](https://example.com/lunch)",
		HTML:     `<a href="/menu">Our Menu</a><a href="/about">About us</a>`,
	}

	urls := menuLinksFromHomepage(home, "https://example.com")
	require.Len(t, urls, 2)
	assert.Equal(t, "https://example.com/menu", urls[0])
	assert.Equal(t, "https://example.com/lunch", urls[1])
}

func TestMenuLinksFromHomepage_KeywordInHrefOnly(t *testing.T) {
	home := &model.SourcePage{
		Source:   "homepage",
		Markdown: "[Click here](/food-and-drink)",
	}
	urls := menuLinksFromHomepage(home, "https://example.com")
	require.Len(t, urls, 1)
	assert.Equal(t, "https://example.com/food-and-drink", urls[0])
}

func TestDiscoverMenuURLs_SearchWins(t *testing.T) {
	fc := new(mockFirecrawlClient)
	fc.On("Search", mock.Anything, mock.Anything).Return(&firecrawl.SearchResponse{
		Success: true,
		Data:    []firecrawl.SearchResult{{URL: "https://example.com/menus/spring"}},
	}, nil)

	p := New(testConfig(t), newTestStore(t), &StubApifyClient{}, fc, &StubAnthropicClient{}, &StubStorageClient{})
	venue := &model.Venue{Name: "The Spaniards Inn", City: "London", Website: "https://example.com"}
	home := &model.SourcePage{Source: "homepage", Markdown: "[Menu](/menu)"}

	urls, err := p.discoverMenuURLs(context.Background(), venue, home)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/menus/spring"}, urls)
}

func TestDiscoverMenuURLs_FallsBackToHomepageLinks(t *testing.T) {
	fc := new(mockFirecrawlClient)
	fc.On("Search", mock.Anything, mock.Anything).Return(&firecrawl.SearchResponse{Success: true}, nil)

	p := New(testConfig(t), newTestStore(t), &StubApifyClient{}, fc, &StubAnthropicClient{}, &StubStorageClient{})
	venue := &model.Venue{Name: "The Spaniards Inn", City: "London", Website: "https://example.com"}
	home := &model.SourcePage{Source: "homepage", Markdown: "[See our menu](/menu)"}

	urls, err := p.discoverMenuURLs(context.Background(), venue, home)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://example.com/menu"}, urls)
}

func TestDiscoverMenuURLs_CommonPathsAreLastResort(t *testing.T) {
	fc := new(mockFirecrawlClient)
	fc.On("Search", mock.Anything, mock.Anything).Return(&firecrawl.SearchResponse{Success: true}, nil)

	p := New(testConfig(t), newTestStore(t), &StubApifyClient{}, fc, &StubAnthropicClient{}, &StubStorageClient{})
	venue := &model.Venue{Name: "The Spaniards Inn", City: "London", Website: "https://example.com"}

	urls, err := p.discoverMenuURLs(context.Background(), venue, nil)
	require.NoError(t, err)
	require.NotEmpty(t, urls)
	assert.Equal(t, "https://example.com/menu", urls[0])
	assert.Contains(t, urls, "https://example.com/pages/menu")
}

func TestWebFetch_SourceFailuresAreIsolated(t *testing.T) {
	fc := new(mockFirecrawlClient)
	fc.On("Search", mock.Anything, mock.Anything).Return(nil, errors.New("search down"))
	fc.On("Scrape", mock.Anything, mock.Anything).Return(&firecrawl.ScrapeResponse{
		Success: true,
		Data:    firecrawl.PageData{Markdown: "Welcome to The Spaniards Inn"},
	}, nil)

	ctx := context.Background()
	p := New(testConfig(t), newTestStore(t), &StubApifyClient{}, fc, &StubAnthropicClient{}, &StubStorageClient{})
	venue, err := p.store.CreateVenue(ctx, model.Venue{
		Name: "The Spaniards Inn", City: "London", Website: "https://example.com",
	})
	require.NoError(t, err)

	meta, err := p.webFetch(ctx, venue)
	require.NoError(t, err)
	assert.Equal(t, 1, meta["sources_ok"])

	var web model.WebContent
	ok, err := p.loadPayload(ctx, venue.ID, model.StageWebFetch, &web)
	require.NoError(t, err)
	require.True(t, ok)

	home := web.SourceByName("homepage")
	require.NotNil(t, home)
	assert.Empty(t, home.Error)
	insta := web.SourceByName("instagram")
	require.NotNil(t, insta)
	assert.Contains(t, insta.Error, "search down")
}

func TestWebFetch_NothingFetchedIsStageError(t *testing.T) {
	fc := new(mockFirecrawlClient)
	fc.On("Search", mock.Anything, mock.Anything).Return(nil, errors.New("search down"))

	ctx := context.Background()
	p := New(testConfig(t), newTestStore(t), &StubApifyClient{}, fc, &StubAnthropicClient{}, &StubStorageClient{})
	venue, err := p.store.CreateVenue(ctx, model.Venue{Name: "The Spaniards Inn", City: "London"})
	require.NoError(t, err)

	_, err = p.webFetch(ctx, venue)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, model.StageWebFetch, stageErr.Stage)
	assert.Equal(t, model.ErrorKindExternalCall, stageErr.Kind)
}

func TestWebFetch_ParsesDiscoveredMenu(t *testing.T) {
	fc := new(mockFirecrawlClient)
	menuSearch := firecrawl.SearchRequest{Query: "The Spaniards Inn London menu", Limit: 3}
	fc.On("Search", mock.Anything, menuSearch).Return(&firecrawl.SearchResponse{
		Success: true,
		Data:    []firecrawl.SearchResult{{URL: "https://example.com/menu"}},
	}, nil)
	fc.On("Search", mock.Anything, mock.Anything).Return(nil, errors.New("search down"))
	fc.On("Scrape", mock.Anything, mock.Anything).Return(&firecrawl.ScrapeResponse{
		Success: true,
		Data:    firecrawl.PageData{Markdown: "Welcome"},
	}, nil)
	fc.On("BatchScrape", mock.Anything, mock.Anything).Return(&firecrawl.BatchScrapeResponse{
		Success: true, ID: "batch-1",
	}, nil)
	fc.On("GetBatchScrapeStatus", mock.Anything, "batch-1").Return(&firecrawl.BatchScrapeStatusResponse{
		Status: "completed",
		Data: []firecrawl.PageData{{
			Markdown: "STARTERS\nSoup of the day\n£6.50\nMAINS\nFish and chips - £16",
		}},
	}, nil)

	ctx := context.Background()
	p := New(testConfig(t), newTestStore(t), &StubApifyClient{}, fc, &StubAnthropicClient{}, &StubStorageClient{})
	venue, err := p.store.CreateVenue(ctx, model.Venue{
		Name: "The Spaniards Inn", City: "London", Website: "https://example.com",
	})
	require.NoError(t, err)

	meta, err := p.webFetch(ctx, venue)
	require.NoError(t, err)
	assert.Equal(t, 1, meta["menu_urls"])
	assert.Equal(t, 2, meta["menu_items"])

	var web model.WebContent
	ok, err := p.loadPayload(ctx, venue.ID, model.StageWebFetch, &web)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, web.Menu)
	assert.Equal(t, "Starters", web.Menu.Sections[0].Name)
}
