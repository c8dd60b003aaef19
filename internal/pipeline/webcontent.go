package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dogfriendly/venue-cli/internal/model"
	"github.com/dogfriendly/venue-cli/pkg/firecrawl"
)

// sourceSpec names an external source and the search query that finds the
// venue's page on it.
type sourceSpec struct {
	name  string
	query string
}

func sourceSpecs(venue *model.Venue) []sourceSpec {
	nc := venue.Name + " " + venue.City
	return []sourceSpec{
		{"instagram", nc + " site:instagram.com"},
		{"facebook", nc + " site:facebook.com"},
		{"tiktok", nc + " site:tiktok.com"},
		{"tripadvisor", nc + " site:tripadvisor.com"},
		{"opentable", nc + " site:opentable.com"},
		{"awards", nc + " restaurant awards"},
		{"michelin", nc + " site:guide.michelin.com"},
	}
}

// webFetch fans out scrapes of social, review and award sources plus the
// venue homepage, discovers and scrapes menu pages, and parses the menu.
// Individual source failures are recorded on the payload, never fatal.
func (p *Pipeline) webFetch(ctx context.Context, venue *model.Venue) (map[string]any, error) {
	specs := sourceSpecs(venue)
	pages := make([]model.SourcePage, len(specs)+1)

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(p.cfg.Pipeline.ScrapeConcurrency)

	for i, spec := range specs {
		g.Go(func() error {
			pages[i] = p.searchAndScrape(gCtx, spec)
			return nil
		})
	}

	homeIdx := len(specs)
	g.Go(func() error {
		pages[homeIdx] = model.SourcePage{Source: "homepage", URL: venue.Website}
		if venue.Website == "" {
			pages[homeIdx].Error = "no website on record"
			return nil
		}
		resp, err := p.firecrawl.Scrape(gCtx, firecrawl.ScrapeRequest{
			URL:     venue.Website,
			Formats: []string{"markdown", "html"},
		})
		if err != nil {
			pages[homeIdx].Error = err.Error()
			return nil
		}
		pages[homeIdx].Markdown = resp.Data.Markdown
		pages[homeIdx].HTML = resp.Data.HTML
		return nil
	})

	_ = g.Wait()

	content := &model.WebContent{Sources: pages}

	menuURLs, err := p.discoverMenuURLs(ctx, venue, content.SourceByName("homepage"))
	if err != nil {
		zap.L().Warn("pipeline: menu discovery failed", zap.String("venue", venue.Name), zap.Error(err))
	}
	if max := p.cfg.Pipeline.MaxMenuPages; len(menuURLs) > max {
		menuURLs = menuURLs[:max]
	}
	content.MenuURLs = menuURLs

	if len(menuURLs) > 0 {
		text, err := p.scrapeMenuPages(ctx, menuURLs)
		if err != nil {
			zap.L().Warn("pipeline: menu scrape failed", zap.String("venue", venue.Name), zap.Error(err))
		} else {
			content.MenuText = text
			content.Menu = ParseMenu(text)
		}
	}

	if err := p.savePayload(ctx, venue.ID, model.StageWebFetch, content); err != nil {
		return nil, err
	}

	okCount := 0
	for _, page := range pages {
		if page.Error == "" && (page.Markdown != "" || page.HTML != "") {
			okCount++
		}
	}
	meta := map[string]any{
		"sources_ok": okCount,
		"menu_urls":  len(menuURLs),
	}
	if content.Menu != nil {
		meta["menu_items"] = content.Menu.ItemCount()
	}
	if okCount == 0 {
		return meta, externalErr(model.StageWebFetch, eris.New("no web sources could be fetched"))
	}
	return meta, nil
}

// searchAndScrape finds the top search hit for a source and scrapes it.
func (p *Pipeline) searchAndScrape(ctx context.Context, spec sourceSpec) model.SourcePage {
	page := model.SourcePage{Source: spec.name}

	search, err := p.firecrawl.Search(ctx, firecrawl.SearchRequest{Query: spec.query, Limit: 1})
	if err != nil {
		page.Error = err.Error()
		return page
	}
	if len(search.Data) == 0 {
		page.Error = "no search results"
		return page
	}
	page.URL = search.Data[0].URL

	resp, err := p.firecrawl.Scrape(ctx, firecrawl.ScrapeRequest{
		URL:     page.URL,
		Formats: []string{"markdown"},
	})
	if err != nil {
		page.Error = err.Error()
		return page
	}
	page.Markdown = resp.Data.Markdown
	return page
}

// menuLinkKeywords flag a homepage link as pointing at a menu page.
var menuLinkKeywords = []string{"menu", "food", "eat", "dine", "dining", "carte", "lunch", "dinner", "brunch"}

// commonMenuPaths are tried against the venue's own site when search and
// homepage links both come up empty.
var commonMenuPaths = []string{"/menu", "/menus", "/food", "/eat", "/pages/menu", "/pages/lunch-menu"}

var (
	markdownLinkRe = regexp.MustCompile(`\[([^\]]*)\]\(([^)\s]+)`)
	htmlLinkRe     = regexp.MustCompile(`(?is)<a[^>]+href=["']([^"']+)["'][^>]*>(.*?)</a>`)
)

// discoverMenuURLs tries three strategies in order and returns the first
// non-empty URL set: web search, homepage link text, common site paths.
func (p *Pipeline) discoverMenuURLs(ctx context.Context, venue *model.Venue, homepage *model.SourcePage) ([]string, error) {
	search, err := p.firecrawl.Search(ctx, firecrawl.SearchRequest{
		Query: fmt.Sprintf("%s %s menu", venue.Name, venue.City),
		Limit: 3,
	})
	if err != nil {
		return nil, eris.Wrap(err, "pipeline: menu search")
	}
	var urls []string
	for _, hit := range search.Data {
		urls = append(urls, hit.URL)
	}
	if len(urls) > 0 {
		return urls, nil
	}

	if homepage != nil {
		if urls := menuLinksFromHomepage(homepage, venue.Website); len(urls) > 0 {
			return urls, nil
		}
	}

	if venue.Website == "" {
		return nil, nil
	}
	base, err := url.Parse(venue.Website)
	if err != nil {
		return nil, nil
	}
	urls = urls[:0]
	for _, path := range commonMenuPaths {
		candidate := *base
		candidate.Path = path
		urls = append(urls, candidate.String())
	}
	return urls, nil
}

// menuLinksFromHomepage extracts links whose text or href looks like a
// menu page, resolved against the site base URL.
func menuLinksFromHomepage(homepage *model.SourcePage, website string) []string {
	type link struct{ href, text string }
	var links []link
	for _, m := range markdownLinkRe.FindAllStringSubmatch(homepage.Markdown, -1) {
		links = append(links, link{href: m[2], text: m[1]})
	}
	for _, m := range htmlLinkRe.FindAllStringSubmatch(homepage.HTML, -1) {
		links = append(links, link{href: m[1], text: m[2]})
	}

	base, _ := url.Parse(website)
	seen := make(map[string]struct{})
	var urls []string
	for _, l := range links {
		haystack := strings.ToLower(l.text + " " + l.href)
		matched := false
		for _, kw := range menuLinkKeywords {
			if strings.Contains(haystack, kw) {
				matched = true
				break
			}
		}
		if !matched {
			continue
		}
		resolved := l.href
		if base != nil {
			if ref, err := url.Parse(l.href); err == nil {
				resolved = base.ResolveReference(ref).String()
			}
		}
		if _, ok := seen[resolved]; ok {
			continue
		}
		seen[resolved] = struct{}{}
		urls = append(urls, resolved)
	}
	return urls
}

// scrapeMenuPages batch-scrapes the menu URLs and concatenates their
// markdown in order.
func (p *Pipeline) scrapeMenuPages(ctx context.Context, urls []string) (string, error) {
	batch, err := p.firecrawl.BatchScrape(ctx, firecrawl.BatchScrapeRequest{
		URLs:    urls,
		Formats: []string{"markdown"},
	})
	if err != nil {
		return "", eris.Wrap(err, "pipeline: menu batch scrape")
	}

	status, err := firecrawl.PollBatchScrape(ctx, p.firecrawl, batch.ID)
	if err != nil {
		return "", eris.Wrap(err, "pipeline: menu batch poll")
	}

	var b strings.Builder
	for _, page := range status.Data {
		if page.Markdown == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(page.Markdown)
	}
	return b.String(), nil
}
