package pipeline

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/dogfriendly/venue-cli/internal/model"
	"github.com/dogfriendly/venue-cli/pkg/apify"
)

// imageSearchItem is one result from the google-images actor.
type imageSearchItem struct {
	Title        string `json:"title"`
	ImageURL     string `json:"imageUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
	Width        int    `json:"imageWidth"`
	Height       int    `json:"imageHeight"`
	ContentURL   string `json:"contentUrl"`
	Origin       string `json:"origin"`
}

// harvestImages collects image candidates from Google Images and the
// venue's own website, gates out unusable ones, scores the rest and keeps
// the top ranked set as the stage payload.
func (p *Pipeline) harvestImages(ctx context.Context, venue *model.Venue) (map[string]any, error) {
	var biz model.BusinessData
	ok, err := p.loadPayload(ctx, venue.ID, model.StageBusinessFetch, &biz)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, validationErr(model.StageHarvestImages, eris.New("business payload missing; run business_fetch first"))
	}
	address := biz.Address
	if address == "" {
		address = venue.Address
	}

	// Each source contributes independently. A failed search still leaves
	// the own-website candidates in play.
	searched, searchErr := p.searchImages(ctx, venue.Name+" "+address)
	if searchErr != nil {
		zap.L().Warn("image search failed, continuing with website candidates only",
			zap.String("venue_id", venue.ID), zap.Error(searchErr))
		searched = nil
	}

	candidates := searched
	var web model.WebContent
	if ok, err := p.loadPayload(ctx, venue.ID, model.StageWebFetch, &web); err == nil && ok {
		if home := web.SourceByName("homepage"); home != nil {
			candidates = append(candidates, websiteImages(home, venue)...)
		}
	}
	if len(candidates) == 0 && searchErr != nil {
		return nil, externalErr(model.StageHarvestImages, searchErr)
	}

	candidates = dedupeCandidates(candidates)

	website := biz.Website
	if website == "" {
		website = venue.Website
	}
	kept := make([]model.ImageCandidate, 0, len(candidates))
	gated := 0
	for _, c := range candidates {
		if reasons := p.gateCandidate(c); len(reasons) > 0 {
			gated++
			continue
		}
		scoreCandidate(&c, venue, website)
		kept = append(kept, c)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Score != kept[j].Score {
			return kept[i].Score > kept[j].Score
		}
		return kept[i].Breakdown["source"] > kept[j].Breakdown["source"]
	})
	if max := p.cfg.Scoring.MaxCandidates; len(kept) > max {
		kept = kept[:max]
	}

	if err := p.savePayload(ctx, venue.ID, model.StageHarvestImages, kept); err != nil {
		return nil, err
	}
	meta := map[string]any{
		"harvested": len(candidates),
		"gated_out": gated,
		"kept":      len(kept),
	}
	if searchErr != nil {
		meta["search_error"] = searchErr.Error()
	}
	return meta, nil
}

// searchImages runs the image-search actor and maps its dataset.
func (p *Pipeline) searchImages(ctx context.Context, query string) ([]model.ImageCandidate, error) {
	run, err := p.apify.RunActor(ctx, p.cfg.Apify.ImageSearchActor, map[string]any{
		"queries":            []string{query},
		"maxResultsPerQuery": p.cfg.Images.MaxPerQuery,
	})
	if err != nil {
		return nil, eris.Wrap(err, "image actor start")
	}
	run, err = apify.PollRun(ctx, p.apify, run.ID,
		apify.WithPollTimeout(time.Duration(p.cfg.Apify.PollTimeoutSecs)*time.Second))
	if err != nil {
		return nil, eris.Wrap(err, "image actor poll")
	}

	var items []imageSearchItem
	if err := p.apify.GetDatasetItems(ctx, run.DefaultDatasetID, &items); err != nil {
		return nil, eris.Wrap(err, "image dataset")
	}

	candidates := make([]model.ImageCandidate, 0, len(items))
	for _, item := range items {
		candidates = append(candidates, model.ImageCandidate{
			URL:        item.ImageURL,
			Thumbnail:  item.ThumbnailURL,
			Width:      item.Width,
			Height:     item.Height,
			Title:      item.Title,
			ContentURL: item.ContentURL,
			Origin:     item.Origin,
			Source:     "google_images",
		})
	}
	return candidates, nil
}

var (
	markdownImageRe = regexp.MustCompile(`!\[[^\]]*\]\(([^)\s]+)`)
	htmlImageRe     = regexp.MustCompile(`(?i)<img[^>]+src=["']([^"']+)["']`)
)

// websiteImages extracts image URLs from the homepage scrape. Dimensions
// are unknown at this point, so a typical photo size is assumed and the
// finalizer verifies the real bytes later.
func websiteImages(home *model.SourcePage, venue *model.Venue) []model.ImageCandidate {
	var srcs []string
	for _, m := range markdownImageRe.FindAllStringSubmatch(home.Markdown, -1) {
		srcs = append(srcs, m[1])
	}
	for _, m := range htmlImageRe.FindAllStringSubmatch(home.HTML, -1) {
		srcs = append(srcs, m[1])
	}

	base, _ := url.Parse(venue.Website)
	origin := ""
	if base != nil {
		origin = base.Hostname()
	}

	var out []model.ImageCandidate
	for _, src := range srcs {
		lower := strings.ToLower(src)
		if strings.HasSuffix(lower, ".svg") || strings.Contains(lower, "logo") || strings.Contains(lower, "icon") {
			continue
		}
		resolved := src
		if base != nil {
			if ref, err := url.Parse(src); err == nil {
				resolved = base.ResolveReference(ref).String()
			}
		}
		out = append(out, model.ImageCandidate{
			URL:        resolved,
			Width:      800,
			Height:     600,
			Title:      fmt.Sprintf("From %s website", venue.Name),
			ContentURL: venue.Website,
			Origin:     origin,
			Source:     "website",
		})
	}
	return out
}

// dedupeCandidates drops URL duplicates, ignoring query and fragment and
// letter case, keeping the first occurrence.
func dedupeCandidates(candidates []model.ImageCandidate) []model.ImageCandidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]model.ImageCandidate, 0, len(candidates))
	for _, c := range candidates {
		key := strings.ToLower(c.URL)
		if u, err := url.Parse(c.URL); err == nil {
			u.RawQuery = ""
			u.Fragment = ""
			key = strings.ToLower(u.String())
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

// gateCandidate returns the exclusion reasons for a candidate, or nil if
// it may be scored. Gated candidates never receive a score.
func (p *Pipeline) gateCandidate(c model.ImageCandidate) []string {
	var reasons []string
	lower := strings.ToLower(c.URL)
	titleLower := strings.ToLower(c.Title)
	contentLower := strings.ToLower(c.ContentURL)
	originLower := strings.ToLower(c.Origin)

	if c.URL == "" || c.Width <= 0 || c.Height <= 0 {
		return []string{"missing url or dimensions"}
	}
	if strings.Contains(lower, "encrypted-tbn") {
		reasons = append(reasons, "search thumbnail")
	}
	if c.Width < p.cfg.Scoring.MinDimension || c.Height < p.cfg.Scoring.MinDimension {
		reasons = append(reasons, "below minimum dimension")
	}
	if c.Width*c.Height < p.cfg.Scoring.MinPixels {
		reasons = append(reasons, "below minimum area")
	}
	if strings.Contains(lower, "profile") || strings.Contains(lower, "avatar") {
		reasons = append(reasons, "profile picture")
	}
	if strings.Contains(lower, "logo") || strings.Contains(lower, "icon") ||
		strings.Contains(lower, "favicon") || strings.Contains(lower, "plus.png") {
		reasons = append(reasons, "logo or icon")
	}
	if strings.Contains(lower, "-map.") || strings.Contains(lower, "_map.") || strings.Contains(lower, "/map.") ||
		(strings.Contains(titleLower, "map") && strings.Contains(titleLower, "location")) {
		reasons = append(reasons, "map image")
	}
	if strings.Contains(originLower, "youtube") || strings.Contains(originLower, "tiktok") ||
		strings.Contains(contentLower, "/reel/") || strings.Contains(contentLower, "/video/") ||
		strings.Contains(contentLower, "/watch?v=") {
		reasons = append(reasons, "video content")
	}
	if strings.Contains(titleLower, "restaurants in") || strings.Contains(titleLower, "best restaurants") ||
		strings.Contains(titleLower, "top restaurants") || strings.Contains(contentLower, "guide.michelin.com") {
		reasons = append(reasons, "generic guide image")
	}
	if strings.Contains(titleLower, "404") || strings.Contains(titleLower, "not found") || strings.Contains(titleLower, "error") {
		reasons = append(reasons, "error page")
	}
	ratio := float64(c.Width) / float64(c.Height)
	if ratio < p.cfg.Scoring.MinAspectRatio || ratio > p.cfg.Scoring.MaxAspectRatio {
		reasons = append(reasons, "bad aspect ratio")
	}
	return reasons
}

// sourceAuthority maps hosting domains to an authority score out of 25.
var sourceAuthority = []struct {
	domains []string
	score   int
}{
	{[]string{"opentable"}, 20},
	{[]string{"tripadvisor"}, 18},
	{[]string{"timeout", "hot-dinners", "hardens", "squaremeal"}, 16},
	{[]string{"designboom", "dexigner", "archello"}, 14},
	{[]string{"thehungryhuy", "eater", "seriouseats"}, 12},
	{[]string{"instagram", "cdninstagram"}, 10},
}

var relevanceKeywords = []string{"food", "dish", "menu", "dining", "restaurant", "kitchen", "interior", "ambiance"}

// scoreCandidate fills in Score, Quality and the per-band Breakdown.
// Bands: size 0-30, ratio 0-15, source 0-25, content 0-20, type 0-10.
func scoreCandidate(c *model.ImageCandidate, venue *model.Venue, website string) {
	breakdown := make(map[string]int, 5)

	area := c.Width * c.Height
	switch {
	case area >= 2_000_000:
		breakdown["size"] = 30
	case area >= 1_000_000:
		breakdown["size"] = 25
	case area >= 500_000:
		breakdown["size"] = 20
	case area >= 200_000:
		breakdown["size"] = 15
	default:
		breakdown["size"] = 10
	}

	ratio := float64(c.Width) / float64(c.Height)
	switch {
	case ratio >= 0.8 && ratio <= 1.5:
		breakdown["ratio"] = 15
	case ratio >= 0.6 && ratio <= 2.0:
		breakdown["ratio"] = 10
	default:
		breakdown["ratio"] = 5
	}

	breakdown["source"] = 5
	c.Quality = "standard"
	haystack := strings.ToLower(c.URL + " " + c.Origin + " " + c.ContentURL)
	if ownDomain := websiteDomain(website); ownDomain != "" && strings.Contains(haystack, ownDomain) {
		breakdown["source"] = 25
		c.Quality = "high"
		c.Source = "website"
	} else {
		for _, tier := range sourceAuthority {
			matched := false
			for _, d := range tier.domains {
				if strings.Contains(haystack, d) {
					matched = true
					break
				}
			}
			if matched {
				breakdown["source"] = tier.score
				break
			}
		}
	}

	titleLower := strings.ToLower(c.Title)
	contentLower := strings.ToLower(c.ContentURL)
	inTitle, inContent := false, false
	for _, word := range strings.Fields(strings.ToLower(venue.Name)) {
		if len(word) <= 3 {
			continue
		}
		if strings.Contains(titleLower, word) {
			inTitle = true
		}
		if strings.Contains(contentLower, word) {
			inContent = true
		}
	}
	switch {
	case inTitle && inContent:
		breakdown["content"] = 15
	case inTitle || inContent:
		breakdown["content"] = 10
	}
	for _, kw := range relevanceKeywords {
		if strings.Contains(titleLower, kw) {
			breakdown["content"] += 5
			break
		}
	}

	switch {
	case strings.Contains(titleLower, "interior") || strings.Contains(titleLower, "ambiance") || strings.Contains(titleLower, "decor"):
		breakdown["type"] = 10
	case strings.Contains(titleLower, "food") || strings.Contains(titleLower, "dish") || strings.Contains(titleLower, "plate"):
		breakdown["type"] = 9
	case strings.Contains(titleLower, "exterior") || strings.Contains(titleLower, "facade") || strings.Contains(titleLower, "entrance"):
		breakdown["type"] = 8
	default:
		breakdown["type"] = 5
	}

	total := 0
	for _, v := range breakdown {
		total += v
	}
	c.Score = total
	c.Breakdown = breakdown
}

func websiteDomain(website string) string {
	if website == "" {
		return ""
	}
	u, err := url.Parse(website)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
