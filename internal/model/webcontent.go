package model

// SourcePage is one scraped source from the web fetch fan-out.
type SourcePage struct {
	Source   string `json:"source"`
	URL      string `json:"url"`
	Markdown string `json:"markdown,omitempty"`
	HTML     string `json:"html,omitempty"`
	Error    string `json:"error,omitempty"`
}

// WebContent is the web_fetch stage payload: every source scrape plus the
// discovered menu pages and the parsed menu.
type WebContent struct {
	Sources  []SourcePage `json:"sources"`
	MenuURLs []string     `json:"menu_urls,omitempty"`
	MenuText string       `json:"menu_text,omitempty"`
	Menu     *Menu        `json:"menu,omitempty"`
}

// SourceByName returns the named source page, or nil.
func (w *WebContent) SourceByName(name string) *SourcePage {
	for i := range w.Sources {
		if w.Sources[i].Source == name {
			return &w.Sources[i]
		}
	}
	return nil
}
