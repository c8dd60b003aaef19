package pipeline

import (
	_ "embed"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/dogfriendly/venue-cli/internal/model"
)

//go:embed menu_keywords.yaml
var menuKeywordsYAML []byte

var sectionKeywords = mustLoadSectionKeywords()

func mustLoadSectionKeywords() []string {
	var kl struct {
		SectionKeywords []string `yaml:"section_keywords"`
	}
	if err := yaml.Unmarshal(menuKeywordsYAML, &kl); err != nil {
		panic("pipeline: bad menu keyword list: " + err.Error())
	}
	return kl.SectionKeywords
}

var (
	priceOnlyRe  = regexp.MustCompile(`^([£$€])\s*(\d+(?:\.\d{1,2})?)$`)
	inlineItemRe = regexp.MustCompile(`^(.+?)\s*[-–—]\s*([£$€])\s*(\d+(?:\.\d{1,2})?)$`)
	leadingNumRe = regexp.MustCompile(`^\+\d`)
)

var titleCaser = cases.Title(language.BritishEnglish)

// menuParser is a single-pass line state machine. Plain text lines are
// resolved into names or descriptions by one line of lookahead; prices are
// only ever taken from the text, never invented.
type menuParser struct {
	menu    model.Menu
	section *model.MenuSection
	pending *model.MenuItem
	// carried holds a price-only line seen with no pending item; it
	// attaches to the next item opened.
	carried  *float64
	carriedC string
}

// ParseMenu parses concatenated menu page text into sections and items.
func ParseMenu(text string) *model.Menu {
	p := &menuParser{}
	lines := strings.Split(text, "\n")
	for i, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" || isMenuNoise(line) {
			continue
		}
		p.feed(line, nextContentLine(lines, i+1))
	}
	p.flushPending()
	p.flushSection()
	return p.cleanup()
}

func (p *menuParser) feed(line, next string) {
	// Complete one-line items first so "STEAK - £28" never reads as a
	// section header.
	if m := inlineItemRe.FindStringSubmatch(line); m != nil {
		name := strings.TrimSpace(m[1])
		if p.section != nil && len(name) >= 2 {
			p.flushPending()
			price, _ := strconv.ParseFloat(m[3], 64)
			p.section.Items = append(p.section.Items, model.MenuItem{
				Name:     name,
				Price:    &price,
				Currency: m[2],
			})
		}
		return
	}

	if m := priceOnlyRe.FindStringSubmatch(line); m != nil {
		price, _ := strconv.ParseFloat(m[2], 64)
		if p.pending != nil {
			p.pending.Price = &price
			p.pending.Currency = m[1]
			p.flushPending()
		} else {
			p.carried = &price
			p.carriedC = m[1]
		}
		return
	}

	if isSectionHeader(line) {
		p.flushPending()
		p.flushSection()
		p.section = &model.MenuSection{Name: titleCaser.String(strings.ToLower(line))}
		return
	}

	if p.section == nil {
		// Preamble before the first section is page noise.
		return
	}

	if p.pending == nil {
		item := model.MenuItem{Name: line}
		if p.carried != nil {
			item.Price = p.carried
			item.Currency = p.carriedC
			p.carried = nil
			p.carriedC = ""
		}
		p.pending = &item
		return
	}

	// Lookahead: a short name-like line followed by a price opens a new
	// item, closing the pending one (priceless or not). Longer lines
	// before a price read as the pending item's description.
	if priceOnlyRe.MatchString(next) && looksLikeItemName(line) {
		p.flushPending()
		p.pending = &model.MenuItem{Name: line}
		return
	}
	if p.pending.Description == "" {
		p.pending.Description = line
	} else {
		p.pending.Description += " " + line
	}
}

func (p *menuParser) flushPending() {
	if p.pending == nil {
		return
	}
	if p.section != nil {
		p.section.Items = append(p.section.Items, *p.pending)
	}
	p.pending = nil
}

func (p *menuParser) flushSection() {
	if p.section == nil {
		return
	}
	p.menu.Sections = append(p.menu.Sections, *p.section)
	p.section = nil
}

// cleanup drops unusable items and empty sections. An item without an
// observed positive price is noise, not a dish.
func (p *menuParser) cleanup() *model.Menu {
	out := &model.Menu{}
	for _, section := range p.menu.Sections {
		var items []model.MenuItem
		for _, item := range section.Items {
			item.Name = strings.TrimSpace(item.Name)
			if len(item.Name) < 2 || len(item.Name) > 200 {
				continue
			}
			if item.Price == nil || *item.Price <= 0 {
				continue
			}
			items = append(items, item)
		}
		if len(items) == 0 {
			continue
		}
		section.Items = items
		out.Sections = append(out.Sections, section)
	}
	return out
}

// isMenuNoise drops option lines, table layouts, phone fragments and runs
// of text too long to be anything but prose.
func isMenuNoise(line string) bool {
	if len(line) > 200 {
		return true
	}
	lower := strings.ToLower(line)
	if strings.Contains(lower, "add ") {
		return true
	}
	if strings.Contains(line, "|") {
		return true
	}
	return leadingNumRe.MatchString(line)
}

// isSectionHeader reports whether a short line is ALL-CAPS or matches a
// known course keyword.
func isSectionHeader(line string) bool {
	if len(line) >= 50 {
		return false
	}
	lower := strings.ToLower(strings.Trim(line, " #*_:"))
	for _, kw := range sectionKeywords {
		if lower == kw {
			return true
		}
	}
	return isAllCaps(line)
}

func isAllCaps(line string) bool {
	hasLetter := false
	for _, r := range line {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasLetter = true
		}
	}
	return hasLetter
}

// looksLikeItemName separates dish names from descriptions when both
// precede a price line. Names are short; descriptions run longer.
func looksLikeItemName(line string) bool {
	return len(line) <= 40
}

// nextContentLine returns the next non-blank, non-noise line at or after
// idx, or "".
func nextContentLine(lines []string, idx int) string {
	for ; idx < len(lines); idx++ {
		line := strings.TrimSpace(lines[idx])
		if line != "" && !isMenuNoise(line) {
			return line
		}
	}
	return ""
}
