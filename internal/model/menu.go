package model

// Menu is the parsed structure recovered from scraped menu text.
type Menu struct {
	Sections []MenuSection `json:"sections"`
}

// MenuSection groups dishes under a course heading.
type MenuSection struct {
	Name  string     `json:"name"`
	Items []MenuItem `json:"items"`
}

// MenuItem is a single dish. Price is nil when the source text never
// carried one; a price is only ever recorded as observed.
type MenuItem struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty"`
	Currency    string   `json:"currency,omitempty"`
}

// ItemCount returns the total number of items across all sections.
func (m Menu) ItemCount() int {
	n := 0
	for _, s := range m.Sections {
		n += len(s.Items)
	}
	return n
}
