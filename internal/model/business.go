package model

import "strings"

// DayHours is one weekday's opening hours as reported by the places actor.
type DayHours struct {
	Day   string `json:"day"`
	Hours string `json:"hours"`
}

// HourOccupancy is one hour of the popular-times histogram.
type HourOccupancy struct {
	Hour      int `json:"hour"`
	Occupancy int `json:"occupancyPercent"`
}

// BusinessData is the subset of a Google Places actor item the pipeline
// consumes. Field tags match the actor's JSON output.
type BusinessData struct {
	Title        string                     `json:"title"`
	Address      string                     `json:"address"`
	Phone        string                     `json:"phone"`
	Website      string                     `json:"website"`
	PlaceID      string                     `json:"placeId"`
	Latitude     float64                    `json:"latitude"`
	Longitude    float64                    `json:"longitude"`
	Price        string                     `json:"price"`
	Category     string                     `json:"categoryName"`
	TotalScore   float64                    `json:"totalScore"`
	ReviewsCount int                        `json:"reviewsCount"`
	OpeningHours []DayHours                 `json:"openingHours"`
	PopularTimes map[string][]HourOccupancy `json:"popularTimesHistogram"`
}

// SeedFields maps the business payload onto the venue's seed columns.
// Dollar price tiers come back from the actor for UK venues too, so the
// tier is re-expressed in pounds.
func (b BusinessData) SeedFields() SeedFields {
	return SeedFields{
		Name:       b.Title,
		Address:    b.Address,
		Phone:      b.Phone,
		Website:    b.Website,
		PriceRange: strings.ReplaceAll(b.Price, "$", "£"),
	}
}
