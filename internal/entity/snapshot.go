package entity

import "time"

// PageSnapshot is the state of one paginated listing page at capture time.
// Titles and Dates are queried independently, so their lengths may differ.
type PageSnapshot struct {
	PageIndex  int       `json:"page_index"`
	URL        string    `json:"url"`
	Titles     []string  `json:"titles"`
	Dates      []string  `json:"dates"`
	CapturedAt time.Time `json:"captured_at"`
}

// FirstTitle returns the first listed title, if any.
func (s PageSnapshot) FirstTitle() (string, bool) {
	if len(s.Titles) == 0 {
		return "", false
	}
	return s.Titles[0], true
}

// FirstDate returns the first listed date, if any.
func (s PageSnapshot) FirstDate() (string, bool) {
	if len(s.Dates) == 0 {
		return "", false
	}
	return s.Dates[0], true
}

// Empty reports whether the page listed no items.
func (s PageSnapshot) Empty() bool {
	return len(s.Titles) == 0
}
