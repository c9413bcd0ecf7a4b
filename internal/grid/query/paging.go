package query

import "math"

// Paging contains metadata for a paginated listing.
type Paging struct {
	Page     int `json:"page"`
	PerPage  int `json:"per_page"`
	Total    int `json:"total"`
	LastPage int `json:"last_page"`
	// From and To are the 1-based positions of the first and last row on the
	// page, both zero when the page is empty.
	From int `json:"from"`
	To   int `json:"to"`
}

// NewPaging computes pagination metadata, clamping page into [1, LastPage].
func NewPaging(page, perPage, total int) Paging {
	if perPage <= 0 {
		perPage = 25
	}
	if total < 0 {
		total = 0
	}
	lastPage := max(int(math.Ceil(float64(total)/float64(perPage))), 1)
	page = min(max(page, 1), lastPage)
	p := Paging{Page: page, PerPage: perPage, Total: total, LastPage: lastPage}
	if total > 0 {
		p.From = p.Offset() + 1
		p.To = min(p.Offset()+perPage, total)
	}
	return p
}

// Offset is the number of rows before the page.
func (p Paging) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// HasMore reports whether a later page exists.
func (p Paging) HasMore() bool {
	return p.Page < p.LastPage
}
