package apimodel

// Page is one page of a paginated list endpoint.
type Page[T any] struct {
	Data        []T `json:"data"`
	CurrentPage int `json:"current_page"`
	LastPage    int `json:"last_page"`
	PerPage     int `json:"per_page,omitempty"`
	Total       int `json:"total"`
}

func (p Page[T]) HasNext() bool {
	return p.CurrentPage < p.LastPage
}

func (p Page[T]) HasPrev() bool {
	return p.CurrentPage > 1
}

// ValidPage reports whether n is a page number that can be requested from this listing.
func (p Page[T]) ValidPage(n int) bool {
	return n >= 1 && n <= p.LastPage
}

// Offset is the zero-based position of the first item on the page, used for row numbering.
func (p Page[T]) Offset() int {
	if p.CurrentPage < 1 || p.PerPage < 1 {
		return 0
	}
	return (p.CurrentPage - 1) * p.PerPage
}

// LastPageFor returns the number of pages needed for total items; at least 1.
func LastPageFor(total, perPage int) int {
	if perPage < 1 || total <= 0 {
		return 1
	}
	return (total + perPage - 1) / perPage
}
