package model

// Page is a 1-based page request. Zero values mean "first page, default size".
type Page struct {
	Number int
	Size   int
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps the page to sane bounds.
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset returns the SQL offset of the normalized page.
func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Number - 1) * n.Size
}

// Limit returns the SQL limit of the normalized page.
func (p Page) Limit() int { return p.Normalize().Size }

// PageResult wraps one page of items with the total row count.
type PageResult[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"size"`
}

// NewPageResult builds a PageResult, never returning a nil Items slice.
func NewPageResult[T any](items []T, total int, p Page) PageResult[T] {
	p = p.Normalize()
	if items == nil {
		items = []T{}
	}
	return PageResult[T]{Items: items, Total: total, Page: p.Number, Size: p.Size}
}
