package pagination

import "fmt"

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
)

// Params is a page request as received from a client surface.
type Params struct {
	Page     int `form:"page" json:"page"`
	PageSize int `form:"pageSize" json:"pageSize"`
}

// PageInfo describes the page that was returned.
type PageInfo struct {
	Page      int `json:"page"`
	PageSize  int `json:"pageSize"`
	PageCount int `json:"pageCount"`
	Total     int `json:"total"`
}

// Limits bounds page requests. The zero value uses the package defaults.
type Limits struct {
	DefaultPageSize int
	MaxPageSize     int
}

// Normalize fills in defaults and rejects out-of-range values.
func (l Limits) Normalize(p Params) (Params, error) {
	def, max := l.DefaultPageSize, l.MaxPageSize
	if def <= 0 {
		def = DefaultPageSize
	}
	if max <= 0 {
		max = MaxPageSize
	}

	if p.Page < 0 {
		return p, fmt.Errorf("page must be >= 1, got %d", p.Page)
	}
	if p.PageSize < 0 {
		return p, fmt.Errorf("pageSize must be >= 1, got %d", p.PageSize)
	}
	if p.Page == 0 {
		p.Page = DefaultPage
	}
	if p.PageSize == 0 {
		p.PageSize = def
	}
	if p.PageSize > max {
		p.PageSize = max
	}
	return p, nil
}

// Offset returns the number of items preceding the requested page.
func (p Params) Offset() int {
	return (p.Page - 1) * p.PageSize
}

// Info builds the PageInfo for a normalized request over total items.
func (p Params) Info(total int) PageInfo {
	pageCount := 0
	if p.PageSize > 0 {
		pageCount = (total + p.PageSize - 1) / p.PageSize
	}
	return PageInfo{
		Page:      p.Page,
		PageSize:  p.PageSize,
		PageCount: pageCount,
		Total:     total,
	}
}

// Bounds returns the [start, end) slice bounds of the page within total items.
func (p Params) Bounds(total int) (int, int) {
	start := p.Offset()
	if start > total {
		start = total
	}
	end := start + p.PageSize
	if end > total {
		end = total
	}
	return start, end
}
