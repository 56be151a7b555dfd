package testresults

import "math"

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Page is a 1-based offset page request.
type Page struct {
	Number int
	Size   int
}

// Normalize applies defaults and caps.
func (p Page) Normalize() Page {
	if p.Number <= 0 {
		p.Number = 1
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
	return p
}

// Offset for SQL LIMIT/OFFSET.
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// PaginatedResult represents a paginated response with data and metadata
type PaginatedResult struct {
	Data       []*TestResult `json:"data"`
	Page       int           `json:"page"`
	PageSize   int           `json:"pageSize"`
	Total      int64         `json:"totalItems"`
	TotalPages int           `json:"totalPages"`
}

// NewPaginatedResult builds the envelope for one page of rows.
func NewPaginatedResult(rows []*TestResult, p Page, total int64) PaginatedResult {
	if rows == nil {
		rows = []*TestResult{}
	}
	return PaginatedResult{
		Data:       rows,
		Page:       p.Number,
		PageSize:   p.Size,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(p.Size))),
	}
}
