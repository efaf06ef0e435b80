package domain

import "time"

// SearchKind names a distinct paginated query. A session holds at most one
// cursor per kind.
type SearchKind string

const (
	SearchUsersByName  SearchKind = "users-by-name"
	SearchUsersByEmail SearchKind = "users-by-email"
	SearchAdmins       SearchKind = "admins"
	SearchAuditEvents  SearchKind = "audit-events"
)

// Page size bounds applied at search-begin time.
const (
	DefaultPageSize = 100
	MaxPageSize     = 1000
)

// SearchQuery holds the immutable parameters a search was begun with.
type SearchQuery struct {
	After      *time.Time `json:"after,omitempty"`
	Before     *time.Time `json:"before,omitempty"`
	Filter     string     `json:"filter,omitempty"`
	Descending bool       `json:"descending,omitempty"`
	PageSize   int        `json:"page_size"`
}

// Clamped returns a copy with the page size forced into [1, MaxPageSize];
// zero and negative sizes become the default.
func (q SearchQuery) Clamped() SearchQuery {
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}

// SearchCursor remembers an in-progress paginated query: the query
// parameters, the current 1-based page index, and the page count computed
// at begin time.
type SearchCursor struct {
	Query     SearchQuery `json:"query"`
	PageIndex int         `json:"page_index"`
	PageCount int         `json:"page_count"`
}

// NewSearchCursor builds a cursor positioned on page 1. The page count is
// ceil(total/pageSize), never less than 1, so the index range is always
// well-formed even for empty results.
func NewSearchCursor(q SearchQuery, total int64) *SearchCursor {
	q = q.Clamped()
	count := int((total + int64(q.PageSize) - 1) / int64(q.PageSize))
	if count < 1 {
		count = 1
	}
	return &SearchCursor{Query: q, PageIndex: 1, PageCount: count}
}

// Advance moves the page index by delta, clamped to [1, PageCount]. Moving
// past either end re-returns the boundary page.
func (c *SearchCursor) Advance(delta int) int {
	idx := c.PageIndex + delta
	if idx < 1 {
		idx = 1
	}
	if idx > c.PageCount {
		idx = c.PageCount
	}
	c.PageIndex = idx
	return idx
}

// Offset returns the absolute offset of the first item on the current page.
func (c *SearchCursor) Offset() int {
	return (c.PageIndex - 1) * c.Query.PageSize
}

// Page is one page of search results. These four fields are the complete
// contract callers may rely on.
type Page[T any] struct {
	Items     []T `json:"items"`
	PageIndex int `json:"page_index"`
	PageCount int `json:"page_count"`
	Offset    int `json:"offset"`
}
