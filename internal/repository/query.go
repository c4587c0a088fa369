package repository

// ListQuery carries the common pagination parameters for list endpoints.
// Defaults are applied by Normalize, not scattered through handlers.
type ListQuery struct {
	Page           int    // 1-based page number
	Limit          int    // page size, capped at MaxPageSize
	Search         string // optional substring match on name/email/title
	IncludeDeleted bool   // when true, soft-deleted rows are returned too
}

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Normalize clamps page and limit into their valid ranges.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageSize
	}
	if q.Limit > MaxPageSize {
		q.Limit = MaxPageSize
	}
	return q
}

// Offset returns the SQL offset for the normalized query.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}
