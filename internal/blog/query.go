package blog

import (
	"math"
	"strings"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
	// MaxPage keeps the row offset of a page from overflowing.
	MaxPage     = math.MaxInt32 / MaxPageLimit
	categoryAll = "All"
)

// Visibility selects which publication states a listing returns.
type Visibility int

const (
	// VisibilityPublished is the public view. Legacy rows that only carry the
	// boolean flag are matched too.
	VisibilityPublished Visibility = iota
	VisibilityDraft
	VisibilityArchived
	// VisibilityAll applies no publication filter.
	VisibilityAll
)

func (v Visibility) String() string {
	switch v {
	case VisibilityDraft:
		return "draft"
	case VisibilityArchived:
		return "archived"
	case VisibilityAll:
		return "all"
	default:
		return "published"
	}
}

// sqlPredicate is the WHERE fragment for the visibility over the blog_post columns.
// The OR forms keep rows written before the status column existed visible.
func (v Visibility) sqlPredicate() string {
	switch v {
	case VisibilityDraft:
		return "(status = 'draft' OR is_published = FALSE OR is_published IS NULL)"
	case VisibilityArchived:
		return "status = 'archived'"
	case VisibilityAll:
		return "TRUE"
	default:
		return "(status = 'published' OR is_published = TRUE)"
	}
}

// RequiresAdmin reports whether the listing exposes unpublished posts.
func (v Visibility) RequiresAdmin() bool {
	return v != VisibilityPublished
}

// ListQuery is the caller intent of a listing.
type ListQuery struct {
	Page       int
	Limit      int
	Category   string
	Status     string
	IncludeAll bool
}

// ListFilter is the store side conjunction of a category match and a visibility predicate.
type ListFilter struct {
	Category   Category
	Visibility Visibility
}

// Filter translates the caller intent into a store filter. An empty or "All" category
// means no category filter. includeAll wins over status.
func (q ListQuery) Filter() (ListFilter, error) {
	filter := ListFilter{}
	if c := strings.TrimSpace(q.Category); c != "" && !strings.EqualFold(c, categoryAll) {
		filter.Category = Category(c)
	}

	if q.IncludeAll {
		filter.Visibility = VisibilityAll
		return filter, nil
	}

	switch Status(strings.ToLower(strings.TrimSpace(q.Status))) {
	case "", StatusPublished:
		filter.Visibility = VisibilityPublished
	case StatusDraft:
		filter.Visibility = VisibilityDraft
	case StatusArchived:
		filter.Visibility = VisibilityArchived
	default:
		return ListFilter{}, toValidationError(fieldErr("status", "unknown status %q", q.Status))
	}

	return filter, nil
}

// Normalized clamps page and limit into their valid ranges.
func (q ListQuery) Normalized() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Page > MaxPage {
		q.Page = MaxPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultPageLimit
	}
	if q.Limit > MaxPageLimit {
		q.Limit = MaxPageLimit
	}
	return q
}

// Offset is the number of rows skipped before the requested page.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

func NewPagination(page, limit, total int) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = (total + limit - 1) / limit
	}
	return Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
		HasPrev:    page > 1,
	}
}
