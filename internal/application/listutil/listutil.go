package listutil

import (
	"net/url"
	"slices"
	"strconv"
)

// DefaultPerPage is the page size when none (or an unknown one) is requested.
const DefaultPerPage = 20

// PerPageOptions are the page sizes offered on admin lists.
var PerPageOptions = []int{10, 20, 50, 100}

// PageParams is the requested page of a list.
type PageParams struct {
	Page    int // 1-indexed
	PerPage int
}

// SortParams is the requested ordering of a list.
type SortParams struct {
	Sort string // one of the list's sort keys
	Desc bool
}

// FilterParams holds the free-text search and the list's named filters.
type FilterParams struct {
	Search  string
	Filters map[string]string // e.g. role=staff, initial=B
}

// Get returns the named filter, or "" when it was not set.
func (f FilterParams) Get(key string) string {
	return f.Filters[key]
}

// ListSpec describes which query parameters a list understands.
type ListSpec struct {
	SortKeys    []string
	DefaultSort SortParams
	FilterKeys  []string
}

// ListParams is everything a list view was asked for.
type ListParams struct {
	Page   PageParams
	Sort   SortParams
	Filter FilterParams
}

// ParsePageParams reads page and per_page.
// POST: Page >= 1 and PerPage is one of PerPageOptions
func ParsePageParams(q url.Values) PageParams {
	page, _ := strconv.Atoi(q.Get("page"))
	perPage, _ := strconv.Atoi(q.Get("per_page"))
	if !slices.Contains(PerPageOptions, perPage) {
		perPage = DefaultPerPage
	}
	return PageParams{Page: max(page, 1), PerPage: perPage}
}

// ParseSortParams reads sort and dir, falling back to spec.DefaultSort for unknown keys.
// An explicit dir is honoured even on the default key.
func ParseSortParams(q url.Values, spec ListSpec) SortParams {
	sp := spec.DefaultSort
	if key := q.Get("sort"); slices.Contains(spec.SortKeys, key) {
		sp.Sort = key
	}
	switch q.Get("dir") {
	case "asc":
		sp.Desc = false
	case "desc":
		sp.Desc = true
	}
	return sp
}

// ParseFilterParams reads q plus any of keys that carry a value.
func ParseFilterParams(q url.Values, keys []string) FilterParams {
	fp := FilterParams{Search: q.Get("q"), Filters: make(map[string]string)}
	for _, key := range keys {
		if v := q.Get(key); v != "" {
			fp.Filters[key] = v
		}
	}
	return fp
}

// ParseListParams reads a whole list request.
func ParseListParams(q url.Values, spec ListSpec) ListParams {
	return ListParams{
		Page:   ParsePageParams(q),
		Sort:   ParseSortParams(q, spec),
		Filter: ParseFilterParams(q, spec.FilterKeys),
	}
}

// Encode renders the parameters back to a query string for page, leaving out empty values
// so pagination links keep the search, filters and ordering.
func (p ListParams) Encode(page int) string {
	v := url.Values{}
	if p.Filter.Search != "" {
		v.Set("q", p.Filter.Search)
	}
	for key, value := range p.Filter.Filters {
		v.Set(key, value)
	}
	if p.Sort.Sort != "" {
		v.Set("sort", p.Sort.Sort)
		if p.Sort.Desc {
			v.Set("dir", "desc")
		} else {
			v.Set("dir", "asc")
		}
	}
	if p.Page.PerPage != 0 && p.Page.PerPage != DefaultPerPage {
		v.Set("per_page", strconv.Itoa(p.Page.PerPage))
	}
	v.Set("page", strconv.Itoa(page))
	return v.Encode()
}

// PageInfo is the pagination state of a rendered list.
type PageInfo struct {
	Page       int
	PerPage    int
	Total      int
	TotalPages int
}

// NewPageInfo clamps page into 1..TotalPages for total rows.
// POST: TotalPages >= 1 even when total is 0
func NewPageInfo(page, perPage, total int) PageInfo {
	if perPage < 1 {
		perPage = DefaultPerPage
	}
	totalPages := max((total+perPage-1)/perPage, 1)
	return PageInfo{
		Page:       min(max(page, 1), totalPages),
		PerPage:    perPage,
		Total:      total,
		TotalPages: totalPages,
	}
}

// Offset is the number of rows before the current page.
func (p PageInfo) Offset() int {
	return (p.Page - 1) * p.PerPage
}

// HasPrev reports whether there is a page before this one.
func (p PageInfo) HasPrev() bool { return p.Page > 1 }

// HasNext reports whether there is a page after this one.
func (p PageInfo) HasNext() bool { return p.Page < p.TotalPages }

// Window returns up to five page numbers around the current page for the pager.
func (p PageInfo) Window() []int {
	const width = 5
	start := max(p.Page-width/2, 1)
	end := min(start+width-1, p.TotalPages)
	start = max(end-width+1, 1)
	pages := make([]int, 0, end-start+1)
	for i := start; i <= end; i++ {
		pages = append(pages, i)
	}
	return pages
}
