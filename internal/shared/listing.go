package shared

import "strings"

// Sort directions.
const (
	SortAsc  = "asc"
	SortDesc = "desc"
)

// ListOptions carries the optional ordering of list-all queries.
type ListOptions struct {
	SortBy  string
	SortDir string
}

// Descending reports whether the caller asked for descending order.
func (o ListOptions) Descending() bool {
	return strings.EqualFold(strings.TrimSpace(o.SortDir), SortDesc)
}

// SortColumn returns SortBy when it is one of allowed, otherwise fallback.
func (o ListOptions) SortColumn(fallback string, allowed ...string) string {
	key := strings.ToLower(strings.TrimSpace(o.SortBy))
	for _, a := range allowed {
		if key == a {
			return a
		}
	}
	return fallback
}
