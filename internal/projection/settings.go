package projection

// Settings are the query settings applied at every nesting level of one
// compiled projection.
type Settings struct {
	// NullPropagation turns member reads through a null value into null
	// instead of a NullReference error.
	NullPropagation bool

	// PageSize caps expanded collections that have no explicit top or skip.
	// A navigation's modeled page size takes precedence. Zero disables it.
	PageSize int

	// BufferNestedCollections disables page-size truncation for expanded
	// collections. Only the root sequence is top-level, and it is never
	// paged. Ordering, skip and top still apply.
	BufferNestedCollections bool
}

// pageSizeFor returns the effective page size of an expanded navigation.
func (s Settings) pageSizeFor(modeled int) int {
	if modeled > 0 {
		return modeled
	}
	return s.PageSize
}
