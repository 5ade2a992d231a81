package resolver

import "fmt"

const (
	KindUnsupportedSegment    = "UnsupportedSegment"
	KindUnknownSelectItemKind = "UnknownSelectItemKind"
)

// SelectionError reports a select or expand item the resolver cannot apply.
type SelectionError struct {
	Kind    string
	Segment string
	Path    string
}

func (e *SelectionError) Error() string {
	if e.Path != "" && e.Path != e.Segment {
		return fmt.Sprintf("%s: %q in %q", e.Kind, e.Segment, e.Path)
	}
	return fmt.Sprintf("%s: %q", e.Kind, e.Segment)
}
