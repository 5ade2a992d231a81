package edm

import "fmt"

// SchemaMappingError reports a type or property reference with no registered
// mapping in the schema.
type SchemaMappingError struct {
	Type     string
	Property string
}

func (e *SchemaMappingError) Error() string {
	if e.Property != "" {
		return fmt.Sprintf("no mapping for property %q on type %q", e.Property, e.Type)
	}
	return fmt.Sprintf("no mapping for type %q", e.Type)
}
