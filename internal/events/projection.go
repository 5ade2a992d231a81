package events

import "time"

// CompileFinish is emitted after a selection clause has been compiled into a
// projection plan.
type CompileFinish struct {
	Type     string
	Levels   int
	Err      error
	Duration time.Duration
}

// ProjectStart is emitted before projecting a source.
type ProjectStart struct {
	Type     string
	Sequence bool
}

// ProjectFinish is emitted after a single instance has been projected, or
// after a projected sequence has been consumed or abandoned.
type ProjectFinish struct {
	Type     string
	Sequence bool
	Views    int
	Err      error
	Duration time.Duration
}
