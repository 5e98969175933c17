package raster

import(
	"fmt"
)

// A SourceError is a failure to open or read a source raster. It is fatal
// to the run.
type SourceError struct {
	Op       string  // "open", "read", ...
	Locator  string
	Band     int     // 0 if not band specific
	Window   *Window // nil if not window specific
	Err      error
}

func (e *SourceError)Error() string {
	str := fmt.Sprintf("source %s %s", e.Op, e.Locator)
	if e.Band > 0 {
		str += fmt.Sprintf(" band %d", e.Band)
	}
	if e.Window != nil {
		str += " " + e.Window.String()
	}
	return str + ": " + e.Err.Error()
}

func (e *SourceError)Unwrap() error { return e.Err }

// A SinkError is a failure to create, write or finalize an output. It is
// fatal to the run, and the output must not be used.
type SinkError struct {
	Op       string  // "create", "write", "close", ...
	Locator  string
	Window   *Window
	Err      error
}

func (e *SinkError)Error() string {
	str := fmt.Sprintf("sink %s %s", e.Op, e.Locator)
	if e.Window != nil {
		str += " " + e.Window.String()
	}
	return str + ": " + e.Err.Error()
}

func (e *SinkError)Unwrap() error { return e.Err }

func NewSourceError(op, locator string, band int, w *Window, err error) error {
	return &SourceError{Op: op, Locator: locator, Band: band, Window: w, Err: err}
}

func NewSinkError(op, locator string, w *Window, err error) error {
	return &SinkError{Op: op, Locator: locator, Window: w, Err: err}
}
