package platepatch

import (
	"errors"
	"fmt"
)

var (
	// ErrDecode is the kind of every failure to open or decode a source image.
	ErrDecode = errors.New("decode")

	// ErrIO is the kind of every failure to create the output directory or
	// to write a patch.
	ErrIO = errors.New("io")

	// ErrTooSmall is returned when the source has fewer pixels than the grid
	// has rows or columns. It is also of kind ErrDecode.
	ErrTooSmall = errors.New("image smaller than grid")

	// ErrUnsupportedFormat is returned for an output extension with no
	// encoder.
	ErrUnsupportedFormat = errors.New("unsupported output format")
)

// Error records a failed slicing step. Both Kind and Err are visible to
// errors.Is and errors.As.
type Error struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %q err, %v", e.Op, e.Path, e.Err)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func decodeErr(op, path string, err error) error {
	return &Error{Kind: ErrDecode, Op: op, Path: path, Err: err}
}

func ioErr(op, path string, err error) error {
	return &Error{Kind: ErrIO, Op: op, Path: path, Err: err}
}
