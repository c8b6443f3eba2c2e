package catalog

import (
	"errors"
	"fmt"
)

var ErrCorruptMetadata = errors.New("corrupt metadata document")

// IOError is a filesystem failure while reading or writing the metadata
// document.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("failed to %s metadata %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func IsIOError(err error) bool {
	var e *IOError
	return errors.As(err, &e)
}
