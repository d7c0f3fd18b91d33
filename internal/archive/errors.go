package archive

import (
	"errors"
	"fmt"
)

// ErrArchiveCorrupt marks fatal archive failures: the zip cannot be opened
// or a required file is absent. All other anomalies are per-category.
var ErrArchiveCorrupt = errors.New("archive corrupt")

// CategoryParseError reports that one category file exists but could not be
// parsed. It never aborts parsing of other categories.
type CategoryParseError struct {
	Category string
	Err      error
}

func (e *CategoryParseError) Error() string {
	return fmt.Sprintf("parse category %s: %v", e.Category, e.Err)
}

func (e *CategoryParseError) Unwrap() error { return e.Err }
