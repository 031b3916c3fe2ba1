package waterfall

import (
	"errors"
	"fmt"
)

// ErrInvalidArgument is matched by every mapping and key decoding error.
// These errors signal a broken caller contract, not a recoverable state.
var ErrInvalidArgument = errors.New("invalid argument")

// IndexMappingError reports a row or span index that has no counterpart
// in the current row sequence.
type IndexMappingError struct {
	Op     string
	Index  int
	Reason string
}

func (e *IndexMappingError) Error() string {
	return fmt.Sprintf("waterfall: %s %d: %s", e.Op, e.Index, e.Reason)
}

func (e *IndexMappingError) Unwrap() error { return ErrInvalidArgument }

// KeyDecodeError reports a row key that does not name an existing row.
type KeyDecodeError struct {
	Key    string
	Reason string
}

func (e *KeyDecodeError) Error() string {
	return fmt.Sprintf("waterfall: row key %q: %s", e.Key, e.Reason)
}

func (e *KeyDecodeError) Unwrap() error { return ErrInvalidArgument }
