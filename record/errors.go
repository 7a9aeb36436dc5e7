package record

import (
	"errors"
	"fmt"
)

var (
	errNotObject    = errors.New("not a JSON object")
	errTrailingData = errors.New("trailing data after JSON object")
)

// MalformedRecordError reports an input line that is not a JSON object.
type MalformedRecordError struct {
	Line string
	Err  error
}

func (e *MalformedRecordError) Error() string {
	line := e.Line
	if len(line) > 64 {
		line = line[:64] + "..."
	}
	return fmt.Sprintf("malformed record %q: %v", line, e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// MissingKeyError reports a required field that is absent or null.
type MissingKeyError struct {
	Field string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("record has no %q field", e.Field)
}
