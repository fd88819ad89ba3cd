package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind is a coarse-grained categorization of fatal pipeline errors.
type ErrorKind string

const (
	KindSourceFetch  ErrorKind = "source_fetch"
	KindSchema       ErrorKind = "schema"
	KindParse        ErrorKind = "parse"
	KindDuplicateKey ErrorKind = "duplicate_key"
)

// SourceError reports an input that could not be obtained.
type SourceError struct {
	Source string
	// Status is the transport status code when one exists, 0 otherwise.
	Status int
	Err    error
}

func (e *SourceError) Error() string {
	msg := fmt.Sprintf("fetch %s", e.Source)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SourceError) Unwrap() error { return e.Err }

// Kind implements Kinded.
func (e *SourceError) Kind() ErrorKind { return KindSourceFetch }

// SchemaError reports required columns that are absent after normalization.
type SchemaError struct {
	Source  string
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: missing required column(s): %s", e.Source, strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Kind() ErrorKind { return KindSchema }

// ParseError reports content that is not tabular data.
type ParseError struct {
	Source string
	// Signature describes what the content looked like (e.g. "html document").
	Signature string
	Err       error
}

func (e *ParseError) Error() string {
	msg := fmt.Sprintf("%s: not tabular data", e.Source)
	if e.Signature != "" {
		msg += fmt.Sprintf(" (detected %s)", e.Signature)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Kind() ErrorKind { return KindParse }

// DuplicateKeyError reports duplicate products in the weight reference when
// the duplicate policy forbids them.
type DuplicateKeyError struct {
	Keys []string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("weight reference has duplicate product key(s): %s", strings.Join(e.Keys, ", "))
}

func (e *DuplicateKeyError) Kind() ErrorKind { return KindDuplicateKey }

// Kinded is implemented by every fatal pipeline error.
type Kinded interface {
	error
	Kind() ErrorKind
}

// KindOf returns the kind of the first Kinded error in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var k Kinded
	if errors.As(err, &k) {
		return k.Kind(), true
	}
	return "", false
}

// IsKind helps callers classify errors without depending on concrete types.
func IsKind(err error, kind ErrorKind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
