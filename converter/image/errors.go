package image

import (
	"errors"
	"fmt"
)

var (
	ErrValidation = errors.New("validation error")
	ErrPreprocess = errors.New("preprocess error")
	ErrDecode     = errors.New("decode error")
	ErrEncode     = errors.New("encode error")
	ErrResource   = errors.New("resource error")
)

// ItemError is a failure tied to one input image.
type ItemError struct {
	Kind  error
	Name  string
	Cause error
}

func (e *ItemError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Name, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Name)
}

func (e *ItemError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Cause}
}

func newItemError(kind error, name string, cause error) *ItemError {
	return &ItemError{Kind: kind, Name: name, Cause: cause}
}

// IsItemScoped reports whether err only affects the item that produced it.
func IsItemScoped(err error) bool {
	if err == nil || errors.Is(err, ErrResource) {
		return false
	}
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrPreprocess) ||
		errors.Is(err, ErrDecode) ||
		errors.Is(err, ErrEncode)
}
