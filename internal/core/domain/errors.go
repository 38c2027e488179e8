package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUpstream     = errors.New("upstream failure")
	ErrTemporary    = errors.New("temporary failure")
	ErrTooLarge     = errors.New("payload too large")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// SearchRequestError reports a non-success response from the search endpoint.
type SearchRequestError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *SearchRequestError) Error() string {
	if e == nil {
		return "search request error"
	}
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("search request failed: %s", e.Status)
	}
	return fmt.Sprintf("search request failed: %s: %s", e.Status, strings.TrimSpace(e.Body))
}

func (e *SearchRequestError) HTTPStatus() int {
	return e.StatusCode
}

func (e *SearchRequestError) Is(target error) bool {
	return target == ErrUpstream
}

// ExportError names the file whose fetch aborted a bundle export.
type ExportError struct {
	Filename string
	URL      string
	Err      error
}

func (e *ExportError) Error() string {
	if e == nil {
		return "export error"
	}
	return fmt.Sprintf("fetch %s: %v", e.Filename, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
