package remote

import "fmt"

// FetchErrorKind categorizes remote fetch failures so callers can handle
// them exhaustively.
type FetchErrorKind string

const (
	FetchNetwork FetchErrorKind = "network"
	FetchAuth    FetchErrorKind = "auth"
	FetchServer  FetchErrorKind = "server"
	FetchDecode  FetchErrorKind = "decode"
	FetchTimeout FetchErrorKind = "timeout"
)

// FetchError wraps a transport failure with its category.
type FetchError struct {
	Kind FetchErrorKind
	Err  error
}

func (e *FetchError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("remote fetch failed (%s)", e.Kind)
	}
	return fmt.Sprintf("remote fetch failed (%s): %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// NewFetchError builds a categorized fetch error.
func NewFetchError(kind FetchErrorKind, err error) *FetchError {
	return &FetchError{Kind: kind, Err: err}
}
