package sync

import "fmt"

// Closed error types, one per component boundary, so call sites can handle
// fetch, conversion, and persistence failures exhaustively.

// FetchFailedError reports that the remote source could not be reached or
// returned an error. The wrapped error carries the remote.FetchError category.
type FetchFailedError struct {
	Entity Entity
	Err    error
}

func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("%s fetch failed: %v", e.Entity, e.Err)
}

func (e *FetchFailedError) Unwrap() error {
	return e.Err
}

// ConversionError reports that Failed of Total incoming records could not be
// mapped to the domain shape. It is fatal only when the whole batch failed;
// otherwise it accompanies an otherwise successful cycle as a warning.
type ConversionError struct {
	Entity Entity
	Failed int
	Total  int
}

func (e *ConversionError) Error() string {
	return fmt.Sprintf("%s conversion failed for %d of %d records", e.Entity, e.Failed, e.Total)
}

// AllFailed reports whether no record in a non-empty batch converted.
func (e *ConversionError) AllFailed() bool {
	return e.Total > 0 && e.Failed == e.Total
}

// PersistenceError reports a rejected store commit, e.g. a constraint
// violation or I/O failure. The cycle's previous projection stays visible.
type PersistenceError struct {
	Entity Entity
	Err    error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s persistence failed: %v", e.Entity, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
