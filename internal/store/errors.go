package store

import "errors"

// Sentinel errors returned by node store implementations. Callers should use
// [errors.Is] to match against these values.
var (
	// ErrStopIteration stops a ForAllNodes scan early without reporting an
	// error to the caller.
	ErrStopIteration = errors.New("stop iteration")

	// ErrStoreClosed is returned by operations on a store whose Close method
	// has already been called.
	ErrStoreClosed = errors.New("node store is closed")

	// ErrBuildingSQLQuery is returned when constructing a parameterised SQL
	// query fails (e.g. invalid argument count or unsupported type).
	ErrBuildingSQLQuery = errors.New("error building sql query")

	// ErrExecutingQuery is returned when executing a query against the
	// sqlite database fails.
	ErrExecutingQuery = errors.New("error executing sql query")
)
