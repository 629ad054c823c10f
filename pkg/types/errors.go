package types

import "errors"

// Failure classes surfaced by the client. All of them terminate a run;
// only ErrNotFound has a dedicated recovery path (backlog for front-file
// partitions, skip for back-file sub-listings).
var (
	// ErrConfiguration is returned for invalid run requests, such as a day
	// without a month and year. Raised before any I/O happens.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrConnection is returned when the remote endpoint or the destination
	// database cannot be reached.
	ErrConnection = errors.New("connection failed")

	// ErrNotFound is returned when a requested remote partition or file
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrParse is returned when a retrieved data file cannot be opened or
	// parsed.
	ErrParse = errors.New("malformed data file")

	// ErrInvariant is returned when the feed or the destination table is in
	// a state that must not be silently repaired, such as multiple manifest
	// files in one partition or a primary key that fails to re-attach.
	ErrInvariant = errors.New("invariant violation")
)
