package adapter

import "errors"

var (
	// ErrNetwork marks request failures below the HTTP layer (DNS, refused
	// connection, timeout). The engine treats these as "offline" and retries
	// on the next cycle.
	ErrNetwork = errors.New("network problem")

	// ErrNotConnected is returned when the transport has no base URL
	// configured.
	ErrNotConnected = errors.New("transport not connected")

	// ErrInvalidListing marks a folder listing the server returned in a
	// shape we refuse to ingest.
	ErrInvalidListing = errors.New("invalid folder listing")
)
