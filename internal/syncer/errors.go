package syncer

import "errors"

var (
	// ErrUnauthorized signals an auth failure from the remote. The
	// application is expected to re-run its authorization flow.
	ErrUnauthorized = errors.New("remote rejected credentials")

	// ErrSyncFailed wraps non-fatal task failures surfaced as error events.
	ErrSyncFailed = errors.New("sync task failed")
)
