package server

import "context"

// Server defines the common lifecycle contract for the local HTTP servers
// managed by this package.
//
// Implementations are expected to block in [RunServer] until ctx is
// cancelled and to release resources in [Shutdown].
type Server interface {
	// RunServer starts serving requests and blocks until ctx is cancelled
	// and the servers have shut down.
	RunServer(ctx context.Context)

	// Shutdown gracefully stops the servers and frees associated resources.
	Shutdown()
}
