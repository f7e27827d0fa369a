// Package server wires and runs the daemon's local HTTP servers.
//
// It provides orchestration for the storage API and Prometheus metrics
// endpoints, including startup, context-driven shutdown, and graceful
// draining of in-flight requests.
package server
