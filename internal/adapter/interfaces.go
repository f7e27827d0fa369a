// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The treesync Authors

// Package adapter provides transport-layer abstractions for talking to the
// remote storage backend.
//
// The primary abstraction is [Transport], a generic conditional
// GET/PUT/DELETE contract over absolute paths. The package ships an HTTP
// implementation ([NewHTTPTransport]) built on resty; cloud-backend shims
// adapting a proprietary API to the same contract would live alongside it.
//
// Error values defined in errors.go let callers distinguish network-level
// failures (retried on the next sync cycle) from configuration errors via
// [errors.Is].
package adapter

import (
	"context"

	"github.com/treestash/treesync/models"
)

//go:generate mockgen -source=interfaces.go -destination=../mock/transport_mock.go -package=mock

// GetOptions carries the optional conditional header for a read.
type GetOptions struct {
	// IfNoneMatch, when non-empty, asks the server to answer 304 if the
	// resource still carries this revision tag.
	IfNoneMatch string
}

// PutOptions carries the optional conditional headers for a write. At most
// one of the two fields is set per request.
type PutOptions struct {
	// IfMatch, when non-empty, makes the write fail with 412 unless the
	// remote resource still carries this revision tag.
	IfMatch string

	// IfNoneMatch is either empty or "*": fail with 412 if the resource
	// already exists. Used for first-time creates to detect create races.
	IfNoneMatch string
}

// DeleteOptions carries the optional conditional header for a delete.
type DeleteOptions struct {
	IfMatch string
}

// RemoteResponse is the transport-agnostic result of a remote operation.
type RemoteResponse struct {
	StatusCode  int
	Body        []byte
	ContentType string

	// Revision is the ETag of the fetched or written resource, with the
	// surrounding quotes stripped.
	Revision string

	// Items is the decoded folder listing. Set only for 200 responses to a
	// folder GET; nil otherwise.
	Items map[string]models.FolderItem
}

// Transport is the generic remote storage contract the sync engine drives.
// Implementations are responsible for serialisation, conditional-request
// headers, and connectivity tracking.
type Transport interface {
	// Get fetches the document or folder listing at path. Folder paths end
	// with a slash and yield a populated Items map on 200.
	Get(ctx context.Context, path string, opts GetOptions) (RemoteResponse, error)

	// Put writes a document body. The returned response carries the new
	// revision tag when the server provides one.
	Put(ctx context.Context, path string, body []byte, contentType string, opts PutOptions) (RemoteResponse, error)

	// Delete removes the document at path.
	Delete(ctx context.Context, path string, opts DeleteOptions) (RemoteResponse, error)

	// Connected reports whether the transport has credentials and a base
	// URL, i.e. whether issuing requests makes sense at all.
	Connected() bool

	// Online reports the last observed reachability of the remote. It flips
	// false when a request fails at the network level and back to true on
	// the next successful exchange.
	Online() bool

	// ImpliedAuth reports whether the transport runs without a real bearer
	// token, in which case 401 responses are not treated as fatal.
	ImpliedAuth() bool
}
