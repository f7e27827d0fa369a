// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The treesync Authors

package models

// Origin identifies where a change event came from.
type Origin string

const (
	// OriginWindow marks a change produced by a local write in this process
	// before it has been pushed anywhere.
	OriginWindow Origin = "window"

	// OriginLocal marks a change produced by dropping locally cached data,
	// e.g. when a caching strategy switches to flush.
	OriginLocal Origin = "local"

	// OriginRemote marks a change observed on the remote server and applied
	// to the local cache.
	OriginRemote Origin = "remote"

	// OriginConflict marks the resolution of a genuine content conflict.
	// The event carries the discarded local value, the winning remote value,
	// and the last state both sides agreed on.
	OriginConflict Origin = "conflict"
)

// ChangeEvent describes a single visible change of a document.
type ChangeEvent struct {
	ID     string `json:"id"`
	Path   string `json:"path"`
	Origin Origin `json:"origin"`

	OldValue       []byte `json:"old_value,omitzero"`
	NewValue       []byte `json:"new_value,omitzero"`
	OldContentType string `json:"old_content_type,omitzero"`
	NewContentType string `json:"new_content_type,omitzero"`

	// LastCommonValue and LastCommonContentType are only set on conflict
	// events and carry the state both sides last agreed on.
	LastCommonValue       []byte `json:"last_common_value,omitzero"`
	LastCommonContentType string `json:"last_common_content_type,omitzero"`

	Timestamp int64 `json:"timestamp"` // epoch ms
}
