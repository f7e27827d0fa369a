// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The treesync Authors

package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by the node validator. Callers should use
// [errors.Is] to match against these values.
var (
	// ErrCorruptNode is returned when a persisted node fails structural
	// validation. The sync engine schedules such nodes for a fresh fetch.
	ErrCorruptNode = errors.New("corrupt node")

	// ErrCorruptItems is returned when a folder listing carries malformed
	// item names or item metadata.
	ErrCorruptItems = errors.New("corrupt folder items")
)

// FolderItem is one entry of a folder listing. Local and common listings only
// carry the Present flag; remote listings observed from the server also carry
// the child's ETag and optional content metadata.
type FolderItem struct {
	Present       bool   `json:"present"`
	ETag          string `json:"etag,omitzero"`
	ContentType   string `json:"content_type,omitzero"`
	ContentLength int64  `json:"content_length,omitzero"`
}

// Revision is one named state of a node. A document revision carries Body,
// ContentType and the Deleted flag; a folder revision carries Items. The kind
// of every revision of a node is fully determined by the node's path, so the
// validator rejects any node whose revisions do not match its path kind.
//
// Body semantics for documents:
//   - Body == nil and !Deleted: content not known yet (a stub awaiting fetch)
//   - Body != nil: content known (possibly empty)
//   - Deleted: a deletion, pending locally or observed remotely
type Revision struct {
	Body        []byte                `json:"body,omitzero"`
	Deleted     bool                  `json:"deleted,omitzero"`
	ContentType string                `json:"content_type,omitzero"`
	Items       map[string]FolderItem `json:"items,omitzero"`
	Revision    string                `json:"revision,omitzero"`
	Timestamp   int64                 `json:"timestamp,omitzero"` // epoch ms
}

// HasContent reports whether the revision carries actual state rather than
// being a bare revision-tag stub. A recorded deletion counts as content.
func (r *Revision) HasContent() bool {
	if r == nil {
		return false
	}
	return r.Body != nil || r.Deleted || r.Items != nil
}

// Clone returns a deep copy of the revision.
func (r *Revision) Clone() *Revision {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Body != nil {
		cp.Body = bytes.Clone(r.Body)
	}
	if r.Items != nil {
		cp.Items = make(map[string]FolderItem, len(r.Items))
		for name, item := range r.Items {
			cp.Items[name] = item
		}
	}
	return &cp
}

// Equal reports whether two revisions describe the same state, ignoring
// timestamps. Used to detect no-op writes and to drop reconciled local
// revisions after a merge.
func (r *Revision) Equal(other *Revision) bool {
	if r == nil || other == nil {
		return r == other
	}
	if r.Deleted != other.Deleted ||
		r.ContentType != other.ContentType ||
		r.Revision != other.Revision {
		return false
	}
	if !bytes.Equal(r.Body, other.Body) {
		return false
	}
	return itemsEqual(r.Items, other.Items)
}

func itemsEqual(a, b map[string]FolderItem) bool {
	if (a == nil) != (b == nil) || len(a) != len(b) {
		return false
	}
	for name, item := range a {
		if other, ok := b[name]; !ok || other != item {
			return false
		}
	}
	return true
}

// Node aggregates every known revision of one path.
//
//   - Common is the last state agreed upon by local and remote.
//   - Local is an uncommitted local write or deletion, pending push.
//   - Remote is a freshly observed remote state not yet reconciled.
//   - Push is a frozen snapshot of Local while a network write is in flight.
type Node struct {
	Path   string    `json:"path"`
	Common *Revision `json:"common,omitzero"`
	Local  *Revision `json:"local,omitzero"`
	Remote *Revision `json:"remote,omitzero"`
	Push   *Revision `json:"push,omitzero"`
}

// NewNode returns an empty node for path.
func NewNode(path string) *Node {
	return &Node{Path: path}
}

// IsFolder reports whether the node addresses a folder.
func (n *Node) IsFolder() bool {
	return IsFolder(n.Path)
}

// InConflict reports whether the node carries both an unpushed local change
// and an unreconciled remote state with content. Conflicted nodes must not be
// pushed until the merge algorithm has run.
func (n *Node) InConflict() bool {
	return n.Local != nil && n.Remote != nil && n.Remote.HasContent()
}

// Clone returns a deep copy of the node.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	return &Node{
		Path:   n.Path,
		Common: n.Common.Clone(),
		Local:  n.Local.Clone(),
		Remote: n.Remote.Clone(),
		Push:   n.Push.Clone(),
	}
}

// Equal reports whether two nodes describe the same state. Timestamps are
// ignored, matching [Revision.Equal].
func (n *Node) Equal(other *Node) bool {
	if n == nil || other == nil {
		return n == other
	}
	return n.Path == other.Path &&
		n.Common.Equal(other.Common) &&
		n.Local.Equal(other.Local) &&
		n.Remote.Equal(other.Remote) &&
		n.Push.Equal(other.Push)
}

// Validate checks the structural invariants of the node: a well-formed path,
// revision kinds matching the path kind, and well-formed folder listings.
// Returns an error wrapping [ErrCorruptNode] on any violation.
func (n *Node) Validate() error {
	if n == nil {
		return fmt.Errorf("%w: nil node", ErrCorruptNode)
	}
	if !ValidPath(n.Path) {
		return fmt.Errorf("%w: %q: %s", ErrCorruptNode, n.Path, "malformed path")
	}

	folder := n.IsFolder()
	for label, rev := range map[string]*Revision{
		"common": n.Common, "local": n.Local, "remote": n.Remote, "push": n.Push,
	} {
		if rev == nil {
			continue
		}
		if rev.Timestamp < 0 {
			return fmt.Errorf("%w: %q: negative %s timestamp", ErrCorruptNode, n.Path, label)
		}
		if folder {
			if rev.Body != nil || rev.Deleted || rev.ContentType != "" {
				return fmt.Errorf("%w: %q: document fields on folder %s revision", ErrCorruptNode, n.Path, label)
			}
			if err := ValidateItems(rev.Items); err != nil {
				return fmt.Errorf("%w: %q: %s listing: %v", ErrCorruptNode, n.Path, label, err)
			}
		} else if rev.Items != nil {
			return fmt.Errorf("%w: %q: folder listing on document %s revision", ErrCorruptNode, n.Path, label)
		}
	}

	return nil
}

// ValidateItems checks a folder listing for malformed item names. Item names
// must be non-empty and must not contain interior slashes; a single trailing
// slash marks a subfolder.
func ValidateItems(items map[string]FolderItem) error {
	for name := range items {
		if name == "" || name == "/" {
			return fmt.Errorf("%w: empty item name", ErrCorruptItems)
		}
		interior := strings.TrimSuffix(name, "/")
		if interior == "" || strings.Contains(interior, "/") {
			return fmt.Errorf("%w: item name %q", ErrCorruptItems, name)
		}
	}
	return nil
}

// DecodeNode is the validating deserializer used at the storage boundary.
// Every node read from a persistence backend passes through here so that
// corruption is detected in exactly one place.
func DecodeNode(data []byte) (*Node, error) {
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptNode, err)
	}
	if err := n.Validate(); err != nil {
		return nil, err
	}
	return &n, nil
}

// EncodeNode serializes a node for persistence.
func EncodeNode(n *Node) ([]byte, error) {
	payload, err := json.Marshal(n)
	if err != nil {
		return nil, fmt.Errorf("encode node %q: %w", n.Path, err)
	}
	return payload, nil
}
