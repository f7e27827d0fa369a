// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The treesync Authors

package models

import (
	"errors"
	"strings"
)

// ErrInvalidPath is returned when a path does not satisfy the addressing
// rules: absolute, slash-separated, no empty segments.
var ErrInvalidPath = errors.New("invalid path")

// IsFolder reports whether path addresses a folder. Folders always end with
// a slash, documents never do.
func IsFolder(path string) bool {
	return strings.HasSuffix(path, "/")
}

// IsDocument reports whether path addresses a document.
func IsDocument(path string) bool {
	return !IsFolder(path)
}

// ValidPath reports whether path is a well-formed absolute path: it starts
// with a slash and contains no empty interior segments.
func ValidPath(path string) bool {
	if path == "" || !strings.HasPrefix(path, "/") {
		return false
	}
	if path == "/" {
		return true
	}
	trimmed := strings.TrimPrefix(path, "/")
	trimmed = strings.TrimSuffix(trimmed, "/")
	for _, seg := range strings.Split(trimmed, "/") {
		if seg == "" {
			return false
		}
	}
	return true
}

// ParentPath returns the folder containing path, or an empty string for the
// root folder itself.
//
//	ParentPath("/a/b/c.txt") == "/a/b/"
//	ParentPath("/a/b/")      == "/a/"
//	ParentPath("/")          == ""
func ParentPath(path string) string {
	if path == "/" || path == "" {
		return ""
	}
	trimmed := strings.TrimSuffix(path, "/")
	idx := strings.LastIndex(trimmed, "/")
	return trimmed[:idx+1]
}

// ItemName returns the name of path within its parent folder. Folder names
// keep their trailing slash, matching the keys used in folder listings.
//
//	ItemName("/a/b/c.txt") == "c.txt"
//	ItemName("/a/b/")      == "b/"
func ItemName(path string) string {
	parent := ParentPath(path)
	return path[len(parent):]
}

// PathsFromRoot lists path and every ancestor folder, nearest first and the
// root folder last. The write path of the caching layer uses this chain to
// keep ancestor folder listings consistent with the document they contain.
//
//	PathsFromRoot("/a/b/c.txt") == ["/a/b/c.txt", "/a/b/", "/a/", "/"]
func PathsFromRoot(path string) []string {
	chain := []string{path}
	for p := ParentPath(path); p != ""; p = ParentPath(p) {
		chain = append(chain, p)
	}
	return chain
}

// IsAncestorPath reports whether folder is a proper ancestor of path.
func IsAncestorPath(folder, path string) bool {
	return IsFolder(folder) && folder != path && strings.HasPrefix(path, folder)
}
