// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The treesync Authors

package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/treestash/treesync/internal/cache"
	"github.com/treestash/treesync/models"
)

// maxAgeHeader carries the caller's staleness tolerance as a Go duration
// string (e.g. "30s"). Absent means any cached copy is acceptable.
const maxAgeHeader = "X-Max-Age"

func (h *Handler) getDocument(w http.ResponseWriter, r *http.Request) {
	path := treePath(r)

	maxAge, err := parseMaxAge(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.client.Get(r.Context(), path, maxAge)
	if err != nil {
		h.logger.Err(err).Str("path", path).Msg("error reading document")
		http.Error(w, err.Error(), statusFromError(err))
		return
	}

	writeStorageResponse(w, path, resp)
}

func (h *Handler) putDocument(w http.ResponseWriter, r *http.Request) {
	path := treePath(r)

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "error reading request body", http.StatusBadRequest)
		return
	}

	resp, err := h.client.Put(r.Context(), path, body, r.Header.Get("Content-Type"))
	if err != nil {
		h.logger.Err(err).Str("path", path).Msg("error writing document")
		http.Error(w, err.Error(), statusFromError(err))
		return
	}

	if resp.Revision != "" {
		w.Header().Set("ETag", `"`+resp.Revision+`"`)
	}
	w.WriteHeader(resp.StatusCode)
}

func (h *Handler) deleteDocument(w http.ResponseWriter, r *http.Request) {
	path := treePath(r)

	resp, err := h.client.Delete(r.Context(), path)
	if err != nil {
		h.logger.Err(err).Str("path", path).Msg("error deleting document")
		http.Error(w, err.Error(), statusFromError(err))
		return
	}

	w.WriteHeader(resp.StatusCode)
}

// treePath recovers the tree path from the request URL, keeping the trailing
// slash that distinguishes folders from documents. chi's wildcard parameter
// strips it, so the raw URL path is used instead.
func treePath(r *http.Request) string {
	return strings.TrimPrefix(r.URL.Path, "/storage")
}

func parseMaxAge(r *http.Request) (time.Duration, error) {
	raw := r.Header.Get(maxAgeHeader)
	if raw == "" {
		return 0, nil
	}
	return time.ParseDuration(raw)
}

func writeStorageResponse(w http.ResponseWriter, path string, resp cache.Response) {
	if resp.StatusCode == http.StatusNotFound {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	if resp.Revision != "" {
		w.Header().Set("ETag", `"`+resp.Revision+`"`)
	}

	if models.IsFolder(path) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(resp.StatusCode)
		_ = json.NewEncoder(w).Encode(folderListing(resp.Items))
		return
	}

	if resp.ContentType != "" {
		w.Header().Set("Content-Type", resp.ContentType)
	}
	w.WriteHeader(resp.StatusCode)
	_, _ = w.Write(resp.Body)
}

type listingEntry struct {
	ETag          string `json:"ETag,omitzero"`
	ContentType   string `json:"Content-Type,omitzero"`
	ContentLength int64  `json:"Content-Length,omitzero"`
}

// folderListing renders a folder in the same shape the remote protocol uses,
// so clients of the local endpoint can parse listings with the same code.
func folderListing(items map[string]models.FolderItem) map[string]any {
	listing := make(map[string]listingEntry, len(items))
	for name, item := range items {
		listing[name] = listingEntry{
			ETag:          item.ETag,
			ContentType:   item.ContentType,
			ContentLength: item.ContentLength,
		}
	}
	return map[string]any{"items": listing}
}
