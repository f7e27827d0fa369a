// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The treesync Authors

package api

import (
	"encoding/json"
	"net/http"

	"github.com/treestash/treesync/internal/client"
)

func (h *Handler) getVersion(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"version": h.version})
}

type cachingRequest struct {
	Folder   string `json:"folder"`
	Strategy string `json:"strategy"`
}

func (h *Handler) setCaching(w http.ResponseWriter, r *http.Request) {
	var req cachingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON was passed", http.StatusBadRequest)
		return
	}

	if err := h.client.SetStrategy(r.Context(), req.Folder, client.Strategy(req.Strategy)); err != nil {
		h.logger.Err(err).Str("folder", req.Folder).Msg("error setting caching strategy")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)
}

type accessRequest struct {
	Folder string `json:"folder"`
	Mode   string `json:"mode"`
}

func (h *Handler) claimAccess(w http.ResponseWriter, r *http.Request) {
	var req accessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON was passed", http.StatusBadRequest)
		return
	}

	if err := h.client.Access().Claim(req.Folder, req.Mode); err != nil {
		h.logger.Err(err).Str("folder", req.Folder).Msg("error claiming access")
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	h.client.Connect(r.Context())
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) disconnect(w http.ResponseWriter, _ *http.Request) {
	h.client.Disconnect()
	w.WriteHeader(http.StatusOK)
}
