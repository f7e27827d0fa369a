// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The treesync Authors

// Package api exposes the synced tree over a local HTTP endpoint. Documents
// and folder listings are served from the cache through the client's
// strategy routing, so reads and writes here behave exactly like embedded
// library calls: cached subtrees answer locally and sync in the background,
// FLUSH subtrees hit the remote directly.
package api

import (
	"github.com/treestash/treesync/internal/client"
	"github.com/treestash/treesync/internal/logger"
)

type Handler struct {
	client  *client.Client
	version string

	logger *logger.Logger
}

func NewHandler(c *client.Client, version string, log *logger.Logger) *Handler {
	log.Info().Msg("api handler created")
	return &Handler{
		client:  c,
		version: version,
		logger:  log.WithComponent("api"),
	}
}
