// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The treesync Authors

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/treestash/treesync/internal/adapter"
	"github.com/treestash/treesync/internal/syncer"
	"github.com/treestash/treesync/models"
)

var errorStatusMap = map[error]int{
	models.ErrInvalidPath: http.StatusBadRequest,

	adapter.ErrNetwork:      http.StatusBadGateway,
	adapter.ErrNotConnected: http.StatusServiceUnavailable,

	syncer.ErrUnauthorized: http.StatusBadGateway,

	context.Canceled:         http.StatusRequestTimeout,
	context.DeadlineExceeded: http.StatusRequestTimeout,
}

func statusFromError(err error) int {
	for target, status := range errorStatusMap {
		if errors.Is(err, target) {
			return status
		}
	}
	return http.StatusInternalServerError
}
