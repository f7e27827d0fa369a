// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 The treesync Authors

package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func (h *Handler) Init() *chi.Mux {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(h.withLogging)

	router.Route("/api", func(r chi.Router) {
		r.Get("/version", h.getVersion)
		r.Post("/caching", h.setCaching)
		r.Post("/access", h.claimAccess)
		r.Post("/connect", h.connect)
		r.Post("/disconnect", h.disconnect)
	})

	router.Get("/storage/*", h.getDocument)
	router.Put("/storage/*", h.putDocument)
	router.Delete("/storage/*", h.deleteDocument)

	return router
}
