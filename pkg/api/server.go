// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

// Package api contains the HTTP surface of the USSD gateway: the turn
// endpoint the telco aggregator calls, the health probe, and metrics.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Server timeout budget. The write timeout must exceed the upstream
// overall timeout so a slow core banking call still produces a frame.
const (
	middlewareTimeout = 30 * time.Second
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
)

// Deps are the collaborators the HTTP surface routes into.
type Deps struct {
	Turns   TurnHandler
	Health  HealthChecker
	Metrics http.Handler // nil when metrics are disabled
}

// NewRouter assembles the gateway router with the standard middleware
// stack.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(middlewareTimeout))

	r.Post("/api/ussd", newTurnRoutes(deps.Turns).handleTurn)
	r.Get("/health", newHealthRoutes(deps.Health).getHealth)
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}
	return r
}

// NewServer wraps the router in an http.Server with the gateway's
// timeout budget. Lifecycle (listen, shutdown) belongs to the caller.
func NewServer(address string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         address,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}
}
