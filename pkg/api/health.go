// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sidianbank/ussd-gateway/pkg/logger"
)

// HealthChecker probes the gateway's backing services.
type HealthChecker interface {
	RedisHealthy(ctx context.Context) bool
	SessionHealthy(ctx context.Context) bool
}

// healthResponse is the health probe body.
type healthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

type healthRoutes struct {
	checker HealthChecker
}

func newHealthRoutes(checker HealthChecker) *healthRoutes {
	return &healthRoutes{checker: checker}
}

func (h *healthRoutes) getHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	redisOK := h.checker.RedisHealthy(ctx)
	sessionOK := h.checker.SessionHealthy(ctx)

	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services: map[string]string{
			"redis":   serviceState(redisOK),
			"session": serviceState(sessionOK),
		},
	}

	status := http.StatusOK
	if !redisOK || !sessionOK {
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Warnf("Writing health response failed: %v", err)
	}
}

func serviceState(ok bool) string {
	if ok {
		return "up"
	}
	return "down"
}
