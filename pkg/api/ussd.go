// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sidianbank/ussd-gateway/pkg/errors"
	"github.com/sidianbank/ussd-gateway/pkg/gateway"
	"github.com/sidianbank/ussd-gateway/pkg/logger"
	"github.com/sidianbank/ussd-gateway/pkg/menu"
	"github.com/sidianbank/ussd-gateway/pkg/upstream"
)

const invalidParametersBody = "end Invalid parameters"

// TurnHandler resolves one USSD turn into a frame.
type TurnHandler interface {
	HandleTurn(ctx context.Context, req gateway.TurnRequest) (menu.Frame, error)
}

// turnPayload is the inbound aggregator request, form-urlencoded or JSON.
type turnPayload struct {
	MSISDN    string `json:"msisdn" validate:"required,numeric,len=12,startswith=254"`
	SessionID string `json:"sessionid" validate:"required,min=3,max=50"`
	Shortcode string `json:"shortcode" validate:"omitempty,numeric,min=3,max=6"`
	Response  string `json:"response" validate:"omitempty,max=500"`
}

type turnRoutes struct {
	turns    TurnHandler
	validate *validator.Validate
}

func newTurnRoutes(turns TurnHandler) *turnRoutes {
	return &turnRoutes{
		turns:    turns,
		validate: validator.New(),
	}
}

// handleTurn answers one aggregator exchange. The only non-200 the route
// emits is 400 on malformed parameters; everything else is a valid frame.
func (t *turnRoutes) handleTurn(w http.ResponseWriter, r *http.Request) {
	payload, err := decodeTurnPayload(r)
	if err != nil {
		writeFrameText(w, http.StatusBadRequest, invalidParametersBody)
		return
	}

	if err := t.validate.Struct(payload); err != nil {
		logger.Debugw("Turn request rejected",
			"error", err.Error(),
			"msisdn", upstream.MaskString("MSISDN:"+payload.MSISDN))
		writeFrameText(w, http.StatusBadRequest, invalidParametersBody)
		return
	}

	frame, err := t.turns.HandleTurn(r.Context(), gateway.TurnRequest{
		MSISDN:    payload.MSISDN,
		SessionID: payload.SessionID,
		Shortcode: payload.Shortcode,
		Input:     payload.Response,
	})
	if err != nil {
		if errors.IsInvalidRequest(err) {
			writeFrameText(w, http.StatusBadRequest, invalidParametersBody)
			return
		}
		// HandleTurn absorbs everything else; reaching here is a bug.
		logger.Errorf("Turn handler returned unexpected error: %v", err)
		writeFrameText(w, http.StatusOK, "end Service temporarily unavailable. Please try again later.")
		return
	}

	writeFrameText(w, http.StatusOK, fmt.Sprintf("%s %s", frame.Action, frame.Message))
}

// decodeTurnPayload reads the body as JSON or as a form, depending on
// Content-Type.
func decodeTurnPayload(r *http.Request) (*turnPayload, error) {
	contentType := r.Header.Get("Content-Type")
	if strings.HasPrefix(contentType, "application/json") {
		var payload turnPayload
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return nil, fmt.Errorf("malformed JSON body: %w", err)
		}
		return &payload, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, fmt.Errorf("malformed form body: %w", err)
	}
	return &turnPayload{
		MSISDN:    strings.TrimSpace(r.PostFormValue("msisdn")),
		SessionID: strings.TrimSpace(r.PostFormValue("sessionid")),
		Shortcode: strings.TrimSpace(r.PostFormValue("shortcode")),
		Response:  r.PostFormValue("response"),
	}, nil
}

func writeFrameText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(body)); err != nil {
		logger.Warnf("Writing turn response failed: %v", err)
	}
}
