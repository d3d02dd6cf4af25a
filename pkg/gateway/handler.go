// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

// Package gateway orchestrates one USSD turn: session lifecycle, customer
// bootstrap, menu engine dispatch, and frame emission.
package gateway

import (
	"context"
	"strings"
	"time"

	"github.com/sidianbank/ussd-gateway/pkg/config"
	"github.com/sidianbank/ussd-gateway/pkg/errors"
	"github.com/sidianbank/ussd-gateway/pkg/logger"
	"github.com/sidianbank/ussd-gateway/pkg/menu"
	"github.com/sidianbank/ussd-gateway/pkg/session"
	"github.com/sidianbank/ussd-gateway/pkg/telemetry"
	"github.com/sidianbank/ussd-gateway/pkg/upstream"
)

const msgGatewayUnavailable = "Service temporarily unavailable. Please try again later."

// preloadedSlots are the workflow slots mirrored into the turn data so
// menu placeholders and conditions can see values stored on earlier turns.
var preloadedSlots = []string{
	session.SlotNetwork,
	session.SlotMerchantID,
	session.SlotAirtimeAmount,
	session.SlotAirtimeMode,
	session.SlotAirtimeRecipient,
	session.SlotAirtimeAccount,
	session.SlotBalanceAccount,
	session.SlotStatementAccount,
}

// CustomerLookup is the slice of the upstream client the turn handler
// uses to bootstrap a session's customer profile.
type CustomerLookup interface {
	GetCustomer(ctx context.Context, ref session.Ref) upstream.Envelope
}

// TurnRequest is one inbound aggregator exchange.
type TurnRequest struct {
	MSISDN    string
	SessionID string
	Shortcode string
	Input     string
}

// Handler drives the per-request turn state machine.
type Handler struct {
	sessions *session.Store
	engine   *menu.Engine
	customer CustomerLookup
	rules    *config.BusinessRules
	bank     config.Bank
	metrics  *telemetry.Metrics
}

// NewHandler wires the turn handler. metrics may be nil.
func NewHandler(
	sessions *session.Store,
	engine *menu.Engine,
	customer CustomerLookup,
	rules *config.BusinessRules,
	bank config.Bank,
	metrics *telemetry.Metrics,
) *Handler {
	if rules == nil {
		rules = config.DefaultBusinessRules()
	}
	return &Handler{
		sessions: sessions,
		engine:   engine,
		customer: customer,
		rules:    rules,
		bank:     bank,
		metrics:  metrics,
	}
}

// HandleTurn resolves one turn into a frame. The only error it returns
// is invalid_request for missing identifiers; every other failure is
// absorbed into a user-safe frame because the telco channel cannot
// display HTTP errors.
func (h *Handler) HandleTurn(ctx context.Context, req TurnRequest) (menu.Frame, error) {
	start := time.Now()

	if req.MSISDN == "" || req.SessionID == "" {
		return menu.Frame{}, errors.NewInvalidRequestError("msisdn and sessionid are required", nil)
	}
	ref := session.Ref{MSISDN: req.MSISDN, SessionID: req.SessionID, Shortcode: req.Shortcode}

	sess, err := h.resolveSession(ctx, ref)
	if err != nil {
		logger.Errorw("Session store unavailable", "error", err,
			"msisdn", upstream.MaskString("MSISDN:"+req.MSISDN))
		return h.emit(ctx, menu.Frame{Action: menu.ActionEnd, Message: msgGatewayUnavailable}, start), nil
	}

	sess = h.bootstrapCustomer(ctx, ref, sess)

	tc := menu.NewTurnContext(sess, ref, h.sessions, h.turnData(ctx, ref, sess))

	frame, nextMenu := h.resolveFrame(ctx, sess, tc, strings.TrimSpace(req.Input))

	if frame.Action == menu.ActionEnd {
		if err := h.sessions.Clear(ctx, ref); err != nil {
			logger.Warnf("Clearing session failed: %v", err)
		}
		h.metrics.RecordSessionEvent(ctx, telemetry.SessionCleared)
		return h.emit(ctx, frame, start), nil
	}

	if nextMenu != "" && nextMenu != sess.CurrentMenu {
		h.advanceMenu(ctx, ref, sess, nextMenu)
	}

	return h.emit(ctx, frame, start), nil
}

// resolveSession fetches the session, recreating it when absent or when
// its wall-clock age exceeds the TTL. A late turn never resumes.
func (h *Handler) resolveSession(ctx context.Context, ref session.Ref) (*session.Session, error) {
	sess, found, err := h.sessions.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !found {
		h.metrics.RecordSessionEvent(ctx, telemetry.SessionCreated)
		return h.sessions.Create(ctx, ref)
	}

	elapsed, err := h.sessions.ElapsedSeconds(ctx, ref)
	if err != nil {
		return nil, err
	}
	if elapsed > int64(h.sessions.TTL().Seconds()) {
		logger.Infow("Session expired, starting fresh", "elapsedSeconds", elapsed)
		if err := h.sessions.Clear(ctx, ref); err != nil {
			return nil, err
		}
		h.metrics.RecordSessionEvent(ctx, telemetry.SessionExpired)
		return h.sessions.Create(ctx, ref)
	}

	return sess, nil
}

// bootstrapCustomer runs the GETCUSTOMER lookup on a fresh home session.
// A failed lookup degrades to the guest profile; an established non-guest
// record is never overwritten.
func (h *Handler) bootstrapCustomer(ctx context.Context, ref session.Ref, sess *session.Session) *session.Session {
	if sess.CurrentMenu != session.HomeMenu || sess.CustomerData != nil {
		return sess
	}

	customer := h.lookupCustomer(ctx, ref)
	updated, err := h.sessions.Update(ctx, ref, map[string]any{"customerData": customer})
	if err != nil {
		logger.Warnf("Persisting customer data failed: %v", err)
		sess.CustomerData = customer
		return sess
	}
	return updated
}

func (h *Handler) lookupCustomer(ctx context.Context, ref session.Ref) *session.CustomerData {
	guest := &session.CustomerData{CustomerID: session.GuestCustomerID, FirstName: "Customer"}
	if h.customer == nil {
		return guest
	}

	env := h.customer.GetCustomer(ctx, ref)
	if !env.Success {
		logger.Infow("Customer lookup failed, continuing as guest",
			"status", env.Status, "code", env.Code)
		return guest
	}

	customer := &session.CustomerData{
		CustomerID: env.Data["CUSTOMERID"],
		FirstName:  env.Data["FIRSTNAME"],
		LastName:   env.Data["LASTNAME"],
		Language:   env.Data["LANGUAGE"],
		IDNumber:   env.Data["IDNUMBER"],
		Email:      env.Data["EMAIL"],
	}
	if customer.CustomerID == "" {
		return guest
	}
	if accounts := env.Data["BANKACCOUNTS"]; accounts != "" {
		customer.Accounts = splitList(accounts)
	}
	if aliases := env.Data["ALIASES"]; aliases != "" {
		customer.Aliases = splitList(aliases)
	}
	if customer.FirstName == "" {
		customer.FirstName = "Customer"
	}
	return customer
}

// turnData assembles the dotted-path tree the engine evaluates against.
func (h *Handler) turnData(ctx context.Context, ref session.Ref, sess *session.Session) map[string]any {
	slotData := map[string]any{
		"msisdn":    ref.MSISDN,
		"shortcode": ref.Shortcode,
		"bankName":  h.bank.Name,
	}
	for _, slot := range preloadedSlots {
		value, found, err := h.sessions.GrabString(ctx, ref, slot)
		if err != nil {
			logger.Warnf("Preloading slot %q failed: %v", slot, err)
			continue
		}
		if found {
			slotData[slot] = value
		}
	}

	return map[string]any{
		"customer": sess.CustomerData,
		"session":  sess,
		"data":     slotData,
		"transaction": map[string]any{
			"count": sess.TransactionCount,
		},
		"rules": h.rules,
	}
}

// resolveFrame runs the engine: render on an empty input, process
// otherwise. The second return is the menu the session advances to.
func (h *Handler) resolveFrame(ctx context.Context, sess *session.Session, tc *menu.TurnContext, input string) (menu.Frame, string) {
	if input == "" {
		frame := h.engine.Render(ctx, sess.CurrentMenu, tc)
		return frame, frame.NextMenu
	}

	res := h.engine.Process(ctx, sess.CurrentMenu, input, tc)

	if res.Failed() {
		retry := res.RetryMenu
		if retry == "" {
			retry = sess.CurrentMenu
		}
		rendered := h.engine.Render(ctx, retry, tc)
		frame := menu.Frame{
			Action:  rendered.Action,
			Message: res.ErrorMessage + "\n\n" + rendered.Message,
		}
		return frame, retry
	}

	if res.Message != "" {
		return menu.Frame{Action: res.Action, Message: res.Message}, res.NextMenu
	}

	if res.NextMenu != "" {
		frame := h.engine.Render(ctx, res.NextMenu, tc)
		next := res.NextMenu
		// A render-time handler may redirect once more.
		if frame.NextMenu != "" {
			next = frame.NextMenu
		}
		return frame, next
	}

	return h.engine.Render(ctx, sess.CurrentMenu, tc), ""
}

func (h *Handler) advanceMenu(ctx context.Context, ref session.Ref, sess *session.Session, next string) {
	history := append(append([]string{}, sess.MenuHistory...), next)
	_, err := h.sessions.Update(ctx, ref, map[string]any{
		"currentMenu": next,
		"menuHistory": history,
	})
	if err != nil {
		logger.Warnf("Advancing session menu to %q failed: %v", next, err)
	}
}

func (h *Handler) emit(ctx context.Context, frame menu.Frame, start time.Time) menu.Frame {
	h.metrics.RecordTurn(ctx, frame.Action, time.Since(start))
	return frame
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
