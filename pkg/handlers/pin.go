// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"strings"

	"github.com/sidianbank/ussd-gateway/pkg/crypto"
	"github.com/sidianbank/ussd-gateway/pkg/logger"
	"github.com/sidianbank/ussd-gateway/pkg/menu"
	"github.com/sidianbank/ussd-gateway/pkg/session"
	"github.com/sidianbank/ussd-gateway/pkg/upstream"
)

// Menu names the pin module routes to.
const (
	MenuHome           = "home"
	MenuMainMenu       = "main_menu"
	MenuForgotPinInfo  = "forgot_pin_info"
	MenuChangePinBlock = "change_pin_forced"
	MenuPin            = "pin"
)

const (
	msgPinExpired    = "Your PIN has expired. Please change your PIN to continue."
	msgAccountBlock  = "Your account has been blocked. Please visit your nearest branch or contact customer care."
	msgInvalidLogin  = "Invalid Login Password"
	msgLoginFailed   = "Login failed. Please try again."
	msgPinShape      = "PIN must be 4 to 6 digits. Please try again."
	msgPinUnreadable = "We could not read your PIN. Please try again."
)

// PinModule authenticates the caller against the core and handles the
// forgot-PIN branch.
type PinModule struct {
	banking  Banking
	sessions SessionAccess
	cipher   *crypto.PinCipher
}

// NewPinModule wires the pin module.
func NewPinModule(banking Banking, sessions SessionAccess, cipher *crypto.PinCipher) *PinModule {
	return &PinModule{banking: banking, sessions: sessions, cipher: cipher}
}

// Name implements Module.
func (*PinModule) Name() string { return "pin" }

// Handlers implements Module.
func (m *PinModule) Handlers() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		"processPinOrForgot": m.ProcessPinOrForgot,
	}
}

// ProcessPinOrForgot is the home and pin menu handler. A literal "1"
// takes the forgot-PIN branch; anything else is treated as a PIN and
// verified upstream. At render time (nil input) it defers to the node's
// configured message.
func (m *PinModule) ProcessPinOrForgot(ctx context.Context, in menu.Input) (*menu.Result, error) {
	if in.Value == nil {
		return nil, nil
	}
	raw := strings.TrimSpace(in.Raw())

	if raw == "1" {
		return &menu.Result{NextMenu: MenuForgotPinInfo}, nil
	}

	pin, err := m.cipher.Decrypt(raw)
	if err != nil {
		logger.Warnf("PIN decryption failed: %v", err)
		return retryPin(msgPinUnreadable), nil
	}
	if !menu.ValidPin(pin) {
		return retryPin(msgPinShape), nil
	}

	if err := m.sessions.Put(ctx, in.Ref, session.SlotPinAttempt, pin); err != nil {
		return nil, err
	}

	env := m.banking.Login(ctx, in.Ref, customerID(in.Customer), pin)
	if !env.Success {
		return loginFailure(env), nil
	}
	return m.loginSucceeded(ctx, in, env)
}

// loginSucceeded persists the authenticated state and routes either to
// the main menu or to the transaction that parked itself behind the PIN
// prompt.
func (m *PinModule) loginSucceeded(ctx context.Context, in menu.Input, env upstream.Envelope) (*menu.Result, error) {
	accounts := splitAccounts(env.Data["ACCOUNTS"])

	patch := map[string]any{
		"authStatus": string(session.AuthAuthenticated),
	}
	if len(accounts) > 0 {
		patch["customerData"] = map[string]any{"accounts": accounts}
	}
	if _, err := m.sessions.Update(ctx, in.Ref, patch); err != nil {
		return nil, err
	}
	if err := m.sessions.Put(ctx, in.Ref, session.SlotLoginData, env.Data); err != nil {
		logger.Warnf("Persisting login data failed: %v", err)
	}
	// Keep the engine's in-turn view of the accounts current.
	if in.Customer != nil && len(accounts) > 0 {
		in.Customer.Accounts = accounts
	}

	// A transaction that ran into a missing PIN parks its menu here.
	var redirect string
	found, err := m.sessions.Consume(ctx, in.Ref, session.SlotPostPinRedirect, &redirect)
	if err != nil {
		logger.Warnf("Reading post-pin redirect failed: %v", err)
	}
	if found && redirect != "" {
		var pin string
		if ok, err := m.sessions.Grab(ctx, in.Ref, session.SlotPinAttempt, &pin); err == nil && ok {
			if err := m.sessions.Put(ctx, in.Ref, session.SlotTransactionPin, pin); err != nil {
				logger.Warnf("Persisting transaction pin failed: %v", err)
			}
		}
		return &menu.Result{NextMenu: redirect}, nil
	}

	return &menu.Result{NextMenu: MenuMainMenu}, nil
}

func loginFailure(env upstream.Envelope) *menu.Result {
	switch env.Status {
	case upstream.StatusPinExpired:
		return &menu.Result{
			Action:   menu.ActionCon,
			Message:  msgPinExpired,
			NextMenu: MenuChangePinBlock,
		}
	case upstream.StatusAccountBlocked:
		return &menu.Result{Action: menu.ActionEnd, Message: msgAccountBlock}
	case upstream.StatusInvalidPin:
		return retryPin(msgInvalidLogin)
	}

	msg := env.Error
	if msg == "" {
		msg = env.Message
	}
	if msg == "" {
		msg = msgLoginFailed
	}
	return retryPin(msg)
}

func retryPin(msg string) *menu.Result {
	return &menu.Result{
		Error:        menu.ErrValidationFailed,
		ErrorMessage: msg,
		RetryMenu:    MenuHome,
	}
}

// splitAccounts turns the comma-separated ACCOUNTS field into a clean
// slice: entries trimmed, empties dropped.
func splitAccounts(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	accounts := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			accounts = append(accounts, trimmed)
		}
	}
	return accounts
}

func customerID(c *session.CustomerData) string {
	if c == nil {
		return ""
	}
	return c.CustomerID
}
