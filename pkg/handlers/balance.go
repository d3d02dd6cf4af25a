// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"strconv"
	"strings"

	"github.com/sidianbank/ussd-gateway/pkg/crypto"
	"github.com/sidianbank/ussd-gateway/pkg/logger"
	"github.com/sidianbank/ussd-gateway/pkg/menu"
	"github.com/sidianbank/ussd-gateway/pkg/session"
	"github.com/sidianbank/ussd-gateway/pkg/upstream"
)

// Menu names of the balance flow.
const (
	MenuBalanceAccounts = "balance_accounts"
	MenuBalancePin      = "balance_pin"
)

const (
	msgSelectAccount   = "Select account:"
	msgAccountRange    = "Invalid account selection. Please try again."
	msgNoAccounts      = "No accounts are linked to your profile. Please visit your nearest branch."
	msgBalanceFailed   = "We could not fetch your balance at this time. Please try again later."
	msgSessionDrifted  = "Your session has drifted. Please start again."
	msgBalanceContinue = "\n\n0. Main menu"
)

// BalanceModule drives the two-step balance enquiry: account selection,
// then PIN-verified query.
type BalanceModule struct {
	banking  Banking
	sessions SessionAccess
	cipher   *crypto.PinCipher
}

// NewBalanceModule wires the balance module.
func NewBalanceModule(banking Banking, sessions SessionAccess, cipher *crypto.PinCipher) *BalanceModule {
	return &BalanceModule{banking: banking, sessions: sessions, cipher: cipher}
}

// Name implements Module.
func (*BalanceModule) Name() string { return "balance" }

// Handlers implements Module.
func (m *BalanceModule) Handlers() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		"processBalanceRequest": m.ProcessBalanceRequest,
		"processBalancePin":     m.ProcessBalancePin,
	}
}

// ProcessBalanceRequest renders the account list at render time and
// resolves a 1-indexed selection on input.
func (m *BalanceModule) ProcessBalanceRequest(ctx context.Context, in menu.Input) (*menu.Result, error) {
	accounts := customerAccounts(in.Customer)

	if in.Value == nil {
		if len(accounts) == 0 {
			return &menu.Result{Action: menu.ActionEnd, Message: msgNoAccounts}, nil
		}
		return &menu.Result{
			Action:  menu.ActionCon,
			Message: renderAccountList(accounts),
		}, nil
	}

	idx, err := strconv.Atoi(strings.TrimSpace(in.Raw()))
	if err != nil || idx < 1 || idx > len(accounts) {
		return &menu.Result{
			Error:        menu.ErrInvalidInput,
			ErrorMessage: msgAccountRange,
			RetryMenu:    MenuBalanceAccounts,
		}, nil
	}

	if err := m.sessions.Put(ctx, in.Ref, session.SlotBalanceAccount, accounts[idx-1]); err != nil {
		return nil, err
	}
	return &menu.Result{NextMenu: MenuBalancePin}, nil
}

// ProcessBalancePin verifies the PIN and issues the balance query for the
// account selected in the previous step.
func (m *BalanceModule) ProcessBalancePin(ctx context.Context, in menu.Input) (*menu.Result, error) {
	if in.Value == nil {
		return nil, nil
	}

	pin, err := m.cipher.Decrypt(strings.TrimSpace(in.Raw()))
	if err != nil {
		logger.Warnf("PIN decryption failed: %v", err)
		return retryAt(MenuBalancePin, msgPinUnreadable), nil
	}
	if !menu.ValidPin(pin) {
		return retryAt(MenuBalancePin, msgPinShape), nil
	}

	account, found, err := m.sessions.GrabString(ctx, in.Ref, session.SlotBalanceAccount)
	if err != nil {
		return nil, err
	}
	if !found {
		return &menu.Result{
			Error:        menu.ErrInvalidInput,
			ErrorMessage: msgSessionDrifted,
			RetryMenu:    MenuMainMenu,
		}, nil
	}

	if err := m.sessions.Put(ctx, in.Ref, session.SlotPinAttempt, pin); err != nil {
		return nil, err
	}

	cid := customerID(in.Customer)
	login := m.banking.Login(ctx, in.Ref, cid, pin)
	if !login.Success {
		if login.Status == upstream.StatusInvalidPin {
			return retryAt(MenuBalancePin, msgInvalidLogin), nil
		}
		m.clearSlots(ctx, in.Ref)
		return loginFailure(login), nil
	}

	env := m.banking.Balance(ctx, in.Ref, cid, accountNumber(account))
	m.clearSlots(ctx, in.Ref)
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = msgBalanceFailed
		}
		return &menu.Result{
			Error:        menu.ErrAPIError,
			ErrorMessage: msg,
			RetryMenu:    MenuMainMenu,
		}, nil
	}

	if _, err := m.sessions.IncrementTransactionCount(ctx, in.Ref); err != nil {
		logger.Warnf("Incrementing transaction count failed: %v", err)
	}

	return &menu.Result{
		Action:   menu.ActionCon,
		Message:  formatBalanceSummary(account, env.Message) + msgBalanceContinue,
		NextMenu: MenuMainMenu,
	}, nil
}

func (m *BalanceModule) clearSlots(ctx context.Context, ref session.Ref) {
	if err := m.sessions.Blank(ctx, ref, session.SlotBalanceAccount, session.SlotPinAttempt); err != nil {
		logger.Warnf("Clearing balance slots failed: %v", err)
	}
}

// formatBalanceSummary turns the pipe-separated "label|value|..." payload
// into "LABEL: VALUE" lines.
func formatBalanceSummary(account, message string) string {
	var b strings.Builder
	b.WriteString("Balance for ")
	b.WriteString(account)

	parts := strings.Split(message, "|")
	for i := 0; i+1 < len(parts); i += 2 {
		label := strings.TrimSpace(parts[i])
		value := strings.TrimSpace(parts[i+1])
		if label == "" || value == "" {
			continue
		}
		b.WriteString("\n")
		b.WriteString(label)
		b.WriteString(": ")
		b.WriteString(value)
	}
	if !strings.Contains(message, "|") && strings.TrimSpace(message) != "" {
		b.WriteString("\n")
		b.WriteString(strings.TrimSpace(message))
	}
	return b.String()
}

func renderAccountList(accounts []string) string {
	var b strings.Builder
	b.WriteString(msgSelectAccount)
	for i, acc := range accounts {
		b.WriteString("\n")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(acc)
	}
	return b.String()
}

// accountNumber strips the "-Label" suffix the core attaches to account
// entries, leaving the bare account id used on the wire.
func accountNumber(account string) string {
	if idx := strings.Index(account, "-"); idx > 0 {
		return account[:idx]
	}
	return account
}

func customerAccounts(c *session.CustomerData) []string {
	if c == nil {
		return nil
	}
	return c.Accounts
}

func retryAt(menuName, msg string) *menu.Result {
	return &menu.Result{
		Error:        menu.ErrValidationFailed,
		ErrorMessage: msg,
		RetryMenu:    menuName,
	}
}
