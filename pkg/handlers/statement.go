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

// Menu names of the statement flow.
const (
	MenuStatementAccounts = "statement_accounts"
	MenuStatementPin      = "statement_pin"
)

const (
	msgStatementFailed = "We could not fetch your statement at this time. Please try again later."
	msgStatementEmpty  = "No recent transactions on this account."

	// Mini statement rows start at this positional offset and repeat
	// every rowStride segments: date, description, type, amount, balance.
	statementRowOffset = 10
	statementRowStride = 5
	statementMaxRows   = 5
)

// StatementTransaction is one parsed mini statement row.
type StatementTransaction struct {
	Date        string
	Description string
	Type        string
	Amount      string
	Balance     string
}

// StatementModule fetches and formats a mini statement for the account
// chosen in the previous step.
type StatementModule struct {
	banking  Banking
	sessions SessionAccess
	cipher   *crypto.PinCipher
}

// NewStatementModule wires the statement module.
func NewStatementModule(banking Banking, sessions SessionAccess, cipher *crypto.PinCipher) *StatementModule {
	return &StatementModule{banking: banking, sessions: sessions, cipher: cipher}
}

// Name implements Module.
func (*StatementModule) Name() string { return "statement" }

// Handlers implements Module.
func (m *StatementModule) Handlers() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		"selectAccount":           m.SelectAccount,
		"processStatementRequest": m.ProcessStatementRequest,
	}
}

// SelectAccount renders the account list and stores the 1-indexed choice
// in the statement_account slot.
func (m *StatementModule) SelectAccount(ctx context.Context, in menu.Input) (*menu.Result, error) {
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
			RetryMenu:    MenuStatementAccounts,
		}, nil
	}

	if err := m.sessions.Put(ctx, in.Ref, session.SlotStatementAccount, accounts[idx-1]); err != nil {
		return nil, err
	}
	return &menu.Result{NextMenu: MenuStatementPin}, nil
}

// ProcessStatementRequest verifies the PIN, fetches the mini statement
// for the stored account, and ends the session with the summary.
func (m *StatementModule) ProcessStatementRequest(ctx context.Context, in menu.Input) (*menu.Result, error) {
	if in.Value == nil {
		return nil, nil
	}

	pin, err := m.cipher.Decrypt(strings.TrimSpace(in.Raw()))
	if err != nil {
		logger.Warnf("PIN decryption failed: %v", err)
		return retryAt(MenuStatementPin, msgPinUnreadable), nil
	}
	if !menu.ValidPin(pin) {
		return retryAt(MenuStatementPin, msgPinShape), nil
	}

	account, found, err := m.sessions.GrabString(ctx, in.Ref, session.SlotStatementAccount)
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

	cid := customerID(in.Customer)
	login := m.banking.Login(ctx, in.Ref, cid, pin)
	if !login.Success {
		if login.Status == upstream.StatusInvalidPin {
			return retryAt(MenuStatementPin, msgInvalidLogin), nil
		}
		m.clearSlots(ctx, in.Ref)
		return loginFailure(login), nil
	}

	env := m.banking.MiniStatement(ctx, in.Ref, cid, accountNumber(account))
	m.clearSlots(ctx, in.Ref)
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = msgStatementFailed
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
		Action:  menu.ActionEnd,
		Message: formatStatement(account, ParseStatementRows(env.Parts)),
	}, nil
}

func (m *StatementModule) clearSlots(ctx context.Context, ref session.Ref) {
	if err := m.sessions.Blank(ctx, ref, session.SlotStatementAccount, session.SlotPinAttempt); err != nil {
		logger.Warnf("Clearing statement slots failed: %v", err)
	}
}

// ParseStatementRows walks the positional response segments from the row
// offset, five segments per transaction, capped at five rows.
func ParseStatementRows(parts []string) []StatementTransaction {
	var rows []StatementTransaction
	for i := statementRowOffset; i+statementRowStride <= len(parts) && len(rows) < statementMaxRows; i += statementRowStride {
		row := StatementTransaction{
			Date:        parts[i],
			Description: parts[i+1],
			Type:        parts[i+2],
			Amount:      parts[i+3],
			Balance:     parts[i+4],
		}
		if row.Date == "" && row.Amount == "" {
			continue
		}
		rows = append(rows, row)
	}
	return rows
}

func formatStatement(account string, rows []StatementTransaction) string {
	var b strings.Builder
	b.WriteString("Mini statement for ")
	b.WriteString(account)

	if len(rows) == 0 {
		b.WriteString("\n")
		b.WriteString(msgStatementEmpty)
		return b.String()
	}

	for i, row := range rows {
		b.WriteString("\n")
		b.WriteString(strconv.Itoa(i + 1))
		b.WriteString(". ")
		b.WriteString(row.Date)
		b.WriteString(" ")
		b.WriteString(row.Description)
		b.WriteString(" ")
		b.WriteString(row.Type)
		b.WriteString(" ")
		b.WriteString(row.Amount)
		b.WriteString(" Bal ")
		b.WriteString(row.Balance)
	}
	return b.String()
}
