// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidianbank/ussd-gateway/pkg/menu"
	"github.com/sidianbank/ussd-gateway/pkg/session"
	"github.com/sidianbank/ussd-gateway/pkg/upstream"
)

// statementWire builds a response whose rows start at the fixed offset.
func statementWire(rows ...[5]string) string {
	parts := []string{
		"STATUS", "000", "FORMID", "MINISTATEMENT", "CUSTOMERID",
		"C100", "BANKID", "SB", "PAD", "PAD",
	}
	for _, row := range rows {
		parts = append(parts, row[0], row[1], row[2], row[3], row[4])
	}
	return strings.Join(parts, ":")
}

func TestStatementSelectAccount(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	m := NewStatementModule(env.banking, env.sessions, env.cipher)
	ctx := context.Background()

	res, err := m.SelectAccount(ctx, env.newInput(t, "", bankedCustomer()))
	require.NoError(t, err)
	assert.Contains(t, res.Message, "1. 0102030405-Main")

	res, err = m.SelectAccount(ctx, env.newInput(t, "1", bankedCustomer()))
	require.NoError(t, err)
	assert.Equal(t, MenuStatementPin, res.NextMenu)

	acc, found, err := env.sessions.GrabString(ctx, testRef, session.SlotStatementAccount)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "0102030405-Main", acc)
}

func TestStatementHappyPath(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.banking.loginEnv = successLogin("")
	env.banking.statementEnv = upstream.DecodeResponse(statementWire(
		[5]string{"12/08", "MPESA TRANSFER", "DEBIT", "KES 500.00", "KES 1,200.00"},
		[5]string{"10/08", "SALARY", "CREDIT", "KES 35,000.00", "KES 1,700.00"},
	))
	m := NewStatementModule(env.banking, env.sessions, env.cipher)
	ctx := context.Background()

	in := env.newInput(t, "1234", bankedCustomer())
	require.NoError(t, env.sessions.Put(ctx, testRef, session.SlotStatementAccount, "0102030405-Main"))

	res, err := m.ProcessStatementRequest(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, menu.ActionEnd, res.Action)
	assert.Contains(t, res.Message, "1. 12/08 MPESA TRANSFER DEBIT KES 500.00 Bal KES 1,200.00")
	assert.Contains(t, res.Message, "2. 10/08 SALARY CREDIT KES 35,000.00 Bal KES 1,700.00")
}

func TestStatementCapsAtFiveRows(t *testing.T) {
	t.Parallel()

	var rows [][5]string
	for i := 0; i < 8; i++ {
		rows = append(rows, [5]string{"01/08", "TXN", "DEBIT", "KES 1.00", "KES 1.00"})
	}
	parsed := ParseStatementRows(upstream.DecodeResponse(statementWire(rows...)).Parts)
	assert.Len(t, parsed, 5)
}

func TestStatementEmptyResponse(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.banking.loginEnv = successLogin("")
	env.banking.statementEnv = upstream.DecodeResponse(statementWire())
	m := NewStatementModule(env.banking, env.sessions, env.cipher)
	ctx := context.Background()

	in := env.newInput(t, "1234", bankedCustomer())
	require.NoError(t, env.sessions.Put(ctx, testRef, session.SlotStatementAccount, "0102030405-Main"))

	res, err := m.ProcessStatementRequest(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, menu.ActionEnd, res.Action)
	assert.Contains(t, res.Message, msgStatementEmpty)
}

func TestStatementWithoutSlotDrifts(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	m := NewStatementModule(env.banking, env.sessions, env.cipher)

	res, err := m.ProcessStatementRequest(context.Background(), env.newInput(t, "1234", bankedCustomer()))
	require.NoError(t, err)
	assert.True(t, res.Failed())
	assert.Equal(t, MenuMainMenu, res.RetryMenu)
}
