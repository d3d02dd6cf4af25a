// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/sidianbank/ussd-gateway/pkg/config"
	"github.com/sidianbank/ussd-gateway/pkg/crypto"
	"github.com/sidianbank/ussd-gateway/pkg/kvstore"
	"github.com/sidianbank/ussd-gateway/pkg/menu"
	"github.com/sidianbank/ussd-gateway/pkg/session"
	"github.com/sidianbank/ussd-gateway/pkg/upstream"
)

var testRef = session.Ref{MSISDN: "254700111222", SessionID: "S1", Shortcode: "527"}

// fakeBanking records calls and serves canned envelopes per operation.
type fakeBanking struct {
	loginEnv     upstream.Envelope
	balanceEnv   upstream.Envelope
	statementEnv upstream.Envelope
	airtimeEnv   upstream.Envelope

	loginCalls   int
	lastPin      string
	lastAccount  string
	lastPurchase upstream.AirtimePurchase
}

func (f *fakeBanking) Login(_ context.Context, _ session.Ref, _, pin string) upstream.Envelope {
	f.loginCalls++
	f.lastPin = pin
	return f.loginEnv
}

func (f *fakeBanking) Balance(_ context.Context, _ session.Ref, _, account string) upstream.Envelope {
	f.lastAccount = account
	return f.balanceEnv
}

func (f *fakeBanking) MiniStatement(_ context.Context, _ session.Ref, _, account string) upstream.Envelope {
	f.lastAccount = account
	return f.statementEnv
}

func (f *fakeBanking) PurchaseAirtime(_ context.Context, _ session.Ref, p upstream.AirtimePurchase) upstream.Envelope {
	f.lastPurchase = p
	return f.airtimeEnv
}

var _ Banking = (*fakeBanking)(nil)

type testEnv struct {
	banking  *fakeBanking
	sessions *session.Store
	kv       kvstore.Store
	cipher   *crypto.PinCipher
	mr       *miniredis.Miniredis
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	kv := kvstore.NewWithClient(client)
	t.Cleanup(func() { _ = kv.Close() })

	cipher, err := crypto.NewPinCipher(config.Crypto{PinDecryptionDisabled: true})
	require.NoError(t, err)

	return &testEnv{
		banking:  &fakeBanking{},
		sessions: session.NewStore(kv, "ussd:session", 300*time.Second, time.UTC),
		kv:       kv,
		cipher:   cipher,
		mr:       mr,
	}
}

// newInput seeds a session for testRef and builds a handler input.
func (e *testEnv) newInput(t *testing.T, value string, customer *session.CustomerData) menu.Input {
	t.Helper()
	ctx := context.Background()
	_, err := e.sessions.Create(ctx, testRef)
	require.NoError(t, err)
	if customer != nil {
		_, err = e.sessions.Update(ctx, testRef, map[string]any{"customerData": customer})
		require.NoError(t, err)
	}

	in := menu.Input{
		Session:  &session.Session{CurrentMenu: session.HomeMenu, AuthStatus: session.AuthPending},
		Ref:      testRef,
		Slots:    e.sessions,
		Customer: customer,
	}
	if value != "" {
		in.Value = &value
	}
	return in
}

func successLogin(accounts string) upstream.Envelope {
	data := map[string]string{"STATUS": "000"}
	if accounts != "" {
		data["ACCOUNTS"] = accounts
	}
	return upstream.Envelope{Success: true, Status: "000", Data: data}
}

func failedEnv(status, message string) upstream.Envelope {
	return upstream.Envelope{
		Success: false,
		Status:  status,
		Code:    status,
		Error:   message,
		Data:    map[string]string{"STATUS": status},
	}
}
