// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidianbank/ussd-gateway/pkg/errors"
	"github.com/sidianbank/ussd-gateway/pkg/kvstore"
)

const testPrefix = "ussd:session"

var testRef = Ref{MSISDN: "254700111222", SessionID: "S1", Shortcode: "527"}

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	kv := kvstore.NewWithClient(client)
	t.Cleanup(func() { _ = kv.Close() })
	return NewStore(kv, testPrefix, 300*time.Second, time.UTC), mr
}

func TestRefKeys(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "ussd:session:254700111222:S1:527", testRef.Key(testPrefix))
	assert.Equal(t, "ussd:session:254700111222:S1:527:start", testRef.StartKey(testPrefix))
	assert.Equal(t, "ussd:session:254700111222:S1:527:pin_attempt",
		testRef.SlotKey(testPrefix, SlotPinAttempt))

	bare := Ref{MSISDN: "254700111222", SessionID: "S1"}
	assert.Equal(t, "ussd:session:254700111222:S1:default", bare.Key(testPrefix))
}

func TestCreateDefaults(t *testing.T) {
	t.Parallel()
	store, mr := newTestStore(t)
	ctx := context.Background()

	before := time.Now().UnixMilli()
	sess, err := store.Create(ctx, testRef)
	require.NoError(t, err)

	assert.Equal(t, HomeMenu, sess.CurrentMenu)
	assert.Equal(t, []string{HomeMenu}, sess.MenuHistory)
	assert.Equal(t, AuthPending, sess.AuthStatus)
	assert.Nil(t, sess.CustomerData)
	assert.Zero(t, sess.TransactionCount)
	assert.GreaterOrEqual(t, sess.CreatedAtMillis, before)

	// anchor holds the creation millis as a decimal string
	anchor, err := mr.Get(testRef.StartKey(testPrefix))
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprintf("%d", sess.CreatedAtMillis), anchor)

	assert.Equal(t, 300*time.Second, mr.TTL(testRef.Key(testPrefix)))
	assert.Equal(t, 300*time.Second, mr.TTL(testRef.StartKey(testPrefix)))
}

func TestCreateOverwritesExisting(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()

	first, err := store.Create(ctx, testRef)
	require.NoError(t, err)

	_, err = store.Update(ctx, testRef, map[string]any{"currentMenu": "main_menu"})
	require.NoError(t, err)

	second, err := store.Create(ctx, testRef)
	require.NoError(t, err)
	assert.Equal(t, HomeMenu, second.CurrentMenu)
	assert.GreaterOrEqual(t, second.CreatedAtMillis, first.CreatedAtMillis)
}

func TestGetRefreshesTTLButNotAnchor(t *testing.T) {
	t.Parallel()
	store, mr := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, testRef)
	require.NoError(t, err)

	mr.FastForward(100 * time.Second)

	sess, found, err := store.Get(ctx, testRef)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, HomeMenu, sess.CurrentMenu)

	// the session key is back at full TTL, the anchor keeps counting down
	assert.Equal(t, 300*time.Second, mr.TTL(testRef.Key(testPrefix)))
	assert.Equal(t, 200*time.Second, mr.TTL(testRef.StartKey(testPrefix)))
}

func TestGetAbsent(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)

	sess, found, err := store.Get(context.Background(), testRef)
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, sess)
}

func TestUpdateDeepMerge(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, testRef)
	require.NoError(t, err)

	sess, err := store.Update(ctx, testRef, map[string]any{
		"customerData": map[string]any{
			"customerId": "C100",
			"firstName":  "Wanjiku",
		},
		"authStatus": "authenticated",
	})
	require.NoError(t, err)

	assert.Equal(t, "C100", sess.CustomerData.CustomerID)
	assert.Equal(t, "Wanjiku", sess.CustomerData.FirstName)
	assert.Equal(t, AuthAuthenticated, sess.AuthStatus)
	// untouched fields survive the merge
	assert.Equal(t, HomeMenu, sess.CurrentMenu)
	assert.Equal(t, created.CreatedAtMillis, sess.CreatedAtMillis)

	// a second patch merges into the nested object instead of replacing it
	sess, err = store.Update(ctx, testRef, map[string]any{
		"customerData": map[string]any{
			"accounts": []any{"0102030405-Main", "0102030406-Savings"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "C100", sess.CustomerData.CustomerID)
	assert.Equal(t, "Wanjiku", sess.CustomerData.FirstName)
	assert.Equal(t, []string{"0102030405-Main", "0102030406-Savings"}, sess.CustomerData.Accounts)
}

func TestUpdateArraysReplace(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, testRef)
	require.NoError(t, err)

	_, err = store.Update(ctx, testRef, map[string]any{
		"menuHistory": []any{"home", "main_menu"},
	})
	require.NoError(t, err)

	sess, err := store.Update(ctx, testRef, map[string]any{
		"menuHistory": []any{"home", "main_menu", "balance_accounts"},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"home", "main_menu", "balance_accounts"}, sess.MenuHistory)
}

func TestUpdateNeverRewritesCreatedAt(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()

	created, err := store.Create(ctx, testRef)
	require.NoError(t, err)

	sess, err := store.Update(ctx, testRef, map[string]any{
		"createdAtMillis": int64(1),
	})
	require.NoError(t, err)
	assert.Equal(t, created.CreatedAtMillis, sess.CreatedAtMillis)
}

func TestUpdateRefreshesLastActivity(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, testRef)
	require.NoError(t, err)

	sess, err := store.Update(ctx, testRef, map[string]any{"currentMenu": "main_menu"})
	require.NoError(t, err)
	assert.NotEmpty(t, sess.LastActivity)
	assert.Equal(t, "main_menu", sess.CurrentMenu)
}

func TestUpdateKeepsEstablishedCustomer(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, testRef)
	require.NoError(t, err)

	_, err = store.Update(ctx, testRef, map[string]any{
		"customerData": map[string]any{"customerId": "C100", "firstName": "Wanjiku"},
	})
	require.NoError(t, err)

	// a later guest fallback must not demote the record
	sess, err := store.Update(ctx, testRef, map[string]any{
		"customerData": map[string]any{"customerId": GuestCustomerID, "firstName": "Customer"},
	})
	require.NoError(t, err)
	assert.Equal(t, "C100", sess.CustomerData.CustomerID)
	assert.Equal(t, "Wanjiku", sess.CustomerData.FirstName)
}

func TestClear(t *testing.T) {
	t.Parallel()
	store, mr := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, testRef)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, testRef, SlotPinAttempt, "1234"))

	require.NoError(t, store.Clear(ctx, testRef))

	_, found, err := store.Get(ctx, testRef)
	require.NoError(t, err)
	assert.False(t, found)

	assert.False(t, mr.Exists(testRef.StartKey(testPrefix)))
	// slots are left to expire by TTL
	assert.True(t, mr.Exists(testRef.SlotKey(testPrefix, SlotPinAttempt)))
}

func TestElapsedSeconds(t *testing.T) {
	t.Parallel()
	store, mr := newTestStore(t)
	ctx := context.Background()

	// no anchor yet
	elapsed, err := store.ElapsedSeconds(ctx, testRef)
	require.NoError(t, err)
	assert.Zero(t, elapsed)

	_, err = store.Create(ctx, testRef)
	require.NoError(t, err)

	elapsed, err = store.ElapsedSeconds(ctx, testRef)
	require.NoError(t, err)
	assert.LessOrEqual(t, elapsed, int64(1))

	// back-date the anchor past the TTL
	backdated := time.Now().Add(-301 * time.Second).UnixMilli()
	mr.Set(testRef.StartKey(testPrefix), fmt.Sprintf("%d", backdated))

	elapsed, err = store.ElapsedSeconds(ctx, testRef)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, elapsed, int64(301))
}

func TestElapsedSecondsMalformedAnchor(t *testing.T) {
	t.Parallel()
	store, mr := newTestStore(t)

	mr.Set(testRef.StartKey(testPrefix), "not-a-number")

	elapsed, err := store.ElapsedSeconds(context.Background(), testRef)
	require.NoError(t, err)
	assert.Zero(t, elapsed)
}

func TestIncrementTransactionCount(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, testRef)
	require.NoError(t, err)

	sess, err := store.IncrementTransactionCount(ctx, testRef)
	require.NoError(t, err)
	assert.Equal(t, 1, sess.TransactionCount)
	assert.NotEmpty(t, sess.LastTransaction)

	sess, err = store.IncrementTransactionCount(ctx, testRef)
	require.NoError(t, err)
	assert.Equal(t, 2, sess.TransactionCount)
}

func TestIncrementTransactionCountMissingSession(t *testing.T) {
	t.Parallel()
	store, _ := newTestStore(t)

	_, err := store.IncrementTransactionCount(context.Background(), testRef)
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestHealthy(t *testing.T) {
	t.Parallel()
	store, mr := newTestStore(t)

	assert.True(t, store.Healthy(context.Background()))
	mr.Close()
	assert.False(t, store.Healthy(context.Background()))
}
