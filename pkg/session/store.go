// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"dario.cat/mergo"

	"github.com/sidianbank/ussd-gateway/pkg/errors"
	"github.com/sidianbank/ussd-gateway/pkg/kvstore"
	"github.com/sidianbank/ussd-gateway/pkg/logger"
)

// timeLayout is the human-readable timestamp format persisted on sessions.
const timeLayout = "2006-01-02 15:04:05"

// Store reads and writes sessions and their slots. All operations are
// last-writer-wins on the whole session blob; transient multi-step state
// belongs in slots.
type Store struct {
	kv       kvstore.Store
	prefix   string
	ttl      time.Duration
	location *time.Location
}

// NewStore builds a session store over the given KV facade.
func NewStore(kv kvstore.Store, prefix string, ttl time.Duration, location *time.Location) *Store {
	if location == nil {
		location = time.UTC
	}
	return &Store{
		kv:       kv,
		prefix:   prefix,
		ttl:      ttl,
		location: location,
	}
}

// TTL reports the configured session lifetime.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

func (s *Store) nowString() string {
	return time.Now().In(s.location).Format(timeLayout)
}

// Create writes a fresh default session for the triple, overwriting any
// existing record, and anchors its creation time under the ":start" key.
func (s *Store) Create(ctx context.Context, ref Ref) (*Session, error) {
	now := time.Now()
	sess := &Session{
		CurrentMenu:     HomeMenu,
		MenuHistory:     []string{HomeMenu},
		AuthStatus:      AuthPending,
		SessionStart:    now.In(s.location).Format(timeLayout),
		LastActivity:    now.In(s.location).Format(timeLayout),
		CreatedAtMillis: now.UnixMilli(),
	}

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, errors.NewInternalError("failed to marshal session", err)
	}

	if err := s.kv.Set(ctx, ref.Key(s.prefix), data, s.ttl); err != nil {
		return nil, err
	}

	start := strconv.FormatInt(sess.CreatedAtMillis, 10)
	if err := s.kv.Set(ctx, ref.StartKey(s.prefix), []byte(start), s.ttl); err != nil {
		return nil, err
	}

	return sess, nil
}

// Get returns the session for the triple, refreshing its TTL on a hit.
// The ":start" anchor is left untouched so elapsed time keeps counting
// from the original creation.
func (s *Store) Get(ctx context.Context, ref Ref) (*Session, bool, error) {
	raw, found, err := s.kv.Get(ctx, ref.Key(s.prefix))
	if err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}

	var sess Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, false, errors.NewInternalError("failed to unmarshal session", err)
	}

	if err := s.kv.Set(ctx, ref.Key(s.prefix), raw, s.ttl); err != nil {
		return nil, false, err
	}

	return &sess, true, nil
}

// Update deep-merges patch into the stored session and writes it back
// with a fresh TTL. Map fields merge recursively; array fields in the
// patch replace the stored ones. lastActivity is always refreshed and
// createdAtMillis is never rewritten.
func (s *Store) Update(ctx context.Context, ref Ref, patch map[string]any) (*Session, error) {
	raw, found, err := s.kv.Get(ctx, ref.Key(s.prefix))
	if err != nil {
		return nil, err
	}

	current := make(map[string]any)
	if found {
		if err := json.Unmarshal(raw, &current); err != nil {
			return nil, errors.NewInternalError("failed to unmarshal session", err)
		}
	}

	anchor := current["createdAtMillis"]
	establishedCID := customerID(current)

	if err := mergo.Merge(&current, patch, mergo.WithOverride); err != nil {
		return nil, errors.NewInternalError("failed to merge session patch", err)
	}

	if anchor != nil {
		current["createdAtMillis"] = anchor
	}
	// An established customer record is monotonic: a guest fallback
	// arriving later must not clobber it.
	if establishedCID != "" && establishedCID != GuestCustomerID && customerID(current) == GuestCustomerID {
		logger.Warnw("Refusing to demote established customer to guest",
			"customerId", establishedCID)
		var before map[string]any
		if err := json.Unmarshal(raw, &before); err == nil {
			current["customerData"] = before["customerData"]
		}
	}

	current["lastActivity"] = s.nowString()

	merged, err := json.Marshal(current)
	if err != nil {
		return nil, errors.NewInternalError("failed to marshal session", err)
	}

	var sess Session
	if err := json.Unmarshal(merged, &sess); err != nil {
		return nil, errors.NewInternalError("merged session is malformed", err)
	}

	if err := s.kv.Set(ctx, ref.Key(s.prefix), merged, s.ttl); err != nil {
		return nil, err
	}

	return &sess, nil
}

func customerID(m map[string]any) string {
	cd, ok := m["customerData"].(map[string]any)
	if !ok {
		return ""
	}
	cid, _ := cd["customerId"].(string)
	return cid
}

// Clear deletes the session record and its ":start" anchor. Slots are
// left to expire by TTL.
func (s *Store) Clear(ctx context.Context, ref Ref) error {
	return s.kv.Del(ctx, ref.Key(s.prefix), ref.StartKey(s.prefix))
}

// ElapsedSeconds reports whole seconds since the session was created,
// or 0 when no anchor exists.
func (s *Store) ElapsedSeconds(ctx context.Context, ref Ref) (int64, error) {
	raw, found, err := s.kv.Get(ctx, ref.StartKey(s.prefix))
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, nil
	}

	start, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		logger.Warnf("Malformed session start anchor %q: %v", string(raw), err)
		return 0, nil
	}

	return (time.Now().UnixMilli() - start) / 1000, nil
}

// IncrementTransactionCount bumps the per-session transaction counter and
// stamps lastTransaction.
func (s *Store) IncrementTransactionCount(ctx context.Context, ref Ref) (*Session, error) {
	sess, found, err := s.Get(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, errors.NewNotFoundError(fmt.Sprintf("no session for %s", ref.Key(s.prefix)), nil)
	}

	return s.Update(ctx, ref, map[string]any{
		"transactionCount": sess.TransactionCount + 1,
		"lastTransaction":  s.nowString(),
	})
}

// Healthy probes the underlying store.
func (s *Store) Healthy(ctx context.Context) bool {
	return s.kv.Healthy(ctx)
}
