// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"encoding/json"

	"github.com/sidianbank/ussd-gateway/pkg/errors"
)

// SlotAccess is the slot surface of the session store. Consumers that
// only read and write workflow slots accept this instead of *Store.
type SlotAccess interface {
	Put(ctx context.Context, ref Ref, slot string, value any) error
	Grab(ctx context.Context, ref Ref, slot string, out any) (bool, error)
	GrabString(ctx context.Context, ref Ref, slot string) (string, bool, error)
	Has(ctx context.Context, ref Ref, slot string) (bool, error)
	Blank(ctx context.Context, ref Ref, slots ...string) error
	Consume(ctx context.Context, ref Ref, slot string, out any) (bool, error)
}

var _ SlotAccess = (*Store)(nil)

// Put stores a named slot value as JSON under the session's key prefix
// with the session TTL.
func (s *Store) Put(ctx context.Context, ref Ref, slot string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.NewInternalError("failed to marshal slot "+slot, err)
	}
	return s.kv.Set(ctx, ref.SlotKey(s.prefix, slot), data, s.ttl)
}

// Grab reads a slot into out, reporting whether the slot existed.
func (s *Store) Grab(ctx context.Context, ref Ref, slot string, out any) (bool, error) {
	data, found, err := s.kv.Get(ctx, ref.SlotKey(s.prefix, slot))
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, errors.NewInternalError("failed to unmarshal slot "+slot, err)
	}
	return true, nil
}

// GrabString reads a string-typed slot, returning "" when absent.
func (s *Store) GrabString(ctx context.Context, ref Ref, slot string) (string, bool, error) {
	var v string
	found, err := s.Grab(ctx, ref, slot, &v)
	return v, found, err
}

// Has reports whether a slot exists without reading it into a value.
func (s *Store) Has(ctx context.Context, ref Ref, slot string) (bool, error) {
	var raw json.RawMessage
	return s.Grab(ctx, ref, slot, &raw)
}

// Blank deletes the named slots.
func (s *Store) Blank(ctx context.Context, ref Ref, slots ...string) error {
	if len(slots) == 0 {
		return nil
	}
	keys := make([]string, 0, len(slots))
	for _, slot := range slots {
		keys = append(keys, ref.SlotKey(s.prefix, slot))
	}
	return s.kv.Del(ctx, keys...)
}

// Consume reads a slot into out and deletes it in one step. Reports
// whether the slot existed.
func (s *Store) Consume(ctx context.Context, ref Ref, slot string, out any) (bool, error) {
	found, err := s.Grab(ctx, ref, slot, out)
	if err != nil || !found {
		return found, err
	}
	return true, s.Blank(ctx, ref, slot)
}
