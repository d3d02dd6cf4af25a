// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

// Package kvstore provides a thin typed facade over the clustered
// key/value store that backs USSD sessions.
package kvstore

import (
	"context"
	"time"
)

// Store is the minimal key/value/TTL surface the gateway needs. Values are
// opaque bytes; callers own serialization. Implementations must not retry
// failed operations, higher layers decide.
type Store interface {
	// Set writes a value. A zero ttl preserves any TTL already on the key.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get reads a value. The second return is false when the key is absent.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Del removes the given keys. Missing keys are not an error.
	Del(ctx context.Context, keys ...string) error

	// TTL reports the remaining lifetime of a key. Keys without an expiry
	// or absent keys report a negative duration, mirroring the store.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// IncrBy atomically adds delta to an integer key. When the increment
	// creates the key, ttlIfNew is applied. Returns the new total.
	IncrBy(ctx context.Context, key string, delta int64, ttlIfNew time.Duration) (int64, error)

	// Healthy probes the underlying store.
	Healthy(ctx context.Context) bool

	// Close releases the underlying connections.
	Close() error
}
