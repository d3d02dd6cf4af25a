// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

// Package menu loads the declarative menu configuration and drives the
// render/process cycle of a USSD turn against it.
package menu

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/sidianbank/ussd-gateway/pkg/logger"
	"github.com/sidianbank/ussd-gateway/pkg/session"
)

// Frame actions emitted to the aggregator.
const (
	ActionCon = "con"
	ActionEnd = "end"
)

// EndMenu is the synthetic terminal menu. It has no configuration file;
// rendering it always ends the session.
const EndMenu = "end"

// Result is the normalized outcome of a handler invocation or one input
// processing step.
type Result struct {
	Action       string `json:"action,omitempty"`
	Message      string `json:"message,omitempty"`
	NextMenu     string `json:"nextMenu,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
	RetryMenu    string `json:"retryMenu,omitempty"`
}

// Failed reports whether the result carries an error marker.
func (r *Result) Failed() bool {
	return r != nil && r.Error != ""
}

// Frame is one rendered USSD screen.
type Frame struct {
	Action   string
	Message  string
	NextMenu string
}

// Input is what a registered handler receives. Value is nil when the
// handler runs at render time.
type Input struct {
	Value    *string
	Session  *session.Session
	Ref      session.Ref
	Slots    session.SlotAccess
	Customer *session.CustomerData
	Data     map[string]any
}

// Raw returns the input value, or "" for render-time invocations.
func (in Input) Raw() string {
	if in.Value == nil {
		return ""
	}
	return *in.Value
}

// Invoker dispatches named handlers registered by action modules.
type Invoker interface {
	Invoke(ctx context.Context, name string, in Input) *Result
	Has(name string) bool
}

// TurnContext carries the per-turn evaluation state: the session, the
// dotted-path data context, and the render one-shot guards.
type TurnContext struct {
	Session *session.Session
	Ref     session.Ref
	Slots   session.SlotAccess
	Data    map[string]any

	rendered map[string]bool
	snapshot []byte
}

// NewTurnContext builds the context for one turn. data is the dotted-path
// tree that placeholders and conditions resolve against.
func NewTurnContext(sess *session.Session, ref session.Ref, slots session.SlotAccess, data map[string]any) *TurnContext {
	if data == nil {
		data = map[string]any{}
	}
	return &TurnContext{
		Session:  sess,
		Ref:      ref,
		Slots:    slots,
		Data:     data,
		rendered: map[string]bool{},
	}
}

// Lookup resolves a dotted path against the turn data.
func (tc *TurnContext) Lookup(path string) (gjson.Result, bool) {
	if tc.snapshot == nil {
		b, err := json.Marshal(tc.Data)
		if err != nil {
			logger.Warnf("Turn context marshal failed: %v", err)
			b = []byte("{}")
		}
		tc.snapshot = b
	}
	res := gjson.GetBytes(tc.snapshot, path)
	return res, res.Exists()
}

// Set writes a dotted path into the turn data and invalidates the lookup
// snapshot.
func (tc *TurnContext) Set(path string, value any) {
	if tc.Data == nil {
		tc.Data = map[string]any{}
	}
	setPath(tc.Data, path, value)
	tc.snapshot = nil
}

func setPath(m map[string]any, path string, value any) {
	parts := strings.Split(path, ".")
	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[part] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}

// CustomerID returns the session's customer id, or the guest marker.
func (tc *TurnContext) CustomerID() string {
	if tc.Session == nil || tc.Session.CustomerData == nil {
		return session.GuestCustomerID
	}
	return tc.Session.CustomerData.CustomerID
}

func (tc *TurnContext) input(value *string) Input {
	var customer *session.CustomerData
	if tc.Session != nil {
		customer = tc.Session.CustomerData
	}
	return Input{
		Value:    value,
		Session:  tc.Session,
		Ref:      tc.Ref,
		Slots:    tc.Slots,
		Customer: customer,
		Data:     tc.Data,
	}
}
