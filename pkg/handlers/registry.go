// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

// Package handlers hosts the action modules dispatched by the menu engine
// and the registry that names them.
package handlers

import (
	"context"
	"fmt"

	"github.com/sidianbank/ussd-gateway/pkg/logger"
	"github.com/sidianbank/ussd-gateway/pkg/menu"
	"github.com/sidianbank/ussd-gateway/pkg/session"
	"github.com/sidianbank/ussd-gateway/pkg/upstream"
)

// HandlerFunc is one registered action handler. A nil result defers to
// the engine's declarative processing for the node.
type HandlerFunc func(ctx context.Context, in menu.Input) (*menu.Result, error)

// Module is a group of handlers registered under a common namespace.
type Module interface {
	Name() string
	Handlers() map[string]HandlerFunc
}

// SessionAccess is the session surface modules work against: slots plus
// the blob update operations.
type SessionAccess interface {
	session.SlotAccess
	Update(ctx context.Context, ref session.Ref, patch map[string]any) (*session.Session, error)
	IncrementTransactionCount(ctx context.Context, ref session.Ref) (*session.Session, error)
}

// Banking is the slice of the upstream client the modules call. Narrowed
// for test doubles.
type Banking interface {
	Login(ctx context.Context, ref session.Ref, customerID, pin string) upstream.Envelope
	Balance(ctx context.Context, ref session.Ref, customerID, account string) upstream.Envelope
	MiniStatement(ctx context.Context, ref session.Ref, customerID, account string) upstream.Envelope
	PurchaseAirtime(ctx context.Context, ref session.Ref, p upstream.AirtimePurchase) upstream.Envelope
}

// Machine-readable error codes emitted by the registry itself.
const (
	ErrHandlerNotFound = "HANDLER_NOT_FOUND"
	ErrHandlerFailed   = "HANDLER_ERROR"
)

const msgHandlerFailed = "Something went wrong. Please try again."

// Registry maps handler names to functions. Registration happens at init
// and is then frozen; lookups on the hot path are plain map reads.
type Registry struct {
	handlers map[string]HandlerFunc
	aliases  map[string]string
	frozen   bool
}

// NewRegistry returns an empty, unfrozen registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]HandlerFunc),
		aliases:  make(map[string]string),
	}
}

// Register adds a handler under an explicit name. Registering on a frozen
// registry or reusing a name is a programming error and panics at init.
func (r *Registry) Register(name string, fn HandlerFunc) {
	if r.frozen {
		panic(fmt.Sprintf("handler registry is frozen, cannot register %q", name))
	}
	if _, exists := r.handlers[name]; exists {
		panic(fmt.Sprintf("handler %q registered twice", name))
	}
	r.handlers[name] = fn
}

// RegisterModule adds every handler of a module under "{module}.{method}".
func (r *Registry) RegisterModule(m Module) {
	for method, fn := range m.Handlers() {
		r.Register(m.Name()+"."+method, fn)
	}
}

// Alias maps a short name onto a registered full name.
func (r *Registry) Alias(short, full string) {
	if r.frozen {
		panic(fmt.Sprintf("handler registry is frozen, cannot alias %q", short))
	}
	if _, ok := r.handlers[full]; !ok {
		panic(fmt.Sprintf("alias %q targets unregistered handler %q", short, full))
	}
	r.aliases[short] = full
}

// Freeze ends registration. Call once after all modules are wired.
func (r *Registry) Freeze() {
	r.frozen = true
}

// Lookup resolves a name, consulting aliases first.
func (r *Registry) Lookup(name string) (HandlerFunc, bool) {
	if full, ok := r.aliases[name]; ok {
		name = full
	}
	fn, ok := r.handlers[name]
	return fn, ok
}

// Has reports whether a name resolves to a handler.
func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Names returns the registered handler names, for startup diagnostics.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	return names
}

// Invoke dispatches one handler call. Handler errors and panics are
// absorbed into a uniform failure result so a broken module degrades a
// turn instead of crashing it.
func (r *Registry) Invoke(ctx context.Context, name string, in menu.Input) (res *menu.Result) {
	fn, ok := r.Lookup(name)
	if !ok {
		logger.Warnf("No handler registered for %q", name)
		return &menu.Result{Error: ErrHandlerNotFound, ErrorMessage: msgHandlerFailed}
	}

	defer func() {
		if rec := recover(); rec != nil {
			logger.Errorf("Handler %q panicked: %v", name, rec)
			res = &menu.Result{Error: ErrHandlerFailed, ErrorMessage: msgHandlerFailed}
		}
	}()

	out, err := fn(ctx, in)
	if err != nil {
		logger.Errorf("Handler %q failed: %v", name, err)
		return &menu.Result{Error: ErrHandlerFailed, ErrorMessage: msgHandlerFailed}
	}
	return out
}

var _ menu.Invoker = (*Registry)(nil)
