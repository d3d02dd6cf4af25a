// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package menu

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"github.com/sidianbank/ussd-gateway/pkg/logger"
	"github.com/sidianbank/ussd-gateway/pkg/upstream"
)

// Machine-readable error codes carried on Result.Error.
const (
	ErrInvalidInput      = "INVALID_INPUT"
	ErrValidationFailed  = "VALIDATION_FAILED"
	ErrOptionUnavailable = "OPTION_UNAVAILABLE"
	ErrAPIError          = "API_ERROR"
	ErrInvalidAction     = "INVALID_ACTION"
)

const (
	msgMenuUnavailable   = "Menu not available."
	msgInvalidSelection  = "Invalid selection. Please try again."
	msgOptionUnavailable = "That option is not available."
	msgFarewell          = "Thank you for using SidianVIBE."
)

// Reserved navigation inputs and their pseudo-keys.
var reservedNav = map[string]string{
	"0":   "onBack",
	"00":  "onHome",
	"000": "onExit",
}

// Engine renders menu nodes and processes user input against them.
type Engine struct {
	loader  *Loader
	invoker Invoker
	client  *upstream.Client
}

// NewEngine wires the loader, the handler registry, and the upstream
// client used by declarative api_call actions.
func NewEngine(loader *Loader, invoker Invoker, client *upstream.Client) *Engine {
	return &Engine{loader: loader, invoker: invoker, client: client}
}

// Render resolves a menu node into a frame. Unknown nodes degrade to a
// friendly con frame rather than failing the turn.
func (e *Engine) Render(ctx context.Context, name string, tc *TurnContext) Frame {
	if name == EndMenu {
		return Frame{Action: ActionEnd, Message: msgFarewell}
	}

	node, ok := e.loader.Node(name)
	if !ok {
		logger.Warnf("Menu %q not configured", name)
		return Frame{Action: ActionCon, Message: msgMenuUnavailable}
	}

	// Render-time handler, invoked with nil input at most once per turn.
	if node.Handler != "" && !tc.rendered[name] {
		tc.rendered[name] = true
		if res := e.invoker.Invoke(ctx, node.Handler, tc.input(nil)); res != nil && res.Message != "" {
			return Frame{
				Action:   actionOrCon(res.Action),
				Message:  res.Message,
				NextMenu: res.NextMenu,
			}
		}
	}

	var b strings.Builder
	b.WriteString(e.substitute(node.Message, tc))

	num := 0
	for _, opt := range node.Options {
		if opt.Condition != nil && !tc.Eval(*opt.Condition) {
			continue
		}
		num++
		b.WriteString("\n")
		b.WriteString(strconv.Itoa(num))
		b.WriteString(". ")
		b.WriteString(e.substitute(opt.Text, tc))
	}
	if node.NavHint != "" {
		b.WriteString("\n")
		b.WriteString(node.NavHint)
	}

	return Frame{Action: node.Action, Message: strings.TrimRight(b.String(), " \t\n")}
}

// Process applies one input to the current node: navigation, then the
// node handler, then numbered options, then free-form input config.
func (e *Engine) Process(ctx context.Context, name, input string, tc *TurnContext) Result {
	node, ok := e.loader.Node(name)
	if !ok {
		logger.Warnf("Menu %q not configured", name)
		return normalize(Result{Message: msgMenuUnavailable})
	}

	if next, ok := e.navigate(node, input); ok {
		return normalize(Result{NextMenu: next})
	}

	if node.Handler != "" {
		if res := e.invoker.Invoke(ctx, node.Handler, tc.input(&input)); res != nil {
			return normalize(*res)
		}
	}

	if res, handled := e.processOption(ctx, node, name, input, tc); handled {
		return normalize(res)
	}

	if node.InputConfig != nil {
		return normalize(e.processInput(ctx, node.InputConfig, name, input, tc))
	}

	return normalize(Result{
		Error:        ErrInvalidInput,
		ErrorMessage: msgInvalidSelection,
		RetryMenu:    name,
	})
}

// navigate resolves the navigation table and the reserved inputs. An
// unconfigured "000" still exits: the aggregator reserves it for ending
// the dialogue.
func (e *Engine) navigate(node Node, input string) (string, bool) {
	if node.Navigation != nil {
		if next, ok := node.Navigation[input]; ok {
			return next, true
		}
		if pseudo, ok := reservedNav[input]; ok {
			if next, ok := node.Navigation[pseudo]; ok {
				return next, true
			}
		}
	}

	switch input {
	case "0":
		if node.OnBack != "" {
			return node.OnBack, true
		}
	case "00":
		if node.OnHome != "" {
			return node.OnHome, true
		}
	case "000":
		if node.OnExit != "" {
			return node.OnExit, true
		}
		return EndMenu, true
	}
	return "", false
}

// processOption maps a numeric input onto the options visible under the
// current context. The selected option's condition is re-checked because
// context can shift between the rendering turn and this one.
func (e *Engine) processOption(ctx context.Context, node Node, name, input string, tc *TurnContext) (Result, bool) {
	if len(node.Options) == 0 {
		return Result{}, false
	}
	idx, err := strconv.Atoi(input)
	if err != nil || idx < 1 {
		return Result{}, false
	}

	visible := make([]Option, 0, len(node.Options))
	for _, opt := range node.Options {
		if opt.Condition != nil && !tc.Eval(*opt.Condition) {
			continue
		}
		visible = append(visible, opt)
	}
	if idx > len(visible) {
		return Result{}, false
	}
	opt := visible[idx-1]

	if opt.Condition != nil && !tc.Eval(*opt.Condition) {
		return Result{
			Error:        ErrOptionUnavailable,
			ErrorMessage: msgOptionUnavailable,
			RetryMenu:    name,
		}, true
	}

	e.applyStores(ctx, opt, tc)

	if opt.Action != nil {
		return e.runAction(ctx, *opt.Action, tc), true
	}
	if opt.Handler != "" {
		if res := e.invoker.Invoke(ctx, opt.Handler, tc.input(&input)); res != nil {
			return *res, true
		}
	}
	if opt.NextMenu != "" {
		return Result{NextMenu: opt.NextMenu}, true
	}
	return Result{}, true
}

// processInput runs the free-form input pipeline: validate, transform,
// store, then hand off.
func (e *Engine) processInput(ctx context.Context, ic *InputConfig, name, input string, tc *TurnContext) Result {
	if ic.Validation != nil {
		if msg, ok := e.validateInput(ctx, *ic.Validation, input, tc); !ok {
			return Result{
				Error:        ErrValidationFailed,
				ErrorMessage: msg,
				RetryMenu:    name,
			}
		}
	}

	value := applyTransform(ic.Transform, input)

	if ic.StoreKey != "" {
		e.store(ctx, ic.StoreKey, value, tc)
	}
	if ic.Handler != "" {
		if res := e.invoker.Invoke(ctx, ic.Handler, tc.input(&value)); res != nil {
			return *res
		}
	}
	if ic.NextMenu != "" {
		return Result{NextMenu: ic.NextMenu}
	}
	return Result{
		Error:        ErrInvalidInput,
		ErrorMessage: msgInvalidSelection,
		RetryMenu:    name,
	}
}

// applyStores executes an option's store directives: each target key
// resolves a dotted path against the context, falling back to the
// storeValue literal.
func (e *Engine) applyStores(ctx context.Context, opt Option, tc *TurnContext) {
	for key, path := range opt.Store {
		value := ""
		if res, ok := tc.Lookup(path); ok {
			value = res.String()
		} else if literal, ok := opt.StoreValue[key]; ok {
			value = literal
		}
		if value == "" {
			continue
		}
		e.store(ctx, key, value, tc)
	}
	for key, literal := range opt.StoreValue {
		if _, shadowed := opt.Store[key]; shadowed {
			continue
		}
		e.store(ctx, key, literal, tc)
	}
}

// store writes a value to the session slot and mirrors it into the turn
// data so later conditions and placeholders in the same turn see it.
func (e *Engine) store(ctx context.Context, key, value string, tc *TurnContext) {
	if err := tc.Slots.Put(ctx, tc.Ref, key, value); err != nil {
		logger.Warnf("Storing %q failed: %v", key, err)
	}
	tc.Set("data."+key, value)
}

// runAction executes a declarative api_call.
func (e *Engine) runAction(ctx context.Context, action Action, tc *TurnContext) Result {
	if action.Type != "api_call" {
		logger.Warnf("Unsupported menu action type %q", action.Type)
		return Result{Error: ErrInvalidAction, ErrorMessage: msgInvalidSelection}
	}

	env := e.client.Call(ctx, upstream.CallRequest{
		Service:    action.Service,
		Data:       e.substitute(action.Data, tc),
		Ref:        tc.Ref,
		CustomerID: tc.upstreamCustomerID(),
		CacheKey:   action.CacheKey,
	})
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = upstream.MsgServiceUnavailable
		}
		return Result{
			Error:        ErrAPIError,
			ErrorMessage: msg,
			RetryMenu:    action.NextMenuOnError,
		}
	}

	if action.StoreKey != "" {
		e.store(ctx, action.StoreKey, env.Message, tc)
	}
	return Result{NextMenu: action.NextMenuOnSuccess}
}

var placeholderPattern = regexp.MustCompile(`\{([a-zA-Z0-9_.]+)\}`)

// substitute replaces {dotted.path} placeholders against the turn data.
// Unresolvable paths become empty strings.
func (e *Engine) substitute(message string, tc *TurnContext) string {
	if message == "" || !strings.Contains(message, "{") {
		return message
	}
	return placeholderPattern.ReplaceAllStringFunc(message, func(m string) string {
		res, ok := tc.Lookup(m[1 : len(m)-1])
		if !ok {
			return ""
		}
		return res.String()
	})
}

func (tc *TurnContext) upstreamCustomerID() string {
	if tc.Session == nil || tc.Session.CustomerData.IsGuest() {
		return ""
	}
	return tc.Session.CustomerData.CustomerID
}

func actionOrCon(action string) string {
	if action == "" {
		return ActionCon
	}
	return action
}

func normalize(r Result) Result {
	r.Action = actionOrCon(r.Action)
	return r
}
