// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package menu

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/sidianbank/ussd-gateway/pkg/logger"
)

// Operators supported in option conditions.
const (
	OpEquals      = "equals"
	OpNotEquals   = "not_equals"
	OpGreaterThan = "greater_than"
	OpLessThan    = "less_than"
	OpExists      = "exists"
	OpNotExists   = "not_exists"
	OpContains    = "contains"
	OpIn          = "in"
)

// Eval resolves the condition field against the turn data. A missing
// field satisfies not_exists only.
func (tc *TurnContext) Eval(c Condition) bool {
	res, exists := tc.Lookup(c.Field)

	switch c.Operator {
	case OpExists:
		return exists
	case OpNotExists:
		return !exists
	}
	if !exists {
		return false
	}

	switch c.Operator {
	case OpEquals:
		return looseEqual(res.Value(), c.Value)
	case OpNotEquals:
		return !looseEqual(res.Value(), c.Value)
	case OpGreaterThan:
		got, okGot := toNumber(res.Value())
		want, okWant := toNumber(c.Value)
		return okGot && okWant && got > want
	case OpLessThan:
		got, okGot := toNumber(res.Value())
		want, okWant := toNumber(c.Value)
		return okGot && okWant && got < want
	case OpContains:
		if res.IsArray() {
			want := stringify(c.Value)
			for _, item := range res.Array() {
				if item.String() == want {
					return true
				}
			}
			return false
		}
		return strings.Contains(res.String(), stringify(c.Value))
	case OpIn:
		return valueIn(res.String(), c.Value)
	}

	logger.Warnf("Unknown condition operator %q on field %q", c.Operator, c.Field)
	return false
}

// looseEqual compares numerically when both sides parse as numbers, and
// as strings otherwise.
func looseEqual(got, want any) bool {
	if gn, ok := toNumber(got); ok {
		if wn, ok := toNumber(want); ok {
			return gn == wn
		}
	}
	return stringify(got) == stringify(want)
}

func valueIn(got string, set any) bool {
	switch items := set.(type) {
	case []any:
		for _, item := range items {
			if stringify(item) == got {
				return true
			}
		}
	case []string:
		for _, item := range items {
			if item == got {
				return true
			}
		}
	}
	return false
}

func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func stringify(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}
