// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package menu

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sidianbank/ussd-gateway/pkg/session"
)

func TestConditionEval(t *testing.T) {
	t.Parallel()

	data := map[string]any{
		"session": map[string]any{"authStatus": "authenticated"},
		"customer": map[string]any{
			"accounts": []string{"0102030405-Main", "0102030406-Savings"},
		},
		"transaction": map[string]any{"count": 3},
		"data":        map[string]any{"network": "SAFARICOM"},
	}

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{
			name: "equals string",
			cond: Condition{Field: "session.authStatus", Operator: OpEquals, Value: "authenticated"},
			want: true,
		},
		{
			name: "equals mismatched",
			cond: Condition{Field: "session.authStatus", Operator: OpEquals, Value: "pending"},
			want: false,
		},
		{
			name: "equals numeric coercion",
			cond: Condition{Field: "transaction.count", Operator: OpEquals, Value: "3"},
			want: true,
		},
		{
			name: "not_equals",
			cond: Condition{Field: "data.network", Operator: OpNotEquals, Value: "AIRTEL"},
			want: true,
		},
		{
			name: "greater_than",
			cond: Condition{Field: "transaction.count", Operator: OpGreaterThan, Value: 2},
			want: true,
		},
		{
			name: "less_than false",
			cond: Condition{Field: "transaction.count", Operator: OpLessThan, Value: 2},
			want: false,
		},
		{
			name: "exists",
			cond: Condition{Field: "customer.accounts", Operator: OpExists},
			want: true,
		},
		{
			name: "not_exists on missing field",
			cond: Condition{Field: "customer.idNumber", Operator: OpNotExists},
			want: true,
		},
		{
			name: "missing field fails equals",
			cond: Condition{Field: "customer.idNumber", Operator: OpEquals, Value: "x"},
			want: false,
		},
		{
			name: "contains in array",
			cond: Condition{Field: "customer.accounts", Operator: OpContains, Value: "0102030406-Savings"},
			want: true,
		},
		{
			name: "contains substring",
			cond: Condition{Field: "data.network", Operator: OpContains, Value: "SAFARI"},
			want: true,
		},
		{
			name: "in set",
			cond: Condition{Field: "data.network", Operator: OpIn, Value: []any{"SAFARICOM", "AIRTEL"}},
			want: true,
		},
		{
			name: "in set miss",
			cond: Condition{Field: "data.network", Operator: OpIn, Value: []any{"TELKOM"}},
			want: false,
		},
		{
			name: "unknown operator",
			cond: Condition{Field: "data.network", Operator: "matches"},
			want: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tc := NewTurnContext(nil, session.Ref{}, nil, data)
			assert.Equal(t, tt.want, tc.Eval(tt.cond))
		})
	}
}

func TestTurnContextSetInvalidatesSnapshot(t *testing.T) {
	t.Parallel()
	tc := NewTurnContext(nil, session.Ref{}, nil, map[string]any{
		"data": map[string]any{"network": "SAFARICOM"},
	})

	res, ok := tc.Lookup("data.network")
	assert.True(t, ok)
	assert.Equal(t, "SAFARICOM", res.String())

	tc.Set("data.airtime_amount", "100")

	res, ok = tc.Lookup("data.airtime_amount")
	assert.True(t, ok)
	assert.Equal(t, "100", res.String())

	// Existing values survive the re-marshal.
	res, _ = tc.Lookup("data.network")
	assert.Equal(t, "SAFARICOM", res.String())
}
