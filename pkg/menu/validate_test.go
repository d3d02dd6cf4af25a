// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package menu

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestValidPin(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidPin("1234"))
	assert.True(t, ValidPin("123456"))
	assert.False(t, ValidPin("123"))
	assert.False(t, ValidPin("1234567"))
	assert.False(t, ValidPin("12a4"))
	assert.False(t, ValidPin(""))
}

func TestValidMSISDN(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidMSISDN("0722000111"))
	assert.True(t, ValidMSISDN("0110000222"))
	assert.True(t, ValidMSISDN(" 0722000111 "))
	assert.False(t, ValidMSISDN("254722000111"), "country-code form is normalised later, not accepted raw")
	assert.False(t, ValidMSISDN("0822000111"))
	assert.False(t, ValidMSISDN("072200011"))
}

func TestValidDate(t *testing.T) {
	t.Parallel()

	lastYear := time.Now().AddDate(-1, 0, 0).Format("02012006")
	assert.True(t, validDate(lastYear))

	future := time.Now().AddDate(1, 0, 0).Format("02012006")
	assert.False(t, validDate(future))

	ancient := time.Now().AddDate(-11, 0, 0).Format("02012006")
	assert.False(t, validDate(ancient))

	assert.False(t, validDate("31132020"))
	assert.False(t, validDate("notadate"))
}

func TestApplyTransform(t *testing.T) {
	t.Parallel()

	tests := []struct {
		transform string
		input     string
		want      string
	}{
		{transform: TransformMSISDNTo254, input: "0722000111", want: "254722000111"},
		{transform: TransformMSISDNTo254, input: "+254722000111", want: "254722000111"},
		{transform: TransformMSISDNTo254, input: "254722000111", want: "254722000111"},
		{transform: TransformMSISDNTo0, input: "254722000111", want: "0722000111"},
		{transform: TransformMSISDNTo0, input: "0722000111", want: "0722000111"},
		{transform: TransformUppercase, input: "safaricom", want: "SAFARICOM"},
		{transform: TransformLowercase, input: "SAFARICOM", want: "safaricom"},
		{transform: "", input: "unchanged", want: "unchanged"},
		{transform: "bogus", input: "unchanged", want: "unchanged"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, applyTransform(tt.transform, tt.input), "%s(%s)", tt.transform, tt.input)
	}
}
