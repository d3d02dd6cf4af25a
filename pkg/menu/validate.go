// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package menu

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/sidianbank/ussd-gateway/pkg/logger"
)

// Validation type names.
const (
	ValidateMSISDN      = "msisdn"
	ValidateAmount      = "amount"
	ValidateDate        = "date"
	ValidatePin         = "pin"
	ValidateOption      = "option"
	ValidatePinOrOption = "pin_or_option"
	ValidateCustom      = "custom"
)

var (
	pinPattern = regexp.MustCompile(`^[0-9]{4,6}$`)

	// Local-form Kenyan numbers: ten digits starting 07 or 01.
	msisdnPattern = regexp.MustCompile(`^0[17][0-9]{8}$`)
)

// ValidPin reports whether s is a well-formed PIN: 4 to 6 ASCII digits.
func ValidPin(s string) bool {
	return pinPattern.MatchString(s)
}

// ValidMSISDN reports whether s is an acceptable local mobile number.
func ValidMSISDN(s string) bool {
	return msisdnPattern.MatchString(strings.TrimSpace(s))
}

// validateInput runs one validation rule against raw input. It returns
// the user-facing error message and false when the input is rejected.
func (e *Engine) validateInput(ctx context.Context, v Validation, input string, tc *TurnContext) (string, bool) {
	fail := func(fallback string) (string, bool) {
		if v.ErrorMessage != "" {
			return v.ErrorMessage, false
		}
		return fallback, false
	}

	switch v.Type {
	case ValidateMSISDN:
		if !ValidMSISDN(input) {
			return fail("Invalid phone number. Use format 07XXXXXXXX or 01XXXXXXXX.")
		}
	case ValidateAmount:
		amount, err := strconv.ParseFloat(strings.TrimSpace(input), 64)
		if err != nil {
			return fail("Invalid amount.")
		}
		if v.Min != nil && amount < *v.Min {
			return fail(fmt.Sprintf("Amount must be at least %s.", formatAmount(*v.Min)))
		}
		if v.Max != nil && amount > *v.Max {
			return fail(fmt.Sprintf("Amount must not exceed %s.", formatAmount(*v.Max)))
		}
	case ValidateDate:
		if !validDate(input) {
			return fail("Invalid date. Use DDMMYYYY.")
		}
	case ValidatePin:
		if !ValidPin(input) {
			return fail("PIN must be 4 to 6 digits.")
		}
	case ValidateOption:
		if !slices.Contains(v.Allowed, input) {
			return fail(msgInvalidSelection)
		}
	case ValidatePinOrOption:
		if input != "1" && !ValidPin(input) {
			return fail("Enter your PIN, or reply 1.")
		}
	case ValidateCustom:
		if v.Handler == "" {
			logger.Warnf("Custom validation with no handler")
			return fail(msgInvalidSelection)
		}
		if res := e.invoker.Invoke(ctx, v.Handler, tc.input(&input)); res.Failed() {
			msg := res.ErrorMessage
			if msg == "" {
				msg = msgInvalidSelection
			}
			return fail(msg)
		}
	default:
		logger.Warnf("Unknown validation type %q", v.Type)
	}
	return "", true
}

// validDate accepts DDMMYYYY dates that are not in the future and not
// older than ten years.
func validDate(input string) bool {
	t, err := time.Parse("02012006", strings.TrimSpace(input))
	if err != nil {
		return false
	}
	now := time.Now()
	if t.After(now) {
		return false
	}
	return !t.Before(now.AddDate(-10, 0, 0))
}

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
