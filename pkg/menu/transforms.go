// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package menu

import (
	"strings"

	"github.com/sidianbank/ussd-gateway/pkg/logger"
)

// Transform names supported by inputConfig.
const (
	TransformMSISDNTo254 = "msisdn_to_254"
	TransformMSISDNTo0   = "msisdn_to_0"
	TransformUppercase   = "uppercase"
	TransformLowercase   = "lowercase"
)

// applyTransform rewrites validated input before it is stored or handed
// to a handler. Unknown names leave the input untouched.
func applyTransform(name, input string) string {
	switch name {
	case "":
		return input
	case TransformMSISDNTo254:
		return msisdnTo254(input)
	case TransformMSISDNTo0:
		return msisdnTo0(input)
	case TransformUppercase:
		return strings.ToUpper(input)
	case TransformLowercase:
		return strings.ToLower(input)
	}
	logger.Warnf("Unknown input transform %q", name)
	return input
}

// msisdnTo254 rewrites a local 07XX/01XX number to country-code form.
func msisdnTo254(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "+254") {
		return s[1:]
	}
	if len(s) == 10 && strings.HasPrefix(s, "0") {
		return "254" + s[1:]
	}
	return s
}

// msisdnTo0 rewrites a country-code number back to the local form.
func msisdnTo0(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "+")
	if len(s) == 12 && strings.HasPrefix(s, "254") {
		return "0" + s[3:]
	}
	return s
}
