// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package upstream

// Masking applies to log emission only, never to the wire.

const maskedValue = "[MASKED]"

// secretKeys have their values fully replaced in logs.
var secretKeys = map[string]struct{}{
	"OLDPIN":    {},
	"NEWPIN":    {},
	"TMPIN":     {},
	"TRXMPIN":   {},
	"LOGINMPIN": {},
	"PIN":       {},
	"PASSWORD":  {},
	"SECRET":    {},
}

// partialKeys keep their first and last three characters in logs.
var partialKeys = map[string]struct{}{
	"MOBILENUMBER": {},
	"MSISDN":       {},
	"ACCOUNTID":    {},
}

func maskValue(key, value string) string {
	if _, ok := secretKeys[key]; ok {
		return maskedValue
	}
	if _, ok := partialKeys[key]; ok && len(value) >= 6 {
		return value[:3] + "****" + value[len(value)-3:]
	}
	return value
}

// MaskTuples returns a copy of tuples with sensitive values masked.
func MaskTuples(tuples map[string]string) map[string]string {
	out := make(map[string]string, len(tuples))
	for k, v := range tuples {
		out[k] = maskValue(k, v)
	}
	return out
}

// MaskString re-renders a wire payload with sensitive values masked so
// it can be logged.
func MaskString(s string) string {
	pairs := pairsFrom(splitSegments(s))
	for i := range pairs {
		pairs[i].value = maskValue(pairs[i].key, pairs[i].value)
	}
	return renderTuples(pairs)
}
