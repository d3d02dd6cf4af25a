// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

// Package upstream encodes requests to and decodes responses from the
// colon-delimited core banking wire protocol, and provides the HTTP
// client that carries them.
package upstream

import (
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Backend STATUS codes with dedicated gateway behavior.
const (
	StatusPinExpired     = "101"
	StatusAccountBlocked = "102"
	StatusInvalidPin     = "091"
	StatusAccountLocked  = "092"
	StatusInvalidAccount = "093"
)

// CodeConnectionError marks an envelope produced by a transport failure
// rather than a backend response.
const CodeConnectionError = "API_CONNECTION_ERROR"

// MsgServiceUnavailable is the caller-facing text for transport failures
// and upstream 5xx responses.
const MsgServiceUnavailable = "Service temporarily unavailable. Please try again."

// successStatuses is the exact set of STATUS values the backend uses to
// signal success.
var successStatuses = map[string]struct{}{
	"000": {}, "00": {}, "0": {}, "OK": {}, "SUCCESS": {},
}

// IsSuccessStatus reports whether a backend STATUS value means success.
func IsSuccessStatus(status string) bool {
	_, ok := successStatuses[strings.TrimSpace(status)]
	return ok
}

// Envelope is the decoded result of one upstream exchange. Failure
// envelopes carry a caller-facing Error message; Retry marks transient
// failures worth re-attempting.
type Envelope struct {
	Success bool              `json:"success"`
	Status  string            `json:"status"`
	Code    string            `json:"code,omitempty"`
	Message string            `json:"message,omitempty"`
	Error   string            `json:"error,omitempty"`
	Retry   bool              `json:"retry,omitempty"`
	Data    map[string]string `json:"data,omitempty"`

	// Parts holds the positional colon-split segments of the response.
	// Row-structured responses (mini statements) are read by offset, so
	// the map alone is not enough.
	Parts []string `json:"parts,omitempty"`
}

// ConnectionError is the canned envelope for any transport-level failure.
func ConnectionError() Envelope {
	return Envelope{
		Success: false,
		Status:  "ERROR",
		Code:    CodeConnectionError,
		Error:   MsgServiceUnavailable,
		Retry:   true,
		Data:    map[string]string{},
	}
}

// RequestContext carries the identity tuples sent on every upstream
// request. Extra holds fixed per-endpoint tuples from configuration.
type RequestContext struct {
	FormID       string
	MSISDN       string
	SessionID    string
	BankID       string
	BankName     string
	Shortcode    string
	Country      string
	TrxSource    string
	CustomerID   string
	BankAccounts string
	Extra        map[string]string
}

// newUniqueID is swapped in tests for deterministic encoding.
var newUniqueID = uuid.NewString

type tuple struct {
	key   string
	value string
}

// EncodeRequest renders the outbound tuple string: ordered base keys,
// fixed endpoint tuples, then caller data merged on top (caller wins).
// Empty values are dropped.
func EncodeRequest(rc RequestContext, data string) string {
	pairs := rc.basePairs()

	extraKeys := make([]string, 0, len(rc.Extra))
	for k := range rc.Extra {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)
	for _, k := range extraKeys {
		pairs = append(pairs, tuple{key: strings.ToUpper(k), value: rc.Extra[k]})
	}

	index := make(map[string]int, len(pairs))
	for i, p := range pairs {
		index[p.key] = i
	}
	for _, p := range pairsFrom(splitSegments(data)) {
		if i, ok := index[p.key]; ok {
			pairs[i].value = p.value
			continue
		}
		index[p.key] = len(pairs)
		pairs = append(pairs, p)
	}

	return renderTuples(pairs)
}

func (rc RequestContext) basePairs() []tuple {
	pairs := []tuple{
		{"FORMID", rc.FormID},
		{"MOBILENUMBER", rc.MSISDN},
		{"SESSION", rc.SessionID},
		{"BANKID", rc.BankID},
		{"BANKNAME", rc.BankName},
		{"SHORTCODE", rc.Shortcode},
		{"COUNTRY", rc.Country},
		{"TRXSOURCE", rc.TrxSource},
		{"DEVICEID", rc.MSISDN + rc.Shortcode},
		{"UNIQUEID", newUniqueID()},
	}
	if rc.CustomerID != "" {
		pairs = append(pairs, tuple{key: "CUSTOMERID", value: rc.CustomerID})
	}
	if rc.BankAccounts != "" {
		pairs = append(pairs, tuple{key: "BANKACCOUNTS", value: rc.BankAccounts})
	}
	return pairs
}

func renderTuples(pairs []tuple) string {
	var b strings.Builder
	for _, p := range pairs {
		if p.key == "" || p.value == "" {
			continue
		}
		b.WriteString(p.key)
		b.WriteByte(':')
		b.WriteString(p.value)
		b.WriteByte(':')
	}
	return b.String()
}

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// splitSegments strips tag-like wrappers and splits on ':'. Segments are
// trimmed but kept in place so positional offsets survive.
func splitSegments(s string) []string {
	s = strings.TrimSpace(tagPattern.ReplaceAllString(s, ""))
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ":")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// pairsFrom walks segments as alternating key/value. An odd tail leaves
// the last key without a value, which is dropped like any empty value.
func pairsFrom(parts []string) []tuple {
	pairs := make([]tuple, 0, len(parts)/2)
	for i := 0; i+1 < len(parts); i += 2 {
		if parts[i] == "" || parts[i+1] == "" {
			continue
		}
		pairs = append(pairs, tuple{key: parts[i], value: parts[i+1]})
	}
	return pairs
}

// ParseTuples decodes a flat KEY:VALUE:... string into a map. Tag-like
// wrappers are stripped first; empty keys and values are dropped.
func ParseTuples(s string) map[string]string {
	pairs := pairsFrom(splitSegments(s))
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		out[p.key] = p.value
	}
	return out
}

// DecodeResponse parses a raw backend response into an Envelope. The
// message is read from DATA, falling back to MESSAGE; known failure
// statuses are mapped to fixed caller-facing texts.
func DecodeResponse(raw string) Envelope {
	parts := splitSegments(raw)
	tuples := make(map[string]string, len(parts)/2)
	for _, p := range pairsFrom(parts) {
		tuples[p.key] = p.value
	}

	status := tuples["STATUS"]
	message := tuples["DATA"]
	if message == "" {
		message = tuples["MESSAGE"]
	}

	env := Envelope{
		Success: IsSuccessStatus(status),
		Status:  status,
		Message: message,
		Data:    tuples,
		Parts:   parts,
	}
	if !env.Success {
		env.Code = status
		env.Error = failureMessage(status, message)
	}
	return env
}

func failureMessage(status, message string) string {
	switch status {
	case StatusInvalidPin:
		return "Invalid PIN"
	case StatusAccountLocked:
		return "Account locked"
	case StatusInvalidAccount:
		return "Invalid account"
	}
	return message
}
