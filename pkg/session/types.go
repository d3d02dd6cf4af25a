// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

// Package session persists cross-turn conversational state keyed by the
// (MSISDN, session id, shortcode) triple a telco aggregator assigns to a
// USSD dialogue.
package session

import "fmt"

// AuthStatus tracks whether the caller has passed a PIN login this session.
type AuthStatus string

// Session authentication states.
const (
	AuthPending       AuthStatus = "pending"
	AuthAuthenticated AuthStatus = "authenticated"
)

// GuestCustomerID marks a session whose customer lookup failed. A guest
// record may be replaced by a real one, never the other way round.
const GuestCustomerID = "GUEST"

// HomeMenu is the entry node of every fresh session.
const HomeMenu = "home"

// CustomerData is the core banking profile attached after GETCUSTOMER.
type CustomerData struct {
	CustomerID string   `json:"customerId"`
	FirstName  string   `json:"firstName"`
	LastName   string   `json:"lastName"`
	Language   string   `json:"language,omitempty"`
	Accounts   []string `json:"accounts,omitempty"`
	Aliases    []string `json:"aliases,omitempty"`
	IDNumber   string   `json:"idNumber,omitempty"`
	Email      string   `json:"email,omitempty"`
}

// IsGuest reports whether this record came from the guest fallback.
func (c *CustomerData) IsGuest() bool {
	return c == nil || c.CustomerID == "" || c.CustomerID == GuestCustomerID
}

// Session is the state carried across the turns of one USSD dialogue.
type Session struct {
	CurrentMenu      string        `json:"currentMenu"`
	MenuHistory      []string      `json:"menuHistory"`
	CustomerData     *CustomerData `json:"customerData,omitempty"`
	AuthStatus       AuthStatus    `json:"authStatus"`
	TransactionCount int           `json:"transactionCount"`
	SessionStart     string        `json:"sessionStart"`
	LastActivity     string        `json:"lastActivity"`
	LastTransaction  string        `json:"lastTransaction,omitempty"`
	CreatedAtMillis  int64         `json:"createdAtMillis"`
}

// Authenticated reports whether the caller has completed a PIN login.
func (s *Session) Authenticated() bool {
	return s != nil && s.AuthStatus == AuthAuthenticated
}

// Ref identifies one USSD dialogue. The aggregator guarantees at most one
// in-flight turn per Ref.
type Ref struct {
	MSISDN    string
	SessionID string
	Shortcode string
}

// shortcodeOrDefault keeps key layout stable when the aggregator omits
// the shortcode.
func (r Ref) shortcodeOrDefault() string {
	if r.Shortcode == "" {
		return "default"
	}
	return r.Shortcode
}

// Key builds the composite session key under the given prefix.
func (r Ref) Key(prefix string) string {
	return fmt.Sprintf("%s:%s:%s:%s", prefix, r.MSISDN, r.SessionID, r.shortcodeOrDefault())
}

// StartKey is the sibling key anchoring the session's creation time.
func (r Ref) StartKey(prefix string) string {
	return r.Key(prefix) + ":start"
}

// SlotKey derives the key of a named slot within the session's prefix.
func (r Ref) SlotKey(prefix, slot string) string {
	return r.Key(prefix) + ":" + slot
}

// Well-known slot names. Slots hold transient workflow state that must
// not pollute the session blob.
const (
	SlotPinAttempt       = "pin_attempt"
	SlotLoginData        = "login_data"
	SlotBalanceAccount   = "balance_selected_account"
	SlotStatementAccount = "statement_account"
	SlotAirtimeAmount    = "airtime_amount"
	SlotAirtimeMode      = "airtime_mode"
	SlotAirtimeRecipient = "airtime_recipient"
	SlotAirtimeAccount   = "airtime_account"
	SlotTransactionPin   = "transaction_pin"
	SlotNetwork          = "network"
	SlotMerchantID       = "merchant_id"
	SlotPostPinRedirect  = "post_pin_redirect"
)

// SlotAPICache derives the slot name for a cached upstream envelope.
func SlotAPICache(cacheKey string) string {
	return "api_cache_" + cacheKey
}
