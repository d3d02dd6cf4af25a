// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sidianbank/ussd-gateway/pkg/config"
	"github.com/sidianbank/ussd-gateway/pkg/kvstore"
	"github.com/sidianbank/ussd-gateway/pkg/logger"
	"github.com/sidianbank/ussd-gateway/pkg/menu"
	"github.com/sidianbank/ussd-gateway/pkg/session"
	"github.com/sidianbank/ussd-gateway/pkg/upstream"
)

// Menu names of the airtime flow.
const (
	MenuMobileBanking  = "mobilebanking"
	MenuAirtimeConfirm = "airtime_confirm"
)

// Airtime purchase modes.
const (
	AirtimeModeOwn   = "own"
	AirtimeModeOther = "other"
)

const (
	msgAirtimeCancelled = "Airtime purchase cancelled."
	msgAirtimeDrifted   = "Your airtime request has expired. Please start again."
	msgBadRecipient     = "Invalid recipient number. Please start again."
	msgAirtimeFailed    = "Airtime purchase failed. Reply 1 to retry or 2 to cancel."
)

// recipientPattern accepts country-code form (2547XX/2541XX) alongside
// the local 07XX/01XX form, since stored recipients are normalised to 254.
var recipientPattern = regexp.MustCompile(`^(?:254[17][0-9]{8}|0[17][0-9]{8})$`)

// AirtimeModule executes the airtime purchase confirmation step: limit
// checks, PIN presence, upstream paybill call, daily aggregate tracking.
type AirtimeModule struct {
	banking  Banking
	sessions SessionAccess
	kv       kvstore.Store
	rules    config.AirtimeRules
	prefix   string
	location *time.Location
}

// NewAirtimeModule wires the airtime module. The KV store carries the
// per-MSISDN daily purchase aggregate under the session key prefix.
func NewAirtimeModule(
	banking Banking,
	sessions SessionAccess,
	kv kvstore.Store,
	rules config.AirtimeRules,
	prefix string,
	location *time.Location,
) *AirtimeModule {
	if location == nil {
		location = time.UTC
	}
	return &AirtimeModule{
		banking:  banking,
		sessions: sessions,
		kv:       kv,
		rules:    rules,
		prefix:   prefix,
		location: location,
	}
}

// Name implements Module.
func (*AirtimeModule) Name() string { return "airtime" }

// Handlers implements Module.
func (m *AirtimeModule) Handlers() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		"processAirtimeConfirmation": m.ProcessAirtimeConfirmation,
	}
}

// purchaseIntent is the workflow state gathered across the airtime menus.
type purchaseIntent struct {
	network    string
	merchantID string
	amount     int
	recipient  string
	account    string
	pin        string
}

// ProcessAirtimeConfirmation handles the final confirm screen. Anything
// but "1" cancels back to the mobile banking hub.
func (m *AirtimeModule) ProcessAirtimeConfirmation(ctx context.Context, in menu.Input) (*menu.Result, error) {
	if in.Value == nil {
		return nil, nil
	}
	if strings.TrimSpace(in.Raw()) != "1" {
		m.clearSlots(ctx, in.Ref)
		return &menu.Result{
			Action:   menu.ActionCon,
			Message:  msgAirtimeCancelled,
			NextMenu: MenuMobileBanking,
		}, nil
	}

	intent, res, err := m.gatherIntent(ctx, in)
	if err != nil || res != nil {
		return res, err
	}

	if res := m.checkDailyLimit(ctx, in.Ref.MSISDN, intent.amount); res != nil {
		return res, nil
	}

	env := m.banking.PurchaseAirtime(ctx, in.Ref, upstream.AirtimePurchase{
		MerchantID:    intent.merchantID,
		BankAccountID: accountNumber(intent.account),
		MobileNumber:  intent.recipient,
		Amount:        strconv.Itoa(intent.amount),
		PIN:           intent.pin,
		CustomerID:    customerID(in.Customer),
	})
	if !env.Success {
		logger.Warnw("Airtime purchase failed",
			"status", env.Status, "network", intent.network)
		return &menu.Result{
			Error:        menu.ErrAPIError,
			ErrorMessage: failureText(env, msgAirtimeFailed),
			RetryMenu:    MenuAirtimeConfirm,
		}, nil
	}

	m.recordDailySpend(ctx, in.Ref.MSISDN, intent.amount)
	m.clearSlots(ctx, in.Ref)
	if _, err := m.sessions.IncrementTransactionCount(ctx, in.Ref); err != nil {
		logger.Warnf("Incrementing transaction count failed: %v", err)
	}

	return &menu.Result{
		Action: menu.ActionEnd,
		Message: fmt.Sprintf("You have purchased KES %d airtime for %s. Ref: %s. Thank you for using SidianVIBE.",
			intent.amount, intent.recipient, purchaseReference(env)),
	}, nil
}

// gatherIntent assembles the purchase from the workflow slots. A non-nil
// result short-circuits the purchase (drifted state, missing PIN, bad
// amount).
func (m *AirtimeModule) gatherIntent(ctx context.Context, in menu.Input) (purchaseIntent, *menu.Result, error) {
	var intent purchaseIntent

	grab := func(slot string) (string, error) {
		v, _, err := m.sessions.GrabString(ctx, in.Ref, slot)
		return v, err
	}

	var err error
	if intent.network, err = grab(session.SlotNetwork); err != nil {
		return intent, nil, err
	}
	if intent.merchantID, err = grab(session.SlotMerchantID); err != nil {
		return intent, nil, err
	}

	rawAmount, err := grab(session.SlotAirtimeAmount)
	if err != nil {
		return intent, nil, err
	}
	mode, err := grab(session.SlotAirtimeMode)
	if err != nil {
		return intent, nil, err
	}
	if intent.merchantID == "" || rawAmount == "" || mode == "" {
		return intent, &menu.Result{
			Error:        menu.ErrInvalidInput,
			ErrorMessage: msgAirtimeDrifted,
			RetryMenu:    MenuMobileBanking,
		}, nil
	}

	intent.amount, err = strconv.Atoi(strings.TrimSpace(rawAmount))
	if err != nil || intent.amount < m.rules.MinAmount || intent.amount > m.rules.MaxAmount {
		m.clearSlots(ctx, in.Ref)
		return intent, &menu.Result{
			Error: menu.ErrValidationFailed,
			ErrorMessage: fmt.Sprintf("Amount must be between KES %d and KES %d.",
				m.rules.MinAmount, m.rules.MaxAmount),
			RetryMenu: MenuMobileBanking,
		}, nil
	}

	switch mode {
	case AirtimeModeOther:
		if intent.recipient, err = grab(session.SlotAirtimeRecipient); err != nil {
			return intent, nil, err
		}
	default:
		intent.recipient = in.Ref.MSISDN
	}
	if !recipientPattern.MatchString(intent.recipient) {
		m.clearSlots(ctx, in.Ref)
		return intent, &menu.Result{
			Error:        menu.ErrValidationFailed,
			ErrorMessage: msgBadRecipient,
			RetryMenu:    MenuMobileBanking,
		}, nil
	}

	if intent.account, err = grab(session.SlotAirtimeAccount); err != nil {
		return intent, nil, err
	}
	if intent.account == "" {
		if accounts := customerAccounts(in.Customer); len(accounts) > 0 {
			intent.account = accounts[0]
		}
	}

	if intent.pin, err = grab(session.SlotTransactionPin); err != nil {
		return intent, nil, err
	}
	if intent.pin == "" {
		// Park the confirmation behind the PIN prompt; the pin module
		// routes back here once the login succeeds.
		if err := m.sessions.Put(ctx, in.Ref, session.SlotPostPinRedirect, MenuAirtimeConfirm); err != nil {
			return intent, nil, err
		}
		return intent, &menu.Result{NextMenu: MenuPin}, nil
	}

	return intent, nil, nil
}

// checkDailyLimit enforces the rolling per-day aggregate before money is
// offered to the upstream.
func (m *AirtimeModule) checkDailyLimit(ctx context.Context, msisdn string, amount int) *menu.Result {
	spent, err := m.dailySpend(ctx, msisdn)
	if err != nil {
		logger.Warnf("Reading daily airtime total failed: %v", err)
		return nil // limit bookkeeping must not block a purchase outright
	}
	if spent+int64(amount) > int64(m.rules.DailyLimit) {
		return &menu.Result{
			Action: menu.ActionEnd,
			Message: fmt.Sprintf("This purchase exceeds your daily airtime limit of KES %d.",
				m.rules.DailyLimit),
		}
	}
	return nil
}

func (m *AirtimeModule) dailyKey(msisdn string) string {
	day := time.Now().In(m.location).Format("20060102")
	return fmt.Sprintf("%s:daily:%s:%s", m.prefix, msisdn, day)
}

func (m *AirtimeModule) dailySpend(ctx context.Context, msisdn string) (int64, error) {
	raw, found, err := m.kv.Get(ctx, m.dailyKey(msisdn))
	if err != nil || !found {
		return 0, err
	}
	total, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil {
		return 0, nil
	}
	return total, nil
}

func (m *AirtimeModule) recordDailySpend(ctx context.Context, msisdn string, amount int) {
	now := time.Now().In(m.location)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, m.location).AddDate(0, 0, 1)
	if _, err := m.kv.IncrBy(ctx, m.dailyKey(msisdn), int64(amount), midnight.Sub(now)); err != nil {
		logger.Warnf("Recording daily airtime spend failed: %v", err)
	}
}

func (m *AirtimeModule) clearSlots(ctx context.Context, ref session.Ref) {
	err := m.sessions.Blank(ctx, ref,
		session.SlotNetwork,
		session.SlotMerchantID,
		session.SlotAirtimeAmount,
		session.SlotAirtimeMode,
		session.SlotAirtimeRecipient,
		session.SlotAirtimeAccount,
		session.SlotTransactionPin,
		session.SlotPostPinRedirect,
	)
	if err != nil {
		logger.Warnf("Clearing airtime slots failed: %v", err)
	}
}

func purchaseReference(env upstream.Envelope) string {
	for _, key := range []string{"REFERENCE", "TRXID", "TRANSACTIONID"} {
		if ref := env.Data[key]; ref != "" {
			return ref
		}
	}
	if env.Message != "" {
		return env.Message
	}
	return "N/A"
}

func failureText(env upstream.Envelope, fallback string) string {
	if env.Error != "" {
		return env.Error + " Reply 1 to retry or 2 to cancel."
	}
	return fallback
}
