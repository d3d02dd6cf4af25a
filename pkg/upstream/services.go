// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package upstream

import (
	"context"
	"fmt"

	"github.com/sidianbank/ussd-gateway/pkg/config"
	"github.com/sidianbank/ussd-gateway/pkg/session"
)

// CustomerCacheKey derives the cache key for a customer profile lookup.
func CustomerCacheKey(msisdn string) string {
	return "customer_" + msisdn
}

// GetCustomer looks up the customer profile for the session MSISDN. The
// response is cached per MSISDN so repeated turns within a session do
// not hit the core again.
func (c *Client) GetCustomer(ctx context.Context, ref session.Ref) Envelope {
	return c.Call(ctx, CallRequest{
		Service:  config.ServiceGetCustomer,
		Data:     "MOBILENUMBER:" + ref.MSISDN,
		Ref:      ref,
		CacheKey: CustomerCacheKey(ref.MSISDN),
	})
}

// Login verifies a PIN against the core. Never cached.
func (c *Client) Login(ctx context.Context, ref session.Ref, customerID, pin string) Envelope {
	return c.Call(ctx, CallRequest{
		Service:    config.ServiceLogin,
		Data:       fmt.Sprintf("LOGINMPIN:%s:CUSTOMERID:%s", pin, customerID),
		Ref:        ref,
		CustomerID: customerID,
	})
}

// Balance fetches the balance of one account. Never cached.
func (c *Client) Balance(ctx context.Context, ref session.Ref, customerID, account string) Envelope {
	data := fmt.Sprintf("MERCHANTID:BALANCE:BANKACCOUNTID:%s:CUSTOMERID:%s:MOBILENUMBER:%s",
		account, customerID, ref.MSISDN)
	return c.Call(ctx, CallRequest{
		Service:    config.ServiceBalance,
		Data:       data,
		Ref:        ref,
		CustomerID: customerID,
	})
}

// MiniStatement fetches the recent transactions of one account. The
// response rows are positional; callers read Envelope.Parts.
func (c *Client) MiniStatement(ctx context.Context, ref session.Ref, customerID, account string) Envelope {
	data := fmt.Sprintf("MERCHANTID:MINISTATEMENT:BANKACCOUNTID:%s:CUSTOMERID:%s:MOBILENUMBER:%s",
		account, customerID, ref.MSISDN)
	return c.Call(ctx, CallRequest{
		Service:    config.ServiceMiniStatement,
		Data:       data,
		Ref:        ref,
		CustomerID: customerID,
	})
}

// AirtimePurchase carries the parameters of a paybill airtime purchase.
type AirtimePurchase struct {
	MerchantID    string
	BankAccountID string
	MobileNumber  string
	Amount        string
	PIN           string
	CustomerID    string
}

// PurchaseAirtime executes a paybill airtime purchase. Never cached.
func (c *Client) PurchaseAirtime(ctx context.Context, ref session.Ref, p AirtimePurchase) Envelope {
	data := fmt.Sprintf("ACTION:PAYBILL:MERCHANTID:%s:BANKACCOUNTID:%s:MOBILENUMBER:%s:AMOUNT:%s:TRXMPIN:%s",
		p.MerchantID, p.BankAccountID, p.MobileNumber, p.Amount, p.PIN)
	return c.Call(ctx, CallRequest{
		Service:    config.ServiceAirtime,
		Data:       data,
		Ref:        ref,
		CustomerID: p.CustomerID,
	})
}
