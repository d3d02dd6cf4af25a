// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package upstream

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/sidianbank/ussd-gateway/pkg/config"
	"github.com/sidianbank/ussd-gateway/pkg/logger"
	"github.com/sidianbank/ussd-gateway/pkg/session"
	"github.com/sidianbank/ussd-gateway/pkg/telemetry"
)

// DefaultCacheTTL bounds how long a cached upstream envelope is served
// before the next call goes back to the wire.
const DefaultCacheTTL = 5 * time.Minute

// maxResponseBytes caps how much of an upstream response body is read.
const maxResponseBytes = 1 << 20

// Client issues requests to the core banking HTTP facade. All failures
// are absorbed into failure envelopes; Call never returns an error.
type Client struct {
	http      *http.Client
	baseURL   string
	bank      config.Bank
	endpoints config.Endpoints
	sessions  session.SlotAccess
	metrics   *telemetry.Metrics
	cacheTTL  time.Duration
}

// NewClient builds a client with the configured connect and overall
// timeouts. metrics may be nil.
func NewClient(
	cfg config.Upstream,
	bank config.Bank,
	endpoints config.Endpoints,
	sessions session.SlotAccess,
	metrics *telemetry.Metrics,
) *Client {
	return &Client{
		http:      newHTTPClient(cfg.ConnectTimeout, cfg.Timeout),
		baseURL:   cfg.BaseURL,
		bank:      bank,
		endpoints: endpoints,
		sessions:  sessions,
		metrics:   metrics,
		cacheTTL:  DefaultCacheTTL,
	}
}

// newHTTPClient builds the transport with an explicit dialer so the
// connect phase times out independently of the overall request budget.
func newHTTPClient(connect, overall time.Duration) *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   connect,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: overall,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
	return &http.Client{
		Transport: transport,
		Timeout:   overall,
	}
}

// CallRequest describes one upstream exchange. CacheKey enables the
// per-session response cache; ForceRefresh bypasses a fresh entry.
type CallRequest struct {
	Service      string
	Data         string
	Ref          session.Ref
	CustomerID   string
	BankAccounts string
	CacheKey     string
	ForceRefresh bool
}

// cachedEnvelope is the slot payload for cached upstream responses.
type cachedEnvelope struct {
	Envelope        Envelope `json:"envelope"`
	TimestampMillis int64    `json:"timestampMillis"`
}

func (c cachedEnvelope) expired(ttl time.Duration) bool {
	return time.Now().After(time.UnixMilli(c.TimestampMillis).Add(ttl))
}

// Call performs one upstream exchange. Transport failures become the
// canned connection-error envelope; backend failures are decoded per the
// wire protocol. Successful responses are cached in the session slot
// api_cache_{cacheKey} when a cache key is given.
func (c *Client) Call(ctx context.Context, req CallRequest) Envelope {
	start := time.Now()

	if req.CacheKey != "" && !req.ForceRefresh {
		var cached cachedEnvelope
		found, err := c.sessions.Grab(ctx, req.Ref, session.SlotAPICache(req.CacheKey), &cached)
		if err != nil {
			logger.Warnf("Upstream cache read for %q failed: %v", req.CacheKey, err)
		}
		if found && !cached.expired(c.cacheTTL) {
			logger.Debugf("Upstream cache hit for %q", req.CacheKey)
			c.metrics.RecordCacheHit(ctx, req.Service)
			return cached.Envelope
		}
	}

	shortcode := req.Ref.Shortcode
	if shortcode == "" {
		shortcode = c.bank.Shortcode
	}
	endpoint := c.endpoints.Resolve(req.Service)
	encoded := EncodeRequest(RequestContext{
		FormID:       endpoint.FormID,
		MSISDN:       req.Ref.MSISDN,
		SessionID:    req.Ref.SessionID,
		BankID:       c.bank.ID,
		BankName:     c.bank.Name,
		Shortcode:    shortcode,
		Country:      c.bank.Country,
		TrxSource:    c.bank.TrxSource,
		CustomerID:   req.CustomerID,
		BankAccounts: req.BankAccounts,
		Extra:        endpoint.Params,
	}, req.Data)

	env := c.exchange(ctx, req.Service, encoded)
	c.metrics.RecordUpstreamCall(ctx, req.Service, env.Success, time.Since(start))

	if env.Success && req.CacheKey != "" {
		entry := cachedEnvelope{Envelope: env, TimestampMillis: time.Now().UnixMilli()}
		if err := c.sessions.Put(ctx, req.Ref, session.SlotAPICache(req.CacheKey), entry); err != nil {
			logger.Warnf("Upstream cache write for %q failed: %v", req.CacheKey, err)
		}
	}
	return env
}

func (c *Client) exchange(ctx context.Context, service, encoded string) Envelope {
	callURL := c.baseURL + "?b=" + url.QueryEscape(encoded)
	logger.Debugf("Upstream request %s: %s", service, MaskString(encoded))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, callURL, nil)
	if err != nil {
		logger.Errorf("Building upstream request for %s failed: %v", service, err)
		return ConnectionError()
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		logger.Errorf("Upstream request for %s failed: %v", service, err)
		return ConnectionError()
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		logger.Errorf("Reading upstream response for %s failed: %v", service, err)
		return ConnectionError()
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		logger.Errorf("Upstream %s returned HTTP %d", service, resp.StatusCode)
		return Envelope{
			Success: false,
			Status:  "ERROR",
			Code:    fmt.Sprintf("HTTP_%d", resp.StatusCode),
			Error:   MsgServiceUnavailable,
			Retry:   true,
			Data:    map[string]string{},
		}
	}

	env := DecodeResponse(string(body))
	logger.Debugf("Upstream response %s: status=%q success=%t %s",
		service, env.Status, env.Success, MaskString(string(body)))
	return env
}
