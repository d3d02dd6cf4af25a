// SPDX-FileCopyrightText: Copyright 2026 Sidian Bank Ltd.
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sidianbank/ussd-gateway/pkg/gateway"
	"github.com/sidianbank/ussd-gateway/pkg/menu"
)

type stubTurns struct {
	frame menu.Frame
	err   error
	last  gateway.TurnRequest
	calls int
}

func (s *stubTurns) HandleTurn(_ context.Context, req gateway.TurnRequest) (menu.Frame, error) {
	s.calls++
	s.last = req
	return s.frame, s.err
}

type stubHealth struct {
	redis, session bool
}

func (s *stubHealth) RedisHealthy(context.Context) bool   { return s.redis }
func (s *stubHealth) SessionHealthy(context.Context) bool { return s.session }

func newTestRouter(turns *stubTurns, health *stubHealth) http.Handler {
	if health == nil {
		health = &stubHealth{redis: true, session: true}
	}
	return NewRouter(Deps{Turns: turns, Health: health})
}

func postForm(t *testing.T, h http.Handler, values url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/ussd", strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func validForm() url.Values {
	return url.Values{
		"msisdn":    {"254700111222"},
		"sessionid": {"S1"},
		"shortcode": {"527"},
		"response":  {""},
	}
}

func TestTurnFormRequest(t *testing.T) {
	t.Parallel()
	turns := &stubTurns{frame: menu.Frame{Action: menu.ActionCon, Message: "Welcome"}}

	rec := postForm(t, newTestRouter(turns, nil), validForm())

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "con Welcome", rec.Body.String())
	assert.Equal(t, "254700111222", turns.last.MSISDN)
	assert.Equal(t, "S1", turns.last.SessionID)
	assert.Equal(t, "527", turns.last.Shortcode)
}

func TestTurnJSONRequest(t *testing.T) {
	t.Parallel()
	turns := &stubTurns{frame: menu.Frame{Action: menu.ActionEnd, Message: "Goodbye"}}
	router := newTestRouter(turns, nil)

	body, err := json.Marshal(map[string]string{
		"msisdn":    "254700111222",
		"sessionid": "S1",
		"shortcode": "527",
		"response":  "1",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/ussd", strings.NewReader(string(body)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "end Goodbye", rec.Body.String())
	assert.Equal(t, "1", turns.last.Input)
}

func TestTurnValidationRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(url.Values)
	}{
		{name: "missing msisdn", mutate: func(v url.Values) { v.Del("msisdn") }},
		{name: "short msisdn", mutate: func(v url.Values) { v.Set("msisdn", "0700111222") }},
		{name: "foreign msisdn", mutate: func(v url.Values) { v.Set("msisdn", "255700111222") }},
		{name: "alpha msisdn", mutate: func(v url.Values) { v.Set("msisdn", "25470011122a") }},
		{name: "missing sessionid", mutate: func(v url.Values) { v.Del("sessionid") }},
		{name: "short sessionid", mutate: func(v url.Values) { v.Set("sessionid", "S") }},
		{name: "long sessionid", mutate: func(v url.Values) { v.Set("sessionid", strings.Repeat("S", 51)) }},
		{name: "bad shortcode", mutate: func(v url.Values) { v.Set("shortcode", "ab") }},
		{name: "oversize response", mutate: func(v url.Values) { v.Set("response", strings.Repeat("9", 501)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			turns := &stubTurns{}
			values := validForm()
			tt.mutate(values)

			rec := postForm(t, newTestRouter(turns, nil), values)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "end Invalid parameters", rec.Body.String())
			assert.Zero(t, turns.calls, "invalid requests must not reach the turn handler")
		})
	}
}

func TestTurnMalformedJSON(t *testing.T) {
	t.Parallel()
	turns := &stubTurns{}
	router := newTestRouter(turns, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/ussd", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Zero(t, turns.calls)
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		health     *stubHealth
		wantStatus int
		wantState  string
	}{
		{name: "healthy", health: &stubHealth{redis: true, session: true}, wantStatus: http.StatusOK, wantState: "ok"},
		{name: "redis down", health: &stubHealth{redis: false, session: true}, wantStatus: http.StatusServiceUnavailable, wantState: "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			router := newTestRouter(&stubTurns{}, tt.health)

			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)

			var resp healthResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantState, resp.Status)
			assert.NotEmpty(t, resp.Timestamp)
			assert.Contains(t, resp.Services, "redis")
			assert.Contains(t, resp.Services, "session")
		})
	}
}

func TestMetricsRouteMountedWhenConfigured(t *testing.T) {
	t.Parallel()

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("# metrics"))
	})
	router := NewRouter(Deps{
		Turns:   &stubTurns{},
		Health:  &stubHealth{redis: true, session: true},
		Metrics: metrics,
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	// And absent when not configured.
	bare := NewRouter(Deps{Turns: &stubTurns{}, Health: &stubHealth{redis: true, session: true}})
	rec = httptest.NewRecorder()
	bare.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
