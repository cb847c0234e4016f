package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openyield/yieldbridge/internal/auth"
	"github.com/openyield/yieldbridge/internal/fixedpoint"
	"github.com/openyield/yieldbridge/internal/governor"
	"github.com/openyield/yieldbridge/internal/ledger"
	"github.com/openyield/yieldbridge/internal/storage/memory"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestServer(t *testing.T) (*httptest.Server, *fakeClock) {
	t.Helper()

	caps := auth.NewCapabilitySet()
	caps.Grant("custody", auth.CapMintBurn)
	caps.Grant("admin", auth.CapSetRate)

	store := memory.NewStore()
	clk := &fakeClock{now: time.Unix(1_000_000, 0)}
	l := ledger.NewLedger(store, caps, zerolog.Nop(), ledger.WithClock(clk.Now))

	gov := governor.New(store, caps, zerolog.Nop(), nil)
	initial, err := fixedpoint.ParseRate("0.05")
	require.NoError(t, err)
	require.NoError(t, gov.Init(context.Background(), initial))

	srv := httptest.NewServer(NewServer(l, gov, nil, nil, zerolog.Nop(), "custody").Routes())
	t.Cleanup(srv.Close)
	return srv, clk
}

func TestDepositTransferRedeemFlow(t *testing.T) {
	srv, clk := newTestServer(t)

	resp := post(t, srv, "/deposits", `{"account":"alice","amount":100}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	clk.now = clk.now.Add(10 * time.Second)

	var balance struct {
		Balance     uint64 `json:"balance"`
		RateDecimal string `json:"rate_decimal"`
	}
	getJSON(t, srv, "/accounts/balance?account_id=alice", &balance)
	assert.Equal(t, uint64(150), balance.Balance)
	assert.Equal(t, "0.05", balance.RateDecimal)

	resp = post(t, srv, "/transfers", `{"from_account":"alice","to_account":"carol","amount":50}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	var redeemed struct {
		Burned uint64 `json:"burned"`
	}
	resp = post(t, srv, "/redemptions", `{"account":"alice","all":true}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&redeemed))
	assert.Equal(t, uint64(100), redeemed.Burned)
}

func TestTransferInsufficientBalanceStatus(t *testing.T) {
	srv, _ := newTestServer(t)

	post(t, srv, "/deposits", `{"account":"alice","amount":10}`)
	resp := post(t, srv, "/transfers", `{"from_account":"alice","to_account":"bob","amount":50}`)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestCeilingEndpoint(t *testing.T) {
	srv, _ := newTestServer(t)

	var ceiling struct {
		Decimal string `json:"ceiling_rate_decimal"`
	}
	getJSON(t, srv, "/rate/ceiling", &ceiling)
	assert.Equal(t, "0.05", ceiling.Decimal)

	// without the set_rate capability
	resp := put(t, srv, "/rate/ceiling", `{"ceiling_rate":"0.04"}`, "")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	// an increase, properly authorized
	resp = put(t, srv, "/rate/ceiling", `{"ceiling_rate":"0.06"}`, "admin")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	// a decrease, properly authorized
	resp = put(t, srv, "/rate/ceiling", `{"ceiling_rate":"0.04"}`, "admin")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	getJSON(t, srv, "/rate/ceiling", &ceiling)
	assert.Equal(t, "0.04", ceiling.Decimal)
}

func TestOutboundWithoutBridge(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := post(t, srv, "/bridge/outbound", `{"holder":"alice","pool_account":"pool","destination_account":"bob","amount":1}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func post(t *testing.T, srv *httptest.Server, path, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(srv.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func put(t *testing.T, srv *httptest.Server, path, body, caller string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPut, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if caller != "" {
		req.Header.Set("X-Caller", caller)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, srv *httptest.Server, path string, v any) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}
