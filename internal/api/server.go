// Package api exposes the instance over HTTP: custody deposit/redemption,
// holder transfers, balance reads, the governor's ceiling and the bridge's
// outbound entry point.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/openyield/yieldbridge/internal/auth"
	"github.com/openyield/yieldbridge/internal/bridge"
	"github.com/openyield/yieldbridge/internal/fixedpoint"
	"github.com/openyield/yieldbridge/internal/governor"
	"github.com/openyield/yieldbridge/internal/ledger"
	"github.com/openyield/yieldbridge/internal/metrics"
)

type Server struct {
	ledger        *ledger.Ledger
	governor      *governor.Governor
	bridge        *bridge.Bridge
	metrics       *metrics.Collector
	log           zerolog.Logger
	custodyCaller string
}

func NewServer(l *ledger.Ledger, g *governor.Governor, b *bridge.Bridge, m *metrics.Collector, log zerolog.Logger, custodyCaller string) *Server {
	return &Server{
		ledger:        l,
		governor:      g,
		bridge:        b,
		metrics:       m,
		log:           log.With().Str("component", "api").Logger(),
		custodyCaller: custodyCaller,
	}
}

func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /accounts/balance", s.handleCurrentBalance)
	mux.HandleFunc("GET /accounts/principal", s.handlePrincipalBalance)
	mux.HandleFunc("POST /transfers", s.handleTransfer)
	mux.HandleFunc("POST /deposits", s.handleDeposit)
	mux.HandleFunc("POST /redemptions", s.handleRedemption)
	mux.HandleFunc("POST /bridge/outbound", s.handleOutbound)
	mux.HandleFunc("GET /rate/ceiling", s.handleGetCeiling)
	mux.HandleFunc("PUT /rate/ceiling", s.handleSetCeiling)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}
	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCurrentBalance(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}

	now := s.ledger.Now()
	balance, err := s.ledger.CurrentBalance(r.Context(), accountID, now)
	if err != nil {
		s.writeError(w, err)
		return
	}
	acct, _, err := s.ledger.AccountState(r.Context(), accountID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		AccountID   string          `json:"account_id"`
		Balance     uint64          `json:"balance"`
		Rate        fixedpoint.Rate `json:"rate"`
		RateDecimal string          `json:"rate_decimal"`
		AsOf        int64           `json:"as_of"`
	}{accountID, balance, acct.Rate, acct.Rate.String(), now.Unix()})
}

func (s *Server) handlePrincipalBalance(w http.ResponseWriter, r *http.Request) {
	accountID := r.URL.Query().Get("account_id")
	if accountID == "" {
		http.Error(w, "account_id is required", http.StatusBadRequest)
		return
	}

	acct, _, err := s.ledger.AccountState(r.Context(), accountID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		AccountID   string `json:"account_id"`
		Principal   uint64 `json:"principal"`
		LastSettled int64  `json:"last_settled"`
	}{accountID, acct.Principal, acct.LastSettled})
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FromAccount string `json:"from_account"`
		ToAccount   string `json:"to_account"`
		Amount      uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.ledger.Transfer(r.Context(), req.FromAccount, req.ToAccount, req.Amount); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "transferred"})
}

// handleDeposit is the custody entry point: external value came in 1:1, so
// mint the same amount at the current ceiling rate.
func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Account string `json:"account"`
		Amount  uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	rate, err := s.governor.CeilingRate(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.ledger.Mint(r.Context(), s.custodyCaller, req.Account, req.Amount, rate); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Status string          `json:"status"`
		Rate   fixedpoint.Rate `json:"rate"`
	}{"minted", rate})
}

// handleRedemption burns ledger balance ahead of the custody payout. "all"
// maps to the full-balance sentinel.
func (s *Server) handleRedemption(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Account string `json:"account"`
		Amount  uint64 `json:"amount"`
		All     bool   `json:"all"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	amount := req.Amount
	if req.All {
		amount = ledger.EntireBalance
	}
	burned, err := s.ledger.Burn(r.Context(), s.custodyCaller, req.Account, amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, struct {
		Status string `json:"status"`
		Burned uint64 `json:"burned"`
	}{"burned", burned})
}

func (s *Server) handleOutbound(w http.ResponseWriter, r *http.Request) {
	if s.bridge == nil {
		http.Error(w, "bridge not configured", http.StatusServiceUnavailable)
		return
	}

	var req struct {
		Holder             string `json:"holder"`
		PoolAccount        string `json:"pool_account"`
		DestinationAccount string `json:"destination_account"`
		Amount             uint64 `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	msg, err := s.bridge.Outbound(r.Context(), req.Holder, req.PoolAccount, req.DestinationAccount, req.Amount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, msg)
}

func (s *Server) handleGetCeiling(w http.ResponseWriter, r *http.Request) {
	rate, err := s.governor.CeilingRate(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		CeilingRate fixedpoint.Rate `json:"ceiling_rate"`
		Decimal     string          `json:"ceiling_rate_decimal"`
	}{rate, rate.String()})
}

func (s *Server) handleSetCeiling(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CeilingRate string `json:"ceiling_rate"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	rate, err := fixedpoint.ParseRate(req.CeilingRate)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	caller := r.Header.Get("X-Caller")
	if err := s.governor.SetCeilingRate(r.Context(), caller, rate); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, auth.ErrUnauthorized):
		status = http.StatusForbidden
	case errors.Is(err, ledger.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, fixedpoint.ErrOverflow):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, governor.ErrRateIncrease),
		errors.Is(err, bridge.ErrMessageReplay):
		status = http.StatusConflict
	case errors.Is(err, bridge.ErrInvalidOrigin):
		status = http.StatusForbidden
	}
	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
