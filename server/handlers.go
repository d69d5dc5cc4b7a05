package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/rustyeddy/papertrader/broker"
	"github.com/rustyeddy/papertrader/internal/id"
	"github.com/rustyeddy/papertrader/journal"
	"github.com/rustyeddy/papertrader/risk"
)

type envelope struct {
	Data     interface{} `json:"data"`
	Metadata metadata    `json:"metadata"`
}

type metadata struct {
	Timestamp time.Time `json:"timestamp"`
}

type circuitBreakerResponse struct {
	Active  bool                  `json:"active"`
	Reason  *string               `json:"reason"`
	Metrics risk.PortfolioMetrics `json:"metrics"`
}

type pricesRequest struct {
	Prices map[string]float64 `json:"prices"`
}

type portfolioValueRequest struct {
	Value float64 `json:"value"`
}

type startPositionRequest struct {
	Symbol     string  `json:"symbol"`
	EntryPrice float64 `json:"entry_price"`
	Shares     int     `json:"shares"`
}

type syncRequest struct {
	Positions []broker.Position `json:"positions"`
}

type weightsRequest struct {
	Weights risk.Weights `json:"weights"`
}

type ordersRequest struct {
	Orders           []broker.Order     `json:"orders"`
	PortfolioValue   float64            `json:"portfolio_value"`
	CurrentPositions map[string]float64 `json:"current_positions"`
	Prices           map[string]float64 `json:"prices"`
}

type ordersResponse struct {
	Approved  []broker.Order       `json:"approved"`
	Decisions []risk.OrderDecision `json:"decisions"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": "papertrader",
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	s.writeData(w, http.StatusOK, s.coord.Summary())
}

func (s *Server) handleCircuitBreaker(w http.ResponseWriter, r *http.Request) {
	s.writeData(w, http.StatusOK, s.breakerState())
}

func (s *Server) breakerState() circuitBreakerResponse {
	resp := circuitBreakerResponse{
		Active:  s.coord.IsCircuitBreakerActive(),
		Metrics: s.coord.PortfolioMetrics(),
	}
	if reason, ok := s.coord.CircuitBreakerReason(); ok {
		resp.Reason = &reason
	}
	return resp
}

func (s *Server) handlePositions(w http.ResponseWriter, r *http.Request) {
	s.writeData(w, http.StatusOK, nonNil(s.coord.PositionRisks()))
}

// handleExits evaluates every tracked position. Signals are journaled but
// nothing is closed.
func (s *Server) handleExits(w http.ResponseWriter, r *http.Request) {
	signals := s.coord.CheckAllPositions()
	for _, sig := range signals {
		if s.metrics != nil {
			s.metrics.RecordExitSignal(sig)
		}
		s.record(journal.EventRecord{
			EventID: sig.ID,
			Kind:    journal.KindExitSignal,
			Symbol:  sig.Symbol,
			Trigger: string(sig.TriggerType),
			Shares:  sig.Shares,
			Price:   sig.CurrentPrice,
			Reason:  sig.Reason,
			Time:    sig.Timestamp,
		})
	}
	s.writeData(w, http.StatusOK, nonNil(signals))
}

func (s *Server) handleStartPosition(w http.ResponseWriter, r *http.Request) {
	var req startPositionRequest
	if !s.decode(w, r, &req) {
		return
	}
	req.Symbol = strings.TrimSpace(req.Symbol)
	if req.Symbol == "" || req.Symbol == risk.CashSymbol || req.EntryPrice <= 0 || req.Shares <= 0 {
		s.writeError(w, http.StatusBadRequest, "symbol, positive entry_price and positive shares are required")
		return
	}

	s.coord.StartPosition(req.Symbol, req.EntryPrice, req.Shares)
	s.writeData(w, http.StatusCreated, nonNil(s.coord.PositionRisks()))
}

func (s *Server) handleClosePosition(w http.ResponseWriter, r *http.Request) {
	s.coord.ClosePosition(chi.URLParam(r, "symbol"))
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSyncPositions(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if !s.decode(w, r, &req) {
		return
	}
	s.coord.SyncPositions(req.Positions)
	s.writeData(w, http.StatusOK, nonNil(s.coord.PositionRisks()))
}

func (s *Server) handleUpdatePrices(w http.ResponseWriter, r *http.Request) {
	var req pricesRequest
	if !s.decode(w, r, &req) {
		return
	}
	for sym, p := range req.Prices {
		if p <= 0 {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("price for %s must be positive", sym))
			return
		}
	}

	s.coord.UpdatePrices(req.Prices)
	risks := s.coord.PositionRisks()
	if s.metrics != nil {
		s.metrics.ObservePositions(risks)
	}
	s.writeData(w, http.StatusOK, nonNil(risks))
}

// handlePortfolioValue records a new value and runs the breaker check.
func (s *Server) handlePortfolioValue(w http.ResponseWriter, r *http.Request) {
	var req portfolioValueRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.Value <= 0 {
		s.writeError(w, http.StatusBadRequest, "value must be positive")
		return
	}

	s.coord.UpdatePortfolioValue(req.Value)
	if st := s.coord.EvaluateCircuitBreaker(); st.Tripped {
		if s.metrics != nil {
			s.metrics.RecordBreakerTrip()
		}
		s.record(journal.EventRecord{
			EventID: id.New(),
			Kind:    journal.KindCircuitBreaker,
			Price:   req.Value,
			Reason:  st.Reason,
			Time:    s.now(),
		})
	}
	s.observe()
	s.writeData(w, http.StatusOK, s.breakerState())
}

func (s *Server) handleDailyReset(w http.ResponseWriter, r *http.Request) {
	s.coord.ResetDailyTracking()
	pm := s.coord.PortfolioMetrics()
	s.record(journal.EventRecord{
		EventID: id.New(),
		Kind:    journal.KindDailyReset,
		Price:   pm.DailyStartValue,
		Reason:  "Manual daily reset",
		Time:    s.now(),
	})
	s.observe()
	s.writeData(w, http.StatusOK, pm)
}

func (s *Server) handleValidateWeights(w http.ResponseWriter, r *http.Request) {
	var req weightsRequest
	if !s.decode(w, r, &req) {
		return
	}
	if len(req.Weights) == 0 {
		s.writeError(w, http.StatusBadRequest, "weights are required")
		return
	}

	res := s.coord.ValidateWeights(req.Weights)
	if s.metrics != nil {
		s.metrics.RecordWeightCheck(res)
	}
	if res.Action != risk.ActionApprove {
		s.record(journal.EventRecord{
			EventID: id.New(),
			Kind:    journal.KindWeightCheck,
			Trigger: string(res.Action),
			Reason:  res.Message,
			Time:    res.Timestamp,
		})
	}
	s.writeData(w, http.StatusOK, res)
}

func (s *Server) handleValidateOrders(w http.ResponseWriter, r *http.Request) {
	var req ordersRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.PortfolioValue < 0 {
		s.writeError(w, http.StatusBadRequest, "portfolio_value must not be negative")
		return
	}

	decisions := s.coord.EvaluateOrders(req.Orders, req.PortfolioValue, req.CurrentPositions, req.Prices)
	resp := ordersResponse{Approved: []broker.Order{}, Decisions: nonNil(decisions)}
	now := s.now()
	for _, d := range decisions {
		if d.Allowed {
			resp.Approved = append(resp.Approved, d.Order)
			continue
		}
		codes := make([]string, 0, len(d.Violations))
		for _, v := range d.Violations {
			codes = append(codes, v.Code)
		}
		s.record(journal.EventRecord{
			EventID: id.At(now),
			Kind:    journal.KindOrderRejected,
			Symbol:  d.Order.Symbol,
			Trigger: strings.Join(codes, ","),
			Shares:  d.Order.Shares,
			Price:   d.OrderValue,
			Reason:  d.Violations[0].Msg,
			Time:    now,
		})
	}
	if s.metrics != nil {
		s.metrics.RecordOrderDecisions(decisions)
	}
	s.writeData(w, http.StatusOK, resp)
}

func (s *Server) observe() {
	if s.metrics == nil {
		return
	}
	s.metrics.ObserveSummary(s.coord.Summary())
	s.metrics.ObservePortfolio(s.coord.PortfolioMetrics())
}

func (s *Server) record(e journal.EventRecord) {
	if err := s.journal.RecordEvent(e); err != nil {
		s.log.Error().Err(err).Str("kind", string(e.Kind)).Msg("Failed to journal event")
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) writeData(w http.ResponseWriter, status int, data interface{}) {
	s.writeJSON(w, status, envelope{Data: data, Metadata: metadata{Timestamp: s.now().UTC()}})
}

// writeJSON writes a JSON response
func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeError writes an error response
func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{
		"error": message,
	})
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
