package gateway

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"capmarket/native/market"
	"capmarket/observability"
)

// Server exposes the ledger's read surface over HTTP. State-changing
// operations stay in-process: the execution environment that provides
// all-or-nothing semantics is the host, not this gateway.
type Server struct {
	engine *market.Engine
	logger *slog.Logger
}

func NewServer(engine *market.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{engine: engine, logger: logger}
}

// Router assembles the HTTP handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/v1/market", s.getMarket)
	r.Get("/v1/positions/{address}", s.getPosition)
	return r
}

type marketResponse struct {
	TotalSupply           string `json:"totalSupply"`
	TotalCollateralTokens string `json:"totalCollateralTokens"`
	TotalBorrows          string `json:"totalBorrows"`
	TotalReserves         string `json:"totalReserves"`
	InternalCash          string `json:"internalCash"`
	CollateralCap         string `json:"collateralCap"`
	FlashFeeBips          uint64 `json:"flashFeeBips"`
	ReserveFactorMantissa string `json:"reserveFactorMantissa"`
}

type positionResponse struct {
	Address          string `json:"address"`
	Tokens           string `json:"tokens"`
	CollateralTokens string `json:"collateralTokens"`
}

func (s *Server) getMarket(w http.ResponseWriter, _ *http.Request) {
	started := time.Now()
	snapshot, err := s.engine.MarketSnapshot()
	observability.Market().Observe("market_snapshot", err, time.Since(started))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, marketResponse{
		TotalSupply:           snapshot.TotalSupply.String(),
		TotalCollateralTokens: snapshot.TotalCollateralTokens.String(),
		TotalBorrows:          snapshot.TotalBorrows.String(),
		TotalReserves:         snapshot.TotalReserves.String(),
		InternalCash:          snapshot.InternalCash.String(),
		CollateralCap:         snapshot.CollateralCap.String(),
		FlashFeeBips:          snapshot.FlashFeeBips,
		ReserveFactorMantissa: snapshot.ReserveFactorMantissa.String(),
	})
}

func (s *Server) getPosition(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "address")
	if !common.IsHexAddress(raw) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid address"})
		return
	}
	started := time.Now()
	pos, err := s.engine.PositionSnapshot(common.HexToAddress(raw))
	observability.Market().Observe("position_snapshot", err, time.Since(started))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, positionResponse{
		Address:          pos.Address.Hex(),
		Tokens:           pos.Tokens.String(),
		CollateralTokens: pos.CollateralTokens.String(),
	})
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	if errors.Is(err, market.ErrInvalidInput) {
		status = http.StatusBadRequest
	}
	s.logger.Error("gateway request failed", "error", err)
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
