package server

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/service"
)

type createMarketRequest struct {
	Name      string                    `json:"name"`
	GameTypes []service.GameTypeSetting `json:"gameTypes"`
}

type createOptionGameRequest struct {
	TeamA string          `json:"teamA"`
	TeamB string          `json:"teamB"`
	Odds  decimal.Decimal `json:"odds"`
}

type oddsRequest struct {
	Odds decimal.Decimal `json:"odds"`
}

type marketResultRequest struct {
	Result string `json:"result"`
}

type optionResultRequest struct {
	Winner model.Team `json:"winner"`
}

func (s *Server) listMarkets(w http.ResponseWriter, r *http.Request) {
	markets, err := s.svc.Catalog.ListMarkets(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, markets)
}

func (s *Server) createMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.svc.Catalog.CreateMarket(r.Context(), actorFrom(r.Context()), req.Name, req.GameTypes)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) getMarket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "marketID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.svc.Catalog.GetMarket(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) configureGameType(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "marketID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req service.GameTypeSetting
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	m, err := s.svc.Catalog.ConfigureGameType(r.Context(), actorFrom(r.Context()), id, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) openMarket(w http.ResponseWriter, r *http.Request) {
	s.transitionMarket(w, r, s.svc.Catalog.OpenMarket)
}

func (s *Server) closeMarket(w http.ResponseWriter, r *http.Request) {
	s.transitionMarket(w, r, s.svc.Catalog.CloseMarket)
}

type marketTransition func(ctx context.Context, actor service.Actor, marketID int64) (*service.MarketView, error)

func (s *Server) transitionMarket(w http.ResponseWriter, r *http.Request, fn marketTransition) {
	id, err := pathID(r, "marketID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	m, err := fn(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) declareMarketResult(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "marketID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req marketResultRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.svc.Settlement.DeclareMarketResult(r.Context(), actorFrom(r.Context()), id, req.Result)
	writeSettlement(w, r, report, err)
}

func (s *Server) settleMarket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "marketID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.svc.Settlement.SettleOutstanding(r.Context(), actorFrom(r.Context()), model.TargetMarket, id)
	writeSettlement(w, r, report, err)
}

func (s *Server) listOptionGames(w http.ResponseWriter, r *http.Request) {
	games, err := s.svc.Catalog.ListOptionGames(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, games)
}

func (s *Server) createOptionGame(w http.ResponseWriter, r *http.Request) {
	var req createOptionGameRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.svc.Catalog.CreateOptionGame(r.Context(), actorFrom(r.Context()), req.TeamA, req.TeamB, req.Odds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, g)
}

func (s *Server) getOptionGame(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "gameID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.svc.Catalog.GetOptionGame(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) setOptionOdds(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "gameID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req oddsRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	g, err := s.svc.Catalog.SetOptionOdds(r.Context(), actorFrom(r.Context()), id, req.Odds)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) openOptionGame(w http.ResponseWriter, r *http.Request) {
	s.transitionOption(w, r, s.svc.Catalog.OpenOptionGame)
}

func (s *Server) closeOptionGame(w http.ResponseWriter, r *http.Request) {
	s.transitionOption(w, r, s.svc.Catalog.CloseOptionGame)
}

type optionTransition func(ctx context.Context, actor service.Actor, gameID int64) (*model.OptionGame, error)

func (s *Server) transitionOption(w http.ResponseWriter, r *http.Request, fn optionTransition) {
	id, err := pathID(r, "gameID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	g, err := fn(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) declareOptionGameResult(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "gameID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req optionResultRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.svc.Settlement.DeclareOptionGameResult(r.Context(), actorFrom(r.Context()), id, req.Winner)
	writeSettlement(w, r, report, err)
}

func (s *Server) settleOptionGame(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "gameID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	report, err := s.svc.Settlement.SettleOutstanding(r.Context(), actorFrom(r.Context()), model.TargetOption, id)
	writeSettlement(w, r, report, err)
}

// writeSettlement renders a settlement pass. A pass that ran but left
// wagers pending returns its report with the error so the operator can
// reconcile and retry.
func writeSettlement(w http.ResponseWriter, r *http.Request, report *service.SettlementReport, err error) {
	if err == nil {
		writeJSON(w, http.StatusOK, report)
		return
	}
	if report == nil {
		writeError(w, r, err)
		return
	}
	code, _ := errorStatus(err)
	writeJSON(w, code, errorBody{Error: err.Error(), Status: "incomplete", Report: report})
}
