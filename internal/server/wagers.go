package server

import (
	"net/http"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/service"
)

type marketWagerRequest struct {
	GameType  model.GameType `json:"gameType"`
	Selection string         `json:"selection"`
	Amount    int64          `json:"amount"`
}

type optionWagerRequest struct {
	Selection string `json:"selection"`
	Amount    int64  `json:"amount"`
}

func (s *Server) placeMarketWager(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "marketID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req marketWagerRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	wager, err := s.svc.Wagers.PlaceMarketWager(r.Context(), actorFrom(r.Context()), service.MarketWagerRequest{
		MarketID:  id,
		GameType:  req.GameType,
		Selection: req.Selection,
		Amount:    req.Amount,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wager)
}

func (s *Server) placeOptionWager(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "gameID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req optionWagerRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	wager, err := s.svc.Wagers.PlaceOptionWager(r.Context(), actorFrom(r.Context()), service.OptionWagerRequest{
		GameID:    id,
		Selection: req.Selection,
		Amount:    req.Amount,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, wager)
}

func (s *Server) getWager(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "wagerID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	wager, err := s.svc.Wagers.Get(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wager)
}
