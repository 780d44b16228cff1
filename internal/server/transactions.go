package server

import (
	"context"
	"net/http"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/service"
)

type amountRequest struct {
	Amount int64 `json:"amount"`
}

type requestFunc func(ctx context.Context, actor service.Actor, amount int64) (*model.LedgerEntry, error)

func (s *Server) requestDeposit(w http.ResponseWriter, r *http.Request) {
	s.request(w, r, s.svc.Approvals.RequestDeposit)
}

func (s *Server) requestWithdrawal(w http.ResponseWriter, r *http.Request) {
	s.request(w, r, s.svc.Approvals.RequestWithdrawal)
}

func (s *Server) request(w http.ResponseWriter, r *http.Request, fn requestFunc) {
	var req amountRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := fn(r.Context(), actorFrom(r.Context()), req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) listPending(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.svc.Approvals.ListPending(r.Context(), actorFrom(r.Context()), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) approveTransaction(w http.ResponseWriter, r *http.Request) {
	s.resolve(w, r, true)
}

func (s *Server) rejectTransaction(w http.ResponseWriter, r *http.Request) {
	s.resolve(w, r, false)
}

func (s *Server) resolve(w http.ResponseWriter, r *http.Request, approve bool) {
	id, err := pathID(r, "txID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := s.svc.Approvals.ResolveTransaction(r.Context(), actorFrom(r.Context()), id, approve)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
