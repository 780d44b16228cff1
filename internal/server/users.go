package server

import (
	"net/http"

	"github.com/deevxcoder/queen-001-replit-sub000/internal/model"
	"github.com/deevxcoder/queen-001-replit-sub000/internal/service"
)

type statusRequest struct {
	Status model.UserStatus `json:"status"`
}

type adjustmentRequest struct {
	Amount  int64  `json:"amount"`
	Remarks string `json:"remarks"`
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var req service.CreateUserRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.svc.Accounts.CreateUser(r.Context(), actorFrom(r.Context()), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, u)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.svc.Accounts.GetUser(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) setUserStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req statusRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	u, err := s.svc.Accounts.SetUserStatus(r.Context(), actorFrom(r.Context()), id, req.Status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) listPlayers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	users, err := s.svc.Accounts.ListOwned(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) getWallet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	wallet, err := s.svc.Ledger.Wallet(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wallet)
}

func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := s.svc.Ledger.History(r.Context(), actorFrom(r.Context()), id, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) listWagers(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	wagers, err := s.svc.Wagers.ListByUser(r.Context(), actorFrom(r.Context()), id, limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, wagers)
}

func (s *Server) adjustBalance(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req adjustmentRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	entry, err := s.svc.Approvals.AdjustBalance(r.Context(), actorFrom(r.Context()), id, req.Amount, req.Remarks)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

// verifyLedger is admin only. A mismatch is reported in the body with 409
// since the check itself succeeded.
func (s *Server) verifyLedger(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r.Context())
	if !actor.IsAdmin() {
		writeError(w, r, service.ErrUnauthorized)
		return
	}
	id, err := pathID(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := s.svc.Ledger.Verify(r.Context(), id)
	if v != nil && err != nil {
		writeJSON(w, http.StatusConflict, v)
		return
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) reconcileLedger(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "userID")
	if err != nil {
		writeError(w, r, err)
		return
	}
	v, err := s.svc.Ledger.Reconcile(r.Context(), actorFrom(r.Context()), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
