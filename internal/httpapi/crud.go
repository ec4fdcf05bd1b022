package httpapi

import (
	"net/http"
	"strconv"

	"github.com/ascendancy-esports/tournament-backend/internal/identity"
	"github.com/ascendancy-esports/tournament-backend/internal/matches"
	"github.com/ascendancy-esports/tournament-backend/internal/teams"
	"github.com/go-chi/chi/v5"
)

// ---- users ----

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var u identity.User
	if err := decode(r, &u); err != nil {
		s.respondError(w, err)
		return
	}
	if u.UserID == "" || u.Username == "" {
		s.respondError(w, errBadRequest)
		return
	}

	created, err := s.users.Create(r.Context(), u)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.GetByUserID(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

// ---- teams ----

func (s *Server) createTeam(w http.ResponseWriter, r *http.Request) {
	var t teams.Team
	if err := decode(r, &t); err != nil {
		s.respondError(w, err)
		return
	}
	if t.OwnerID == "" || t.OwnerUsername == "" || t.TeamName == "" {
		s.respondError(w, errBadRequest)
		return
	}

	created, err := s.teams.Create(r.Context(), t)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) listTeams(w http.ResponseWriter, r *http.Request) {
	out, err := s.teams.List(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) teamID(w http.ResponseWriter, r *http.Request) (uint, bool) {
	id, err := strconv.ParseUint(chi.URLParam(r, "id"), 10, 32)
	if err != nil {
		s.respondError(w, errBadRequest)
		return 0, false
	}
	return uint(id), true
}

func (s *Server) getTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := s.teamID(w, r)
	if !ok {
		return
	}
	t, err := s.teams.GetByID(r.Context(), id)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (s *Server) getTeamByOwner(w http.ResponseWriter, r *http.Request) {
	t, err := s.teams.GetByOwner(r.Context(), chi.URLParam(r, "userId"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (s *Server) deleteTeam(w http.ResponseWriter, r *http.Request) {
	id, ok := s.teamID(w, r)
	if !ok {
		return
	}
	if err := s.teams.Delete(r.Context(), id); err != nil {
		s.respondError(w, err)
		return
	}
	respondMessage(w, http.StatusOK, "team deleted")
}

// ---- matches ----

func (s *Server) createMatch(w http.ResponseWriter, r *http.Request) {
	var m matches.Match
	if err := decode(r, &m); err != nil {
		s.respondError(w, err)
		return
	}
	if m.Team1.TeamID == "" || m.Team2.TeamID == "" {
		s.respondError(w, errBadRequest)
		return
	}

	created, err := s.matches.Create(r.Context(), m)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, created)
}

func (s *Server) listMatches(w http.ResponseWriter, r *http.Request) {
	out, err := s.matches.List(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

func (s *Server) getMatch(w http.ResponseWriter, r *http.Request) {
	m, err := s.matches.GetByMatchID(r.Context(), chi.URLParam(r, "matchId"))
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (s *Server) updateMatchStatus(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status string `json:"status"`
	}
	if err := decode(r, &body); err != nil {
		s.respondError(w, err)
		return
	}

	matchID := chi.URLParam(r, "matchId")
	if err := s.matches.UpdateStatus(r.Context(), matchID, body.Status); err != nil {
		s.respondError(w, err)
		return
	}
	respondMessage(w, http.StatusOK, "match updated")
}

// ---- orders ----

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID   string `json:"userId"`
		Username string `json:"username"`
	}
	if err := decode(r, &body); err != nil {
		s.respondError(w, err)
		return
	}
	if body.UserID == "" || body.Username == "" {
		s.respondError(w, errBadRequest)
		return
	}

	order, err := s.orders.CreateOrder(r.Context(), body.UserID, body.Username)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

func (s *Server) verifyPayment(w http.ResponseWriter, r *http.Request) {
	var body struct {
		OrderID   string `json:"orderId"`
		PaymentID string `json:"paymentId"`
	}
	if err := decode(r, &body); err != nil {
		s.respondError(w, err)
		return
	}

	p, err := s.orders.VerifyPayment(r.Context(), body.OrderID, body.PaymentID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, p)
}
