package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ascendancy-esports/tournament-backend/internal/engine"
	"github.com/ascendancy-esports/tournament-backend/internal/identity"
	"github.com/ascendancy-esports/tournament-backend/internal/mapdata"
	"github.com/ascendancy-esports/tournament-backend/internal/matches"
	"github.com/ascendancy-esports/tournament-backend/internal/orders"
	"github.com/ascendancy-esports/tournament-backend/internal/registry"
	"github.com/ascendancy-esports/tournament-backend/internal/room"
	"github.com/ascendancy-esports/tournament-backend/internal/teams"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

var errRoomNotFound = errors.New("room not found")
var errUnknownMap = errors.New("unknown map")
var errBadRequest = errors.New("invalid request body")

// Store interfaces so handler tests can run against fakes.

type UserStore interface {
	Create(ctx context.Context, u identity.User) (identity.User, error)
	GetByUserID(ctx context.Context, userID string) (identity.User, error)
	List(ctx context.Context) ([]identity.User, error)
}

type TeamStore interface {
	Create(ctx context.Context, t teams.Team) (teams.Team, error)
	List(ctx context.Context) ([]teams.Team, error)
	GetByID(ctx context.Context, id uint) (teams.Team, error)
	GetByOwner(ctx context.Context, ownerID string) (teams.Team, error)
	Delete(ctx context.Context, id uint) error
}

type MatchStore interface {
	Create(ctx context.Context, m matches.Match) (matches.Match, error)
	List(ctx context.Context) ([]matches.Match, error)
	GetByMatchID(ctx context.Context, matchID string) (matches.Match, error)
	UpdateStatus(ctx context.Context, matchID, status string) error
}

type OrderService interface {
	CreateOrder(ctx context.Context, userID, username string) (map[string]interface{}, error)
	VerifyPayment(ctx context.Context, orderID, paymentID string) (orders.Payment, error)
}

type Server struct {
	registry *registry.Registry
	users    UserStore
	teams    TeamStore
	matches  MatchStore
	orders   OrderService
	log      *zap.Logger
}

func NewServer(reg *registry.Registry, users UserStore, teamStore TeamStore, matchStore MatchStore, orderSvc OrderService, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		registry: reg,
		users:    users,
		teams:    teamStore,
		matches:  matchStore,
		orders:   orderSvc,
		log:      log,
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondMessage(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, struct {
		Message string `json:"message"`
	}{msg})
}

// Each error class gets its own status so clients can render "not your turn"
// differently from "room not found".
func (s *Server) respondError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, registry.ErrCaptainNotFound),
		errors.Is(err, registry.ErrCaptainNoEmail),
		errors.Is(err, engine.ErrIllegalSide),
		errors.Is(err, engine.ErrUnknownTeam),
		errors.Is(err, matches.ErrBadStatus):
		status = http.StatusBadRequest

	case errors.Is(err, room.ErrForbidden),
		errors.Is(err, engine.ErrWrongTurn):
		status = http.StatusForbidden

	case errors.Is(err, errRoomNotFound),
		errors.Is(err, errUnknownMap),
		errors.Is(err, room.ErrRoomClosed),
		errors.Is(err, identity.ErrNotFound),
		errors.Is(err, teams.ErrNotFound),
		errors.Is(err, matches.ErrNotFound),
		errors.Is(err, orders.ErrNotFound):
		status = http.StatusNotFound

	case errors.Is(err, teams.ErrDuplicateName),
		errors.Is(err, registry.ErrCredentialExhausted),
		errors.Is(err, engine.ErrVetoAlreadyStarted),
		errors.Is(err, engine.ErrVetoNotStarted),
		errors.Is(err, engine.ErrIllegalBan),
		errors.Is(err, engine.ErrMapNotSelected),
		errors.Is(err, engine.ErrSideAlreadySelected):
		status = http.StatusConflict

	case errors.Is(err, orders.ErrGateway):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.Error(err))
		respondMessage(w, status, "internal server error")
		return
	}
	respondMessage(w, status, err.Error())
}

// awaitRoom receives a reply unless the room shuts down first; a room that
// dies mid-request reads as gone, never half-applied.
func awaitRoom[T any](rm *room.Room, reply chan T) (T, bool) {
	select {
	case v := <-reply:
		return v, true
	case <-rm.Done():
		// Take a reply that landed just before the shutdown.
		select {
		case v := <-reply:
			return v, true
		default:
			var zero T
			return zero, false
		}
	}
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errBadRequest
	}
	return nil
}

// ---- rooms ----

func (s *Server) createRoom(w http.ResponseWriter, r *http.Request) {
	var params registry.CreateParams
	if err := decode(r, &params); err != nil {
		s.respondError(w, err)
		return
	}
	if params.MatchID == "" || params.AdminID == "" ||
		params.Team1.TeamID == "" || params.Team1.CaptainID == "" ||
		params.Team2.TeamID == "" || params.Team2.CaptainID == "" {
		s.respondError(w, errBadRequest)
		return
	}

	reply := make(chan registry.CreateReply, 1)
	s.registry.Inbox() <- registry.Create{Params: params, Reply: reply}
	cr := <-reply
	if cr.Err != nil {
		s.respondError(w, cr.Err)
		return
	}

	// The only response that ever carries the passkey: the admin needs it to
	// hand out.
	respondJSON(w, http.StatusCreated, struct {
		Room        room.Info `json:"room"`
		RoomCode    string    `json:"roomCode"`
		RoomPasskey string    `json:"roomPasskey"`
	}{cr.Info, cr.Info.RoomCode, cr.Info.RoomPasskey})
}

func (s *Server) listRooms(w http.ResponseWriter, r *http.Request) {
	reply := make(chan []*room.Room, 1)
	s.registry.Inbox() <- registry.List{Reply: reply}
	rooms := <-reply

	snaps := make([]room.Snapshot, 0, len(rooms))
	for _, rm := range rooms {
		stReply := make(chan room.Snapshot, 1)
		rm.Inbox() <- room.GetState{Reply: stReply}
		if snap, ok := awaitRoom(rm, stReply); ok {
			snaps = append(snaps, snap)
		}
	}
	respondJSON(w, http.StatusOK, snaps)
}

func (s *Server) joinRoom(w http.ResponseWriter, r *http.Request) {
	var body struct {
		RoomCode    string `json:"roomCode"`
		RoomPasskey string `json:"roomPasskey"`
		UserID      string `json:"userId"`
		IsAdmin     bool   `json:"isAdmin"`
	}
	if err := decode(r, &body); err != nil {
		s.respondError(w, err)
		return
	}

	reply := make(chan *room.Room, 1)
	if body.IsAdmin {
		// Admins are identified by id, not by passkey.
		s.registry.Inbox() <- registry.Get{Code: body.RoomCode, Reply: reply}
	} else {
		s.registry.Inbox() <- registry.GetByCredential{Code: body.RoomCode, Passkey: body.RoomPasskey, Reply: reply}
	}
	rm := <-reply
	if rm == nil {
		s.respondError(w, errRoomNotFound)
		return
	}

	joinReply := make(chan room.JoinReply, 1)
	rm.Inbox() <- room.Join{UserID: body.UserID, Passkey: body.RoomPasskey, AsAdmin: body.IsAdmin, Reply: joinReply}
	jr, ok := awaitRoom(rm, joinReply)
	if !ok {
		s.respondError(w, errRoomNotFound)
		return
	}
	if jr.Err != nil {
		s.respondError(w, jr.Err)
		return
	}
	respondJSON(w, http.StatusOK, jr.Presence)
}

func (s *Server) lookupRoom(w http.ResponseWriter, code string) *room.Room {
	reply := make(chan *room.Room, 1)
	s.registry.Inbox() <- registry.Get{Code: code, Reply: reply}
	rm := <-reply
	if rm == nil {
		s.respondError(w, errRoomNotFound)
	}
	return rm
}

func (s *Server) roomStatus(w http.ResponseWriter, r *http.Request) {
	rm := s.lookupRoom(w, chi.URLParam(r, "roomCode"))
	if rm == nil {
		return
	}
	reply := make(chan room.Snapshot, 1)
	rm.Inbox() <- room.GetState{Reply: reply}
	snap, ok := awaitRoom(rm, reply)
	if !ok {
		s.respondError(w, errRoomNotFound)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) startPickBan(w http.ResponseWriter, r *http.Request) {
	rm := s.lookupRoom(w, chi.URLParam(r, "roomCode"))
	if rm == nil {
		return
	}
	reply := make(chan room.StateReply, 1)
	rm.Inbox() <- room.StartVeto{Reply: reply}
	s.respondState(w, rm, reply)
}

func (s *Server) banMap(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TeamID string `json:"teamId"`
		MapID  string `json:"mapId"`
	}
	if err := decode(r, &body); err != nil {
		s.respondError(w, err)
		return
	}
	if _, ok := mapdata.ByID(body.MapID); !ok {
		// Not in the catalog at all: distinct from a map that is merely
		// banned or outside this room's pool.
		s.respondError(w, errUnknownMap)
		return
	}

	rm := s.lookupRoom(w, chi.URLParam(r, "roomCode"))
	if rm == nil {
		return
	}
	reply := make(chan room.StateReply, 1)
	rm.Inbox() <- room.BanMap{TeamID: body.TeamID, MapID: body.MapID, Reply: reply}
	s.respondState(w, rm, reply)
}

func (s *Server) selectSide(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TeamID string `json:"teamId"`
		Side   string `json:"side"`
	}
	if err := decode(r, &body); err != nil {
		s.respondError(w, err)
		return
	}

	rm := s.lookupRoom(w, chi.URLParam(r, "roomCode"))
	if rm == nil {
		return
	}
	reply := make(chan room.StateReply, 1)
	rm.Inbox() <- room.SelectSide{TeamID: body.TeamID, Side: engine.Side(body.Side), Reply: reply}
	s.respondState(w, rm, reply)
}

func (s *Server) respondState(w http.ResponseWriter, rm *room.Room, reply chan room.StateReply) {
	sr, ok := awaitRoom(rm, reply)
	if !ok {
		s.respondError(w, errRoomNotFound)
		return
	}
	if sr.Err != nil {
		s.respondError(w, sr.Err)
		return
	}
	respondJSON(w, http.StatusOK, sr.State)
}

func (s *Server) deleteRoom(w http.ResponseWriter, r *http.Request) {
	reply := make(chan bool, 1)
	s.registry.Inbox() <- registry.Remove{Code: chi.URLParam(r, "roomCode"), Reply: reply}
	if !<-reply {
		s.respondError(w, errRoomNotFound)
		return
	}
	respondMessage(w, http.StatusOK, "room deleted")
}

func (s *Server) listMaps(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, mapdata.All())
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
