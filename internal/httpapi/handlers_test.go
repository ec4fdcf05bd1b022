package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ascendancy-esports/tournament-backend/internal/identity"
	"github.com/ascendancy-esports/tournament-backend/internal/mapdata"
	"github.com/ascendancy-esports/tournament-backend/internal/matches"
	"github.com/ascendancy-esports/tournament-backend/internal/orders"
	"github.com/ascendancy-esports/tournament-backend/internal/registry"
	"github.com/ascendancy-esports/tournament-backend/internal/teams"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeResolver struct{}

func (fakeResolver) Resolve(_ context.Context, userID string) (registry.Captain, error) {
	switch userID {
	case "cap-1":
		return registry.Captain{ID: "cap-1", Username: "alice", Email: "alice@example.com"}, nil
	case "cap-2":
		return registry.Captain{ID: "cap-2", Username: "bob", Email: "bob@example.com"}, nil
	}
	return registry.Captain{}, errors.New("no such user")
}

type fakeUsers struct {
	byID map[string]identity.User
}

func (f *fakeUsers) Create(_ context.Context, u identity.User) (identity.User, error) {
	if existing, ok := f.byID[u.UserID]; ok {
		return existing, nil
	}
	f.byID[u.UserID] = u
	return u, nil
}

func (f *fakeUsers) GetByUserID(_ context.Context, userID string) (identity.User, error) {
	u, ok := f.byID[userID]
	if !ok {
		return identity.User{}, identity.ErrNotFound
	}
	return u, nil
}

func (f *fakeUsers) List(_ context.Context) ([]identity.User, error) { return nil, nil }

type fakeTeams struct {
	createErr error
}

func (f *fakeTeams) Create(_ context.Context, t teams.Team) (teams.Team, error) {
	if f.createErr != nil {
		return teams.Team{}, f.createErr
	}
	t.ID = 1
	return t, nil
}
func (f *fakeTeams) List(_ context.Context) ([]teams.Team, error) { return nil, nil }

func (f *fakeTeams) GetByID(_ context.Context, _ uint) (teams.Team, error) {
	return teams.Team{}, teams.ErrNotFound
}

func (f *fakeTeams) GetByOwner(_ context.Context, _ string) (teams.Team, error) {
	return teams.Team{}, teams.ErrNotFound
}
func (f *fakeTeams) Delete(_ context.Context, _ uint) error { return teams.ErrNotFound }

type fakeMatches struct{}

func (fakeMatches) Create(_ context.Context, m matches.Match) (matches.Match, error) {
	m.MatchID = "match-1"
	return m, nil
}
func (fakeMatches) List(_ context.Context) ([]matches.Match, error) { return nil, nil }
func (fakeMatches) GetByMatchID(_ context.Context, _ string) (matches.Match, error) {
	return matches.Match{}, matches.ErrNotFound
}
func (fakeMatches) UpdateStatus(_ context.Context, _, status string) error {
	if status != matches.StatusOngoing {
		return matches.ErrBadStatus
	}
	return nil
}

type fakeOrders struct {
	gatewayDown bool
}

func (f *fakeOrders) CreateOrder(_ context.Context, _, _ string) (map[string]interface{}, error) {
	if f.gatewayDown {
		return nil, fmt.Errorf("%w: connection refused", orders.ErrGateway)
	}
	return map[string]interface{}{"id": "order_123"}, nil
}

func (f *fakeOrders) VerifyPayment(_ context.Context, orderID, _ string) (orders.Payment, error) {
	if orderID != "order_123" {
		return orders.Payment{}, orders.ErrNotFound
	}
	return orders.Payment{OrderID: orderID, Status: orders.StatusCompleted}, nil
}

func newTestHandler(t *testing.T, orderSvc OrderService, teamStore TeamStore) http.Handler {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	reg := registry.New(ctx, fakeResolver{}, nil, nil, mapdata.IDs(), registry.Options{
		Coin: func() bool { return true }, // team1 always gets first pick
	}, nil)

	if orderSvc == nil {
		orderSvc = &fakeOrders{}
	}
	if teamStore == nil {
		teamStore = &fakeTeams{}
	}
	srv := NewServer(reg, &fakeUsers{byID: map[string]identity.User{}}, teamStore, fakeMatches{}, orderSvc, nil)
	return SetupRoutes(srv, "http://localhost:5173")
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func createTestRoom(t *testing.T, h http.Handler) (code, passkey string) {
	t.Helper()
	rec := doJSON(t, h, http.MethodPost, "/api/rooms/create", map[string]any{
		"matchId":       "match-1",
		"adminId":       "admin-1",
		"adminUsername": "tourney-admin",
		"team1":         map[string]string{"teamId": "t1", "teamName": "Alpha", "captainId": "cap-1"},
		"team2":         map[string]string{"teamId": "t2", "teamName": "Bravo", "captainId": "cap-2"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		RoomCode    string `json:"roomCode"`
		RoomPasskey string `json:"roomPasskey"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.RoomCode, resp.RoomPasskey
}

func TestRoomLifecycle(t *testing.T) {
	h := newTestHandler(t, nil, nil)
	code, passkey := createTestRoom(t, h)

	assert.Regexp(t, `^[0-9A-F]{6}$`, code)
	assert.Regexp(t, `^[0-9A-F]{6}$`, passkey)
	assert.NotEqual(t, code, passkey)

	// Captain joins with the credential pair.
	rec := doJSON(t, h, http.MethodPost, "/api/rooms/join", map[string]any{
		"roomCode": code, "roomPasskey": passkey, "userId": "cap-1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var presence struct {
		Team1Joined bool `json:"team1Joined"`
		AdminJoined bool `json:"adminJoined"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &presence))
	assert.True(t, presence.Team1Joined)
	assert.False(t, presence.AdminJoined)

	// A stranger with the right passkey is still rejected.
	rec = doJSON(t, h, http.MethodPost, "/api/rooms/join", map[string]any{
		"roomCode": code, "roomPasskey": passkey, "userId": "someone-else",
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Wrong passkey reads as room-not-found for non-admins.
	rec = doJSON(t, h, http.MethodPost, "/api/rooms/join", map[string]any{
		"roomCode": code, "roomPasskey": "000000", "userId": "cap-2",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Admin joins by id alone.
	rec = doJSON(t, h, http.MethodPost, "/api/rooms/join", map[string]any{
		"roomCode": code, "userId": "admin-1", "isAdmin": true,
	})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/rooms/"+code+"/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var snap struct {
		State struct {
			Phase string `json:"phase"`
		} `json:"pickBanState"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "not_started", snap.State.Phase)

	rec = doJSON(t, h, http.MethodDelete, "/api/rooms/"+code, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = doJSON(t, h, http.MethodGet, "/api/rooms/"+code+"/status", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVetoOverHTTP(t *testing.T) {
	h := newTestHandler(t, nil, nil)
	code, _ := createTestRoom(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/rooms/"+code+"/start", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var state struct {
		CurrentTurn string   `json:"currentTurn"`
		Remaining   []string `json:"remainingMaps"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, "t1", state.CurrentTurn)

	// Out-of-turn ban is a 403.
	rec = doJSON(t, h, http.MethodPost, "/api/rooms/"+code+"/ban", map[string]string{
		"teamId": "t2", "mapId": state.Remaining[0],
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// In-turn ban works and flips the turn.
	rec = doJSON(t, h, http.MethodPost, "/api/rooms/"+code+"/ban", map[string]string{
		"teamId": "t1", "mapId": state.Remaining[0],
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, "t2", state.CurrentTurn)
	assert.Len(t, state.Remaining, mapdata.Count()-1)

	// Banning the same map again is a conflict.
	rec = doJSON(t, h, http.MethodPost, "/api/rooms/"+code+"/ban", map[string]string{
		"teamId": "t2", "mapId": "ascent",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Restarting the veto is a conflict too.
	rec = doJSON(t, h, http.MethodPost, "/api/rooms/"+code+"/start", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Side select before the map settles.
	rec = doJSON(t, h, http.MethodPost, "/api/rooms/"+code+"/side", map[string]string{
		"teamId": "t2", "side": "attack",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestBanMap_UnknownMap(t *testing.T) {
	h := newTestHandler(t, nil, nil)
	code, _ := createTestRoom(t, h)

	rec := doJSON(t, h, http.MethodPost, "/api/rooms/"+code+"/start", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// A map outside the catalog is a 404, not a turn-order conflict.
	rec = doJSON(t, h, http.MethodPost, "/api/rooms/"+code+"/ban", map[string]string{
		"teamId": "t1", "mapId": "atlantis",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateRoom_UnresolvedCaptain(t *testing.T) {
	h := newTestHandler(t, nil, nil)
	rec := doJSON(t, h, http.MethodPost, "/api/rooms/create", map[string]any{
		"matchId":       "match-1",
		"adminId":       "admin-1",
		"adminUsername": "tourney-admin",
		"team1":         map[string]string{"teamId": "t1", "teamName": "Alpha", "captainId": "cap-1"},
		"team2":         map[string]string{"teamId": "t2", "teamName": "Bravo", "captainId": "nobody"},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUsers(t *testing.T) {
	h := newTestHandler(t, nil, nil)

	rec := doJSON(t, h, http.MethodPost, "/api/users", map[string]string{"username": "alice"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/users", map[string]string{
		"userId": "u1", "username": "alice", "email": "alice@example.com",
	})
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/api/users/unknown", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTeams_DuplicateName(t *testing.T) {
	h := newTestHandler(t, nil, &fakeTeams{createErr: teams.ErrDuplicateName})
	rec := doJSON(t, h, http.MethodPost, "/api/teams", map[string]any{
		"teamName": "Alpha", "userId": "u1", "username": "alice",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestOrders(t *testing.T) {
	h := newTestHandler(t, &fakeOrders{gatewayDown: true}, nil)
	rec := doJSON(t, h, http.MethodPost, "/api/orders", map[string]string{
		"userId": "u1", "username": "alice",
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	h = newTestHandler(t, nil, nil)
	rec = doJSON(t, h, http.MethodPost, "/api/orders", map[string]string{
		"userId": "u1", "username": "alice",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodPost, "/api/orders/verify", map[string]string{
		"orderId": "order_999", "paymentId": "pay_1",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListMaps(t *testing.T) {
	h := newTestHandler(t, nil, nil)
	rec := doJSON(t, h, http.MethodGet, "/api/maps", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var maps []mapdata.Map
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &maps))
	assert.Len(t, maps, mapdata.Count())
}
