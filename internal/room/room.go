// Package room runs one negotiation session as an actor: every mutation goes
// through the inbox, so joins, veto actions and side selection are serialized
// per room without locks.
package room

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/ascendancy-esports/tournament-backend/internal/engine"
	"go.uber.org/zap"
)

var ErrForbidden = errors.New("not authorized for this room")
var ErrRoomClosed = errors.New("room no longer exists")

// MatchUpdater is the outward push to the match record once the veto settles.
type MatchUpdater interface {
	RecordMapSelection(ctx context.Context, matchID, mapID string) error
	RecordSideSelection(ctx context.Context, matchID, teamID string, side engine.Side) error
}

// TeamSlot is one team's seat in the room. Joined never resets to false.
type TeamSlot struct {
	TeamID          string `json:"teamId"`
	TeamName        string `json:"teamName"`
	CaptainID       string `json:"captainId"`
	CaptainUsername string `json:"captainUsername"`
	Joined          bool   `json:"joined"`
}

// Info is the room metadata. The passkey is held here but never serialized;
// only the create path hands it out.
type Info struct {
	RoomCode      string    `json:"roomCode"`
	RoomPasskey   string    `json:"-"`
	MatchID       string    `json:"matchId"`
	AdminID       string    `json:"adminId"`
	AdminUsername string    `json:"adminUsername"`
	AdminJoined   bool      `json:"adminJoined"`
	Team1         TeamSlot  `json:"team1"`
	Team2         TeamSlot  `json:"team2"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Presence is the summary projection returned from a join.
type Presence struct {
	RoomCode    string `json:"roomCode"`
	MatchID     string `json:"matchId"`
	Team1Name   string `json:"team1Name"`
	Team1Joined bool   `json:"team1Joined"`
	Team2Name   string `json:"team2Name"`
	Team2Joined bool   `json:"team2Joined"`
	AdminJoined bool   `json:"adminJoined"`
}

type Snapshot struct {
	Version int          `json:"version"`
	Info    Info         `json:"room"`
	State   engine.State `json:"pickBanState"`
}

type Msg interface{ isRoomMsg() }

type Join struct {
	UserID  string
	Passkey string
	AsAdmin bool
	Reply   chan JoinReply
}

type StartVeto struct{ Reply chan StateReply }

type BanMap struct {
	TeamID string
	MapID  string
	Reply  chan StateReply
}

type SelectSide struct {
	TeamID string
	Side   engine.Side
	Reply  chan StateReply
}

type GetState struct{ Reply chan Snapshot }

// Watch registers a snapshot outbox; Unwatch removes it.
type Watch struct {
	ClientID string
	Outbox   chan Snapshot
}

type Unwatch struct{ ClientID string }

type Shutdown struct{}

func (Join) isRoomMsg()       {}
func (StartVeto) isRoomMsg()  {}
func (BanMap) isRoomMsg()     {}
func (SelectSide) isRoomMsg() {}
func (GetState) isRoomMsg()   {}
func (Watch) isRoomMsg()      {}
func (Unwatch) isRoomMsg()    {}
func (Shutdown) isRoomMsg()   {}

type JoinReply struct {
	Presence Presence
	Err      error
}

type StateReply struct {
	State engine.State
	Err   error
}

type Room struct {
	inbox    chan Msg
	info     Info
	state    engine.State
	version  int
	watchers map[string]chan Snapshot
	matches  MatchUpdater
	coin     func() bool
	log      *zap.Logger
	done     chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(parent context.Context, info Info, initial engine.State, matches MatchUpdater, coin func() bool, log *zap.Logger) *Room {
	ctx, cancel := context.WithCancel(parent)
	if coin == nil {
		coin = func() bool { return rand.Intn(2) == 0 }
	}
	if log == nil {
		log = zap.NewNop()
	}

	r := &Room{
		inbox:    make(chan Msg, 64),
		info:     info,
		state:    initial,
		watchers: make(map[string]chan Snapshot),
		matches:  matches,
		coin:     coin,
		log:      log,
		done:     make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}

	go r.loop()
	return r
}

func (r *Room) Inbox() chan<- Msg { return r.inbox }

// Code is immutable, so reading it outside the loop is safe.
func (r *Room) Code() string { return r.info.RoomCode }

// Done closes once the room has shut down and its inbox drained. Callers must
// pair every reply receive with a Done select: a request racing removal or
// expiry resolves as room-gone instead of blocking.
func (r *Room) Done() <-chan struct{} { return r.done }

func (r *Room) loop() {
	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Join:
				msg.Reply <- r.handleJoin(msg)

			case StartVeto:
				firstPick := r.info.Team1.TeamID
				if !r.coin() {
					firstPick = r.info.Team2.TeamID
				}
				msg.Reply <- r.apply(engine.Command{Type: engine.CmdStartVeto, FirstPick: firstPick})

			case BanMap:
				msg.Reply <- r.apply(engine.Command{Type: engine.CmdBanMap, Team: msg.TeamID, MapID: msg.MapID})

			case SelectSide:
				msg.Reply <- r.apply(engine.Command{Type: engine.CmdSelectSide, Team: msg.TeamID, Side: msg.Side})

			case GetState:
				msg.Reply <- r.snapshot()

			case Watch:
				r.watchers[msg.ClientID] = msg.Outbox
				msg.Outbox <- r.snapshot()

			case Unwatch:
				if ch, ok := r.watchers[msg.ClientID]; ok {
					close(ch)
					delete(r.watchers, msg.ClientID)
				}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Room) handleJoin(m Join) JoinReply {
	if m.AsAdmin {
		if m.UserID != r.info.AdminID {
			return JoinReply{Err: ErrForbidden}
		}
		r.info.AdminJoined = true
	} else {
		if !strings.EqualFold(m.Passkey, r.info.RoomPasskey) {
			return JoinReply{Err: ErrForbidden}
		}
		switch m.UserID {
		case r.info.Team1.CaptainID:
			r.info.Team1.Joined = true
		case r.info.Team2.CaptainID:
			r.info.Team2.Joined = true
		default:
			return JoinReply{Err: ErrForbidden}
		}
	}

	r.version++
	r.broadcast()
	return JoinReply{Presence: Presence{
		RoomCode:    r.info.RoomCode,
		MatchID:     r.info.MatchID,
		Team1Name:   r.info.Team1.TeamName,
		Team1Joined: r.info.Team1.Joined,
		Team2Name:   r.info.Team2.TeamName,
		Team2Joined: r.info.Team2.Joined,
		AdminJoined: r.info.AdminJoined,
	}}
}

func (r *Room) apply(cmd engine.Command) StateReply {
	events, newState, err := engine.Apply(r.state, cmd)
	if err != nil {
		return StateReply{State: r.state, Err: err}
	}

	r.state = newState
	r.version++
	r.broadcast()

	for _, evt := range events {
		switch evt.Type {
		case engine.EvtMapSelected:
			r.pushMapSelection(evt.MapID)
		case engine.EvtSideSelected:
			r.pushSideSelection(evt.Team, evt.Side)
		}
	}
	return StateReply{State: r.state}
}

// Match updates are pushed best-effort off the loop; a failed push must not
// undo the veto result.
func (r *Room) pushMapSelection(mapID string) {
	if r.matches == nil {
		return
	}
	matchID := r.info.MatchID
	go func() {
		if err := r.matches.RecordMapSelection(context.Background(), matchID, mapID); err != nil {
			r.log.Warn("failed to record map selection",
				zap.String("matchId", matchID),
				zap.String("mapId", mapID),
				zap.Error(err))
		}
	}()
}

func (r *Room) pushSideSelection(teamID string, side engine.Side) {
	if r.matches == nil {
		return
	}
	matchID := r.info.MatchID
	go func() {
		if err := r.matches.RecordSideSelection(context.Background(), matchID, teamID, side); err != nil {
			r.log.Warn("failed to record side selection",
				zap.String("matchId", matchID),
				zap.String("teamId", teamID),
				zap.Error(err))
		}
	}()
}

func (r *Room) snapshot() Snapshot {
	return Snapshot{Version: r.version, Info: r.info, State: r.state}
}

func (r *Room) broadcast() {
	snap := r.snapshot()
	for id, ch := range r.watchers {
		select {
		case ch <- snap:
			// ok
		default:
			// Watcher is slow/full - drop them.
			close(ch)
			delete(r.watchers, id)
		}
	}
}

// shutdown closes every watcher, then answers whatever is still queued with
// ErrRoomClosed so no caller is left waiting on a dead actor. Done closes only
// after the drain; senders that arrive later select against it.
func (r *Room) shutdown() {
	for id, ch := range r.watchers {
		close(ch)
		delete(r.watchers, id)
	}
	for {
		select {
		case m := <-r.inbox:
			r.refuse(m)
		default:
			close(r.done)
			r.cancel()
			return
		}
	}
}

func (r *Room) refuse(m Msg) {
	switch msg := m.(type) {
	case Join:
		msg.Reply <- JoinReply{Err: ErrRoomClosed}
	case StartVeto:
		msg.Reply <- StateReply{Err: ErrRoomClosed}
	case BanMap:
		msg.Reply <- StateReply{Err: ErrRoomClosed}
	case SelectSide:
		msg.Reply <- StateReply{Err: ErrRoomClosed}
	case Watch:
		close(msg.Outbox)
	case GetState:
		// No error channel; the caller's Done select covers it.
	}
}
