// Package registry owns the live rooms. One actor goroutine serializes
// creation, lookup and removal, generates the credential pair for each room
// and sweeps out rooms past their retention window.
package registry

import (
	"context"
	cryptorand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/ascendancy-esports/tournament-backend/internal/engine"
	"github.com/ascendancy-esports/tournament-backend/internal/room"
	"go.uber.org/zap"
)

var ErrCaptainNotFound = errors.New("captain could not be resolved")
var ErrCaptainNoEmail = errors.New("captain has no email address")
var ErrCredentialExhausted = errors.New("could not generate a unique room credential")

const tokenBytes = 3 // 6 hex chars
const maxTokenAttempts = 5

// Captain is a resolved identity with a contact address.
type Captain struct {
	ID       string
	Username string
	Email    string
}

// IdentityResolver looks up captain identities; backed by the user store in
// production and a fake in tests.
type IdentityResolver interface {
	Resolve(ctx context.Context, userID string) (Captain, error)
}

type RoomNotification struct {
	RoomCode    string
	RoomPasskey string
	Team1Name   string
	Team1Email  string
	Team2Name   string
	Team2Email  string
}

// Notifier delivers room credentials to both captains. Best-effort: the
// registry logs and swallows its errors.
type Notifier interface {
	RoomCreated(ctx context.Context, n RoomNotification) error
}

type TeamInfo struct {
	TeamID          string `json:"teamId"`
	TeamName        string `json:"teamName"`
	CaptainID       string `json:"captainId"`
	CaptainUsername string `json:"captainUsername"`
}

type CreateParams struct {
	MatchID       string   `json:"matchId"`
	AdminID       string   `json:"adminId"`
	AdminUsername string   `json:"adminUsername"`
	Team1         TeamInfo `json:"team1"`
	Team2         TeamInfo `json:"team2"`
}

type Msg interface{ isRegistryMsg() }

type Create struct {
	Params CreateParams
	Reply  chan CreateReply
}

type Get struct {
	Code  string
	Reply chan *room.Room
}

type GetByCredential struct {
	Code    string
	Passkey string
	Reply   chan *room.Room
}

type List struct{ Reply chan []*room.Room }

type Remove struct {
	Code  string
	Reply chan bool
}

type Shutdown struct{}

func (Create) isRegistryMsg()          {}
func (Get) isRegistryMsg()             {}
func (GetByCredential) isRegistryMsg() {}
func (List) isRegistryMsg()            {}
func (Remove) isRegistryMsg()          {}
func (Shutdown) isRegistryMsg()        {}

type CreateReply struct {
	Room *room.Room
	Info room.Info
	Err  error
}

type entry struct {
	rm        *room.Room
	passkey   string
	createdAt time.Time
}

// Options tune the registry; zero values fall back to production defaults.
// Now and TokenRand exist so tests can pin time and credentials.
type Options struct {
	TTL           time.Duration
	SweepInterval time.Duration
	Rules         engine.Rules
	Now           func() time.Time
	TokenRand     io.Reader
	Coin          func() bool
}

type Registry struct {
	inbox    chan Msg
	rooms    map[string]*entry
	users    IdentityResolver
	notifier Notifier
	matches  room.MatchUpdater
	pool     []string
	opts     Options
	log      *zap.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

func New(parent context.Context, users IdentityResolver, notifier Notifier, matches room.MatchUpdater, pool []string, opts Options, log *zap.Logger) *Registry {
	ctx, cancel := context.WithCancel(parent)
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TokenRand == nil {
		opts.TokenRand = cryptorand.Reader
	}
	if log == nil {
		log = zap.NewNop()
	}

	r := &Registry{
		inbox:    make(chan Msg, 64),
		rooms:    make(map[string]*entry),
		users:    users,
		notifier: notifier,
		matches:  matches,
		pool:     pool,
		opts:     opts,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}

	go r.loop()
	return r
}

func (r *Registry) Inbox() chan<- Msg { return r.inbox }

func (r *Registry) loop() {
	ticker := time.NewTicker(r.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			r.shutdown()
			return

		case <-ticker.C:
			r.sweep()

		case m := <-r.inbox:
			switch msg := m.(type) {
			case Create:
				msg.Reply <- r.handleCreate(msg.Params)

			case Get:
				msg.Reply <- r.lookup(msg.Code)

			case GetByCredential:
				rm := r.lookup(msg.Code)
				if rm != nil {
					e := r.rooms[strings.ToUpper(msg.Code)]
					if !strings.EqualFold(msg.Passkey, e.passkey) {
						rm = nil
					}
				}
				msg.Reply <- rm

			case List:
				msg.Reply <- r.list()

			case Remove:
				code := strings.ToUpper(msg.Code)
				e, ok := r.rooms[code]
				if ok && !r.expired(e) {
					e.rm.Inbox() <- room.Shutdown{}
					delete(r.rooms, code)
					msg.Reply <- true
				} else {
					if ok {
						// Expired rooms read as already gone.
						e.rm.Inbox() <- room.Shutdown{}
						delete(r.rooms, code)
					}
					msg.Reply <- false
				}

			case Shutdown:
				r.shutdown()
				return
			}
		}
	}
}

func (r *Registry) handleCreate(p CreateParams) CreateReply {
	cap1, err := r.resolveCaptain(p.Team1.CaptainID, "team1")
	if err != nil {
		return CreateReply{Err: err}
	}
	cap2, err := r.resolveCaptain(p.Team2.CaptainID, "team2")
	if err != nil {
		return CreateReply{Err: err}
	}

	code, err := r.generateToken(func(tok string) bool {
		_, taken := r.rooms[tok]
		return taken
	})
	if err != nil {
		return CreateReply{Err: err}
	}
	passkey, err := r.generateToken(func(tok string) bool {
		if tok == code {
			return true
		}
		for _, e := range r.rooms {
			if e.passkey == tok {
				return true
			}
		}
		return false
	})
	if err != nil {
		return CreateReply{Err: err}
	}

	info := room.Info{
		RoomCode:      code,
		RoomPasskey:   passkey,
		MatchID:       p.MatchID,
		AdminID:       p.AdminID,
		AdminUsername: p.AdminUsername,
		Team1: room.TeamSlot{
			TeamID:          p.Team1.TeamID,
			TeamName:        p.Team1.TeamName,
			CaptainID:       cap1.ID,
			CaptainUsername: cap1.Username,
		},
		Team2: room.TeamSlot{
			TeamID:          p.Team2.TeamID,
			TeamName:        p.Team2.TeamName,
			CaptainID:       cap2.ID,
			CaptainUsername: cap2.Username,
		},
		CreatedAt: r.opts.Now(),
	}

	st := engine.NewState(info.Team1.TeamID, info.Team2.TeamID, r.pool, r.opts.Rules)
	rm := room.New(r.ctx, info, st, r.matches, r.opts.Coin,
		r.log.Named("room").With(zap.String("roomCode", code)))
	r.rooms[code] = &entry{rm: rm, passkey: passkey, createdAt: info.CreatedAt}

	r.log.Info("room created",
		zap.String("roomCode", code),
		zap.String("matchId", p.MatchID),
		zap.String("team1", p.Team1.TeamName),
		zap.String("team2", p.Team2.TeamName))

	r.dispatchNotification(RoomNotification{
		RoomCode:    code,
		RoomPasskey: passkey,
		Team1Name:   p.Team1.TeamName,
		Team1Email:  cap1.Email,
		Team2Name:   p.Team2.TeamName,
		Team2Email:  cap2.Email,
	})

	return CreateReply{Room: rm, Info: info}
}

func (r *Registry) resolveCaptain(userID, slot string) (Captain, error) {
	c, err := r.users.Resolve(r.ctx, userID)
	if err != nil {
		return Captain{}, fmt.Errorf("%s: %w", slot, ErrCaptainNotFound)
	}
	if c.Email == "" {
		return Captain{}, fmt.Errorf("%s: %w", slot, ErrCaptainNoEmail)
	}
	return c, nil
}

// generateToken draws 3 random bytes, hex-encodes and uppercases them, and
// retries a bounded number of times if the taken check trips.
func (r *Registry) generateToken(taken func(string) bool) (string, error) {
	for attempt := 1; attempt <= maxTokenAttempts; attempt++ {
		b := make([]byte, tokenBytes)
		if _, err := io.ReadFull(r.opts.TokenRand, b); err != nil {
			return "", err
		}
		tok := strings.ToUpper(hex.EncodeToString(b))
		if !taken(tok) {
			return tok, nil
		}
		r.log.Warn("credential collision, regenerating", zap.Int("attempt", attempt))
	}
	return "", ErrCredentialExhausted
}

// Notification failure never fails room creation.
func (r *Registry) dispatchNotification(n RoomNotification) {
	if r.notifier == nil {
		return
	}
	log := r.log
	notifier := r.notifier
	go func() {
		if err := notifier.RoomCreated(context.Background(), n); err != nil {
			log.Warn("room notification failed",
				zap.String("roomCode", n.RoomCode),
				zap.Error(err))
		}
	}()
}

// lookup is the lazy expiry filter: an expired room is invisible even before
// the sweep reaps it.
func (r *Registry) lookup(code string) *room.Room {
	e, ok := r.rooms[strings.ToUpper(code)]
	if !ok || r.expired(e) {
		return nil
	}
	return e.rm
}

func (r *Registry) list() []*room.Room {
	live := make([]*entry, 0, len(r.rooms))
	for _, e := range r.rooms {
		if !r.expired(e) {
			live = append(live, e)
		}
	}
	sort.Slice(live, func(i, j int) bool {
		return live[i].createdAt.After(live[j].createdAt)
	})
	out := make([]*room.Room, len(live))
	for i, e := range live {
		out[i] = e.rm
	}
	return out
}

func (r *Registry) expired(e *entry) bool {
	return r.opts.Now().Sub(e.createdAt) >= r.opts.TTL
}

func (r *Registry) sweep() {
	for code, e := range r.rooms {
		if r.expired(e) {
			e.rm.Inbox() <- room.Shutdown{}
			delete(r.rooms, code)
			r.log.Info("room expired", zap.String("roomCode", code))
		}
	}
}

func (r *Registry) shutdown() {
	for _, e := range r.rooms {
		e.rm.Inbox() <- room.Shutdown{}
	}
	clear(r.rooms)
	r.cancel()
}
