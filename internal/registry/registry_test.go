package registry

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/ascendancy-esports/tournament-backend/internal/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPool = []string{"ascent", "bind", "haven", "split", "icebox", "breeze", "fracture", "lotus", "pearl"}

var tokenPattern = regexp.MustCompile(`^[0-9A-F]{6}$`)

type fakeResolver struct {
	users map[string]Captain
}

func (f *fakeResolver) Resolve(_ context.Context, userID string) (Captain, error) {
	c, ok := f.users[userID]
	if !ok {
		return Captain{}, errors.New("no such user")
	}
	return c, nil
}

type fakeNotifier struct {
	sent chan RoomNotification
	err  error
}

func (f *fakeNotifier) RoomCreated(_ context.Context, n RoomNotification) error {
	f.sent <- n
	return f.err
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func defaultResolver() *fakeResolver {
	return &fakeResolver{users: map[string]Captain{
		"cap-1": {ID: "cap-1", Username: "alice", Email: "alice@example.com"},
		"cap-2": {ID: "cap-2", Username: "bob", Email: "bob@example.com"},
		"cap-3": {ID: "cap-3", Username: "carol", Email: ""},
	}}
}

func defaultParams() CreateParams {
	return CreateParams{
		MatchID:       "match-1",
		AdminID:       "admin-1",
		AdminUsername: "tourney-admin",
		Team1:         TeamInfo{TeamID: "t1", TeamName: "Alpha", CaptainID: "cap-1"},
		Team2:         TeamInfo{TeamID: "t2", TeamName: "Bravo", CaptainID: "cap-2"},
	}
}

func newTestRegistry(t *testing.T, notifier Notifier, opts Options) *Registry {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return New(ctx, defaultResolver(), notifier, nil, testPool, opts, nil)
}

func create(t *testing.T, r *Registry, p CreateParams) CreateReply {
	t.Helper()
	reply := make(chan CreateReply, 1)
	r.Inbox() <- Create{Params: p, Reply: reply}
	select {
	case cr := <-reply:
		return cr
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for create reply")
		return CreateReply{}
	}
}

func get(t *testing.T, r *Registry, code string) *room.Room {
	t.Helper()
	reply := make(chan *room.Room, 1)
	r.Inbox() <- Get{Code: code, Reply: reply}
	select {
	case rm := <-reply:
		return rm
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for get reply")
		return nil
	}
}

func TestCreate_GeneratesCredentialsAndNotifies(t *testing.T) {
	notifier := &fakeNotifier{sent: make(chan RoomNotification, 1)}
	r := newTestRegistry(t, notifier, Options{})

	cr := create(t, r, defaultParams())
	require.NoError(t, cr.Err)
	require.NotNil(t, cr.Room)

	assert.Regexp(t, tokenPattern, cr.Info.RoomCode)
	assert.Regexp(t, tokenPattern, cr.Info.RoomPasskey)
	assert.NotEqual(t, cr.Info.RoomCode, cr.Info.RoomPasskey)
	assert.Equal(t, "alice", cr.Info.Team1.CaptainUsername)
	assert.Equal(t, "bob", cr.Info.Team2.CaptainUsername)
	assert.False(t, cr.Info.Team1.Joined)
	assert.False(t, cr.Info.AdminJoined)

	select {
	case n := <-notifier.sent:
		assert.Equal(t, cr.Info.RoomCode, n.RoomCode)
		assert.Equal(t, cr.Info.RoomPasskey, n.RoomPasskey)
		assert.Equal(t, "alice@example.com", n.Team1Email)
		assert.Equal(t, "bob@example.com", n.Team2Email)
	case <-time.After(time.Second):
		t.Fatalf("notification was never dispatched")
	}
}

func TestCreate_NotifierFailureDoesNotFailCreation(t *testing.T) {
	notifier := &fakeNotifier{sent: make(chan RoomNotification, 1), err: errors.New("smtp down")}
	r := newTestRegistry(t, notifier, Options{})

	cr := create(t, r, defaultParams())
	require.NoError(t, cr.Err)
	<-notifier.sent

	assert.NotNil(t, get(t, r, cr.Info.RoomCode))
}

func TestCreate_UnresolvableCaptain(t *testing.T) {
	r := newTestRegistry(t, nil, Options{})

	p := defaultParams()
	p.Team2.CaptainID = "nobody"
	cr := create(t, r, p)
	assert.ErrorIs(t, cr.Err, ErrCaptainNotFound)

	p = defaultParams()
	p.Team1.CaptainID = "cap-3" // resolvable but no email
	cr = create(t, r, p)
	assert.ErrorIs(t, cr.Err, ErrCaptainNoEmail)
}

func TestCreate_RetriesOnCodeCollision(t *testing.T) {
	// Scripted tokens: room1 consumes A1B2C3/D4E5F6; room2's first code draw
	// collides with room1's code and must be regenerated.
	script := bytes.NewReader([]byte{
		0xA1, 0xB2, 0xC3, // room1 code
		0xD4, 0xE5, 0xF6, // room1 passkey
		0xA1, 0xB2, 0xC3, // room2 code, collides
		0x00, 0x11, 0x22, // room2 code, retry
		0x33, 0x44, 0x55, // room2 passkey
	})
	r := newTestRegistry(t, nil, Options{TokenRand: script})

	cr1 := create(t, r, defaultParams())
	require.NoError(t, cr1.Err)
	assert.Equal(t, "A1B2C3", cr1.Info.RoomCode)

	cr2 := create(t, r, defaultParams())
	require.NoError(t, cr2.Err)
	assert.Equal(t, "001122", cr2.Info.RoomCode)
	assert.Equal(t, "334455", cr2.Info.RoomPasskey)
}

func TestCreate_CredentialExhaustion(t *testing.T) {
	// After room1 takes A1B2C3, every code draw for room2 collides with it.
	script := bytes.NewReader(append(
		[]byte{0xA1, 0xB2, 0xC3, 0xD4, 0xE5, 0xF6}, // room1 code + passkey
		bytes.Repeat([]byte{0xA1, 0xB2, 0xC3}, maxTokenAttempts)...))
	r := newTestRegistry(t, nil, Options{TokenRand: script})

	cr1 := create(t, r, defaultParams())
	require.NoError(t, cr1.Err)

	cr2 := create(t, r, defaultParams())
	assert.ErrorIs(t, cr2.Err, ErrCredentialExhausted)
}

func TestGet_CaseInsensitive(t *testing.T) {
	r := newTestRegistry(t, nil, Options{})
	cr := create(t, r, defaultParams())
	require.NoError(t, cr.Err)

	rm := get(t, r, cr.Info.RoomCode)
	require.NotNil(t, rm)
	// lowercased input still resolves
	assert.Same(t, rm, get(t, r, lower(cr.Info.RoomCode)))
	assert.Nil(t, get(t, r, "ZZZZZZ"))
}

func lower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 'a' - 'A'
		}
	}
	return string(b)
}

func TestGetByCredential(t *testing.T) {
	r := newTestRegistry(t, nil, Options{})
	cr := create(t, r, defaultParams())
	require.NoError(t, cr.Err)

	reply := make(chan *room.Room, 1)
	r.Inbox() <- GetByCredential{Code: lower(cr.Info.RoomCode), Passkey: lower(cr.Info.RoomPasskey), Reply: reply}
	assert.NotNil(t, <-reply)

	r.Inbox() <- GetByCredential{Code: cr.Info.RoomCode, Passkey: "000000", Reply: reply}
	assert.Nil(t, <-reply)
}

func TestList_NewestFirstAndLazyExpiry(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	r := newTestRegistry(t, nil, Options{TTL: time.Hour, SweepInterval: time.Hour, Now: clock.now})

	cr1 := create(t, r, defaultParams())
	require.NoError(t, cr1.Err)
	clock.advance(10 * time.Minute)
	cr2 := create(t, r, defaultParams())
	require.NoError(t, cr2.Err)

	reply := make(chan []*room.Room, 1)
	r.Inbox() <- List{Reply: reply}
	rooms := <-reply
	require.Len(t, rooms, 2)
	assert.Equal(t, cr2.Info.RoomCode, rooms[0].Code())
	assert.Equal(t, cr1.Info.RoomCode, rooms[1].Code())

	// Push room1 past the retention window: invisible to reads before any
	// sweep runs.
	clock.advance(55 * time.Minute)
	assert.Nil(t, get(t, r, cr1.Info.RoomCode))
	r.Inbox() <- List{Reply: reply}
	rooms = <-reply
	require.Len(t, rooms, 1)
	assert.Equal(t, cr2.Info.RoomCode, rooms[0].Code())
}

func TestRemove(t *testing.T) {
	r := newTestRegistry(t, nil, Options{})
	cr := create(t, r, defaultParams())
	require.NoError(t, cr.Err)

	reply := make(chan bool, 1)
	r.Inbox() <- Remove{Code: cr.Info.RoomCode, Reply: reply}
	assert.True(t, <-reply)

	r.Inbox() <- Remove{Code: cr.Info.RoomCode, Reply: reply}
	assert.False(t, <-reply)
	assert.Nil(t, get(t, r, cr.Info.RoomCode))
}

func TestRemove_StaleHandleResolves(t *testing.T) {
	r := newTestRegistry(t, nil, Options{})
	cr := create(t, r, defaultParams())
	require.NoError(t, cr.Err)

	reply := make(chan bool, 1)
	r.Inbox() <- Remove{Code: cr.Info.RoomCode, Reply: reply}
	require.True(t, <-reply)

	select {
	case <-cr.Room.Done():
	case <-time.After(time.Second):
		t.Fatalf("removed room never shut down")
	}

	// A handle obtained before the removal must still resolve every request,
	// either with a refusal or through Done.
	stReply := make(chan room.StateReply, 1)
	cr.Room.Inbox() <- room.StartVeto{Reply: stReply}
	select {
	case sr := <-stReply:
		assert.ErrorIs(t, sr.Err, room.ErrRoomClosed)
	case <-cr.Room.Done():
	case <-time.After(2 * time.Second):
		t.Fatalf("request through a stale room handle never resolved")
	}
}
