package session

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/mhardt/gambit/internal/netio"
	"github.com/mhardt/gambit/pkg/wire"
)

type emittedFrame struct {
	name    wire.EventName
	payload any
}

type fakeSocket struct {
	mu        sync.Mutex
	connected bool
	closed    bool
	emitted   []emittedFrame
	cbs       map[int]netio.EventCallback
	nextCb    int
	emitErr   error
}

func newFakeSocket() *fakeSocket {
	return &fakeSocket{cbs: make(map[int]netio.EventCallback)}
}

func (f *fakeSocket) Connect(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *fakeSocket) Emit(ctx context.Context, name wire.EventName, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.emitErr != nil {
		return f.emitErr
	}
	f.emitted = append(f.emitted, emittedFrame{name: name, payload: payload})
	return nil
}

func (f *fakeSocket) OnEvent(cb netio.EventCallback) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextCb++
	f.cbs[f.nextCb] = cb
	return f.nextCb
}

func (f *fakeSocket) RemoveEventCallback(id int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.cbs, id)
}

func (f *fakeSocket) OnStateChange(cb netio.StateCallback) int { return 0 }
func (f *fakeSocket) RemoveStateCallback(id int)               {}

func (f *fakeSocket) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

// inject delivers one frame as if it arrived from the server.
func (f *fakeSocket) inject(t *testing.T, name wire.EventName, payload any) {
	t.Helper()
	ev, err := wire.NewEvent(name, payload)
	if err != nil {
		t.Fatalf("build frame %s: %v", name, err)
	}
	f.mu.Lock()
	cbs := make([]netio.EventCallback, 0, len(f.cbs))
	for _, cb := range f.cbs {
		cbs = append(cbs, cb)
	}
	f.mu.Unlock()
	for _, cb := range cbs {
		cb(ev)
	}
}

func (f *fakeSocket) frames() []emittedFrame {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]emittedFrame, len(f.emitted))
	copy(out, f.emitted)
	return out
}

func (f *fakeSocket) lastFrame(t *testing.T) emittedFrame {
	t.Helper()
	frames := f.frames()
	if len(frames) == 0 {
		t.Fatalf("no frames emitted")
	}
	return frames[len(frames)-1]
}

type fakeAPI struct {
	loginErr error
	users    []wire.User
}

func (a *fakeAPI) Login(ctx context.Context, creds wire.Credentials) (*wire.LoginResult, error) {
	if a.loginErr != nil {
		return nil, a.loginErr
	}
	return &wire.LoginResult{
		Token: "tok-1",
		User:  wire.User{ID: "u1", Alias: creds.Alias},
	}, nil
}

func (a *fakeAPI) Register(ctx context.Context, profile wire.Profile) error { return nil }

func (a *fakeAPI) FetchUser(ctx context.Context, token, id string) (*wire.User, error) {
	for _, u := range a.users {
		if u.ID == id {
			out := u
			return &out, nil
		}
	}
	return nil, errors.New("not found")
}

func (a *fakeAPI) ListLobbyUsers(ctx context.Context, token string) ([]wire.User, error) {
	return a.users, nil
}

func newTestSession(t *testing.T) (*Session, *fakeSocket) {
	t.Helper()
	sock := newFakeSocket()
	s := New(&fakeAPI{users: []wire.User{{ID: "p2", Alias: "peer"}}}, func(token string) netio.Socket {
		if token != "tok-1" {
			t.Fatalf("dial got token %q", token)
		}
		return sock
	})
	return s, sock
}

func login(t *testing.T, s *Session) {
	t.Helper()
	if err := s.Login(context.Background(), wire.Credentials{Alias: "me", Password: "pw"}); err != nil {
		t.Fatalf("Login: %v", err)
	}
}

func joinLobby(t *testing.T, s *Session) {
	t.Helper()
	if err := s.JoinLobby(context.Background()); err != nil {
		t.Fatalf("JoinLobby: %v", err)
	}
}

func TestLoginMovesToLoggedIn(t *testing.T) {
	s, sock := newTestSession(t)
	login(t, s)
	if s.State() != StateLoggedIn {
		t.Fatalf("state = %s, want LOGGED_IN", s.State())
	}
	u := s.User()
	if u == nil || u.ID != "u1" || u.Token != "tok-1" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if !sock.connected {
		t.Fatalf("socket not connected")
	}
}

func TestLoginTwiceIsStateError(t *testing.T) {
	s, _ := newTestSession(t)
	login(t, s)
	err := s.Login(context.Background(), wire.Credentials{Alias: "me"})
	var se *StateError
	if !errors.As(err, &se) {
		t.Fatalf("expected StateError, got %v", err)
	}
	if se.Actual != StateLoggedIn {
		t.Fatalf("StateError actual = %s", se.Actual)
	}
}

func TestLoginFailureStaysInitial(t *testing.T) {
	s := New(&fakeAPI{loginErr: errors.New("bad credentials")}, func(string) netio.Socket {
		t.Fatalf("dial must not run on failed login")
		return nil
	})
	if err := s.Login(context.Background(), wire.Credentials{}); err == nil {
		t.Fatalf("expected login error")
	}
	if s.State() != StateInitial {
		t.Fatalf("state = %s, want INITIAL", s.State())
	}
}

func TestGuardsBeforeLogin(t *testing.T) {
	s, _ := newTestSession(t)
	ctx := context.Background()
	var se *StateError
	if err := s.JoinLobby(ctx); !errors.As(err, &se) {
		t.Fatalf("JoinLobby: expected StateError, got %v", err)
	}
	if err := s.SendInvite(ctx, "p2"); !errors.As(err, &se) {
		t.Fatalf("SendInvite: expected StateError, got %v", err)
	}
	if err := s.SendMove(ctx, wire.Move{}); !errors.As(err, &se) {
		t.Fatalf("SendMove: expected StateError, got %v", err)
	}
}

func TestInviteAndCancel(t *testing.T) {
	s, sock := newTestSession(t)
	login(t, s)
	joinLobby(t, s)
	ctx := context.Background()

	if err := s.SendInvite(ctx, "p2"); err != nil {
		t.Fatalf("SendInvite: %v", err)
	}
	if s.State() != StatePlayerInvited || s.InvitedOpponent() != "p2" {
		t.Fatalf("state=%s invited=%q", s.State(), s.InvitedOpponent())
	}

	if err := s.CancelInvite(ctx); err != nil {
		t.Fatalf("CancelInvite: %v", err)
	}
	if s.State() != StateLobby || s.InvitedOpponent() != "" {
		t.Fatalf("after cancel state=%s invited=%q", s.State(), s.InvitedOpponent())
	}
	if sock.lastFrame(t).name != wire.EventGameInviteWithdraw {
		t.Fatalf("expected withdraw frame, got %s", sock.lastFrame(t).name)
	}

	// with no invite outstanding the call is a no-op in any state
	if err := s.CancelInvite(ctx); err != nil {
		t.Fatalf("idempotent CancelInvite: %v", err)
	}
}

func TestInboundInviteDeduplicated(t *testing.T) {
	s, sock := newTestSession(t)
	login(t, s)
	joinLobby(t, s)

	var seen int
	s.On(wire.EventGameInvite, func(ev *wire.Event) { seen++ })

	sock.inject(t, wire.EventGameInvite, wire.Invite{ID: "p2", Alias: "peer"})
	sock.inject(t, wire.EventGameInvite, wire.Invite{ID: "p2", Alias: "peer"})
	if seen != 1 {
		t.Fatalf("duplicate invite forwarded, seen=%d", seen)
	}
	if !s.HasReceivedInvite("p2") {
		t.Fatalf("invite not recorded")
	}

	sock.inject(t, wire.EventGameInviteWithdraw, wire.Invite{ID: "p2"})
	if s.HasReceivedInvite("p2") {
		t.Fatalf("withdrawn invite still recorded")
	}

	// after the withdrawal the same sender may invite again
	sock.inject(t, wire.EventGameInvite, wire.Invite{ID: "p2", Alias: "peer"})
	if seen != 2 {
		t.Fatalf("re-invite after withdrawal not forwarded, seen=%d", seen)
	}
}

func TestUnrelatedWithdrawDoesNotClearInvite(t *testing.T) {
	s, sock := newTestSession(t)
	login(t, s)
	joinLobby(t, s)

	sock.inject(t, wire.EventGameInvite, wire.Invite{ID: "p2"})
	sock.inject(t, wire.EventGameInviteWithdraw, wire.Invite{ID: "p9"})
	if !s.HasReceivedInvite("p2") {
		t.Fatalf("unrelated withdrawal cleared the invite")
	}
}

func TestUnrelatedWithdrawWhileOwnInviteOutstanding(t *testing.T) {
	s, sock := newTestSession(t)
	login(t, s)
	joinLobby(t, s)

	sock.inject(t, wire.EventGameInvite, wire.Invite{ID: "p3"})
	if err := s.SendInvite(context.Background(), "p2"); err != nil {
		t.Fatalf("SendInvite: %v", err)
	}

	sock.inject(t, wire.EventGameInviteWithdraw, wire.Invite{ID: "p9"})
	if s.State() != StatePlayerInvited {
		t.Fatalf("state = %s, want PLAYER_INVITED", s.State())
	}
	if s.InvitedOpponent() != "p2" {
		t.Fatalf("outgoing invite lost, invited = %q", s.InvitedOpponent())
	}
	if !s.HasReceivedInvite("p3") {
		t.Fatalf("unrelated withdrawal cleared p3's invite")
	}
}

func TestAcceptedInviteReachesGame(t *testing.T) {
	s, sock := newTestSession(t)
	login(t, s)
	joinLobby(t, s)
	ctx := context.Background()

	sock.inject(t, wire.EventGameInvite, wire.Invite{ID: "p2", Alias: "peer"})
	if err := s.AcceptInvite(ctx, "p2"); err != nil {
		t.Fatalf("AcceptInvite: %v", err)
	}
	if s.State() != StatePendingLaunch {
		t.Fatalf("state = %s, want PENDING_LAUNCH", s.State())
	}

	sock.inject(t, wire.EventGameCreate, wire.Invite{ID: "p2", Alias: "peer"})
	if id, alias := s.Opponent(); id != "p2" || alias != "peer" {
		t.Fatalf("opponent = %q/%q", id, alias)
	}
	if s.IsHost() {
		t.Fatalf("invite receiver must not be host")
	}

	sock.inject(t, wire.EventGameLaunch, wire.Launch{ID: "u1"})
	if s.State() != StateGame {
		t.Fatalf("state = %s, want GAME", s.State())
	}
}

func TestAcceptWithoutInviteEmitsButStays(t *testing.T) {
	s, sock := newTestSession(t)
	login(t, s)
	joinLobby(t, s)

	if err := s.AcceptInvite(context.Background(), "ghost"); err != nil {
		t.Fatalf("AcceptInvite: %v", err)
	}
	if s.State() != StateLobby {
		t.Fatalf("state = %s, want LOBBY", s.State())
	}
	last := sock.lastFrame(t)
	if last.name != wire.EventGameResponse {
		t.Fatalf("response not emitted, got %s", last.name)
	}
}

func TestDeclineForgetsInvite(t *testing.T) {
	s, sock := newTestSession(t)
	login(t, s)
	joinLobby(t, s)

	sock.inject(t, wire.EventGameInvite, wire.Invite{ID: "p2"})
	if err := s.DeclineInvite(context.Background(), "p2"); err != nil {
		t.Fatalf("DeclineInvite: %v", err)
	}
	if s.HasReceivedInvite("p2") {
		t.Fatalf("declined invite still recorded")
	}
	resp, ok := sock.lastFrame(t).payload.(wire.Response)
	if !ok || resp.Accepted {
		t.Fatalf("expected declined response, got %+v", sock.lastFrame(t).payload)
	}
}

func TestHostCreateAndLaunch(t *testing.T) {
	s, sock := newTestSession(t)
	login(t, s)
	joinLobby(t, s)
	ctx := context.Background()

	if err := s.SendInvite(ctx, "p2"); err != nil {
		t.Fatalf("SendInvite: %v", err)
	}
	sock.inject(t, wire.EventGameResponse, wire.Response{ID: "p2", Accepted: true})

	if err := s.CreateGame(ctx); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if id, _ := s.Opponent(); id != "p2" || !s.IsHost() {
		t.Fatalf("opponent=%q isHost=%v", id, s.IsHost())
	}
	if s.InvitedOpponent() != "" {
		t.Fatalf("invited not cleared by CreateGame")
	}

	if err := s.LaunchGame(ctx); err != nil {
		t.Fatalf("LaunchGame: %v", err)
	}
	if s.State() != StateGame {
		t.Fatalf("state = %s, want GAME", s.State())
	}

	mv := wire.Move{From: "e2", To: "e4", Color: "white"}
	if err := s.SendMove(ctx, mv); err != nil {
		t.Fatalf("SendMove: %v", err)
	}
	relay, ok := sock.lastFrame(t).payload.(wire.MoveRelay)
	if !ok || relay.ID != "p2" || relay.Move.UCI() != "e2e4" {
		t.Fatalf("unexpected relay: %+v", sock.lastFrame(t).payload)
	}
}

func TestStaleMoveDropped(t *testing.T) {
	s, sock := newTestSession(t)
	login(t, s)
	joinLobby(t, s)

	var seen int
	s.On(wire.EventMove, func(ev *wire.Event) { seen++ })
	sock.inject(t, wire.EventMove, wire.MoveRelay{ID: "u1", Move: wire.Move{From: "e2", To: "e4", Color: "white"}})
	if seen != 0 {
		t.Fatalf("move forwarded outside GAME")
	}
}

func TestStaleResponseDropped(t *testing.T) {
	s, sock := newTestSession(t)
	login(t, s)
	joinLobby(t, s)

	var seen int
	s.On(wire.EventGameResponse, func(ev *wire.Event) { seen++ })
	sock.inject(t, wire.EventGameResponse, wire.Response{ID: "p2", Accepted: true})
	if seen != 0 {
		t.Fatalf("response forwarded outside PLAYER_INVITED")
	}
}

func TestInboundSurrenderEndsMatch(t *testing.T) {
	s, sock := newTestSession(t)
	login(t, s)
	joinLobby(t, s)
	ctx := context.Background()

	sock.inject(t, wire.EventGameInvite, wire.Invite{ID: "p2"})
	if err := s.AcceptInvite(ctx, "p2"); err != nil {
		t.Fatalf("AcceptInvite: %v", err)
	}
	sock.inject(t, wire.EventGameCreate, wire.Invite{ID: "p2", Alias: "peer"})
	sock.inject(t, wire.EventGameLaunch, wire.Launch{})

	sock.inject(t, wire.EventSurrender, wire.Launch{ID: "p2"})
	if s.State() != StateLoggedIn {
		t.Fatalf("state = %s, want LOGGED_IN", s.State())
	}
	if id, _ := s.Opponent(); id != "" {
		t.Fatalf("opponent not cleared after surrender")
	}
}

func TestSurrenderOutbound(t *testing.T) {
	s, sock := newTestSession(t)
	login(t, s)
	joinLobby(t, s)
	ctx := context.Background()

	if err := s.SendInvite(ctx, "p2"); err != nil {
		t.Fatalf("SendInvite: %v", err)
	}
	if err := s.CreateGame(ctx); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	if err := s.LaunchGame(ctx); err != nil {
		t.Fatalf("LaunchGame: %v", err)
	}
	if err := s.Surrender(ctx); err != nil {
		t.Fatalf("Surrender: %v", err)
	}
	if s.State() != StateLoggedIn {
		t.Fatalf("state = %s, want LOGGED_IN", s.State())
	}
	if sock.lastFrame(t).name != wire.EventSurrender {
		t.Fatalf("surrender frame not emitted")
	}
}

func TestSwapColorsBeforeLoginIsNoop(t *testing.T) {
	s, sock := newTestSession(t)
	ok, err := s.SwapColors(context.Background())
	if err != nil || !ok {
		t.Fatalf("SwapColors in INITIAL: ok=%v err=%v", ok, err)
	}
	if len(sock.frames()) != 0 {
		t.Fatalf("no frame must be emitted before login")
	}
}

func TestSwapColorsReturnsHostFlag(t *testing.T) {
	s, sock := newTestSession(t)
	login(t, s)
	joinLobby(t, s)
	ctx := context.Background()

	ok, err := s.SwapColors(ctx)
	if err != nil {
		t.Fatalf("SwapColors: %v", err)
	}
	if ok {
		t.Fatalf("non-host swap must not be authoritative")
	}

	if err := s.SendInvite(ctx, "p2"); err != nil {
		t.Fatalf("SendInvite: %v", err)
	}
	if err := s.CreateGame(ctx); err != nil {
		t.Fatalf("CreateGame: %v", err)
	}
	ok, err = s.SwapColors(ctx)
	if err != nil || !ok {
		t.Fatalf("host swap: ok=%v err=%v", ok, err)
	}
	if sock.lastFrame(t).name != wire.EventSwapColors {
		t.Fatalf("swap frame not emitted")
	}
}

func TestLogoutResetsAndCloses(t *testing.T) {
	s, sock := newTestSession(t)
	login(t, s)
	if err := s.Logout(context.Background()); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if s.State() != StateInitial || s.User() != nil {
		t.Fatalf("logout did not reset the session")
	}
	if !sock.closed {
		t.Fatalf("socket not closed on logout")
	}
}

func TestListenerReentrancy(t *testing.T) {
	s, sock := newTestSession(t)
	login(t, s)
	joinLobby(t, s)

	// accepting from inside the invite listener must not deadlock
	s.On(wire.EventGameInvite, func(ev *wire.Event) {
		var inv wire.Invite
		if err := ev.Decode(&inv); err != nil {
			t.Errorf("decode invite: %v", err)
			return
		}
		if err := s.AcceptInvite(context.Background(), inv.ID); err != nil {
			t.Errorf("AcceptInvite from listener: %v", err)
		}
	})
	sock.inject(t, wire.EventGameInvite, wire.Invite{ID: "p2"})
	if s.State() != StatePendingLaunch {
		t.Fatalf("state = %s, want PENDING_LAUNCH", s.State())
	}
}

func TestQueryHelpers(t *testing.T) {
	s, _ := newTestSession(t)
	if _, err := s.QueryPlayersInLobby(context.Background()); err == nil {
		t.Fatalf("expected error before login")
	}
	login(t, s)
	users, err := s.QueryPlayersInLobby(context.Background())
	if err != nil || len(users) != 1 {
		t.Fatalf("QueryPlayersInLobby: %v %v", users, err)
	}
	u, err := s.QueryUser(context.Background(), "p2")
	if err != nil || u.Alias != "peer" {
		t.Fatalf("QueryUser: %+v %v", u, err)
	}
}

func TestStateErrorMessage(t *testing.T) {
	err := &StateError{Op: "joinLobby", Expected: []State{StateLoggedIn}, Actual: StateInitial}
	want := "joinLobby requires state LOGGED_IN, session is INITIAL"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}
