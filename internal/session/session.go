package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mhardt/gambit/internal/netio"
	"github.com/mhardt/gambit/internal/obslog"
	"github.com/mhardt/gambit/pkg/wire"
)

// API is the REST side-channel the session needs for account and roster
// operations. netio.Client implements it.
type API interface {
	Login(ctx context.Context, creds wire.Credentials) (*wire.LoginResult, error)
	Register(ctx context.Context, profile wire.Profile) error
	FetchUser(ctx context.Context, token, id string) (*wire.User, error)
	ListLobbyUsers(ctx context.Context, token string) ([]wire.User, error)
}

// Dialer builds the realtime channel for an authenticated user.
type Dialer func(token string) netio.Socket

// Session owns the single realtime connection, the authenticated identity
// and the matchmaking lifecycle state. It normalizes inbound events into a
// local listener feed, dropping messages inconsistent with the current
// state, and validates every outbound action before emitting.
//
// Handlers and operations each run to completion under one mutex; listeners
// are invoked outside of it so they may call back into the session.
type Session struct {
	mu    sync.Mutex
	state State

	user            *wire.User
	invited         string
	receivedInvites map[string]struct{}
	opponent        string
	opponentAlias   string
	isHost          bool

	api    API
	dial   Dialer
	sock   netio.Socket
	sockCb int

	listeners *registry
}

func New(api API, dial Dialer) *Session {
	return &Session{
		state:           StateInitial,
		receivedInvites: make(map[string]struct{}),
		api:             api,
		dial:            dial,
		listeners:       newRegistry(),
	}
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// User returns a copy of the authenticated identity, or nil.
func (s *Session) User() *wire.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// Opponent returns the confirmed match partner's id and alias.
func (s *Session) Opponent() (id, alias string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opponent, s.opponentAlias
}

// IsHost reports whether this session initiated the active match.
func (s *Session) IsHost() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isHost
}

// InvitedOpponent returns the id of the player this session has invited.
func (s *Session) InvitedOpponent() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.invited
}

// HasReceivedInvite reports whether the given player has an outstanding
// invite to this session.
func (s *Session) HasReceivedInvite(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.receivedInvites[id]
	return ok
}

// On registers a listener for a wire event. Unknown event names are
// silently ignored; the returned handle is 0 in that case.
func (s *Session) On(name wire.EventName, fn func(*wire.Event)) int {
	return s.listeners.add(name, fn)
}

// RemoveListener unregisters a listener by its handle.
func (s *Session) RemoveListener(name wire.EventName, id int) {
	s.listeners.remove(name, id)
}

// Login authenticates against the REST endpoint, establishes the realtime
// channel with the returned token and moves the session to LOGGED_IN. On
// any failure the session is left in INITIAL.
func (s *Session) Login(ctx context.Context, creds wire.Credentials) error {
	s.mu.Lock()
	if err := s.expect("login", StateInitial); err != nil {
		s.mu.Unlock()
		return err
	}
	s.mu.Unlock()

	res, err := s.api.Login(ctx, creds)
	if err != nil {
		obslog.L().Warn("session_login_failed", zap.Error(err))
		return fmt.Errorf("login: %w", err)
	}

	sock := s.dial(res.Token)
	if err := sock.Connect(ctx); err != nil {
		return fmt.Errorf("connect realtime channel: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateInitial {
		// a concurrent login won the race; discard this connection
		_ = sock.Close(ctx)
		return &StateError{Op: "login", Expected: []State{StateInitial}, Actual: s.state}
	}
	user := res.User
	user.Token = res.Token
	s.user = &user
	s.sock = sock
	s.sockCb = sock.OnEvent(s.handleEvent)
	s.state = StateLoggedIn
	obslog.L().Info("session_login", zap.String("user_id", user.ID), zap.String("alias", user.Alias))
	return nil
}

// Logout tears down the connection and returns to INITIAL.
func (s *Session) Logout(ctx context.Context) error {
	s.mu.Lock()
	if err := s.expect("logout", StateLoggedIn); err != nil {
		s.mu.Unlock()
		return err
	}
	sock := s.sock
	cb := s.sockCb
	s.teardownLocked()
	s.mu.Unlock()

	if sock != nil {
		sock.RemoveEventCallback(cb)
		if err := sock.Close(ctx); err != nil {
			return fmt.Errorf("close realtime channel: %w", err)
		}
	}
	obslog.L().Info("session_logout")
	return nil
}

// Reset forces the session back to INITIAL from any state, closing the
// connection if one is open. Used by the UI shell on fatal errors.
func (s *Session) Reset(ctx context.Context) {
	s.mu.Lock()
	sock := s.sock
	cb := s.sockCb
	s.teardownLocked()
	s.mu.Unlock()

	if sock != nil {
		sock.RemoveEventCallback(cb)
		_ = sock.Close(ctx)
	}
}

func (s *Session) teardownLocked() {
	s.state = StateInitial
	s.user = nil
	s.invited = ""
	s.receivedInvites = make(map[string]struct{})
	s.opponent = ""
	s.opponentAlias = ""
	s.isHost = false
	s.sock = nil
	s.sockCb = 0
}

// Register creates a new account. No state effect.
func (s *Session) Register(ctx context.Context, profile wire.Profile) error {
	return s.api.Register(ctx, profile)
}

// JoinLobby announces lobby presence and moves to LOBBY.
func (s *Session) JoinLobby(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect("joinLobby", StateLoggedIn); err != nil {
		return err
	}
	if err := s.emitLocked(ctx, wire.EventJoinLobby, wire.Presence{ID: s.user.ID, Alias: s.user.Alias}); err != nil {
		return err
	}
	s.state = StateLobby
	return nil
}

// LeaveLobby withdraws from the lobby and returns to LOGGED_IN. Leaving
// while an own invite or an accepted invite is pending abandons it.
func (s *Session) LeaveLobby(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect("leaveLobby", StateLobby, StatePlayerInvited, StatePendingLaunch); err != nil {
		return err
	}
	if err := s.emitLocked(ctx, wire.EventLeaveLobby, wire.Presence{ID: s.user.ID}); err != nil {
		return err
	}
	s.invited = ""
	s.state = StateLoggedIn
	return nil
}

// SendInvite proposes a match to another player. A re-invite from
// PLAYER_INVITED replaces the prior target.
func (s *Session) SendInvite(ctx context.Context, opponentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect("sendInvite", StateLobby, StatePlayerInvited); err != nil {
		return err
	}
	if err := s.emitLocked(ctx, wire.EventGameInvite, wire.Invite{ID: opponentID, Alias: s.user.Alias}); err != nil {
		return err
	}
	s.invited = opponentID
	s.state = StatePlayerInvited
	obslog.L().Info("session_invite_sent", zap.String("opponent_id", opponentID))
	return nil
}

// CancelInvite withdraws the outstanding invite. A call with no invite
// outstanding is a no-op in any state.
func (s *Session) CancelInvite(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.invited == "" {
		return nil
	}
	if err := s.expect("cancelInvite", StatePlayerInvited); err != nil {
		return err
	}
	if err := s.emitLocked(ctx, wire.EventGameInviteWithdraw, wire.Invite{ID: s.invited}); err != nil {
		return err
	}
	obslog.L().Info("session_invite_withdrawn", zap.String("opponent_id", s.invited))
	s.invited = ""
	s.state = StateLobby
	return nil
}

// AcceptInvite answers a received invite positively. The response is
// emitted regardless, but the session only advances to PENDING_LAUNCH when
// the id names a genuinely outstanding invite.
func (s *Session) AcceptInvite(ctx context.Context, opponentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect("acceptInvite", StateLobby, StatePlayerInvited); err != nil {
		return err
	}
	if err := s.emitLocked(ctx, wire.EventGameResponse, wire.Response{ID: opponentID, Accepted: true}); err != nil {
		return err
	}
	if _, ok := s.receivedInvites[opponentID]; ok {
		s.state = StatePendingLaunch
		obslog.L().Info("session_invite_accepted", zap.String("opponent_id", opponentID))
	}
	return nil
}

// DeclineInvite answers a received invite negatively and forgets it.
func (s *Session) DeclineInvite(ctx context.Context, opponentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect("declineInvite", StateLobby, StatePlayerInvited); err != nil {
		return err
	}
	if err := s.emitLocked(ctx, wire.EventGameResponse, wire.Response{ID: opponentID, Accepted: false}); err != nil {
		return err
	}
	delete(s.receivedInvites, opponentID)
	return nil
}

// CreateGame promotes the accepted invite into a confirmed match: this
// session becomes the host and announces the match to the invited peer.
func (s *Session) CreateGame(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect("createGame", StatePlayerInvited); err != nil {
		return err
	}
	if s.invited == "" {
		return errors.New("createGame: no invited opponent")
	}
	if err := s.emitLocked(ctx, wire.EventGameCreate, wire.Invite{ID: s.invited, Alias: s.user.Alias}); err != nil {
		return err
	}
	s.opponent = s.invited
	s.invited = ""
	s.receivedInvites = make(map[string]struct{})
	s.isHost = true
	obslog.L().Info("session_game_created", zap.String("opponent_id", s.opponent), zap.Bool("is_host", true))
	return nil
}

// LaunchGame signals match start to the confirmed opponent and enters GAME.
func (s *Session) LaunchGame(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect("launchGame", StatePlayerInvited, StatePendingLaunch); err != nil {
		return err
	}
	if s.opponent == "" {
		return errors.New("launchGame: no confirmed opponent")
	}
	if err := s.emitLocked(ctx, wire.EventGameLaunch, wire.Launch{ID: s.opponent}); err != nil {
		return err
	}
	s.state = StateGame
	obslog.L().Info("session_game_launched", zap.String("opponent_id", s.opponent))
	return nil
}

// SwapColors requests a pre-match color swap. Only the host's intent is
// authoritative; the returned boolean tells the caller whether its local
// swap should take effect. Calling before login is a harmless no-op.
func (s *Session) SwapColors(ctx context.Context) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateInitial {
		return true, nil
	}
	if err := s.emitLocked(ctx, wire.EventSwapColors, wire.Launch{ID: s.opponent}); err != nil {
		return false, err
	}
	return s.isHost, nil
}

// SendMove relays a played move to the opponent. Only valid during a match.
func (s *Session) SendMove(ctx context.Context, mv wire.Move) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect("sendMove", StateGame); err != nil {
		return err
	}
	return s.emitLocked(ctx, wire.EventMove, wire.MoveRelay{ID: s.opponent, Move: mv})
}

// Surrender forfeits the active match and leaves the match context.
func (s *Session) Surrender(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.expect("surrender", StateGame); err != nil {
		return err
	}
	if err := s.emitLocked(ctx, wire.EventSurrender, wire.Launch{ID: s.opponent}); err != nil {
		return err
	}
	s.leaveMatchLocked()
	obslog.L().Info("session_surrender")
	return nil
}

// QueryPlayersInLobby fetches the lobby roster. Read-only.
func (s *Session) QueryPlayersInLobby(ctx context.Context) ([]wire.User, error) {
	s.mu.Lock()
	user := s.user
	s.mu.Unlock()
	if user == nil {
		return nil, errors.New("not authenticated")
	}
	return s.api.ListLobbyUsers(ctx, user.Token)
}

// QueryUser resolves a single user by id. Read-only.
func (s *Session) QueryUser(ctx context.Context, id string) (*wire.User, error) {
	s.mu.Lock()
	user := s.user
	s.mu.Unlock()
	if user == nil {
		return nil, errors.New("not authenticated")
	}
	return s.api.FetchUser(ctx, user.Token, id)
}

func (s *Session) expect(op string, allowed ...State) *StateError {
	if stateIn(s.state, allowed) {
		return nil
	}
	return &StateError{Op: op, Expected: allowed, Actual: s.state}
}

func (s *Session) emitLocked(ctx context.Context, name wire.EventName, payload any) error {
	if s.sock == nil {
		return errors.New("no realtime connection")
	}
	if err := s.sock.Emit(ctx, name, payload); err != nil {
		obslog.L().Warn("session_emit_failed", zap.String("event", string(name)), zap.Error(err))
		return fmt.Errorf("emit %s: %w", name, err)
	}
	return nil
}

// leaveMatchLocked clears match context after a match ends; opponent and
// isHost are meaningless past that point.
func (s *Session) leaveMatchLocked() {
	s.opponent = ""
	s.opponentAlias = ""
	s.isHost = false
	if s.user != nil {
		s.state = StateLoggedIn
	} else {
		s.state = StateInitial
	}
}
