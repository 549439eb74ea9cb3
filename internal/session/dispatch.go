package session

import (
	"go.uber.org/zap"

	"github.com/mhardt/gambit/internal/obslog"
	"github.com/mhardt/gambit/pkg/wire"
)

// inboundStates lists, per message kind, the states in which the session
// forwards the message to local listeners. The realtime channel is
// asynchronous: a message can race a local transition, and a stale frame
// must not corrupt a session that already moved past the relevant phase.
// Nil means the kind is accepted in any state.
var inboundStates = map[wire.EventName][]State{
	wire.EventJoinLobby:          {StateLobby, StatePlayerInvited, StatePendingLaunch},
	wire.EventLeaveLobby:         {StateLobby, StatePlayerInvited, StatePendingLaunch},
	wire.EventGameInvite:         {StateLoggedIn, StateLobby, StatePlayerInvited, StatePendingLaunch},
	wire.EventGameInviteWithdraw: {StateLoggedIn, StateLobby, StatePlayerInvited, StatePendingLaunch},
	wire.EventGameResponse:       {StatePlayerInvited},
	wire.EventGameCreate:         nil,
	wire.EventGameLaunch:         nil,
	wire.EventMove:               {StateGame},
	wire.EventSurrender:          nil,
	wire.EventSwapColors:         nil,
}

// handleEvent normalizes one inbound frame: filter by state, apply the
// session-side effect, then fan out to listeners. The mutex is released
// before listeners run so they may call back into the session; each
// handler still runs to completion before the next frame is dispatched.
func (s *Session) handleEvent(ev *wire.Event) {
	if ev == nil || !ev.Name.Known() {
		return
	}

	s.mu.Lock()
	allowed, ok := inboundStates[ev.Name]
	if !ok || (allowed != nil && !stateIn(s.state, allowed)) {
		state := s.state
		s.mu.Unlock()
		obslog.L().Debug("session_stale_message_dropped",
			zap.String("event", string(ev.Name)),
			zap.String("state", state.String()),
		)
		return
	}

	forward := s.applyInboundLocked(ev)
	s.mu.Unlock()

	if !forward {
		return
	}
	for _, fn := range s.listeners.snapshot(ev.Name) {
		fn(ev)
	}
}

// applyInboundLocked mutates session state for the frame and reports
// whether it should reach listeners.
func (s *Session) applyInboundLocked(ev *wire.Event) bool {
	switch ev.Name {
	case wire.EventGameInvite:
		var inv wire.Invite
		if err := ev.Decode(&inv); err != nil || inv.ID == "" {
			return false
		}
		if _, dup := s.receivedInvites[inv.ID]; dup {
			// repeated invite without an intervening withdrawal
			return false
		}
		s.receivedInvites[inv.ID] = struct{}{}
		obslog.L().Info("session_invite_received", zap.String("from_id", inv.ID))
		return true

	case wire.EventGameInviteWithdraw:
		var inv wire.Invite
		if err := ev.Decode(&inv); err != nil || inv.ID == "" {
			return false
		}
		delete(s.receivedInvites, inv.ID)
		return true

	case wire.EventGameCreate:
		var inv wire.Invite
		if err := ev.Decode(&inv); err != nil || inv.ID == "" {
			return false
		}
		s.invited = ""
		s.receivedInvites = make(map[string]struct{})
		s.opponent = inv.ID
		s.opponentAlias = inv.Alias
		s.isHost = false
		obslog.L().Info("session_game_confirmed", zap.String("opponent_id", inv.ID), zap.Bool("is_host", false))
		return true

	case wire.EventGameLaunch:
		s.state = StateGame
		obslog.L().Info("session_game_launch_received")
		return true

	case wire.EventSurrender:
		s.leaveMatchLocked()
		obslog.L().Info("session_opponent_surrendered")
		return true

	default:
		// join_lobby, leave_lobby, game_response, move, swap_colors are
		// pure relays once past the state filter
		return true
	}
}
