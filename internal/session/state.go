package session

import (
	"fmt"
	"strings"
)

// State is where the session sits in the matchmaking lifecycle. Every public
// operation and every inbound message is gated on it.
type State int

const (
	StateInitial State = iota
	StateLoggedIn
	StateLobby
	StatePlayerInvited
	StatePendingLaunch
	StateGame
)

func (s State) String() string {
	switch s {
	case StateInitial:
		return "INITIAL"
	case StateLoggedIn:
		return "LOGGED_IN"
	case StateLobby:
		return "LOBBY"
	case StatePlayerInvited:
		return "PLAYER_INVITED"
	case StatePendingLaunch:
		return "PENDING_LAUNCH"
	case StateGame:
		return "GAME"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// StateError reports a public operation invoked outside its permitted
// states. It is fatal to the call only; the session is left untouched.
type StateError struct {
	Op       string
	Expected []State
	Actual   State
}

func (e *StateError) Error() string {
	names := make([]string, len(e.Expected))
	for i, s := range e.Expected {
		names[i] = s.String()
	}
	return fmt.Sprintf("%s requires state %s, session is %s", e.Op, strings.Join(names, "|"), e.Actual)
}

func stateIn(s State, allowed []State) bool {
	for _, a := range allowed {
		if s == a {
			return true
		}
	}
	return false
}
