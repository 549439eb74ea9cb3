package wire

import (
	"encoding/json"
	"fmt"
)

// EventName identifies a realtime message on the matchmaking channel.
type EventName string

const (
	EventJoinLobby          EventName = "join_lobby"
	EventLeaveLobby         EventName = "leave_lobby"
	EventGameInvite         EventName = "game_invite"
	EventGameInviteWithdraw EventName = "game_invite_withdraw"
	EventGameResponse       EventName = "game_response"
	EventGameCreate         EventName = "game_create"
	EventGameLaunch         EventName = "game_launch"
	EventMove               EventName = "move"
	EventSurrender          EventName = "surrender"
	EventSwapColors         EventName = "swap_colors"
)

var knownEvents = map[EventName]struct{}{
	EventJoinLobby:          {},
	EventLeaveLobby:         {},
	EventGameInvite:         {},
	EventGameInviteWithdraw: {},
	EventGameResponse:       {},
	EventGameCreate:         {},
	EventGameLaunch:         {},
	EventMove:               {},
	EventSurrender:          {},
	EventSwapColors:         {},
}

// Known reports whether the name is part of the wire catalog.
func (e EventName) Known() bool {
	_, ok := knownEvents[e]
	return ok
}

// Event is one frame on the realtime channel. Data holds the raw payload
// so the session layer can decode it by event name.
type Event struct {
	Name EventName       `json:"event"`
	Data json.RawMessage `json:"data,omitempty"`
}

// NewEvent builds an outbound frame, marshalling the payload. Only
// catalogued event names are accepted.
func NewEvent(name EventName, payload any) (*Event, error) {
	if !name.Known() {
		return nil, fmt.Errorf("unknown event name %q", name)
	}
	if payload == nil {
		return &Event{Name: name}, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &Event{Name: name, Data: raw}, nil
}

// Decode unmarshals the frame payload into out.
func (e *Event) Decode(out any) error {
	if len(e.Data) == 0 {
		return nil
	}
	return json.Unmarshal(e.Data, out)
}
