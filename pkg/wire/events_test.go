package wire

import (
	"encoding/json"
	"testing"
)

func TestKnownEvents(t *testing.T) {
	for _, name := range []EventName{
		EventJoinLobby, EventLeaveLobby, EventGameInvite, EventGameInviteWithdraw,
		EventGameResponse, EventGameCreate, EventGameLaunch, EventMove,
		EventSurrender, EventSwapColors,
	} {
		if !name.Known() {
			t.Fatalf("%s not known", name)
		}
	}
	if EventName("bogus").Known() {
		t.Fatalf("bogus event is known")
	}
}

func TestEventRoundTrip(t *testing.T) {
	ev, err := NewEvent(EventMove, MoveRelay{ID: "p2", Move: Move{From: "e2", To: "e4", Color: "white", Flags: "c"}})
	if err != nil {
		t.Fatalf("NewEvent: %v", err)
	}

	raw, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal frame: %v", err)
	}
	var back Event
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("unmarshal frame: %v", err)
	}
	if back.Name != EventMove {
		t.Fatalf("name = %s", back.Name)
	}

	var relay MoveRelay
	if err := back.Decode(&relay); err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if relay.ID != "p2" || relay.Move.UCI() != "e2e4" || relay.Move.Flags != "c" {
		t.Fatalf("payload mangled: %+v", relay)
	}
}

func TestNewEventRejectsUnknownName(t *testing.T) {
	if _, err := NewEvent(EventName("bogus"), nil); err == nil {
		t.Fatalf("unknown event name accepted")
	}
}

func TestMoveUCI(t *testing.T) {
	mv := Move{From: "e7", To: "e8", Promotion: "q"}
	if mv.UCI() != "e7e8q" {
		t.Fatalf("UCI = %q", mv.UCI())
	}
	plain := Move{From: "e2", To: "e4"}
	if plain.UCI() != "e2e4" {
		t.Fatalf("UCI = %q", plain.UCI())
	}
}
