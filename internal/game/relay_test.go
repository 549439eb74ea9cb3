package game

import (
	"context"
	"testing"

	"github.com/mhardt/gambit/internal/rules"
	"github.com/mhardt/gambit/pkg/wire"
)

// relaySender forwards a locally chosen move straight into the peer's feed,
// standing in for the server relaying between two clients.
type relaySender struct {
	t    *testing.T
	peer *fakeFeed
	id   string
}

func (s *relaySender) SendMove(ctx context.Context, mv wire.Move) error {
	s.peer.inject(s.t, wire.MoveRelay{ID: s.id, Move: mv})
	return nil
}

// relayView records the pending selection so the test can play moves one at
// a time.
type relayView struct {
	oracle       *rules.Oracle
	pending      func(wire.Move)
	pendingColor rules.Color
}

func (v *relayView) ApplyCurrentPosition() {}

func (v *relayView) AnimateMove(mv wire.Move, done func()) { done() }

func (v *relayView) SelectMoveForColor(c rules.Color, onChosen func(wire.Move)) {
	v.pendingColor = c
	v.pending = onChosen
}

func (v *relayView) play(t *testing.T, uci string) {
	t.Helper()
	if v.pending == nil {
		t.Fatalf("no pending selection to play %s", uci)
	}
	mv, ok := v.oracle.ResolveMove(uci[:2], uci[2:4], promoOf(uci))
	if !ok {
		t.Fatalf("%s does not resolve", uci)
	}
	cb := v.pending
	v.pending = nil
	cb(mv)
}

// Two coordinators wired the way the shell wires a networked match: the host
// local on white, the guest local on black, each relaying through the peer's
// feed. A full move pair must land in both histories.
func TestCrossLinkedMatchPlaysMovePair(t *testing.T) {
	hostOracle := rules.NewOracle()
	guestOracle := rules.NewOracle()
	hostFeed := newFakeFeed()
	guestFeed := newFakeFeed()
	hostView := &relayView{oracle: hostOracle}
	guestView := &relayView{oracle: guestOracle}

	host := New(Settings{White: PlayerLocal, Black: PlayerNetwork}, Deps{
		Oracle: hostOracle,
		View:   hostView,
		Feed:   hostFeed,
		Sender: &relaySender{t: t, peer: guestFeed, id: "host"},
	})
	guest := New(Settings{White: PlayerNetwork, Black: PlayerLocal}, Deps{
		Oracle: guestOracle,
		View:   guestView,
		Feed:   guestFeed,
		Sender: &relaySender{t: t, peer: hostFeed, id: "guest"},
	})
	t.Cleanup(host.Dispose)
	t.Cleanup(guest.Dispose)

	// guest first: its white network player must be armed before the host
	// relays the opening move
	if err := guest.Run(); err != nil {
		t.Fatalf("guest Run: %v", err)
	}
	if err := host.Run(); err != nil {
		t.Fatalf("host Run: %v", err)
	}

	if hostView.pending == nil || hostView.pendingColor != rules.White {
		t.Fatalf("host not prompted for white, pendingColor=%s", hostView.pendingColor)
	}
	hostView.play(t, "e2e4")

	if got := guestOracle.MovesUCI(); len(got) != 1 || got[0] != "e2e4" {
		t.Fatalf("relayed move did not reach the guest, history = %v", got)
	}
	if guestView.pending == nil || guestView.pendingColor != rules.Black {
		t.Fatalf("guest not prompted for black, pendingColor=%s", guestView.pendingColor)
	}
	guestView.play(t, "e7e5")

	for name, o := range map[string]*rules.Oracle{"host": hostOracle, "guest": guestOracle} {
		got := o.MovesUCI()
		if len(got) != 2 || got[0] != "e2e4" || got[1] != "e7e5" {
			t.Fatalf("%s history = %v, want [e2e4 e7e5]", name, got)
		}
	}

	// play continues: the host is prompted for white's second move
	if hostView.pending == nil || hostView.pendingColor != rules.White {
		t.Fatalf("host not re-prompted after the move pair")
	}
}
