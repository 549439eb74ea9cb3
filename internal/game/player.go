package game

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/mhardt/gambit/internal/obslog"
	"github.com/mhardt/gambit/internal/rules"
	"github.com/mhardt/gambit/pkg/wire"
)

// Player selects exactly one move per SelectMove request. A request must
// not be issued again until the previous one resolved or the player was
// disposed.
type Player interface {
	Color() rules.Color
	SelectMove(onSelected func(wire.Move))
	Dispose()
}

// MoveFeed is the slice of the session a network player subscribes to.
type MoveFeed interface {
	On(name wire.EventName, fn func(*wire.Event)) int
	RemoveListener(name wire.EventName, id int)
}

// MoveSender forwards a locally chosen move to the remote peer.
type MoveSender interface {
	SendMove(ctx context.Context, mv wire.Move) error
}

// LocalPlayer asks the board view for a user-chosen move. In a networked
// match the choice is forwarded to the peer before the coordinator's
// callback resolves; that is what propagates a local move to the remote
// side.
type LocalPlayer struct {
	color  rules.Color
	view   BoardView
	sender MoveSender // nil in a hot-seat match
}

func NewLocalPlayer(color rules.Color, view BoardView, sender MoveSender) *LocalPlayer {
	return &LocalPlayer{color: color, view: view, sender: sender}
}

func (p *LocalPlayer) Color() rules.Color { return p.color }

func (p *LocalPlayer) SelectMove(onSelected func(wire.Move)) {
	p.view.SelectMoveForColor(p.color, func(mv wire.Move) {
		if p.sender != nil {
			if err := p.sender.SendMove(context.Background(), mv); err != nil {
				obslog.L().Warn("player_move_relay_failed",
					zap.String("color", string(p.color)),
					zap.Error(err),
				)
			}
		}
		onSelected(mv)
	})
}

func (p *LocalPlayer) Dispose() {}

// NetworkPlayer resolves moves from the session's move feed. It is armed
// only while a SelectMove request is outstanding; a move arriving while
// unarmed, or declaring the wrong color, is dropped without resolving.
// The transport may legitimately race or redeliver, so dropped events are
// not errors.
type NetworkPlayer struct {
	color rules.Color
	feed  MoveFeed

	mu       sync.Mutex
	armed    bool
	callback func(wire.Move)

	listenerID int
}

func NewNetworkPlayer(color rules.Color, feed MoveFeed) *NetworkPlayer {
	p := &NetworkPlayer{color: color, feed: feed}
	p.listenerID = feed.On(wire.EventMove, p.handleMove)
	return p
}

func (p *NetworkPlayer) Color() rules.Color { return p.color }

func (p *NetworkPlayer) SelectMove(onSelected func(wire.Move)) {
	p.mu.Lock()
	p.armed = true
	p.callback = onSelected
	p.mu.Unlock()
}

func (p *NetworkPlayer) handleMove(ev *wire.Event) {
	var relay wire.MoveRelay
	if err := ev.Decode(&relay); err != nil {
		return
	}

	p.mu.Lock()
	if !p.armed {
		p.mu.Unlock()
		obslog.L().Debug("player_unarmed_move_dropped", zap.String("color", string(p.color)))
		return
	}
	if rules.Color(relay.Move.Color) != p.color {
		p.mu.Unlock()
		obslog.L().Debug("player_mismatched_move_dropped",
			zap.String("color", string(p.color)),
			zap.String("move_color", relay.Move.Color),
		)
		return
	}
	cb := p.callback
	p.armed = false
	p.callback = nil
	p.mu.Unlock()

	cb(relay.Move)
}

// Dispose unsubscribes from the move feed; a pending request can no longer
// resolve afterwards.
func (p *NetworkPlayer) Dispose() {
	p.feed.RemoveListener(wire.EventMove, p.listenerID)
	p.mu.Lock()
	p.armed = false
	p.callback = nil
	p.mu.Unlock()
}
