package game

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/mhardt/gambit/internal/obslog"
	"github.com/mhardt/gambit/internal/rules"
	"github.com/mhardt/gambit/pkg/wire"
)

// PlayerType selects a player variant for one side.
type PlayerType string

const (
	PlayerLocal   PlayerType = "local"
	PlayerNetwork PlayerType = "network"
)

// Settings describes who plays each side of a match.
type Settings struct {
	White PlayerType
	Black PlayerType
}

// IsLocal reports a hot-seat match with no network relay.
func (s Settings) IsLocal() bool {
	return s.White == PlayerLocal && s.Black == PlayerLocal
}

// Deps are the collaborators a match needs. Feed and Sender may be nil for
// a hot-seat match.
type Deps struct {
	Oracle *rules.Oracle
	View   BoardView
	Feed   MoveFeed
	Sender MoveSender

	// OnTurn is notified before each move request with the side to move.
	OnTurn func(color rules.Color)
	// OnFinished receives the terminal outcome exactly once.
	OnFinished func(outcome rules.Outcome)
}

// Game coordinates one match: it alternates turns between two players,
// applies each selected move to the rules oracle, has the view animate the
// applied move, and reports the terminal outcome. The oracle is the single
// source of truth; a player's move object is never trusted as applied.
type Game struct {
	settings Settings
	deps     Deps

	mu       sync.Mutex
	players  [2]Player
	current  int
	running  bool
	disposed bool
}

func New(settings Settings, deps Deps) *Game {
	return &Game{settings: settings, deps: deps}
}

// Run builds both players, derives the starting turn from the oracle and
// requests the first move. For a resumed match the oracle already holds
// the replayed position, so the starting side follows from it.
func (g *Game) Run() error {
	g.mu.Lock()
	if g.running {
		g.mu.Unlock()
		return fmt.Errorf("game already running")
	}
	if g.disposed {
		g.mu.Unlock()
		return fmt.Errorf("game disposed")
	}

	white, err := g.buildPlayer(rules.White, g.settings.White)
	if err != nil {
		g.mu.Unlock()
		return err
	}
	black, err := g.buildPlayer(rules.Black, g.settings.Black)
	if err != nil {
		white.Dispose()
		g.mu.Unlock()
		return err
	}
	g.players = [2]Player{white, black}
	g.current = g.startingIndex()
	g.running = true
	g.mu.Unlock()

	g.deps.View.ApplyCurrentPosition()
	g.delegate()
	return nil
}

func (g *Game) buildPlayer(color rules.Color, typ PlayerType) (Player, error) {
	switch typ {
	case PlayerLocal:
		sender := g.deps.Sender
		if g.settings.IsLocal() {
			sender = nil
		}
		return NewLocalPlayer(color, g.deps.View, sender), nil
	case PlayerNetwork:
		if g.deps.Feed == nil {
			return nil, fmt.Errorf("network player for %s needs a move feed", color)
		}
		return NewNetworkPlayer(color, g.deps.Feed), nil
	default:
		return nil, fmt.Errorf("unknown player type %q", typ)
	}
}

func (g *Game) startingIndex() int {
	if g.deps.Oracle.CurrentTurn() == rules.Black {
		return 1
	}
	return 0
}

// delegate checks for a terminal position, then requests a move from the
// player whose turn it is. The move-selection callback fires at most once
// per turn.
func (g *Game) delegate() {
	g.mu.Lock()
	if g.disposed || !g.running {
		g.mu.Unlock()
		return
	}
	if g.deps.Oracle.IsGameOver() {
		outcome := g.deps.Oracle.Outcome()
		g.running = false
		g.mu.Unlock()
		obslog.L().Info("game_finished", zap.String("outcome", string(outcome)))
		if g.deps.OnFinished != nil {
			g.deps.OnFinished(outcome)
		}
		return
	}
	player := g.players[g.current]
	g.mu.Unlock()

	if g.deps.OnTurn != nil {
		g.deps.OnTurn(player.Color())
	}
	player.SelectMove(g.onMoveSelected)
}

// onMoveSelected applies the chosen move to the oracle before anything is
// drawn. A move the oracle rejects never reaches the view; the same player
// is asked again.
func (g *Game) onMoveSelected(mv wire.Move) {
	g.mu.Lock()
	if g.disposed || !g.running {
		g.mu.Unlock()
		return
	}
	if err := g.deps.Oracle.Apply(mv); err != nil {
		player := g.players[g.current]
		g.mu.Unlock()
		obslog.L().Warn("game_move_rejected",
			zap.String("uci", mv.UCI()),
			zap.String("color", mv.Color),
			zap.Error(err),
		)
		player.SelectMove(g.onMoveSelected)
		return
	}
	g.mu.Unlock()

	obslog.L().Info("game_move_applied", zap.String("uci", mv.UCI()), zap.String("color", mv.Color))
	g.deps.View.AnimateMove(mv, g.onAnimated)
}

// onAnimated advances to the other player. delegate re-checks the oracle
// first, so a mating move reports the outcome instead of requesting a
// further move.
func (g *Game) onAnimated() {
	g.mu.Lock()
	if g.disposed || !g.running {
		g.mu.Unlock()
		return
	}
	g.current = 1 - g.current
	g.mu.Unlock()
	g.delegate()
}

// Dispose releases both players; a network player unsubscribes from the
// move feed so no pending request resolves into orphaned state.
func (g *Game) Dispose() {
	g.mu.Lock()
	if g.disposed {
		g.mu.Unlock()
		return
	}
	g.disposed = true
	g.running = false
	players := g.players
	g.mu.Unlock()

	for _, p := range players {
		if p != nil {
			p.Dispose()
		}
	}
}
