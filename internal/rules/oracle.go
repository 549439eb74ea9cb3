package rules

import (
	"fmt"
	"strings"

	nchess "github.com/corentings/chess/v2"

	"github.com/mhardt/gambit/pkg/wire"
)

// Color identifies a chess side.
type Color string

const (
	White Color = "white"
	Black Color = "black"
)

// Other returns the opposing side.
func (c Color) Other() Color {
	if c == White {
		return Black
	}
	return White
}

func colorFrom(c nchess.Color) Color {
	if c == nchess.White {
		return White
	}
	return Black
}

// Outcome is the terminal result of a match as reported to the match owner.
type Outcome string

const (
	OutcomeNone     Outcome = ""
	OutcomeWinWhite Outcome = "win_white"
	OutcomeWinBlack Outcome = "win_black"
	OutcomeDraw     Outcome = "draw"
)

// Oracle is the authoritative chess rules engine for one match. It owns the
// board position; callers never mutate it except through Apply.
type Oracle struct {
	game *nchess.Game

	movesUCI []string
	movesSAN []string
}

// NewOracle starts an oracle at the standard initial position.
func NewOracle() *Oracle {
	return &Oracle{game: nchess.NewGame()}
}

// Resume rebuilds an oracle by replaying stored UCI moves from the start
// position. Replaying instead of loading a FEN keeps the full move history
// available for SAN output and repetition detection.
func Resume(movesUCI []string) (*Oracle, error) {
	o := NewOracle()
	for _, mv := range movesUCI {
		if err := o.ApplyUCI(mv); err != nil {
			return nil, fmt.Errorf("replay %q: %w", mv, err)
		}
	}
	return o, nil
}

// CurrentTurn reports the side to move.
func (o *Oracle) CurrentTurn() Color {
	return colorFrom(o.game.Position().Turn())
}

// Apply validates and applies a wire move. The move's declared color must
// match the side to move; the oracle rejects cross-talk before touching the
// board.
func (o *Oracle) Apply(mv wire.Move) error {
	if mv.Color != "" && Color(mv.Color) != o.CurrentTurn() {
		return fmt.Errorf("move for %s but %s to play", mv.Color, o.CurrentTurn())
	}
	return o.ApplyUCI(mv.UCI())
}

// ApplyUCI applies a move in coordinate notation ("e2e4", "e7e8q").
func (o *Oracle) ApplyUCI(uci string) error {
	uci = strings.ToLower(strings.TrimSpace(uci))
	if uci == "" {
		return fmt.Errorf("empty move")
	}
	pos := o.game.Position()
	mv, err := nchess.UCINotation{}.Decode(pos, uci)
	if err != nil {
		return fmt.Errorf("decode move %q: %w", uci, err)
	}
	san := nchess.AlgebraicNotation{}.Encode(pos, mv)
	if err := o.game.Move(mv, nil); err != nil {
		return fmt.Errorf("illegal move %q: %w", uci, err)
	}
	o.movesUCI = append(o.movesUCI, uci)
	o.movesSAN = append(o.movesSAN, san)
	return nil
}

// IsGameOver reports whether the position is terminal.
func (o *Oracle) IsGameOver() bool {
	return o.game.Outcome() != nchess.NoOutcome
}

// IsCheckmate reports whether the game ended by checkmate.
func (o *Oracle) IsCheckmate() bool {
	return o.game.Method() == nchess.Checkmate
}

// Outcome maps the engine result onto the coordinator's outcome tokens.
func (o *Oracle) Outcome() Outcome {
	switch o.game.Outcome() {
	case nchess.WhiteWon:
		return OutcomeWinWhite
	case nchess.BlackWon:
		return OutcomeWinBlack
	case nchess.Draw:
		return OutcomeDraw
	default:
		return OutcomeNone
	}
}

// LegalMoves enumerates every legal move in the current position as wire
// moves, with color and flags filled in.
func (o *Oracle) LegalMoves() []wire.Move {
	return o.legalMoves("")
}

// LegalMovesFrom enumerates legal moves starting on the given square
// ("e2"); used for destination highlighting.
func (o *Oracle) LegalMovesFrom(square string) []wire.Move {
	return o.legalMoves(strings.ToLower(strings.TrimSpace(square)))
}

func (o *Oracle) legalMoves(from string) []wire.Move {
	turn := string(o.CurrentTurn())
	board := o.game.Position().Board()
	var out []wire.Move
	for _, mv := range o.game.ValidMoves() {
		s1 := mv.S1().String()
		if from != "" && s1 != from {
			continue
		}
		w := wire.Move{
			From:  s1,
			To:    mv.S2().String(),
			Color: turn,
		}
		w.Promotion = promoLetter(mv.Promo())
		w.Flags = moveFlags(board, w)
		out = append(out, w)
	}
	return out
}

// ResolveMove finds the legal move matching from/to/promotion, so callers
// get a fully populated wire move (color, flags) for a bare coordinate pair.
func (o *Oracle) ResolveMove(from, to, promotion string) (wire.Move, bool) {
	from = strings.ToLower(strings.TrimSpace(from))
	to = strings.ToLower(strings.TrimSpace(to))
	promotion = strings.ToLower(strings.TrimSpace(promotion))
	for _, mv := range o.legalMoves(from) {
		if mv.To == to && mv.Promotion == promotion {
			return mv, true
		}
	}
	return wire.Move{}, false
}

func promoLetter(p nchess.PieceType) string {
	switch p {
	case nchess.Queen:
		return "q"
	case nchess.Rook:
		return "r"
	case nchess.Bishop:
		return "b"
	case nchess.Knight:
		return "n"
	default:
		return ""
	}
}

// moveFlags derives chess.js style single letter markers for display.
func moveFlags(board *nchess.Board, mv wire.Move) string {
	var flags string
	if sq, ok := squareFrom(mv.To); ok && board.Piece(sq) != nchess.NoPiece {
		flags += "c"
	}
	if mv.Promotion != "" {
		flags += "p"
	}
	return flags
}

func squareFrom(s string) (nchess.Square, bool) {
	if len(s) != 2 {
		return 0, false
	}
	file := int(s[0] - 'a')
	rank := int(s[1] - '1')
	if file < 0 || file > 7 || rank < 0 || rank > 7 {
		return 0, false
	}
	return nchess.NewSquare(nchess.File(file), nchess.Rank(rank)), true
}

// Board exposes the current position for rendering.
func (o *Oracle) Board() *nchess.Board {
	return o.game.Position().Board()
}

// FEN serializes the current position.
func (o *Oracle) FEN() string {
	return o.game.FEN()
}

// PGN serializes the whole game.
func (o *Oracle) PGN() string {
	return o.game.String()
}

// MovesUCI returns the applied move history in coordinate notation.
func (o *Oracle) MovesUCI() []string {
	return append([]string(nil), o.movesUCI...)
}

// MovesSAN returns the applied move history in algebraic notation.
func (o *Oracle) MovesSAN() []string {
	return append([]string(nil), o.movesSAN...)
}
