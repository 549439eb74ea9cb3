package game

import (
	"github.com/mhardt/gambit/internal/rules"
	"github.com/mhardt/gambit/pkg/wire"
)

// BoardView is the rendering collaborator. The coordinator drives it with
// moves already accepted by the rules oracle; animation is a visual
// consequence, never a validation step.
type BoardView interface {
	// AnimateMove visualizes one applied move and calls done exactly once
	// when the animation completed.
	AnimateMove(mv wire.Move, done func())

	// SelectMoveForColor lets the user pick a legal move for the given
	// side and resolves exactly once with the choice.
	SelectMoveForColor(color rules.Color, onChosen func(wire.Move))

	// ApplyCurrentPosition redraws the board from the oracle's position
	// without animating, e.g. after resuming a serialized match.
	ApplyCurrentPosition()
}
