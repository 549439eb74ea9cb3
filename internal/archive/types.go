package archive

import (
	"time"

	"github.com/google/uuid"
)

// Record is the stored summary of a finished match.
type Record struct {
	ID         string    `json:"id"`
	WhiteID    string    `json:"white_id"`
	WhiteAlias string    `json:"white_alias"`
	BlackID    string    `json:"black_id"`
	BlackAlias string    `json:"black_alias"`
	MovesUCI   []string  `json:"moves_uci"`
	MovesSAN   []string  `json:"moves_san"`
	Outcome    string    `json:"outcome"` // win_white | win_black | draw
	Method     string    `json:"method"`  // checkmate | draw | surrender
	StartedAt  time.Time `json:"started_at"`
	EndedAt    time.Time `json:"ended_at"`
}

// NewRecordID returns a unique archive record id.
func NewRecordID() string {
	return "match-" + uuid.NewString()
}
