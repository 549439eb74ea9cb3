package boardview

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	nchess "github.com/corentings/chess/v2"
	"go.uber.org/zap"

	"github.com/mhardt/gambit/internal/obslog"
	"github.com/mhardt/gambit/internal/rules"
	"github.com/mhardt/gambit/pkg/wire"
)

// TermView renders the match in a terminal. Move input arrives through
// Offer, typically fed by the command loop that owns stdin; a pending
// selection consumes lines until one resolves to a legal move.
type TermView struct {
	oracle *rules.Oracle
	out    io.Writer

	renderer    *Renderer
	snapshotDir string

	mu       sync.Mutex
	lines    chan string
	quit     chan struct{}
	closed   bool
	snapshot int
}

func NewTermView(oracle *rules.Oracle, out io.Writer, snapshotDir string) *TermView {
	return &TermView{
		oracle:      oracle,
		out:         out,
		renderer:    NewRenderer(),
		snapshotDir: strings.TrimSpace(snapshotDir),
		lines:       make(chan string, 4),
		quit:        make(chan struct{}),
	}
}

// Offer hands one line of user input to a pending move selection. Lines
// offered while no selection is pending are buffered, then consumed by the
// next prompt.
func (v *TermView) Offer(line string) {
	v.mu.Lock()
	closed := v.closed
	v.mu.Unlock()
	if closed {
		return
	}
	select {
	case v.lines <- strings.TrimSpace(line):
	case <-v.quit:
	}
}

// Close aborts any pending selection.
func (v *TermView) Close() {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return
	}
	v.closed = true
	close(v.quit)
	v.mu.Unlock()
}

// ApplyCurrentPosition prints the full board as held by the rules oracle.
func (v *TermView) ApplyCurrentPosition() {
	fmt.Fprintln(v.out, v.boardASCII())
	v.writeSnapshot(nil)
}

// AnimateMove prints the applied move and the updated board, then reports
// completion. The move has already been applied to the oracle.
func (v *TermView) AnimateMove(mv wire.Move, done func()) {
	fmt.Fprintf(v.out, "\n%s plays %s\n", mv.Color, mv.UCI())
	fmt.Fprintln(v.out, v.boardASCII())
	v.writeSnapshot(&mv)
	if done != nil {
		done()
	}
}

// SelectMoveForColor prompts for a move and keeps consuming input lines
// until one resolves to a legal move for the given side. Resolution happens
// on a separate goroutine so network traffic stays serviced while a human
// thinks.
func (v *TermView) SelectMoveForColor(c rules.Color, onChosen func(wire.Move)) {
	fmt.Fprintf(v.out, "%s to move (e.g. e2e4, e7e8q): ", c)
	go func() {
		for {
			select {
			case <-v.quit:
				return
			case line := <-v.lines:
				mv, ok := v.parseMove(c, line)
				if !ok {
					fmt.Fprintf(v.out, "illegal move %q, %s to move: ", line, c)
					continue
				}
				if onChosen != nil {
					onChosen(mv)
				}
				return
			}
		}
	}()
}

func (v *TermView) parseMove(c rules.Color, line string) (wire.Move, bool) {
	line = strings.ToLower(strings.TrimSpace(line))
	if len(line) < 4 || len(line) > 5 {
		return wire.Move{}, false
	}
	from, to := line[:2], line[2:4]
	promo := ""
	if len(line) == 5 {
		promo = line[4:]
	}
	mv, ok := v.oracle.ResolveMove(from, to, promo)
	if !ok || mv.Color != string(c) {
		return wire.Move{}, false
	}
	return mv, true
}

var pieceLetters = map[nchess.PieceType]string{
	nchess.King:   "k",
	nchess.Queen:  "q",
	nchess.Rook:   "r",
	nchess.Bishop: "b",
	nchess.Knight: "n",
	nchess.Pawn:   "p",
}

func (v *TermView) boardASCII() string {
	squares := v.oracle.Board().SquareMap()
	var b strings.Builder
	b.WriteString("  +-----------------+\n")
	for row, rank := range boardRanks {
		b.WriteString(fmt.Sprintf("%d | ", 8-row))
		for _, file := range boardFiles {
			sq := nchess.NewSquare(file, rank)
			piece := squares[sq]
			if piece == nchess.NoPiece {
				b.WriteString(". ")
				continue
			}
			letter := pieceLetters[piece.Type()]
			if piece.Color() == nchess.White {
				letter = strings.ToUpper(letter)
			}
			b.WriteString(letter + " ")
		}
		b.WriteString("|\n")
	}
	b.WriteString("  +-----------------+\n")
	b.WriteString("    a b c d e f g h")
	return b.String()
}

// writeSnapshot renders the current position as PNG into the snapshot
// directory when one is configured. Failures are logged, never fatal.
func (v *TermView) writeSnapshot(last *wire.Move) {
	if v.snapshotDir == "" {
		return
	}
	opts := RenderOptions{}
	if last != nil {
		if from, ok := parseSquare(last.From); ok {
			if to, ok2 := parseSquare(last.To); ok2 {
				opts.Highlight = &MoveHighlight{From: from, To: to}
			}
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	data, err := v.renderer.RenderPNG(ctx, v.oracle.Board(), opts)
	if err != nil {
		obslog.L().Warn("boardview_snapshot_render_failed", zap.Error(err))
		return
	}
	if err := os.MkdirAll(v.snapshotDir, 0o755); err != nil {
		obslog.L().Warn("boardview_snapshot_dir_failed", zap.Error(err))
		return
	}
	v.mu.Lock()
	v.snapshot++
	n := v.snapshot
	v.mu.Unlock()
	path := filepath.Join(v.snapshotDir, fmt.Sprintf("move-%03d.png", n))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		obslog.L().Warn("boardview_snapshot_write_failed", zap.String("path", path), zap.Error(err))
	}
}

func parseSquare(s string) (nchess.Square, bool) {
	if len(s) != 2 {
		return 0, false
	}
	f := s[0] - 'a'
	r := s[1] - '1'
	if f > 7 || r > 7 {
		return 0, false
	}
	return nchess.NewSquare(nchess.File(f), nchess.Rank(r)), true
}
