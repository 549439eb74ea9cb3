package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mhardt/gambit/internal/archive"
	"github.com/mhardt/gambit/internal/boardview"
	"github.com/mhardt/gambit/internal/config"
	"github.com/mhardt/gambit/internal/game"
	"github.com/mhardt/gambit/internal/obslog"
	"github.com/mhardt/gambit/internal/rules"
	"github.com/mhardt/gambit/internal/session"
	"github.com/mhardt/gambit/pkg/wire"
)

// shell is the interactive terminal frontend. It owns the current match, the
// local color assignment and the archive sinks; the session owns everything
// protocol-side.
type shell struct {
	cfg   *config.AppConfig
	sess  *session.Session
	store *archive.Store
	repo  *archive.Repository
	out   io.Writer

	mu         sync.Mutex
	match      *game.Game
	view       *boardview.TermView
	oracle     *rules.Oracle
	localColor rules.Color
	swapped    bool
	hotseat    bool
	matchStart time.Time
	whiteUser  wire.User
	blackUser  wire.User
}

func newShell(cfg *config.AppConfig, sess *session.Session, store *archive.Store, repo *archive.Repository) *shell {
	return &shell{
		cfg:   cfg,
		sess:  sess,
		store: store,
		repo:  repo,
		out:   os.Stdout,
	}
}

// matchColor assigns sides for a networked match: the host plays white, the
// guest black, so the two peers always end up on opposite colors. A
// pre-match swap inverts the assignment on both ends.
func matchColor(isHost, swapped bool) rules.Color {
	c := rules.Black
	if isHost {
		c = rules.White
	}
	if swapped {
		c = c.Other()
	}
	return c
}

// registerListeners wires server-initiated events to shell reactions. The
// session has already filtered and applied state effects by the time these
// fire.
func (sh *shell) registerListeners() {
	sh.sess.On(wire.EventGameInvite, func(ev *wire.Event) {
		var inv wire.Invite
		if ev.Decode(&inv) != nil {
			return
		}
		fmt.Fprintf(sh.out, "\ninvite from %s (%s) — accept %s or decline %s\n", inv.Alias, inv.ID, inv.ID, inv.ID)
	})
	sh.sess.On(wire.EventGameInviteWithdraw, func(ev *wire.Event) {
		var inv wire.Invite
		if ev.Decode(&inv) != nil {
			return
		}
		fmt.Fprintf(sh.out, "\ninvite from %s withdrawn\n", inv.ID)
	})
	sh.sess.On(wire.EventGameResponse, func(ev *wire.Event) {
		var resp wire.Response
		if ev.Decode(&resp) != nil {
			return
		}
		if !resp.Accepted {
			fmt.Fprintf(sh.out, "\n%s declined the invite\n", resp.ID)
			return
		}
		fmt.Fprintf(sh.out, "\n%s accepted the invite, starting match\n", resp.ID)
		go sh.hostLaunch()
	})
	sh.sess.On(wire.EventGameCreate, func(ev *wire.Event) {
		var inv wire.Invite
		if ev.Decode(&inv) != nil {
			return
		}
		fmt.Fprintf(sh.out, "\nmatch confirmed by %s (%s), waiting for launch\n", inv.Alias, inv.ID)
	})
	sh.sess.On(wire.EventGameLaunch, func(ev *wire.Event) {
		// guest side: the session is already in GAME
		go sh.startMatch()
	})
	sh.sess.On(wire.EventSwapColors, func(ev *wire.Event) {
		sh.mu.Lock()
		if sh.match == nil {
			sh.swapped = !sh.swapped
			fmt.Fprintln(sh.out, "\ncolors swapped for the next match")
		}
		sh.mu.Unlock()
	})
	sh.sess.On(wire.EventSurrender, func(ev *wire.Event) {
		sh.mu.Lock()
		color := sh.localColor
		active := sh.match != nil
		sh.mu.Unlock()
		if !active {
			return
		}
		fmt.Fprintln(sh.out, "\nopponent surrendered")
		outcome := rules.OutcomeWinWhite
		if color == rules.Black {
			outcome = rules.OutcomeWinBlack
		}
		sh.endMatch(outcome, "surrender")
	})
}

// hostLaunch runs the inviter's side of match setup once the peer accepted.
func (sh *shell) hostLaunch() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := sh.sess.CreateGame(ctx); err != nil {
		fmt.Fprintf(sh.out, "create game: %v\n", err)
		return
	}
	if err := sh.sess.LaunchGame(ctx); err != nil {
		fmt.Fprintf(sh.out, "launch game: %v\n", err)
		return
	}
	sh.startMatch()
}

// startMatch builds the oracle, view and coordinator for a networked match.
// The local side plays localColor; the opposite side resolves moves from the
// session feed.
func (sh *shell) startMatch() {
	sh.mu.Lock()
	if sh.match != nil {
		sh.mu.Unlock()
		return
	}
	oracle := rules.NewOracle()
	view := boardview.NewTermView(oracle, sh.out, sh.cfg.SnapshotDir)
	color := matchColor(sh.sess.IsHost(), sh.swapped)
	sh.localColor = color

	settings := game.Settings{White: game.PlayerNetwork, Black: game.PlayerNetwork}
	if color == rules.White {
		settings.White = game.PlayerLocal
	} else {
		settings.Black = game.PlayerLocal
	}

	local := wire.User{}
	if u := sh.sess.User(); u != nil {
		local = *u
	}
	oppID, oppAlias := sh.sess.Opponent()
	remote := wire.User{ID: oppID, Alias: oppAlias}
	if remote.Alias == "" {
		remote.Alias = oppID
	}
	if color == rules.White {
		sh.whiteUser, sh.blackUser = local, remote
	} else {
		sh.whiteUser, sh.blackUser = remote, local
	}

	g := game.New(settings, game.Deps{
		Oracle: oracle,
		View:   view,
		Feed:   sh.sess,
		Sender: sh.sess,
		OnTurn: func(c rules.Color) {
			if c != color {
				fmt.Fprintf(sh.out, "waiting for %s...\n", c)
			}
		},
		OnFinished: func(outcome rules.Outcome) {
			method := "draw"
			if oracle.IsCheckmate() {
				method = "checkmate"
			}
			sh.endMatch(outcome, method)
		},
	})
	sh.match = g
	sh.view = view
	sh.oracle = oracle
	sh.hotseat = false
	sh.matchStart = time.Now()
	sh.mu.Unlock()

	fmt.Fprintf(sh.out, "\nmatch started, you play %s\n", color)
	if err := g.Run(); err != nil {
		fmt.Fprintf(sh.out, "match start failed: %v\n", err)
		sh.clearMatch()
	}
}

// startHotseat runs both sides locally, optionally resuming from a stored
// move list.
func (sh *shell) startHotseat(movesUCI []string) {
	sh.mu.Lock()
	if sh.match != nil {
		sh.mu.Unlock()
		fmt.Fprintln(sh.out, "a match is already running")
		return
	}
	oracle, err := rules.Resume(movesUCI)
	if err != nil {
		sh.mu.Unlock()
		fmt.Fprintf(sh.out, "resume: %v\n", err)
		return
	}
	view := boardview.NewTermView(oracle, sh.out, sh.cfg.SnapshotDir)
	g := game.New(game.Settings{White: game.PlayerLocal, Black: game.PlayerLocal}, game.Deps{
		Oracle: oracle,
		View:   view,
		OnFinished: func(outcome rules.Outcome) {
			method := "draw"
			if oracle.IsCheckmate() {
				method = "checkmate"
			}
			sh.endMatch(outcome, method)
		},
	})
	sh.match = g
	sh.view = view
	sh.oracle = oracle
	sh.hotseat = true
	sh.matchStart = time.Now()
	sh.whiteUser = wire.User{ID: "local-white", Alias: "White"}
	sh.blackUser = wire.User{ID: "local-black", Alias: "Black"}
	sh.mu.Unlock()

	if err := g.Run(); err != nil {
		fmt.Fprintf(sh.out, "hot-seat start failed: %v\n", err)
		sh.clearMatch()
	}
}

// endMatch reports the result, archives the finished game and releases the
// match resources.
func (sh *shell) endMatch(outcome rules.Outcome, method string) {
	sh.mu.Lock()
	g := sh.match
	view := sh.view
	oracle := sh.oracle
	hotseat := sh.hotseat
	start := sh.matchStart
	white, black := sh.whiteUser, sh.blackUser
	sh.match = nil
	sh.view = nil
	sh.oracle = nil
	sh.swapped = false
	sh.mu.Unlock()

	if g == nil {
		return
	}
	g.Dispose()
	if view != nil {
		view.Close()
	}

	fmt.Fprintf(sh.out, "\nmatch over: %s (%s)\n", outcome, method)

	if oracle != nil && !hotseat {
		rec := &archive.Record{
			ID:         archive.NewRecordID(),
			WhiteID:    white.ID,
			WhiteAlias: white.Alias,
			BlackID:    black.ID,
			BlackAlias: black.Alias,
			MovesUCI:   oracle.MovesUCI(),
			MovesSAN:   oracle.MovesSAN(),
			Outcome:    string(outcome),
			Method:     method,
			StartedAt:  start,
			EndedAt:    time.Now(),
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if sh.store != nil {
			if err := sh.store.Save(ctx, rec); err != nil {
				obslog.L().Warn("archive_save_failed", zap.Error(err))
			}
		}
		if sh.repo != nil {
			if err := sh.repo.SaveResult(ctx, rec); err != nil {
				obslog.L().Warn("archive_db_save_failed", zap.Error(err))
			}
		}
	}
}

func (sh *shell) clearMatch() {
	sh.mu.Lock()
	g := sh.match
	view := sh.view
	sh.match = nil
	sh.view = nil
	sh.oracle = nil
	sh.mu.Unlock()
	if g != nil {
		g.Dispose()
	}
	if view != nil {
		view.Close()
	}
}

func (sh *shell) activeView() *boardview.TermView {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return sh.view
}

// run is the stdin command loop. While a match is active, lines that are not
// shell commands go to the board view as move input.
func (sh *shell) run(ctx context.Context) {
	fmt.Fprintln(sh.out, "gambit — type 'help' for commands")
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if !sh.handle(ctx, line) {
				return
			}
		}
	}
}

// handle executes one input line; returns false to exit the loop.
func (sh *shell) handle(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return true
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	if !isCommand(cmd) {
		if v := sh.activeView(); v != nil {
			v.Offer(line)
			return true
		}
		fmt.Fprintf(sh.out, "unknown command %q, try 'help'\n", cmd)
		return true
	}

	opCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	switch cmd {
	case "help":
		sh.printHelp()
	case "register":
		if len(args) < 2 {
			fmt.Fprintln(sh.out, "usage: register <alias> <password> [email]")
			return true
		}
		p := wire.Profile{Alias: args[0], Password: args[1]}
		if len(args) > 2 {
			p.Email = args[2]
		}
		sh.report(sh.sess.Register(opCtx, p))
	case "login":
		if len(args) < 2 {
			fmt.Fprintln(sh.out, "usage: login <alias> <password>")
			return true
		}
		err := sh.sess.Login(opCtx, wire.Credentials{Alias: args[0], Password: args[1]})
		if err == nil {
			fmt.Fprintf(sh.out, "logged in as %s\n", args[0])
		}
		sh.report(err)
	case "logout":
		sh.report(sh.sess.Logout(opCtx))
	case "lobby":
		sh.report(sh.sess.JoinLobby(opCtx))
	case "leave":
		sh.report(sh.sess.LeaveLobby(opCtx))
	case "players":
		users, err := sh.sess.QueryPlayersInLobby(opCtx)
		if err != nil {
			sh.report(err)
			return true
		}
		for _, u := range users {
			fmt.Fprintf(sh.out, "  %s  %s\n", u.ID, u.Alias)
		}
	case "who":
		if len(args) < 1 {
			fmt.Fprintln(sh.out, "usage: who <id>")
			return true
		}
		u, err := sh.sess.QueryUser(opCtx, args[0])
		if err != nil {
			sh.report(err)
			return true
		}
		fmt.Fprintf(sh.out, "  %s  %s\n", u.ID, u.Alias)
	case "invite":
		if len(args) < 1 {
			fmt.Fprintln(sh.out, "usage: invite <id>")
			return true
		}
		sh.report(sh.sess.SendInvite(opCtx, args[0]))
	case "cancel":
		sh.report(sh.sess.CancelInvite(opCtx))
	case "accept":
		if len(args) < 1 {
			fmt.Fprintln(sh.out, "usage: accept <id>")
			return true
		}
		sh.report(sh.sess.AcceptInvite(opCtx, args[0]))
	case "decline":
		if len(args) < 1 {
			fmt.Fprintln(sh.out, "usage: decline <id>")
			return true
		}
		sh.report(sh.sess.DeclineInvite(opCtx, args[0]))
	case "swap":
		applyNow, err := sh.sess.SwapColors(opCtx)
		if err != nil {
			sh.report(err)
			return true
		}
		if applyNow {
			sh.mu.Lock()
			sh.swapped = !sh.swapped
			sh.mu.Unlock()
			fmt.Fprintln(sh.out, "colors swapped for the next match")
		} else {
			fmt.Fprintln(sh.out, "swap requested")
		}
	case "hotseat":
		sh.startHotseat(args)
	case "resign":
		sh.mu.Lock()
		hotseat := sh.hotseat
		color := sh.localColor
		if hotseat && sh.oracle != nil {
			// on a shared board the side to move is the one resigning
			color = sh.oracle.CurrentTurn()
		}
		active := sh.match != nil
		sh.mu.Unlock()
		if !active {
			fmt.Fprintln(sh.out, "no active match")
			return true
		}
		if !hotseat {
			if err := sh.sess.Surrender(opCtx); err != nil {
				sh.report(err)
				return true
			}
		}
		outcome := rules.OutcomeWinBlack
		if color == rules.Black {
			outcome = rules.OutcomeWinWhite
		}
		sh.endMatch(outcome, "surrender")
	case "quit", "exit":
		sh.clearMatch()
		return false
	}
	return true
}

func (sh *shell) report(err error) {
	if err != nil {
		fmt.Fprintf(sh.out, "error: %v\n", err)
	}
}

var shellCommands = map[string]struct{}{
	"help": {}, "register": {}, "login": {}, "logout": {},
	"lobby": {}, "leave": {}, "players": {}, "who": {},
	"invite": {}, "cancel": {}, "accept": {}, "decline": {},
	"swap": {}, "hotseat": {}, "resign": {}, "quit": {}, "exit": {},
}

func isCommand(word string) bool {
	_, ok := shellCommands[word]
	return ok
}

func (sh *shell) printHelp() {
	fmt.Fprint(sh.out, `commands:
  register <alias> <password> [email]   create an account
  login <alias> <password>              authenticate and connect
  logout                                disconnect
  lobby                                 enter the lobby
  leave                                 leave the lobby
  players                               list players in the lobby
  who <id>                              look up one player
  invite <id>                           invite a player
  cancel                                withdraw your invite
  accept <id> / decline <id>            answer an invite
  swap                                  swap colors before the match
  hotseat [moves...]                    local two-player match, optionally resumed
  resign                                forfeit the active match
  quit                                  exit
during a match, enter moves as coordinates: e2e4, e7e8q
`)
}
