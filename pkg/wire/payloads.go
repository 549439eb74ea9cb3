package wire

// Presence is carried by join_lobby / leave_lobby.
type Presence struct {
	ID    string `json:"id"`
	Alias string `json:"alias,omitempty"`
}

// Invite is carried by game_invite, game_invite_withdraw and game_create.
type Invite struct {
	ID    string `json:"id"`
	Alias string `json:"alias,omitempty"`
}

// Response answers a game_invite.
type Response struct {
	ID       string `json:"id"`
	Accepted bool   `json:"accepted"`
}

// Launch is carried by game_launch and surrender and swap_colors:
// only the peer id is needed for routing.
type Launch struct {
	ID string `json:"id"`
}

// Move is the chess move as it travels on the wire. From/To/Promotion use
// algebraic square / piece letters ("e2", "e8", "q"). Color is "white" or
// "black". Flags carries single-letter move markers (capture, promotion,
// castle) for display purposes; the rules oracle never trusts them.
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
	Color     string `json:"color"`
	Flags     string `json:"flags,omitempty"`
}

// UCI returns the move in coordinate notation understood by the oracle.
func (m Move) UCI() string {
	return m.From + m.To + m.Promotion
}

// MoveRelay wraps a Move with the peer id it is addressed to (outbound)
// or originates from (inbound).
type MoveRelay struct {
	ID   string `json:"id"`
	Move Move   `json:"move"`
}
