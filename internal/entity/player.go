package entity

import "time"

// Player is one seated bettor. ID is the current transport connection
// id and changes when the player reconnects; Name is the reconnect key.
type Player struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Bet          int    `json:"bet"`
	BetConfirmed bool   `json:"betConfirmed"`
	Balance      int    `json:"balance"`
	Hand         []Card `json:"hand,omitempty"`

	Connected      bool      `json:"connected"`
	DisconnectedAt time.Time `json:"-"`
}

// HasConfirmedBet - reports whether the player has a confirmed positive
// bet and therefore takes part in the current hand.
func (that *Player) HasConfirmedBet() bool {
	return that.BetConfirmed && that.Bet > 0
}
