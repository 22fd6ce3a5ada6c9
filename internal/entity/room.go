package entity

import (
	"sync"
	"time"
)

const (
	StateWaiting  = "waiting"
	StateBetting  = "betting"
	StatePlaying  = "playing"
	StateFinished = "finished"
)

// MaxBettors - at most three bettors share a table with the dealer.
const MaxBettors = 3

// Room is one game session. It is the unit of serialization: every
// action addressed to the room code must run under Lock so no two
// actions for the same room ever interleave.
type Room struct {
	Code     string
	Players  []*Player
	DealerID string

	DealerOnline bool
	DealerHand   []Card
	Deck         *Deck
	State        string

	BettingDeadline time.Time

	// turn order is fixed at deal time; disconnected players are
	// skipped, not removed, so the cursor stays stable
	TurnOrder []*Player
	TurnIndex int

	bettingTimer *time.Timer
	graceTimer   *time.Timer

	mu sync.Mutex
}

func NewRoom(code string) *Room {
	return &Room{
		Code:      code,
		State:     StateWaiting,
		TurnIndex: -1,
	}
}

func (that *Room) Lock()   { that.mu.Lock() }
func (that *Room) Unlock() { that.mu.Unlock() }

func (that *Room) IsWaiting() bool  { return that.State == StateWaiting }
func (that *Room) IsBetting() bool  { return that.State == StateBetting }
func (that *Room) IsPlaying() bool  { return that.State == StatePlaying }
func (that *Room) IsFinished() bool { return that.State == StateFinished }

// FindPlayerByID - looks a player up by connection id.
func (that *Room) FindPlayerByID(id string) *Player {
	for _, player := range that.Players {
		if player.ID == id {
			return player
		}
	}
	return nil
}

// FindDisconnectedByName - matches a reconnecting player: same display
// name and marked disconnected. Name collisions can hijack a seat; this
// is a known weakness of name-based matching.
func (that *Room) FindDisconnectedByName(name string) *Player {
	for _, player := range that.Players {
		if !player.Connected && player.Name == name {
			return player
		}
	}
	return nil
}

// ConfirmedBettors - the stable sub-sequence of seated players with a
// confirmed positive bet, in seating order.
func (that *Room) ConfirmedBettors() []*Player {
	bettors := make([]*Player, 0, len(that.Players))
	for _, player := range that.Players {
		if player.HasConfirmedBet() {
			bettors = append(bettors, player)
		}
	}
	return bettors
}

// AllBetsConfirmed - reports whether every connected seated player has
// confirmed. Disconnected players do not block the hand.
func (that *Room) AllBetsConfirmed() bool {
	seated := 0
	for _, player := range that.Players {
		if !player.Connected {
			continue
		}
		seated++
		if !player.BetConfirmed {
			return false
		}
	}
	return seated > 0
}

// CurrentTurn - the player owning the cursor, or nil once control has
// passed to the dealer (or before cards are dealt).
func (that *Room) CurrentTurn() *Player {
	if that.TurnIndex < 0 || that.TurnIndex >= len(that.TurnOrder) {
		return nil
	}
	return that.TurnOrder[that.TurnIndex]
}

// AdvanceTurn - moves the cursor forward, skipping disconnected
// players, and returns the next turn owner. A nil result means control
// has reached the dealer seat.
func (that *Room) AdvanceTurn() *Player {
	that.TurnIndex++
	for that.TurnIndex < len(that.TurnOrder) && !that.TurnOrder[that.TurnIndex].Connected {
		that.TurnIndex++
	}
	return that.CurrentTurn()
}

// IsDealerTurn - true while cards are on the table and every bettor
// has finished their turn.
func (that *Room) IsDealerTurn() bool {
	return len(that.DealerHand) > 0 && that.TurnIndex >= len(that.TurnOrder)
}

// RemovePlayer - takes a player out of the seating list. The turn order
// keeps its pointer; a removed player is always disconnected and is
// therefore skipped by AdvanceTurn.
func (that *Room) RemovePlayer(id string) *Player {
	for i, player := range that.Players {
		if player.ID == id {
			that.Players = append(that.Players[:i], that.Players[i+1:]...)
			return player
		}
	}
	return nil
}

// ResetHand - clears hands and bets and installs a fresh deck. Balances
// are kept: the initial stake is granted once, at join time.
func (that *Room) ResetHand(deck *Deck) {
	for _, player := range that.Players {
		player.Bet = 0
		player.BetConfirmed = false
		player.Hand = nil
	}

	that.DealerHand = nil
	that.TurnOrder = nil
	that.TurnIndex = -1
	that.Deck = deck
	that.State = StateWaiting
	that.BettingDeadline = time.Time{}
	that.StopBettingTimer()
}

// SetBettingTimer - installs the betting-deadline timer, replacing any
// previous one.
func (that *Room) SetBettingTimer(timer *time.Timer) {
	that.StopBettingTimer()
	that.bettingTimer = timer
}

func (that *Room) StopBettingTimer() {
	if that.bettingTimer != nil {
		that.bettingTimer.Stop()
		that.bettingTimer = nil
	}
}

// SetGraceTimer - installs the dealer-disconnect grace timer, replacing
// any previous one.
func (that *Room) SetGraceTimer(timer *time.Timer) {
	that.StopGraceTimer()
	that.graceTimer = timer
}

func (that *Room) StopGraceTimer() {
	if that.graceTimer != nil {
		that.graceTimer.Stop()
		that.graceTimer = nil
	}
}

// StopTimers - cancels both room timers; called on teardown.
func (that *Room) StopTimers() {
	that.StopBettingTimer()
	that.StopGraceTimer()
}
