package protocol

import (
	"github.com/rocketscienceinc/blackjack-backend/internal/blackjack"
	"github.com/rocketscienceinc/blackjack-backend/internal/entity"
)

// client -> server payloads

type JoinRoomPayload struct {
	RoomCode   string `json:"roomCode"`
	PlayerName string `json:"playerName,omitempty"`
}

type PlaceBetPayload struct {
	Bet int `json:"bet"`
}

type StartBettingPayload struct {
	DurationMS int `json:"duration,omitempty"`
}

// server -> client payloads

type BettingConfig struct {
	MinBet         int `json:"minBet"`
	MaxBet         int `json:"maxBet"`
	InitialBalance int `json:"initialBalance"`
}

type GameStatePayload struct {
	State         string         `json:"state"`
	BettingConfig *BettingConfig `json:"bettingConfig,omitempty"`
}

type PlayerListPayload struct {
	Players []*entity.Player `json:"players"`
}

// ReconnectStatePayload restores a rejoining player's session: the same
// hand, bet, balance and confirmation flag they held before dropping.
type ReconnectStatePayload struct {
	State        string        `json:"state"`
	Hand         []entity.Card `json:"hand,omitempty"`
	Bet          int           `json:"bet"`
	BetConfirmed bool          `json:"betConfirmed"`
	Balance      int           `json:"balance"`
}

type BetUpdatedPayload struct {
	Bet int `json:"bet"`
}

type BetErrorPayload struct {
	Errors []string `json:"errors"`
}

type BetConfirmedPayload struct {
	PlayerID         string `json:"playerId"`
	PlayerName       string `json:"playerName"`
	Bet              int    `json:"bet"`
	RemainingBalance int    `json:"remainingBalance"`
}

type BettingStartedPayload struct {
	DurationMS int   `json:"duration"`
	Deadline   int64 `json:"deadline"`
}

type PlayerHand struct {
	ID   string        `json:"id"`
	Hand []entity.Card `json:"hand"`
}

// CardsDealtPayload carries every player hand plus the dealer hand. The
// dealer receives the true hand; everyone else gets the hole card
// replaced by a hidden placeholder.
type CardsDealtPayload struct {
	Players []PlayerHand  `json:"players"`
	Dealer  []entity.Card `json:"dealer"`
}

type TurnUpdatePayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
}

type PlayerCardUpdatePayload struct {
	PlayerID string        `json:"playerId"`
	NewCard  entity.Card   `json:"newCard"`
	Hand     []entity.Card `json:"hand"`
}

type PlayerBustPayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Score      int    `json:"score"`
}

type PlayerStoodPayload struct {
	PlayerID   string `json:"playerId"`
	PlayerName string `json:"playerName"`
	Score      int    `json:"score"`
}

type DealerHandPayload struct {
	DealerHand []entity.Card `json:"dealerHand"`
}

type DealerCardUpdatePayload struct {
	NewCard    entity.Card   `json:"newCard"`
	DealerHand []entity.Card `json:"dealerHand"`
	Score      int           `json:"score"`
}

type GameResultsPayload struct {
	Results     []blackjack.Result `json:"results"`
	DealerScore int                `json:"dealerScore"`
}

type DealerDisconnectedPayload struct {
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}
