package apperror

import "errors"

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomFull     = errors.New("room is full")
	ErrNotDealer    = errors.New("only the dealer can do that")
	ErrNotYourTurn  = errors.New("it's not your turn")
	ErrWrongPhase   = errors.New("action is not allowed in the current game state")

	ErrInvalidBetAmount    = errors.New("bet must be a positive whole amount")
	ErrBetBelowMinimum     = errors.New("bet is below the table minimum")
	ErrBetAboveMaximum     = errors.New("bet is above the table maximum")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBetAlreadyConfirmed = errors.New("bet is already confirmed")

	ErrCardsAlreadyDealt = errors.New("cards have already been dealt")
	ErrBetsNotConfirmed  = errors.New("waiting for all players to confirm their bets")
	ErrCardStillHidden   = errors.New("the hole card has not been revealed yet")
	ErrEmptyDeck         = errors.New("no cards left in the deck")
	ErrPlayerNotFound    = errors.New("player not found in this room")
)
