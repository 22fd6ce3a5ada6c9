package protocol

import (
	"encoding/json"
	"fmt"
)

// Message is the wire envelope for every inbound and outbound event.
type Message struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// client -> server actions
const (
	ActionJoinRoom     = "joinRoom"
	ActionPlaceBet     = "placeBet"
	ActionConfirmBet   = "confirmBet"
	ActionCancelBet    = "cancelBet"
	ActionStartBetting = "startBetting"
	ActionDealCards    = "dealCards"
	ActionHit          = "hit"
	ActionStand        = "stand"
	ActionDealerReveal = "dealerRevealCard"
	ActionDealerHit    = "dealerHit"
	ActionDealerStand  = "dealerStand"
	ActionResetGame    = "resetGame"
	ActionDealerExit   = "dealerExit"
)

// server -> client actions
const (
	ActionUpdatePlayerList   = "updatePlayerList"
	ActionGameStateUpdate    = "gameStateUpdate"
	ActionReconnectState     = "reconnectState"
	ActionBetUpdated         = "betUpdated"
	ActionBetError           = "betError"
	ActionPlayerBetConfirmed = "playerBetConfirmed"
	ActionBettingStarted     = "bettingStarted"
	ActionBettingClosed      = "bettingClosed"
	ActionBetCancelled       = "betCancelled"
	ActionCardsDealt         = "cardsDealt"
	ActionTurnUpdate         = "turnUpdate"
	ActionPlayerCardUpdate   = "playerCardUpdate"
	ActionPlayerBust         = "playerBust"
	ActionPlayerStood        = "playerStood"
	ActionDealerTurn         = "dealerTurn"
	ActionRevealDealerCard   = "revealDealerCard"
	ActionDealerCardUpdate   = "dealerCardUpdate"
	ActionGameResults        = "gameResults"
	ActionGameReset          = "gameReset"
	ActionDealerDisconnected = "dealerDisconnected"
	ActionError              = "error"
)

// NewMessage - wraps a payload into the wire envelope.
func NewMessage(action string, payload any) (*Message, error) {
	if payload == nil {
		return &Message{Action: action}, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", action, err)
	}

	return &Message{Action: action, Payload: raw}, nil
}

// MustNewMessage - NewMessage for payloads that cannot fail to marshal.
func MustNewMessage(action string, payload any) *Message {
	msg, err := NewMessage(action, payload)
	if err != nil {
		panic(err)
	}
	return msg
}

// Encode - serializes the whole envelope for the wire.
func (that *Message) Encode() ([]byte, error) {
	data, err := json.Marshal(that)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}

	return data, nil
}
