package websocket

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/blackjack-backend/internal/apperror"
	"github.com/rocketscienceinc/blackjack-backend/internal/protocol"
)

// dispatch - routes one inbound message to its handler. A rejected
// action is reported only to its originator; positive events are
// emitted by the room manager through the notifier.
func (that *Server) dispatch(client *Client, msg *protocol.Message) {
	log := that.logger.With("method", "dispatch", "action", msg.Action, "connID", client.ID)

	handler, ok := that.handlers[msg.Action]
	if !ok {
		log.Error("unknown action")
		client.Send(protocol.NewErrorMessage(protocol.ErrCodeUnknown, fmt.Sprintf("unknown action: %s", msg.Action)))
		return
	}

	if err := handler(client, msg); err != nil {
		log.Error("action rejected", "error", err)
		client.Send(that.errorMessage(msg.Action, err))
	}
}

// errorMessage - maps a rejection to the wire. Bet validation failures
// go out as betError so the client can render them inline; everything
// else uses the generic error envelope.
func (that *Server) errorMessage(action string, err error) *protocol.Message {
	if isBetAction(action) && isBetValidation(err) {
		return protocol.MustNewMessage(protocol.ActionBetError, protocol.BetErrorPayload{
			Errors: []string{err.Error()},
		})
	}

	return protocol.NewErrorMessage(errorCode(err), err.Error())
}

func isBetAction(action string) bool {
	return action == protocol.ActionPlaceBet ||
		action == protocol.ActionConfirmBet ||
		action == protocol.ActionCancelBet
}

func isBetValidation(err error) bool {
	return errors.Is(err, apperror.ErrInvalidBetAmount) ||
		errors.Is(err, apperror.ErrBetBelowMinimum) ||
		errors.Is(err, apperror.ErrBetAboveMaximum) ||
		errors.Is(err, apperror.ErrInsufficientBalance) ||
		errors.Is(err, apperror.ErrBetAlreadyConfirmed)
}

func errorCode(err error) int {
	switch {
	case errors.Is(err, apperror.ErrRoomNotFound):
		return protocol.ErrCodeRoomNotFound
	case errors.Is(err, apperror.ErrRoomFull):
		return protocol.ErrCodeRoomFull
	case errors.Is(err, apperror.ErrNotDealer):
		return protocol.ErrCodeNotDealer
	case errors.Is(err, apperror.ErrNotYourTurn):
		return protocol.ErrCodeNotYourTurn
	case errors.Is(err, apperror.ErrWrongPhase),
		errors.Is(err, apperror.ErrCardsAlreadyDealt),
		errors.Is(err, apperror.ErrBetsNotConfirmed),
		errors.Is(err, apperror.ErrCardStillHidden),
		errors.Is(err, apperror.ErrPlayerNotFound):
		return protocol.ErrCodeWrongPhase
	case errors.Is(err, apperror.ErrInvalidBetAmount),
		errors.Is(err, apperror.ErrBetBelowMinimum),
		errors.Is(err, apperror.ErrBetAboveMaximum),
		errors.Is(err, apperror.ErrInsufficientBalance),
		errors.Is(err, apperror.ErrBetAlreadyConfirmed):
		return protocol.ErrCodeInvalidBet
	case errors.Is(err, apperror.ErrEmptyDeck):
		return protocol.ErrCodeEmptyDeck
	default:
		return protocol.ErrCodeUnknown
	}
}

func (that *Server) handleJoinRoom(client *Client, msg *protocol.Message) error {
	var payload protocol.JoinRoomPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	if payload.RoomCode == "" {
		return fmt.Errorf("%w: room code is required", apperror.ErrRoomNotFound)
	}

	if err := that.rooms.JoinRoom(client.ID, payload.RoomCode, payload.PlayerName); err != nil {
		return err
	}

	client.SetRoom(payload.RoomCode)

	return nil
}

func (that *Server) handlePlaceBet(client *Client, msg *protocol.Message) error {
	var payload protocol.PlaceBetPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	return that.rooms.PlaceBet(client.Room(), client.ID, payload.Bet)
}

func (that *Server) handleConfirmBet(client *Client, _ *protocol.Message) error {
	return that.rooms.ConfirmBet(client.Room(), client.ID)
}

func (that *Server) handleCancelBet(client *Client, _ *protocol.Message) error {
	return that.rooms.CancelBet(client.Room(), client.ID)
}

func (that *Server) handleStartBetting(client *Client, msg *protocol.Message) error {
	var payload protocol.StartBettingPayload
	if len(msg.Payload) > 0 {
		if err := json.Unmarshal(msg.Payload, &payload); err != nil {
			return fmt.Errorf("failed to unmarshal payload: %w", err)
		}
	}

	return that.rooms.StartBetting(client.Room(), client.ID, payload.DurationMS)
}

func (that *Server) handleDealCards(client *Client, _ *protocol.Message) error {
	return that.rooms.DealCards(client.Room(), client.ID)
}

func (that *Server) handleHit(client *Client, _ *protocol.Message) error {
	return that.rooms.Hit(client.Room(), client.ID)
}

func (that *Server) handleStand(client *Client, _ *protocol.Message) error {
	return that.rooms.Stand(client.Room(), client.ID)
}

func (that *Server) handleDealerReveal(client *Client, _ *protocol.Message) error {
	return that.rooms.DealerReveal(client.Room(), client.ID)
}

func (that *Server) handleDealerHit(client *Client, _ *protocol.Message) error {
	return that.rooms.DealerHit(client.Room(), client.ID)
}

func (that *Server) handleDealerStand(client *Client, _ *protocol.Message) error {
	return that.rooms.DealerStand(client.Room(), client.ID)
}

func (that *Server) handleResetGame(client *Client, _ *protocol.Message) error {
	return that.rooms.ResetGame(client.Room(), client.ID)
}

func (that *Server) handleDealerExit(client *Client, _ *protocol.Message) error {
	return that.rooms.DealerExit(client.Room(), client.ID)
}
