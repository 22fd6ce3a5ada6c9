package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rocketscienceinc/blackjack-backend/internal/apperror"
	"github.com/rocketscienceinc/blackjack-backend/internal/blackjack"
	"github.com/rocketscienceinc/blackjack-backend/internal/config"
	"github.com/rocketscienceinc/blackjack-backend/internal/entity"
	"github.com/rocketscienceinc/blackjack-backend/internal/protocol"
	"github.com/rocketscienceinc/blackjack-backend/internal/repository"
)

const mirrorTimeout = 5 * time.Second

type lobbyRepo interface {
	Create(ctx context.Context, code, dealer string) (*repository.Table, error)
	IncrementSeats(ctx context.Context, code string) (*repository.Table, error)
	DecrementSeats(ctx context.Context, code string) (*repository.Table, error)
	MarkFinished(ctx context.Context, code string) error
}

// Notifier fans outbound events to the participants of a room. ToRoom
// broadcasts, ToConn unicasts; ToRoomExcept covers the asymmetric case
// where the dealer sees the true hole card and everyone else a
// placeholder.
type Notifier interface {
	ToRoom(roomCode string, msg *protocol.Message)
	ToRoomExcept(roomCode, exceptConnID string, msg *protocol.Message)
	ToConn(connID string, msg *protocol.Message)
}

// RoomManager owns the room table and runs every session through its
// lifecycle: waiting -> betting -> playing -> finished -> waiting. Each
// room serializes its own actions under the room lock; the manager lock
// only guards the code -> room map.
type RoomManager struct {
	logger   *slog.Logger
	conf     config.Game
	lobby    lobbyRepo
	notifier Notifier

	rooms map[string]*entity.Room
	mu    sync.RWMutex
}

func NewRoomManager(logger *slog.Logger, conf config.Game, lobby lobbyRepo) *RoomManager {
	return &RoomManager{
		logger: logger.With("component", "rooms"),
		conf:   conf,
		lobby:  lobby,
		rooms:  make(map[string]*entity.Room),
	}
}

// AttachNotifier - must be called before any traffic is served; the
// transport and the manager reference each other, so the notifier is
// attached after construction.
func (that *RoomManager) AttachNotifier(notifier Notifier) {
	that.notifier = notifier
}

// JoinRoom - seats a participant in the room, creating the room on the
// first join to a code. An empty player name claims the dealer seat; a
// name matching a disconnected player reattaches that player's session
// to the new connection id.
func (that *RoomManager) JoinRoom(connID, roomCode, playerName string) error {
	room, created := that.getOrCreateRoom(roomCode)

	room.Lock()
	defer room.Unlock()

	if created {
		dealer := playerName
		if dealer == "" {
			dealer = "Dealer"
		}
		that.mirror("create", func(ctx context.Context) error {
			_, err := that.lobby.Create(ctx, roomCode, dealer)
			return err
		})
	}

	if playerName == "" {
		return that.joinDealerLocked(room, connID)
	}

	return that.joinPlayerLocked(room, connID, playerName, created)
}

func (that *RoomManager) joinDealerLocked(room *entity.Room, connID string) error {
	log := that.logger.With("method", "joinDealer")

	switch {
	case room.DealerID == "":
		room.DealerID = connID
		room.DealerOnline = true
		log.Info("dealer seated", "room", room.Code)
	case !room.DealerOnline:
		// the dealer came back inside the grace window
		room.DealerID = connID
		room.DealerOnline = true
		room.StopGraceTimer()
		log.Info("dealer reconnected", "room", room.Code)

		that.notifier.ToConn(connID, protocol.MustNewMessage(protocol.ActionReconnectState, protocol.ReconnectStatePayload{
			State: room.State,
			Hand:  revealedCopy(room.DealerHand),
		}))
	default:
		return fmt.Errorf("%w: dealer seat is taken", apperror.ErrRoomFull)
	}

	that.broadcastRoomStateLocked(room)

	return nil
}

func (that *RoomManager) joinPlayerLocked(room *entity.Room, connID, playerName string, roomJustCreated bool) error {
	log := that.logger.With("method", "joinPlayer")

	if player := room.FindDisconnectedByName(playerName); player != nil {
		player.ID = connID
		player.Connected = true
		player.DisconnectedAt = time.Time{}
		log.Info("player reconnected", "room", room.Code, "player", playerName)

		that.notifier.ToConn(connID, protocol.MustNewMessage(protocol.ActionReconnectState, protocol.ReconnectStatePayload{
			State:        room.State,
			Hand:         player.Hand,
			Bet:          player.Bet,
			BetConfirmed: player.BetConfirmed,
			Balance:      player.Balance,
		}))

		// the disconnect released this seat in the mirror; take it back
		that.mirror("increment seats", func(ctx context.Context) error {
			_, err := that.lobby.IncrementSeats(ctx, room.Code)
			return err
		})

		that.broadcastRoomStateLocked(room)
		return nil
	}

	if len(room.Players) >= entity.MaxBettors {
		return fmt.Errorf("%w: room %s", apperror.ErrRoomFull, room.Code)
	}

	room.Players = append(room.Players, &entity.Player{
		ID:        connID,
		Name:      playerName,
		Balance:   that.conf.InitialBalance,
		Connected: true,
	})
	log.Info("player seated", "room", room.Code, "player", playerName)

	// the mirror create already counted the creator's seat
	if !roomJustCreated {
		that.mirror("increment seats", func(ctx context.Context) error {
			_, err := that.lobby.IncrementSeats(ctx, room.Code)
			return err
		})
	}

	that.broadcastRoomStateLocked(room)

	return nil
}

// PlaceBet - records an unconfirmed bet during the betting window.
func (that *RoomManager) PlaceBet(roomCode, connID string, amount int) error {
	room, err := that.getRoom(roomCode)
	if err != nil {
		return err
	}

	room.Lock()
	defer room.Unlock()

	if !room.IsBetting() {
		return fmt.Errorf("%w: bets are closed", apperror.ErrWrongPhase)
	}

	player := room.FindPlayerByID(connID)
	if player == nil {
		return apperror.ErrPlayerNotFound
	}

	if player.BetConfirmed {
		return apperror.ErrBetAlreadyConfirmed
	}

	if err = that.validateBet(amount, player); err != nil {
		return err
	}

	player.Bet = amount

	that.notifier.ToRoom(room.Code, playerListMessage(room))
	that.notifier.ToConn(connID, protocol.MustNewMessage(protocol.ActionBetUpdated, protocol.BetUpdatedPayload{Bet: player.Bet}))

	return nil
}

// ConfirmBet - re-validates and atomically confirms the bet, debiting
// the balance exactly once. The debit is only ever reversed through the
// settlement payout.
func (that *RoomManager) ConfirmBet(roomCode, connID string) error {
	room, err := that.getRoom(roomCode)
	if err != nil {
		return err
	}

	room.Lock()
	defer room.Unlock()

	if !room.IsBetting() {
		return fmt.Errorf("%w: bets are closed", apperror.ErrWrongPhase)
	}

	player := room.FindPlayerByID(connID)
	if player == nil {
		return apperror.ErrPlayerNotFound
	}

	if player.BetConfirmed {
		return apperror.ErrBetAlreadyConfirmed
	}

	if err = that.validateBet(player.Bet, player); err != nil {
		return err
	}

	player.BetConfirmed = true
	player.Balance -= player.Bet

	that.notifier.ToRoom(room.Code, playerListMessage(room))
	that.notifier.ToRoom(room.Code, protocol.MustNewMessage(protocol.ActionPlayerBetConfirmed, protocol.BetConfirmedPayload{
		PlayerID:         player.ID,
		PlayerName:       player.Name,
		Bet:              player.Bet,
		RemainingBalance: player.Balance,
	}))

	if room.AllBetsConfirmed() {
		that.closeBettingLocked(room)
	}

	return nil
}

// CancelBet - zeroes a pending bet; only legal before confirmation.
func (that *RoomManager) CancelBet(roomCode, connID string) error {
	room, err := that.getRoom(roomCode)
	if err != nil {
		return err
	}

	room.Lock()
	defer room.Unlock()

	if !room.IsBetting() {
		return fmt.Errorf("%w: bets are closed", apperror.ErrWrongPhase)
	}

	player := room.FindPlayerByID(connID)
	if player == nil {
		return apperror.ErrPlayerNotFound
	}

	if player.BetConfirmed {
		return apperror.ErrBetAlreadyConfirmed
	}

	player.Bet = 0

	that.notifier.ToRoom(room.Code, playerListMessage(room))
	that.notifier.ToConn(connID, protocol.MustNewMessage(protocol.ActionBetCancelled, nil))

	return nil
}

// StartBetting - opens the betting window with a deadline timer. The
// timer is canceled when every player confirms early.
func (that *RoomManager) StartBetting(roomCode, connID string, durationMS int) error {
	room, err := that.getRoom(roomCode)
	if err != nil {
		return err
	}

	room.Lock()
	defer room.Unlock()

	if connID != room.DealerID {
		return apperror.ErrNotDealer
	}

	duration := that.conf.BettingDuration()
	if durationMS > 0 {
		duration = time.Duration(durationMS) * time.Millisecond
	}

	room.State = entity.StateBetting
	room.BettingDeadline = time.Now().Add(duration)
	room.SetBettingTimer(time.AfterFunc(duration, func() {
		that.closeBettingByDeadline(roomCode)
	}))

	that.notifier.ToRoom(room.Code, stateMessage(room.State))
	that.notifier.ToRoom(room.Code, protocol.MustNewMessage(protocol.ActionBettingStarted, protocol.BettingStartedPayload{
		DurationMS: int(duration / time.Millisecond),
		Deadline:   room.BettingDeadline.UnixMilli(),
	}))

	return nil
}

// closeBettingByDeadline - the deadline timer callback. State is
// re-checked under the room lock so a stale timer that lost the race
// with an early close is a no-op.
func (that *RoomManager) closeBettingByDeadline(roomCode string) {
	room, err := that.getRoom(roomCode)
	if err != nil {
		return
	}

	room.Lock()
	defer room.Unlock()

	if !room.IsBetting() {
		return
	}

	that.logger.Info("betting deadline reached", "room", room.Code)
	that.closeBettingLocked(room)
}

func (that *RoomManager) closeBettingLocked(room *entity.Room) {
	room.StopBettingTimer()
	room.State = entity.StatePlaying

	that.notifier.ToRoom(room.Code, protocol.MustNewMessage(protocol.ActionBettingClosed, nil))
	that.notifier.ToRoom(room.Code, stateMessage(room.State))
}

// DealCards - deals the opening two rounds: one card to every bettor
// and the dealer per round, the dealer's second card face down. The
// dealer receives the true hand; the rest of the room a masked copy.
func (that *RoomManager) DealCards(roomCode, connID string) error {
	room, err := that.getRoom(roomCode)
	if err != nil {
		return err
	}

	room.Lock()
	defer room.Unlock()

	if connID != room.DealerID {
		return apperror.ErrNotDealer
	}

	if !room.IsPlaying() {
		return fmt.Errorf("%w: cards can only be dealt while playing", apperror.ErrWrongPhase)
	}

	if len(room.DealerHand) > 0 {
		return apperror.ErrCardsAlreadyDealt
	}

	for _, player := range room.Players {
		if player.Connected && !player.BetConfirmed {
			return apperror.ErrBetsNotConfirmed
		}
	}

	bettors := make([]*entity.Player, 0, len(room.Players))
	for _, player := range room.Players {
		player.Hand = nil
		if player.Connected && player.HasConfirmedBet() {
			bettors = append(bettors, player)
		}
	}

	for round := 0; round < 2; round++ {
		for _, player := range bettors {
			card, drawErr := room.Deck.Draw()
			if drawErr != nil {
				return fmt.Errorf("failed to deal to %s: %w", player.Name, drawErr)
			}
			player.Hand = append(player.Hand, card)
		}

		card, drawErr := room.Deck.Draw()
		if drawErr != nil {
			return fmt.Errorf("failed to deal to the dealer: %w", drawErr)
		}
		card.Hidden = round == 1 // the hole card stays down until reveal
		room.DealerHand = append(room.DealerHand, card)
	}

	room.TurnOrder = bettors
	room.TurnIndex = 0

	hands := make([]protocol.PlayerHand, 0, len(room.Players))
	for _, player := range room.Players {
		hands = append(hands, protocol.PlayerHand{ID: player.ID, Hand: player.Hand})
	}

	masked := []entity.Card{room.DealerHand[0], {Hidden: true}}
	that.notifier.ToRoomExcept(room.Code, room.DealerID, protocol.MustNewMessage(protocol.ActionCardsDealt, protocol.CardsDealtPayload{
		Players: hands,
		Dealer:  masked,
	}))
	that.notifier.ToConn(room.DealerID, protocol.MustNewMessage(protocol.ActionCardsDealt, protocol.CardsDealtPayload{
		Players: hands,
		Dealer:  revealedCopy(room.DealerHand),
	}))

	if len(bettors) > 0 {
		that.notifier.ToRoom(room.Code, protocol.MustNewMessage(protocol.ActionTurnUpdate, protocol.TurnUpdatePayload{
			PlayerID:   bettors[0].ID,
			PlayerName: bettors[0].Name,
		}))
	} else {
		that.notifier.ToRoom(room.Code, protocol.MustNewMessage(protocol.ActionDealerTurn, nil))
	}

	return nil
}

// Hit - draws one card for the turn owner; a bust advances the turn
// automatically.
func (that *RoomManager) Hit(roomCode, connID string) error {
	room, err := that.getRoom(roomCode)
	if err != nil {
		return err
	}

	room.Lock()
	defer room.Unlock()

	if !room.IsPlaying() {
		return fmt.Errorf("%w: the hand is not in play", apperror.ErrWrongPhase)
	}

	player := room.CurrentTurn()
	if player == nil || player.ID != connID {
		return apperror.ErrNotYourTurn
	}

	card, err := room.Deck.Draw()
	if err != nil {
		// an exhausted deck ends the player's turn, not the process
		that.advanceTurnLocked(room)
		return fmt.Errorf("failed to draw: %w", err)
	}

	player.Hand = append(player.Hand, card)
	score := blackjack.HandValue(player.Hand, that.conf.BustThreshold)

	that.notifier.ToRoom(room.Code, protocol.MustNewMessage(protocol.ActionPlayerCardUpdate, protocol.PlayerCardUpdatePayload{
		PlayerID: player.ID,
		NewCard:  card,
		Hand:     player.Hand,
	}))

	if score > that.conf.BustThreshold {
		that.notifier.ToRoom(room.Code, protocol.MustNewMessage(protocol.ActionPlayerBust, protocol.PlayerBustPayload{
			PlayerID:   player.ID,
			PlayerName: player.Name,
			Score:      score,
		}))
		that.advanceTurnLocked(room)
	}

	return nil
}

// Stand - ends the turn owner's turn. A hand already over the threshold
// is reported as a bust through the normal bust path.
func (that *RoomManager) Stand(roomCode, connID string) error {
	room, err := that.getRoom(roomCode)
	if err != nil {
		return err
	}

	room.Lock()
	defer room.Unlock()

	if !room.IsPlaying() {
		return fmt.Errorf("%w: the hand is not in play", apperror.ErrWrongPhase)
	}

	player := room.CurrentTurn()
	if player == nil || player.ID != connID {
		return apperror.ErrNotYourTurn
	}

	score := blackjack.HandValue(player.Hand, that.conf.BustThreshold)
	if score > that.conf.BustThreshold {
		that.notifier.ToRoom(room.Code, protocol.MustNewMessage(protocol.ActionPlayerBust, protocol.PlayerBustPayload{
			PlayerID:   player.ID,
			PlayerName: player.Name,
			Score:      score,
		}))
	} else {
		that.notifier.ToRoom(room.Code, protocol.MustNewMessage(protocol.ActionPlayerStood, protocol.PlayerStoodPayload{
			PlayerID:   player.ID,
			PlayerName: player.Name,
			Score:      score,
		}))
	}

	that.advanceTurnLocked(room)

	return nil
}

// advanceTurnLocked - moves the cursor and announces the next turn
// owner, handing off to the dealer seat past the last bettor. If no
// bettor can still beat the dealer the hand resolves immediately.
func (that *RoomManager) advanceTurnLocked(room *entity.Room) {
	next := room.AdvanceTurn()
	if next != nil {
		that.notifier.ToRoom(room.Code, protocol.MustNewMessage(protocol.ActionTurnUpdate, protocol.TurnUpdatePayload{
			PlayerID:   next.ID,
			PlayerName: next.Name,
		}))
		return
	}

	that.notifier.ToRoom(room.Code, protocol.MustNewMessage(protocol.ActionDealerTurn, nil))

	if that.allBettorsBusted(room) {
		that.revealDealerHandLocked(room)
		that.settleLocked(room)
	}
}

// DealerReveal - flips the hole card face up. The dealer is auto-stood
// when the revealed hand already meets the stand score.
func (that *RoomManager) DealerReveal(roomCode, connID string) error {
	room, err := that.getRoom(roomCode)
	if err != nil {
		return err
	}

	room.Lock()
	defer room.Unlock()

	if connID != room.DealerID {
		return apperror.ErrNotDealer
	}

	if !room.IsPlaying() {
		return fmt.Errorf("%w: the hand is not in play", apperror.ErrWrongPhase)
	}

	if !room.IsDealerTurn() {
		return apperror.ErrNotYourTurn
	}

	that.revealDealerHandLocked(room)

	score := blackjack.HandValue(room.DealerHand, that.conf.BustThreshold)
	if score >= that.conf.DealerStand || that.allBettorsBusted(room) {
		that.settleLocked(room)
	}

	return nil
}

// DealerHit - draws a card for the dealer seat. Reaching the stand
// score (or busting) resolves the hand.
func (that *RoomManager) DealerHit(roomCode, connID string) error {
	room, err := that.getRoom(roomCode)
	if err != nil {
		return err
	}

	room.Lock()
	defer room.Unlock()

	if connID != room.DealerID {
		return apperror.ErrNotDealer
	}

	if !room.IsPlaying() {
		return fmt.Errorf("%w: the hand is not in play", apperror.ErrWrongPhase)
	}

	if !room.IsDealerTurn() {
		return apperror.ErrNotYourTurn
	}

	if hasHiddenCard(room.DealerHand) {
		return apperror.ErrCardStillHidden
	}

	card, err := room.Deck.Draw()
	if err != nil {
		// nothing left to draw; resolve with what is on the table
		that.settleLocked(room)
		return fmt.Errorf("failed to draw: %w", err)
	}

	room.DealerHand = append(room.DealerHand, card)
	score := blackjack.HandValue(room.DealerHand, that.conf.BustThreshold)

	that.notifier.ToRoom(room.Code, protocol.MustNewMessage(protocol.ActionDealerCardUpdate, protocol.DealerCardUpdatePayload{
		NewCard:    card,
		DealerHand: room.DealerHand,
		Score:      score,
	}))

	if score >= that.conf.DealerStand || that.allBettorsBusted(room) {
		that.settleLocked(room)
	}

	return nil
}

// DealerStand - resolves the hand against every confirmed bettor.
func (that *RoomManager) DealerStand(roomCode, connID string) error {
	room, err := that.getRoom(roomCode)
	if err != nil {
		return err
	}

	room.Lock()
	defer room.Unlock()

	if connID != room.DealerID {
		return apperror.ErrNotDealer
	}

	if !room.IsPlaying() {
		return fmt.Errorf("%w: the hand is not in play", apperror.ErrWrongPhase)
	}

	if !room.IsDealerTurn() {
		return apperror.ErrNotYourTurn
	}

	if hasHiddenCard(room.DealerHand) {
		return apperror.ErrCardStillHidden
	}

	that.settleLocked(room)

	return nil
}

func (that *RoomManager) revealDealerHandLocked(room *entity.Room) {
	for i := range room.DealerHand {
		room.DealerHand[i].Hidden = false
	}

	that.notifier.ToRoom(room.Code, protocol.MustNewMessage(protocol.ActionRevealDealerCard, protocol.DealerHandPayload{
		DealerHand: room.DealerHand,
	}))
}

// settleLocked - runs the payout table over every connected confirmed
// bettor and closes the hand. A confirmed bet of a player who dropped
// mid-hand is forfeited, not refunded.
func (that *RoomManager) settleLocked(room *entity.Room) {
	bettors := make([]*entity.Player, 0, len(room.TurnOrder))
	for _, player := range room.TurnOrder {
		if player.Connected {
			bettors = append(bettors, player)
		}
	}

	results, dealerScore := blackjack.Settle(room.DealerHand, bettors, that.conf.BustThreshold)
	room.State = entity.StateFinished

	that.logger.Info("hand settled", "room", room.Code, "dealerScore", dealerScore, "players", len(results))

	that.notifier.ToRoom(room.Code, protocol.MustNewMessage(protocol.ActionGameResults, protocol.GameResultsPayload{
		Results:     results,
		DealerScore: dealerScore,
	}))
	that.notifier.ToRoom(room.Code, stateMessage(room.State))
}

// ResetGame - returns the room to the waiting state with cleared hands,
// cleared bets and a freshly shuffled deck. Balances persist across
// hands; the initial stake is granted once at join time.
func (that *RoomManager) ResetGame(roomCode, connID string) error {
	room, err := that.getRoom(roomCode)
	if err != nil {
		return err
	}

	room.Lock()
	defer room.Unlock()

	if connID != room.DealerID {
		return apperror.ErrNotDealer
	}

	deck := entity.NewDeck(that.conf.PenaltyCards)
	deck.Shuffle()
	room.ResetHand(deck)

	that.logger.Info("game reset", "room", room.Code)

	that.notifier.ToRoom(room.Code, protocol.MustNewMessage(protocol.ActionGameReset, nil))
	that.notifier.ToRoom(room.Code, playerListMessage(room))
	that.notifier.ToRoom(room.Code, stateMessage(room.State))

	return nil
}

// DealerExit - an intentional exit skips the grace period: the room is
// torn down at once. Removing the room here also makes the generic
// disconnect handler a no-op for the same connection.
func (that *RoomManager) DealerExit(roomCode, connID string) error {
	room, err := that.getRoom(roomCode)
	if err != nil {
		return err
	}

	room.Lock()
	defer room.Unlock()

	if connID != room.DealerID {
		return apperror.ErrNotDealer
	}

	that.teardownLocked(room, "dealer closed the table")

	return nil
}

// Disconnect - handles a dropped connection. A player keeps their seat
// but leaves the turn-eligible set; the dealer gets a grace window to
// reclaim the room before it is torn down.
func (that *RoomManager) Disconnect(roomCode, connID string) {
	log := that.logger.With("method", "disconnect")

	room, err := that.getRoom(roomCode)
	if err != nil {
		return // room already torn down
	}

	room.Lock()
	defer room.Unlock()

	if connID == room.DealerID && room.DealerOnline {
		room.DealerOnline = false
		room.SetGraceTimer(time.AfterFunc(that.conf.DealerGraceDuration(), func() {
			that.expireDealerGrace(roomCode)
		}))
		log.Info("dealer disconnected, grace period started", "room", room.Code)
		return
	}

	player := room.FindPlayerByID(connID)
	if player == nil {
		return
	}

	player.Connected = false
	player.DisconnectedAt = time.Now()

	if player.HasConfirmedBet() {
		log.Info("player dropped with a confirmed bet, bet is forfeited",
			"room", room.Code, "player", player.Name, "bet", player.Bet)
	}

	if current := room.CurrentTurn(); current != nil && current.ID == connID {
		that.advanceTurnLocked(room)
	} else if room.IsBetting() && room.AllBetsConfirmed() {
		that.closeBettingLocked(room)
	}

	that.notifier.ToRoom(room.Code, playerListMessage(room))

	that.mirror("decrement seats", func(ctx context.Context) error {
		_, err := that.lobby.DecrementSeats(ctx, room.Code)
		return err
	})
}

// expireDealerGrace - the grace timer callback. Re-checks the dealer
// seat under the room lock so a reconnect that raced the timer wins.
func (that *RoomManager) expireDealerGrace(roomCode string) {
	room, err := that.getRoom(roomCode)
	if err != nil {
		return
	}

	room.Lock()
	defer room.Unlock()

	if room.DealerOnline {
		return
	}

	that.logger.Info("dealer grace period expired", "room", room.Code)
	that.teardownLocked(room, "dealer did not return")
}

func (that *RoomManager) teardownLocked(room *entity.Room, reason string) {
	room.StopTimers()

	that.notifier.ToRoom(room.Code, protocol.MustNewMessage(protocol.ActionDealerDisconnected, protocol.DealerDisconnectedPayload{
		Reason: reason,
	}))

	that.removeRoom(room.Code)
	that.logger.Info("room destroyed", "room", room.Code, "reason", reason)

	that.mirror("mark finished", func(ctx context.Context) error {
		return that.lobby.MarkFinished(ctx, room.Code)
	})
}

// StartSweep - runs the periodic purge of players who stayed
// disconnected past the configured bound, independent of the dealer
// grace timer.
func (that *RoomManager) StartSweep(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(that.conf.SweepInterval())
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				that.sweep()
			}
		}
	}()
}

func (that *RoomManager) sweep() {
	log := that.logger.With("method", "sweep")

	that.mu.RLock()
	rooms := make([]*entity.Room, 0, len(that.rooms))
	for _, room := range that.rooms {
		rooms = append(rooms, room)
	}
	that.mu.RUnlock()

	bound := that.conf.DisconnectDuration()
	now := time.Now()

	for _, room := range rooms {
		room.Lock()

		stale := make([]*entity.Player, 0)
		for _, player := range room.Players {
			if !player.Connected && now.Sub(player.DisconnectedAt) > bound {
				stale = append(stale, player)
			}
		}

		for _, player := range stale {
			room.RemovePlayer(player.ID)
			log.Info("purged disconnected player", "room", room.Code, "player", player.Name)
		}

		if len(stale) > 0 {
			that.notifier.ToRoom(room.Code, playerListMessage(room))
		}

		// a room with no dealer seat and no players left has nobody
		// to come back to it
		if len(room.Players) == 0 && room.DealerID == "" {
			room.StopTimers()
			that.removeRoom(room.Code)
			log.Info("removed empty room", "room", room.Code)
		}

		room.Unlock()
	}
}

// Room - looks a room up by code; used by tests and diagnostics.
func (that *RoomManager) Room(code string) (*entity.Room, error) {
	return that.getRoom(code)
}

func (that *RoomManager) getRoom(code string) (*entity.Room, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	room, ok := that.rooms[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", apperror.ErrRoomNotFound, code)
	}

	return room, nil
}

func (that *RoomManager) getOrCreateRoom(code string) (*entity.Room, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if room, ok := that.rooms[code]; ok {
		return room, false
	}

	room := entity.NewRoom(code)
	deck := entity.NewDeck(that.conf.PenaltyCards)
	deck.Shuffle()
	room.Deck = deck

	that.rooms[code] = room
	that.logger.Info("room created", "room", code, "deckSize", deck.Len())

	return room, true
}

func (that *RoomManager) removeRoom(code string) {
	that.mu.Lock()
	defer that.mu.Unlock()
	delete(that.rooms, code)
}

func (that *RoomManager) validateBet(amount int, player *entity.Player) error {
	switch {
	case amount <= 0:
		return apperror.ErrInvalidBetAmount
	case amount < that.conf.MinBet:
		return apperror.ErrBetBelowMinimum
	case amount > that.conf.MaxBet:
		return apperror.ErrBetAboveMaximum
	case amount > player.Balance:
		return apperror.ErrInsufficientBalance
	default:
		return nil
	}
}

// allBettorsBusted - true when no connected bettor can still beat the
// dealer; lets the dealer skip idle turns without changing outcomes.
func (that *RoomManager) allBettorsBusted(room *entity.Room) bool {
	for _, player := range room.TurnOrder {
		if player.Connected && !blackjack.IsBusted(player.Hand, that.conf.BustThreshold) {
			return false
		}
	}
	return true
}

// mirror - fire-and-forget lobby store update. The in-memory room is
// authoritative; a failed mirror write is logged and play continues.
func (that *RoomManager) mirror(op string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), mirrorTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			that.logger.Error("lobby mirror update failed", "op", op, "error", err)
		}
	}()
}

func (that *RoomManager) broadcastRoomStateLocked(room *entity.Room) {
	that.notifier.ToRoom(room.Code, playerListMessage(room))
	that.notifier.ToRoom(room.Code, protocol.MustNewMessage(protocol.ActionGameStateUpdate, protocol.GameStatePayload{
		State: room.State,
		BettingConfig: &protocol.BettingConfig{
			MinBet:         that.conf.MinBet,
			MaxBet:         that.conf.MaxBet,
			InitialBalance: that.conf.InitialBalance,
		},
	}))
}

func playerListMessage(room *entity.Room) *protocol.Message {
	return protocol.MustNewMessage(protocol.ActionUpdatePlayerList, protocol.PlayerListPayload{Players: room.Players})
}

func stateMessage(state string) *protocol.Message {
	return protocol.MustNewMessage(protocol.ActionGameStateUpdate, protocol.GameStatePayload{State: state})
}

func revealedCopy(hand []entity.Card) []entity.Card {
	revealed := make([]entity.Card, len(hand))
	for i, card := range hand {
		card.Hidden = false
		revealed[i] = card
	}
	return revealed
}

func hasHiddenCard(hand []entity.Card) bool {
	for _, card := range hand {
		if card.Hidden {
			return true
		}
	}
	return false
}
