package usecase

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/rocketscienceinc/blackjack-backend/internal/apperror"
	"github.com/rocketscienceinc/blackjack-backend/internal/blackjack"
	"github.com/rocketscienceinc/blackjack-backend/internal/config"
	"github.com/rocketscienceinc/blackjack-backend/internal/entity"
	"github.com/rocketscienceinc/blackjack-backend/internal/protocol"
	"github.com/rocketscienceinc/blackjack-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const roomCode = "100001"

type sentMessage struct {
	target string
	except string
	msg    *protocol.Message
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (that *fakeNotifier) ToRoom(roomCode string, msg *protocol.Message) {
	that.record(sentMessage{target: "room:" + roomCode, msg: msg})
}

func (that *fakeNotifier) ToRoomExcept(roomCode, exceptConnID string, msg *protocol.Message) {
	that.record(sentMessage{target: "room:" + roomCode, except: exceptConnID, msg: msg})
}

func (that *fakeNotifier) ToConn(connID string, msg *protocol.Message) {
	that.record(sentMessage{target: "conn:" + connID, msg: msg})
}

func (that *fakeNotifier) record(msg sentMessage) {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.sent = append(that.sent, msg)
}

// last - the most recent message with the given action, decoded into out.
func (that *fakeNotifier) last(t *testing.T, action string, out any) *sentMessage {
	t.Helper()

	that.mu.Lock()
	defer that.mu.Unlock()

	for i := len(that.sent) - 1; i >= 0; i-- {
		if that.sent[i].msg.Action != action {
			continue
		}
		if out != nil {
			require.NoError(t, json.Unmarshal(that.sent[i].msg.Payload, out))
		}
		return &that.sent[i]
	}

	t.Fatalf("no %s message was sent", action)
	return nil
}

func (that *fakeNotifier) count(action string) int {
	return len(that.all(action))
}

func (that *fakeNotifier) all(action string) []sentMessage {
	that.mu.Lock()
	defer that.mu.Unlock()

	matched := make([]sentMessage, 0)
	for _, msg := range that.sent {
		if msg.msg.Action == action {
			matched = append(matched, msg)
		}
	}
	return matched
}

type fakeLobby struct {
	mu         sync.Mutex
	created    int
	increments int
	decrements int
	finished   int
}

func (that *fakeLobby) Create(_ context.Context, code, dealer string) (*repository.Table, error) {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.created++
	return &repository.Table{Code: code, Dealer: dealer, State: repository.TableActive, Seats: 1}, nil
}

func (that *fakeLobby) IncrementSeats(_ context.Context, code string) (*repository.Table, error) {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.increments++
	return &repository.Table{Code: code}, nil
}

func (that *fakeLobby) DecrementSeats(_ context.Context, code string) (*repository.Table, error) {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.decrements++
	return &repository.Table{Code: code}, nil
}

func (that *fakeLobby) MarkFinished(_ context.Context, _ string) error {
	that.mu.Lock()
	defer that.mu.Unlock()
	that.finished++
	return nil
}

func (that *fakeLobby) counts() (int, int, int, int) {
	that.mu.Lock()
	defer that.mu.Unlock()
	return that.created, that.increments, that.decrements, that.finished
}

func newTestManager(t *testing.T) (*RoomManager, *fakeNotifier, *fakeLobby) {
	t.Helper()

	conf := config.Game{
		MinBet:             5,
		MaxBet:             100,
		InitialBalance:     100,
		BustThreshold:      21,
		DealerStand:        17,
		PenaltyCards:       false,
		BettingSeconds:     30,
		DealerGraceSeconds: 60,
		DisconnectSeconds:  120,
		SweepSeconds:       30,
	}

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	lobby := &fakeLobby{}
	manager := NewRoomManager(logger, conf, lobby)
	notifier := &fakeNotifier{}
	manager.AttachNotifier(notifier)

	return manager, notifier, lobby
}

func card(value string, points int) entity.Card {
	return entity.Card{Value: value, Points: points}
}

// stackDeck - replaces the room deck so draws come out in the given
// order (first listed is drawn first).
func stackDeck(t *testing.T, manager *RoomManager, drawOrder ...entity.Card) {
	t.Helper()

	room, err := manager.Room(roomCode)
	require.NoError(t, err)

	stacked := make([]entity.Card, len(drawOrder))
	for i, c := range drawOrder {
		stacked[len(drawOrder)-1-i] = c
	}

	room.Lock()
	room.Deck = entity.NewDeckFromCards(stacked)
	room.Unlock()
}

// seatTable - dealer plus named players, all joined.
func seatTable(t *testing.T, manager *RoomManager, players ...string) {
	t.Helper()

	require.NoError(t, manager.JoinRoom("dealer", roomCode, ""))
	for _, name := range players {
		require.NoError(t, manager.JoinRoom("conn-"+name, roomCode, name))
	}
}

// openBettingAndConfirm - starts betting and confirms the same bet for
// every player, which closes the window early.
func openBettingAndConfirm(t *testing.T, manager *RoomManager, bet int, players ...string) {
	t.Helper()

	require.NoError(t, manager.StartBetting(roomCode, "dealer", 0))
	for _, name := range players {
		require.NoError(t, manager.PlaceBet(roomCode, "conn-"+name, bet))
		require.NoError(t, manager.ConfirmBet(roomCode, "conn-"+name))
	}
}

func TestRoomManager_JoinRoom(t *testing.T) {
	t.Run("DealerCreatesRoom", func(t *testing.T) {
		manager, notifier, _ := newTestManager(t)

		// When: a connection with no name joins a fresh code
		require.NoError(t, manager.JoinRoom("dealer", roomCode, ""))

		// Then: the room exists in the waiting state with the dealer seated
		room, err := manager.Room(roomCode)
		require.NoError(t, err)
		assert.True(t, room.IsWaiting())
		assert.Equal(t, "dealer", room.DealerID)
		assert.True(t, room.DealerOnline)

		// Then: the room state and betting config are broadcast
		var state protocol.GameStatePayload
		notifier.last(t, protocol.ActionGameStateUpdate, &state)
		assert.Equal(t, entity.StateWaiting, state.State)
		require.NotNil(t, state.BettingConfig)
		assert.Equal(t, 5, state.BettingConfig.MinBet)
	})

	t.Run("SecondDealerRejected", func(t *testing.T) {
		manager, _, _ := newTestManager(t)
		require.NoError(t, manager.JoinRoom("dealer", roomCode, ""))

		err := manager.JoinRoom("impostor", roomCode, "")

		require.ErrorIs(t, err, apperror.ErrRoomFull)
	})

	t.Run("PlayerGetsInitialBalance", func(t *testing.T) {
		manager, _, _ := newTestManager(t)
		seatTable(t, manager, "alice")

		room, err := manager.Room(roomCode)
		require.NoError(t, err)
		require.Len(t, room.Players, 1)
		assert.Equal(t, 100, room.Players[0].Balance)
		assert.True(t, room.Players[0].Connected)
	})

	t.Run("RoomFull", func(t *testing.T) {
		manager, _, _ := newTestManager(t)
		seatTable(t, manager, "alice", "bob", "carol")

		err := manager.JoinRoom("conn-dave", roomCode, "dave")

		require.ErrorIs(t, err, apperror.ErrRoomFull)
	})
}

func TestRoomManager_Betting(t *testing.T) {
	t.Run("BetOutsideBettingPhase", func(t *testing.T) {
		manager, _, _ := newTestManager(t)
		seatTable(t, manager, "alice")

		err := manager.PlaceBet(roomCode, "conn-alice", 10)

		require.ErrorIs(t, err, apperror.ErrWrongPhase)
	})

	t.Run("BetValidation", func(t *testing.T) {
		manager, _, _ := newTestManager(t)
		seatTable(t, manager, "alice")
		require.NoError(t, manager.StartBetting(roomCode, "dealer", 0))

		require.ErrorIs(t, manager.PlaceBet(roomCode, "conn-alice", 0), apperror.ErrInvalidBetAmount)
		require.ErrorIs(t, manager.PlaceBet(roomCode, "conn-alice", 3), apperror.ErrBetBelowMinimum)
		require.ErrorIs(t, manager.PlaceBet(roomCode, "conn-alice", 500), apperror.ErrBetAboveMaximum)

		// balance is 100, max bet is 100: raise the bet over the balance
		room, err := manager.Room(roomCode)
		require.NoError(t, err)
		room.Lock()
		room.Players[0].Balance = 20
		room.Unlock()

		require.ErrorIs(t, manager.PlaceBet(roomCode, "conn-alice", 50), apperror.ErrInsufficientBalance)
	})

	t.Run("OnlyDealerStartsBetting", func(t *testing.T) {
		manager, _, _ := newTestManager(t)
		seatTable(t, manager, "alice")

		err := manager.StartBetting(roomCode, "conn-alice", 0)

		require.ErrorIs(t, err, apperror.ErrNotDealer)
	})

	t.Run("ConfirmDebitsExactlyOnce", func(t *testing.T) {
		manager, notifier, _ := newTestManager(t)
		seatTable(t, manager, "alice")
		require.NoError(t, manager.StartBetting(roomCode, "dealer", 0))
		require.NoError(t, manager.PlaceBet(roomCode, "conn-alice", 25))

		// When: the bet is confirmed, then confirmed again
		require.NoError(t, manager.ConfirmBet(roomCode, "conn-alice"))
		err := manager.ConfirmBet(roomCode, "conn-alice")

		// Then: the second confirmation is rejected and only one debit happened
		require.ErrorIs(t, err, apperror.ErrBetAlreadyConfirmed)

		room, roomErr := manager.Room(roomCode)
		require.NoError(t, roomErr)
		assert.Equal(t, 75, room.Players[0].Balance)

		var confirmed protocol.BetConfirmedPayload
		notifier.last(t, protocol.ActionPlayerBetConfirmed, &confirmed)
		assert.Equal(t, 25, confirmed.Bet)
		assert.Equal(t, 75, confirmed.RemainingBalance)
	})

	t.Run("CancelAfterConfirmRejected", func(t *testing.T) {
		manager, _, _ := newTestManager(t)
		seatTable(t, manager, "alice")
		require.NoError(t, manager.StartBetting(roomCode, "dealer", 0))
		require.NoError(t, manager.PlaceBet(roomCode, "conn-alice", 25))
		require.NoError(t, manager.ConfirmBet(roomCode, "conn-alice"))

		err := manager.CancelBet(roomCode, "conn-alice")

		require.ErrorIs(t, err, apperror.ErrBetAlreadyConfirmed)
	})

	t.Run("AllConfirmedClosesBettingEarly", func(t *testing.T) {
		manager, notifier, _ := newTestManager(t)
		seatTable(t, manager, "alice", "bob")

		// When: both players confirm before the deadline
		openBettingAndConfirm(t, manager, 10, "alice", "bob")

		// Then: the window closes and the room moves to playing
		room, err := manager.Room(roomCode)
		require.NoError(t, err)
		assert.True(t, room.IsPlaying())
		assert.Equal(t, 1, notifier.count(protocol.ActionBettingClosed))
	})

	t.Run("DeadlineClosesBetting", func(t *testing.T) {
		manager, notifier, _ := newTestManager(t)
		seatTable(t, manager, "alice")

		// When: betting starts with a very short window and nobody confirms
		require.NoError(t, manager.StartBetting(roomCode, "dealer", 20))

		// Then: the deadline timer closes the window
		require.Eventually(t, func() bool {
			room, err := manager.Room(roomCode)
			if err != nil {
				return false
			}
			room.Lock()
			defer room.Unlock()
			return room.IsPlaying()
		}, time.Second, 10*time.Millisecond)

		assert.Equal(t, 1, notifier.count(protocol.ActionBettingClosed))
	})
}

func TestRoomManager_DealCards(t *testing.T) {
	t.Run("MaskedForPlayersFullForDealer", func(t *testing.T) {
		manager, notifier, _ := newTestManager(t)
		seatTable(t, manager, "alice")
		openBettingAndConfirm(t, manager, 10, "alice")

		stackDeck(t, manager,
			card("K", 10), // alice, round 1
			card("5", 5),  // dealer, round 1
			card("9", 9),  // alice, round 2
			card("A", 11), // dealer hole card
		)

		// When: the dealer deals
		require.NoError(t, manager.DealCards(roomCode, "dealer"))

		// Then: the room broadcast masks the hole card, while the
		// dealer unicast carries the real one
		dealt := notifier.all(protocol.ActionCardsDealt)
		require.Len(t, dealt, 2)

		var masked protocol.CardsDealtPayload
		require.NoError(t, json.Unmarshal(dealt[0].msg.Payload, &masked))
		assert.Equal(t, "dealer", dealt[0].except)
		require.Len(t, masked.Dealer, 2)
		assert.Equal(t, "5", masked.Dealer[0].Value)
		assert.True(t, masked.Dealer[1].Hidden)
		assert.Empty(t, masked.Dealer[1].Value)

		var full protocol.CardsDealtPayload
		require.NoError(t, json.Unmarshal(dealt[1].msg.Payload, &full))
		assert.Equal(t, "conn:dealer", dealt[1].target)
		require.Len(t, full.Dealer, 2)
		assert.Equal(t, "A", full.Dealer[1].Value)
		assert.False(t, full.Dealer[1].Hidden)

		// Then: the first bettor owns the turn
		var turn protocol.TurnUpdatePayload
		notifier.last(t, protocol.ActionTurnUpdate, &turn)
		assert.Equal(t, "conn-alice", turn.PlayerID)

		// Then: the stored hole card stays hidden for scoring
		room, err := manager.Room(roomCode)
		require.NoError(t, err)
		require.Len(t, room.DealerHand, 2)
		assert.True(t, room.DealerHand[1].Hidden)
		assert.Equal(t, 5, blackjack.HandValue(room.DealerHand, 21))
	})

	t.Run("SecondDealRejected", func(t *testing.T) {
		manager, _, _ := newTestManager(t)
		seatTable(t, manager, "alice")
		openBettingAndConfirm(t, manager, 10, "alice")
		require.NoError(t, manager.DealCards(roomCode, "dealer"))

		err := manager.DealCards(roomCode, "dealer")

		require.ErrorIs(t, err, apperror.ErrCardsAlreadyDealt)
	})

	t.Run("OnlyDealerDeals", func(t *testing.T) {
		manager, _, _ := newTestManager(t)
		seatTable(t, manager, "alice")
		openBettingAndConfirm(t, manager, 10, "alice")

		err := manager.DealCards(roomCode, "conn-alice")

		require.ErrorIs(t, err, apperror.ErrNotDealer)
	})
}

func TestRoomManager_Turns(t *testing.T) {
	deal := func(t *testing.T, manager *RoomManager, extra ...entity.Card) {
		t.Helper()
		drawOrder := []entity.Card{
			card("K", 10), // alice r1
			card("9", 9),  // bob r1
			card("5", 5),  // dealer r1
			card("9", 9),  // alice r2
			card("8", 8),  // bob r2
			card("K", 10), // dealer hole
		}
		stackDeck(t, manager, append(drawOrder, extra...)...)
		require.NoError(t, manager.DealCards(roomCode, "dealer"))
	}

	t.Run("OutOfTurnRejected", func(t *testing.T) {
		manager, _, _ := newTestManager(t)
		seatTable(t, manager, "alice", "bob")
		openBettingAndConfirm(t, manager, 10, "alice", "bob")
		deal(t, manager)

		// When: bob acts while alice owns the turn
		err := manager.Hit(roomCode, "conn-bob")

		require.ErrorIs(t, err, apperror.ErrNotYourTurn)
	})

	t.Run("BustAdvancesTurn", func(t *testing.T) {
		manager, notifier, _ := newTestManager(t)
		seatTable(t, manager, "alice", "bob")
		openBettingAndConfirm(t, manager, 10, "alice", "bob")
		deal(t, manager, card("5", 5)) // alice's hit card: 10+9+5 = 24

		// When: alice hits into a bust
		require.NoError(t, manager.Hit(roomCode, "conn-alice"))

		// Then: the bust is announced and bob owns the turn
		var bust protocol.PlayerBustPayload
		notifier.last(t, protocol.ActionPlayerBust, &bust)
		assert.Equal(t, "conn-alice", bust.PlayerID)
		assert.Equal(t, 24, bust.Score)

		var turn protocol.TurnUpdatePayload
		notifier.last(t, protocol.ActionTurnUpdate, &turn)
		assert.Equal(t, "conn-bob", turn.PlayerID)
	})

	t.Run("LastStandHandsOffToDealer", func(t *testing.T) {
		manager, notifier, _ := newTestManager(t)
		seatTable(t, manager, "alice", "bob")
		openBettingAndConfirm(t, manager, 10, "alice", "bob")
		deal(t, manager)

		// When: both players stand
		require.NoError(t, manager.Stand(roomCode, "conn-alice"))
		require.NoError(t, manager.Stand(roomCode, "conn-bob"))

		// Then: exactly one dealer hand-off happened after two player turns
		assert.Equal(t, 1, notifier.count(protocol.ActionDealerTurn))

		room, err := manager.Room(roomCode)
		require.NoError(t, err)
		assert.True(t, room.IsDealerTurn())
	})

	t.Run("AllBustedSettlesWithoutDealerPlay", func(t *testing.T) {
		manager, notifier, _ := newTestManager(t)
		seatTable(t, manager, "alice")
		openBettingAndConfirm(t, manager, 10, "alice")

		stackDeck(t, manager,
			card("K", 10), // alice r1
			card("5", 5),  // dealer r1
			card("9", 9),  // alice r2
			card("K", 10), // dealer hole
			card("5", 5),  // alice's hit: bust
		)
		require.NoError(t, manager.DealCards(roomCode, "dealer"))

		// When: the only bettor busts
		require.NoError(t, manager.Hit(roomCode, "conn-alice"))

		// Then: the hole card is revealed and the hand settles immediately
		assert.Equal(t, 1, notifier.count(protocol.ActionRevealDealerCard))

		var results protocol.GameResultsPayload
		notifier.last(t, protocol.ActionGameResults, &results)
		require.Len(t, results.Results, 1)
		assert.Equal(t, blackjack.OutcomeLose, results.Results[0].Outcome)

		room, err := manager.Room(roomCode)
		require.NoError(t, err)
		assert.True(t, room.IsFinished())
	})
}

func TestRoomManager_DealerPlay(t *testing.T) {
	setup := func(t *testing.T, holeCard entity.Card, extra ...entity.Card) (*RoomManager, *fakeNotifier) {
		t.Helper()
		manager, notifier, _ := newTestManager(t)
		seatTable(t, manager, "alice")
		openBettingAndConfirm(t, manager, 10, "alice")

		drawOrder := []entity.Card{
			card("K", 10), // alice r1
			card("K", 10), // dealer r1
			card("9", 9),  // alice r2: stands on 19
			holeCard,
		}
		stackDeck(t, manager, append(drawOrder, extra...)...)
		require.NoError(t, manager.DealCards(roomCode, "dealer"))
		require.NoError(t, manager.Stand(roomCode, "conn-alice"))

		return manager, notifier
	}

	t.Run("HitBeforeRevealRejected", func(t *testing.T) {
		manager, _ := setup(t, card("7", 7))

		err := manager.DealerHit(roomCode, "dealer")

		require.ErrorIs(t, err, apperror.ErrCardStillHidden)
	})

	t.Run("RevealAtStandScoreSettles", func(t *testing.T) {
		// Given: the hole card brings the dealer straight to 17
		manager, notifier := setup(t, card("7", 7))

		// When: the dealer reveals
		require.NoError(t, manager.DealerReveal(roomCode, "dealer"))

		// Then: the dealer is auto-stood and the hand settles: 19 beats 17
		var results protocol.GameResultsPayload
		notifier.last(t, protocol.ActionGameResults, &results)
		assert.Equal(t, 17, results.DealerScore)
		require.Len(t, results.Results, 1)
		assert.Equal(t, blackjack.OutcomeWin, results.Results[0].Outcome)
		assert.Equal(t, 110, results.Results[0].NewBalance)

		room, err := manager.Room(roomCode)
		require.NoError(t, err)
		assert.True(t, room.IsFinished())
	})

	t.Run("DealerHitsToStandScore", func(t *testing.T) {
		// Given: the dealer reveals 12 and must draw
		manager, notifier := setup(t, card("2", 2), card("9", 9))

		require.NoError(t, manager.DealerReveal(roomCode, "dealer"))

		room, err := manager.Room(roomCode)
		require.NoError(t, err)
		assert.False(t, room.IsFinished())

		// When: the dealer hits to 21
		require.NoError(t, manager.DealerHit(roomCode, "dealer"))

		// Then: reaching the stand score settles the hand: 21 beats 19
		var results protocol.GameResultsPayload
		notifier.last(t, protocol.ActionGameResults, &results)
		assert.Equal(t, 21, results.DealerScore)
		assert.Equal(t, blackjack.OutcomeLose, results.Results[0].Outcome)
	})

	t.Run("DealerBustPaysPlayer", func(t *testing.T) {
		// Given: dealer reveals 12, then draws a king for 22
		manager, notifier := setup(t, card("2", 2), card("K", 10))

		require.NoError(t, manager.DealerReveal(roomCode, "dealer"))
		require.NoError(t, manager.DealerHit(roomCode, "dealer"))

		var results protocol.GameResultsPayload
		notifier.last(t, protocol.ActionGameResults, &results)
		assert.Equal(t, 22, results.DealerScore)
		assert.Equal(t, blackjack.OutcomeWin, results.Results[0].Outcome)
	})

	t.Run("RevealBeforePlayersDoneRejected", func(t *testing.T) {
		manager, _, _ := newTestManager(t)
		seatTable(t, manager, "alice")
		openBettingAndConfirm(t, manager, 10, "alice")
		require.NoError(t, manager.DealCards(roomCode, "dealer"))

		err := manager.DealerReveal(roomCode, "dealer")

		require.ErrorIs(t, err, apperror.ErrNotYourTurn)
	})
}

func TestRoomManager_ResetGame(t *testing.T) {
	manager, notifier, _ := newTestManager(t)
	seatTable(t, manager, "alice")
	openBettingAndConfirm(t, manager, 10, "alice")

	stackDeck(t, manager,
		card("K", 10), // alice r1
		card("K", 10), // dealer r1
		card("9", 9),  // alice r2: stands on 19
		card("9", 9),  // dealer hole: 19 on reveal, push
	)
	require.NoError(t, manager.DealCards(roomCode, "dealer"))
	require.NoError(t, manager.Stand(roomCode, "conn-alice"))
	require.NoError(t, manager.DealerReveal(roomCode, "dealer"))

	room, err := manager.Room(roomCode)
	require.NoError(t, err)
	require.True(t, room.IsFinished())
	balanceAfterHand := room.Players[0].Balance

	// When: the dealer resets the table
	require.NoError(t, manager.ResetGame(roomCode, "dealer"))

	// Then: the room waits for the next hand with a full fresh deck,
	// and the settled balance carries over
	assert.True(t, room.IsWaiting())
	assert.Equal(t, 52, room.Deck.Len())
	assert.Zero(t, room.Players[0].Bet)
	assert.Equal(t, balanceAfterHand, room.Players[0].Balance)
	assert.Equal(t, 1, notifier.count(protocol.ActionGameReset))
}

func TestRoomManager_Disconnect(t *testing.T) {
	t.Run("CurrentTurnAdvancesPastDroppedPlayer", func(t *testing.T) {
		manager, notifier, _ := newTestManager(t)
		seatTable(t, manager, "alice", "bob")
		openBettingAndConfirm(t, manager, 10, "alice", "bob")
		require.NoError(t, manager.DealCards(roomCode, "dealer"))

		// When: the turn owner drops
		manager.Disconnect(roomCode, "conn-alice")

		// Then: bob owns the turn
		var turn protocol.TurnUpdatePayload
		notifier.last(t, protocol.ActionTurnUpdate, &turn)
		assert.Equal(t, "conn-bob", turn.PlayerID)
	})

	t.Run("DroppedBettorForfeitsAtSettlement", func(t *testing.T) {
		manager, notifier, _ := newTestManager(t)
		seatTable(t, manager, "alice", "bob")
		openBettingAndConfirm(t, manager, 10, "alice", "bob")

		stackDeck(t, manager,
			card("K", 10), // alice r1
			card("9", 9),  // bob r1
			card("K", 10), // dealer r1
			card("9", 9),  // alice r2
			card("8", 8),  // bob r2: stands on 17
			card("7", 7),  // dealer hole: 17 on reveal
		)
		require.NoError(t, manager.DealCards(roomCode, "dealer"))

		manager.Disconnect(roomCode, "conn-alice")
		require.NoError(t, manager.Stand(roomCode, "conn-bob"))
		require.NoError(t, manager.DealerReveal(roomCode, "dealer"))

		// Then: only bob is settled; alice's debited bet is not refunded
		var results protocol.GameResultsPayload
		notifier.last(t, protocol.ActionGameResults, &results)
		require.Len(t, results.Results, 1)
		assert.Equal(t, "bob", results.Results[0].PlayerName)

		room, err := manager.Room(roomCode)
		require.NoError(t, err)
		alice := room.FindDisconnectedByName("alice")
		require.NotNil(t, alice)
		assert.Equal(t, 90, alice.Balance)
	})

	t.Run("LastUnconfirmedPlayerDropClosesBetting", func(t *testing.T) {
		manager, _, _ := newTestManager(t)
		seatTable(t, manager, "alice", "bob")
		require.NoError(t, manager.StartBetting(roomCode, "dealer", 0))
		require.NoError(t, manager.PlaceBet(roomCode, "conn-alice", 10))
		require.NoError(t, manager.ConfirmBet(roomCode, "conn-alice"))

		// When: the only unconfirmed player drops
		manager.Disconnect(roomCode, "conn-bob")

		// Then: the remaining confirmations close the window
		room, err := manager.Room(roomCode)
		require.NoError(t, err)
		assert.True(t, room.IsPlaying())
	})

	t.Run("UnknownRoomIsNoOp", func(t *testing.T) {
		manager, _, _ := newTestManager(t)

		manager.Disconnect("999999", "conn-ghost")
	})
}

func TestRoomManager_Reconnect(t *testing.T) {
	manager, notifier, _ := newTestManager(t)
	seatTable(t, manager, "alice", "bob")
	openBettingAndConfirm(t, manager, 30, "alice", "bob")
	require.NoError(t, manager.DealCards(roomCode, "dealer"))

	// Given: alice drops mid-hand; the turn passes to bob
	manager.Disconnect(roomCode, "conn-alice")

	// When: she rejoins under the same name from a new connection
	require.NoError(t, manager.JoinRoom("conn-alice-2", roomCode, "alice"))

	// Then: the seat is reattached to the new connection id with the
	// same hand, bet and balance
	room, err := manager.Room(roomCode)
	require.NoError(t, err)
	require.Len(t, room.Players, 2)

	player := room.Players[0]
	assert.Equal(t, "conn-alice-2", player.ID)
	assert.True(t, player.Connected)
	assert.Equal(t, 30, player.Bet)
	assert.True(t, player.BetConfirmed)
	assert.Equal(t, 70, player.Balance)
	assert.Len(t, player.Hand, 2)

	// Then: the restored session is unicast to the new connection
	var state protocol.ReconnectStatePayload
	restored := notifier.last(t, protocol.ActionReconnectState, &state)
	assert.Equal(t, "conn:conn-alice-2", restored.target)
	assert.Equal(t, entity.StatePlaying, state.State)
	assert.Equal(t, 30, state.Bet)
	assert.True(t, state.BetConfirmed)
}

func TestRoomManager_DealerResilience(t *testing.T) {
	t.Run("ReconnectWithinGracePreservesRoom", func(t *testing.T) {
		manager, _, _ := newTestManager(t)
		seatTable(t, manager, "alice")

		// When: the dealer drops and comes back
		manager.Disconnect(roomCode, "dealer")

		room, err := manager.Room(roomCode)
		require.NoError(t, err)
		assert.False(t, room.DealerOnline)

		require.NoError(t, manager.JoinRoom("dealer-2", roomCode, ""))

		// Then: the room survives with the new dealer connection
		assert.True(t, room.DealerOnline)
		assert.Equal(t, "dealer-2", room.DealerID)
	})

	t.Run("GraceExpiryDestroysRoom", func(t *testing.T) {
		manager, notifier, lobby := newTestManager(t)
		manager.conf.DealerGraceSeconds = 0 // expire immediately
		seatTable(t, manager, "alice")

		// When: the dealer drops and the grace period runs out
		manager.Disconnect(roomCode, "dealer")

		// Then: the room is destroyed and everyone is told why
		require.Eventually(t, func() bool {
			_, err := manager.Room(roomCode)
			return err != nil
		}, time.Second, 10*time.Millisecond)

		var reason protocol.DealerDisconnectedPayload
		notifier.last(t, protocol.ActionDealerDisconnected, &reason)
		assert.Equal(t, "dealer did not return", reason.Reason)

		require.Eventually(t, func() bool {
			_, _, _, finished := lobby.counts()
			return finished == 1
		}, time.Second, 10*time.Millisecond)
	})

	t.Run("DealerExitSkipsGrace", func(t *testing.T) {
		manager, notifier, _ := newTestManager(t)
		seatTable(t, manager, "alice")

		// When: the dealer exits on purpose
		require.NoError(t, manager.DealerExit(roomCode, "dealer"))

		// Then: the room is gone at once, and the transport-level
		// disconnect that follows finds nothing to double-process
		_, err := manager.Room(roomCode)
		require.ErrorIs(t, err, apperror.ErrRoomNotFound)

		manager.Disconnect(roomCode, "dealer")
		assert.Equal(t, 1, notifier.count(protocol.ActionDealerDisconnected))
	})
}

func TestRoomManager_LobbyMirror(t *testing.T) {
	manager, _, lobby := newTestManager(t)

	// When: the dealer opens a room and a player takes a seat
	seatTable(t, manager, "alice")

	// Then: the mirror eventually records the creation and the seat
	require.Eventually(t, func() bool {
		created, increments, _, _ := lobby.counts()
		return created == 1 && increments == 1
	}, time.Second, 10*time.Millisecond)

	// When: the player drops
	manager.Disconnect(roomCode, "conn-alice")

	require.Eventually(t, func() bool {
		_, _, decrements, _ := lobby.counts()
		return decrements == 1
	}, time.Second, 10*time.Millisecond)

	// When: the same player reconnects under a new connection
	require.NoError(t, manager.JoinRoom("conn-alice-2", roomCode, "alice"))

	// Then: the released seat is counted again; a disconnect/reconnect
	// cycle leaves the mirror where it started
	require.Eventually(t, func() bool {
		_, increments, decrements, _ := lobby.counts()
		return increments == 2 && decrements == 1
	}, time.Second, 10*time.Millisecond)
}

func TestRoomManager_Sweep(t *testing.T) {
	manager, notifier, _ := newTestManager(t)
	manager.conf.DisconnectSeconds = 0 // purge on the next sweep
	seatTable(t, manager, "alice", "bob")

	// Given: alice has been disconnected past the retention bound
	manager.Disconnect(roomCode, "conn-alice")

	room, err := manager.Room(roomCode)
	require.NoError(t, err)
	room.Lock()
	room.Players[0].DisconnectedAt = time.Now().Add(-time.Minute)
	room.Unlock()

	// When: the sweep runs
	manager.sweep()

	// Then: alice is gone, bob keeps his seat
	room.Lock()
	defer room.Unlock()
	require.Len(t, room.Players, 1)
	assert.Equal(t, "bob", room.Players[0].Name)
	assert.GreaterOrEqual(t, notifier.count(protocol.ActionUpdatePlayerList), 1)
}
