package blackjack

import "github.com/rocketscienceinc/blackjack-backend/internal/entity"

type Outcome string

const (
	OutcomeWin       Outcome = "WIN"
	OutcomeLose      Outcome = "LOSE"
	OutcomePush      Outcome = "PUSH"
	OutcomeBlackjack Outcome = "BLACKJACK"
)

// Result is one player's line in the aggregate hand result.
type Result struct {
	PlayerID    string  `json:"playerId"`
	PlayerName  string  `json:"playerName"`
	Outcome     Outcome `json:"outcome"`
	PlayerScore int     `json:"playerScore"`
	NewBalance  int     `json:"newBalance"`
}

// Settle - compares every bettor against the dealer and credits the
// payouts. The bet itself was already debited at confirmation, so the
// payout is the full amount returned to the balance: 0 on a loss, the
// bet on a push, twice the bet on a win and 2.5x the bet on a natural.
// Returns the per-player results and the dealer score.
func Settle(dealerHand []entity.Card, players []*entity.Player, bustThreshold int) ([]Result, int) {
	dealerScore := HandValue(dealerHand, bustThreshold)
	dealerBusted := dealerScore > bustThreshold
	dealerNatural := IsNatural(dealerHand, bustThreshold)

	results := make([]Result, 0, len(players))

	for _, player := range players {
		if !player.HasConfirmedBet() {
			continue
		}

		playerScore := HandValue(player.Hand, bustThreshold)
		playerBusted := playerScore > bustThreshold
		playerNatural := IsNatural(player.Hand, bustThreshold)

		var outcome Outcome
		var winnings int

		switch {
		case playerBusted:
			outcome = OutcomeLose
		case dealerNatural && playerNatural:
			outcome = OutcomePush
			winnings = player.Bet
		case dealerNatural:
			outcome = OutcomeLose
		case playerNatural:
			outcome = OutcomeBlackjack
			winnings = player.Bet * 5 / 2
		case dealerBusted:
			outcome = OutcomeWin
			winnings = player.Bet * 2
		case playerScore > dealerScore:
			outcome = OutcomeWin
			winnings = player.Bet * 2
		case playerScore < dealerScore:
			outcome = OutcomeLose
		default:
			outcome = OutcomePush
			winnings = player.Bet
		}

		player.Balance += winnings

		results = append(results, Result{
			PlayerID:    player.ID,
			PlayerName:  player.Name,
			Outcome:     outcome,
			PlayerScore: playerScore,
			NewBalance:  player.Balance,
		})
	}

	return results, dealerScore
}
