package blackjack

import "github.com/rocketscienceinc/blackjack-backend/internal/entity"

// softAceDelta - counting an ace low instead of high removes 10 points.
const softAceDelta = 10

// HandValue - sums the visible cards and downgrades soft aces one at a
// time while the total exceeds the bust threshold. Hidden cards
// contribute nothing. Deterministic and side-effect free; used for both
// players and the dealer.
func HandValue(hand []entity.Card, bustThreshold int) int {
	sum := 0
	aces := 0

	for _, card := range hand {
		if card.Hidden {
			continue
		}

		sum += card.Points
		if card.IsAce() {
			aces++
		}
	}

	for sum > bustThreshold && aces > 0 {
		sum -= softAceDelta
		aces--
	}

	return sum
}

// IsBusted - reports whether the visible hand value exceeds the bust
// threshold.
func IsBusted(hand []entity.Card, bustThreshold int) bool {
	return HandValue(hand, bustThreshold) > bustThreshold
}

// IsNatural - a two-card fully visible hand worth exactly the bust
// threshold.
func IsNatural(hand []entity.Card, bustThreshold int) bool {
	if len(hand) != 2 {
		return false
	}
	for _, card := range hand {
		if card.Hidden {
			return false
		}
	}
	return HandValue(hand, bustThreshold) == bustThreshold
}
