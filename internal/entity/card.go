package entity

import (
	"fmt"
	"math/rand"

	"github.com/rocketscienceinc/blackjack-backend/internal/apperror"
)

const (
	AceValue = "A"

	// PenaltySuit marks the negative-value cards that extend the
	// standard deck in the penalty variant.
	PenaltySuit = "☠️"
)

var (
	suits = []string{"♣", "♦", "♥", "♠"}

	srcSuits = map[string]string{
		"♣": "Clubs",
		"♦": "Diamond",
		"♥": "Hearts",
		"♠": "Spades",
	}

	values = []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}

	points = map[string]int{
		"2": 2, "3": 3, "4": 4, "5": 5, "6": 6, "7": 7,
		"8": 8, "9": 9, "10": 10,
		"J": 10, "Q": 10, "K": 10, "A": 11,
	}

	srcValues = map[string]string{
		"2": "2", "3": "3", "4": "4", "5": "5",
		"6": "6", "7": "7", "8": "8", "9": "9", "10": "10",
		"J": "Jack", "Q": "Queen", "K": "King", "A": "Ace",
	}

	// each penalty card appears twice in the deck
	penaltyPoints = []int{-3, -4, -5, -6}
)

// Card is a single playing card. It is never mutated after the deck is
// built, except for the dealer's hole card which is flipped via Hidden.
type Card struct {
	Suit   string `json:"suit"`
	Value  string `json:"value"`
	Points int    `json:"points"`
	Src    string `json:"src"`
	Hidden bool   `json:"hidden,omitempty"`
}

func (that Card) IsAce() bool {
	return that.Value == AceValue
}

// Deck is an ordered pile of cards owned by exactly one room for the
// duration of a hand.
type Deck struct {
	cards []Card
}

// NewDeck - builds the fixed card multiset: the standard 52 cards, plus
// the doubled penalty cards when the variant is enabled. The build order
// is deterministic; call Shuffle before play.
func NewDeck(withPenaltyCards bool) *Deck {
	cards := make([]Card, 0, len(suits)*len(values)+2*len(penaltyPoints))

	for _, suit := range suits {
		for _, value := range values {
			cards = append(cards, Card{
				Suit:   suit,
				Value:  value,
				Points: points[value],
				Src:    fmt.Sprintf("img/%s-%s.png", srcSuits[suit], srcValues[value]),
			})
		}
	}

	if withPenaltyCards {
		for _, pts := range penaltyPoints {
			for i := 0; i < 2; i++ {
				cards = append(cards, Card{
					Suit:   PenaltySuit,
					Value:  fmt.Sprintf("%d", pts),
					Points: pts,
					Src:    fmt.Sprintf("img/negative%d.png", pts),
				})
			}
		}
	}

	return &Deck{cards: cards}
}

// NewDeckFromCards - builds a deck with an exact card order. Draw pops
// from the end, so the last card is drawn first.
func NewDeckFromCards(cards []Card) *Deck {
	return &Deck{cards: append([]Card(nil), cards...)}
}

// Shuffle - permutes the deck in place with a Fisher-Yates pass.
func (that *Deck) Shuffle() {
	for i := len(that.cards) - 1; i > 0; i-- {
		j := rand.Intn(i + 1) //nolint: gosec // it's ok
		that.cards[i], that.cards[j] = that.cards[j], that.cards[i]
	}
}

// Draw - removes and returns the top (last) card.
func (that *Deck) Draw() (Card, error) {
	if len(that.cards) == 0 {
		return Card{}, apperror.ErrEmptyDeck
	}

	card := that.cards[len(that.cards)-1]
	that.cards = that.cards[:len(that.cards)-1]

	return card, nil
}

func (that *Deck) Len() int {
	return len(that.cards)
}

// Cards - returns a copy of the remaining cards, top of the deck last.
func (that *Deck) Cards() []Card {
	return append([]Card(nil), that.cards...)
}
