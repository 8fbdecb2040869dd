package game

import (
	"math/rand/v2"
	"strconv"

	"uno/internal/model"
)

// DeckSize is the number of cards BuildDeck produces.
const DeckSize = 108

// Deck is the ordered pile of undealt cards. The top of the deck is the end
// of the slice.
type Deck struct {
	cards []model.Card
	rng   *rand.Rand
}

// NewRand returns a deterministic generator for the given seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// BuildDeck returns a shuffled standard deck: per colour one 0, two of each
// 1-9 and two each of skip, reverse and draw2, plus four wild and four draw4.
func BuildDeck(rng *rand.Rand) *Deck {
	cards := make([]model.Card, 0, DeckSize)
	for _, c := range model.Colors {
		cards = append(cards, model.Card{Color: c, Value: "0"})
		for n := 1; n <= 9; n++ {
			v := model.Value(strconv.Itoa(n))
			cards = append(cards, model.Card{Color: c, Value: v}, model.Card{Color: c, Value: v})
		}
		for _, v := range []model.Value{model.Skip, model.Reverse, model.Draw2} {
			cards = append(cards, model.Card{Color: c, Value: v}, model.Card{Color: c, Value: v})
		}
	}
	for i := 0; i < 4; i++ {
		cards = append(cards,
			model.Card{Color: model.Black, Value: model.Wild},
			model.Card{Color: model.Black, Value: model.Draw4})
	}
	d := &Deck{cards: cards, rng: rng}
	d.shuffle()
	return d
}

func (d *Deck) shuffle() {
	d.rng.Shuffle(len(d.cards), func(i, j int) { d.cards[i], d.cards[j] = d.cards[j], d.cards[i] })
}

func (d *Deck) Len() int { return len(d.cards) }

// Draw takes the top card. ok is false when the deck is empty.
func (d *Deck) Draw() (model.Card, bool) {
	if len(d.cards) == 0 {
		return model.Card{}, false
	}
	c := d.cards[len(d.cards)-1]
	d.cards = d.cards[:len(d.cards)-1]
	return c, true
}

// PutBottom returns a card under the rest of the deck.
func (d *Deck) PutBottom(c model.Card) {
	d.cards = append([]model.Card{c}, d.cards...)
}

// Refill adds cards to the deck and shuffles it. Wild cards lose their
// chosen colour.
func (d *Deck) Refill(cards []model.Card) {
	for _, c := range cards {
		if c.IsWild() {
			c.Color = model.Black
		}
		d.cards = append(d.cards, c)
	}
	d.shuffle()
}

// IsLegal reports whether candidate may be played on top. A wild on the
// discard pile carries the colour chosen for it.
func IsLegal(candidate, top model.Card) bool {
	return candidate.Color == model.Black ||
		candidate.Color == top.Color ||
		candidate.Value == top.Value
}

type EffectKind int

const (
	EffectNone EffectKind = iota
	EffectSkip
	EffectReverse
	EffectDrawPenalty
	EffectWildColor
)

func (k EffectKind) String() string {
	switch k {
	case EffectSkip:
		return "skip"
	case EffectReverse:
		return "reverse"
	case EffectDrawPenalty:
		return "drawPenalty"
	case EffectWildColor:
		return "wildColorChoice"
	}
	return "none"
}

// Effect is what a played card does to the turn order. Draw is only set for
// EffectDrawPenalty.
type Effect struct {
	Kind EffectKind
	Draw int
}

// ClassifyEffect maps a card to its effect. draw4 is a draw penalty of four
// that also needs a chosen colour (see model.Card.IsWild).
func ClassifyEffect(c model.Card) Effect {
	switch c.Value {
	case model.Skip:
		return Effect{Kind: EffectSkip}
	case model.Reverse:
		return Effect{Kind: EffectReverse}
	case model.Draw2:
		return Effect{Kind: EffectDrawPenalty, Draw: 2}
	case model.Draw4:
		return Effect{Kind: EffectDrawPenalty, Draw: 4}
	case model.Wild:
		return Effect{Kind: EffectWildColor}
	}
	return Effect{Kind: EffectNone}
}
