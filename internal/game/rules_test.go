package game

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uno/internal/model"
)

func drain(d *Deck) []model.Card {
	var out []model.Card
	for {
		c, ok := d.Draw()
		if !ok {
			return out
		}
		out = append(out, c)
	}
}

func TestBuildDeckComposition(t *testing.T) {
	cards := drain(BuildDeck(NewRand(1)))
	require.Len(t, cards, DeckSize)

	count := make(map[model.Card]int)
	for _, c := range cards {
		count[c]++
	}
	for _, col := range model.Colors {
		assert.Equal(t, 1, count[model.Card{Color: col, Value: "0"}], "%s 0", col)
		for _, v := range []model.Value{"1", "2", "3", "4", "5", "6", "7", "8", "9", model.Skip, model.Reverse, model.Draw2} {
			assert.Equal(t, 2, count[model.Card{Color: col, Value: v}], "%s %s", col, v)
		}
	}
	assert.Equal(t, 4, count[model.Card{Color: model.Black, Value: model.Wild}])
	assert.Equal(t, 4, count[model.Card{Color: model.Black, Value: model.Draw4}])
}

func TestBuildDeckSeeded(t *testing.T) {
	a := drain(BuildDeck(NewRand(42)))
	b := drain(BuildDeck(NewRand(42)))
	c := drain(BuildDeck(NewRand(43)))
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestDeckPutBottomAndRefill(t *testing.T) {
	d := &Deck{rng: NewRand(7)}
	d.PutBottom(model.Card{Color: model.Red, Value: "1"})
	d.PutBottom(model.Card{Color: model.Blue, Value: "2"})
	top, ok := d.Draw()
	require.True(t, ok)
	assert.Equal(t, model.Card{Color: model.Red, Value: "1"}, top)

	d.Refill([]model.Card{
		{Color: model.Green, Value: model.Wild},
		{Color: model.Yellow, Value: model.Draw4},
	})
	assert.Equal(t, 3, d.Len())
	for _, c := range drain(d) {
		if c.IsWild() {
			assert.Equal(t, model.Black, c.Color, "wild colour reset on refill")
		}
	}
}

func TestIsLegal(t *testing.T) {
	red5 := model.Card{Color: model.Red, Value: "5"}
	tests := []struct {
		name      string
		candidate model.Card
		top       model.Card
		want      bool
	}{
		{"same colour", model.Card{Color: model.Red, Value: "9"}, red5, true},
		{"same value", model.Card{Color: model.Blue, Value: "5"}, red5, true},
		{"same action", model.Card{Color: model.Blue, Value: model.Skip}, model.Card{Color: model.Green, Value: model.Skip}, true},
		{"wild on anything", model.Card{Color: model.Black, Value: model.Wild}, red5, true},
		{"draw4 on anything", model.Card{Color: model.Black, Value: model.Draw4}, red5, true},
		{"chosen wild colour", model.Card{Color: model.Green, Value: "2"}, model.Card{Color: model.Green, Value: model.Wild}, true},
		{"no match", model.Card{Color: model.Blue, Value: "7"}, red5, false},
		{"no match on wild colour", model.Card{Color: model.Blue, Value: "7"}, model.Card{Color: model.Green, Value: model.Wild}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsLegal(tt.candidate, tt.top))
		})
	}
}

func TestClassifyEffect(t *testing.T) {
	tests := []struct {
		value model.Value
		want  Effect
	}{
		{"3", Effect{Kind: EffectNone}},
		{model.Skip, Effect{Kind: EffectSkip}},
		{model.Reverse, Effect{Kind: EffectReverse}},
		{model.Draw2, Effect{Kind: EffectDrawPenalty, Draw: 2}},
		{model.Draw4, Effect{Kind: EffectDrawPenalty, Draw: 4}},
		{model.Wild, Effect{Kind: EffectWildColor}},
	}
	for _, tt := range tests {
		t.Run(string(tt.value), func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyEffect(model.Card{Color: model.Red, Value: tt.value}))
		})
	}
	assert.Equal(t, "wildColorChoice", EffectWildColor.String())
}
