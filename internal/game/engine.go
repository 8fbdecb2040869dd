package game

import (
	"fmt"
	"math/rand/v2"

	"uno/internal/model"
)

type Phase string

const (
	PhaseIdle         Phase = "idle"
	PhaseAwaitingMove Phase = "awaitingMove"
	PhaseRoundOver    Phase = "roundOver"
)

// Rules are the per-room knobs of the turn engine.
type Rules struct {
	HandSize       int
	MaxPlayers     int
	LowHandPenalty int
}

// DefaultRules returns the standard table setup.
func DefaultRules() Rules {
	return Rules{HandSize: 7, MaxPlayers: 10, LowHandPenalty: 2}
}

// Engine is the turn state machine of a single room. It is not safe for
// concurrent use; the owning Room serializes every call.
type Engine struct {
	reg   *Registry
	rules Rules
	rng   *rand.Rand

	deck      *Deck
	discard   []model.Card
	turn      int
	direction int
	phase     Phase
	winner    string
	scores    map[string]int
}

func NewEngine(rules Rules, rng *rand.Rand) *Engine {
	return &Engine{
		reg:       NewRegistry(),
		rules:     rules,
		rng:       rng,
		deck:      &Deck{rng: rng},
		direction: 1,
		phase:     PhaseIdle,
		scores:    make(map[string]int),
	}
}

type PlayResult struct {
	Actor  *Player
	Card   model.Card // as placed, wild colour applied
	Effect Effect
	// Penalized drew PenaltyCards because of a draw2/draw4.
	Penalized    *Player
	PenaltyCards int
	// LowPenalty is how many cards Actor drew for not declaring low.
	LowPenalty int
	Winner     string
}

type DrawResult struct {
	Actor *Player
	Card  model.Card
}

type LeaveResult struct {
	Player    *Player
	WasActive bool
}

// Join seats a player and deals them in. The first join of an idle room
// starts a round.
func (e *Engine) Join(identity, connID string) (*Player, bool, error) {
	if e.reg.Len() >= e.rules.MaxPlayers {
		return nil, false, fmt.Errorf("%w: %d seats taken", ErrRoomFull, e.reg.Len())
	}
	if e.phase == PhaseIdle {
		// hands parked from an abandoned round belong to a deck that is about to be replaced
		e.reg.ClearParked()
	}
	seated := e.reg.Len()
	p, rejoined, err := e.reg.Join(identity, connID)
	if err != nil {
		return nil, false, err
	}
	// a returning player slots in at their old seat; keep the turn on whoever holds it
	if rejoined && seated > 0 && e.reg.indexOf(p) <= e.turn {
		e.turn++
	}
	if e.phase == PhaseIdle {
		e.newRound()
		e.flipStart()
	}
	if !rejoined {
		p.Hand = nil
		p.DeclaredLow = false
		e.deal(p, e.rules.HandSize)
	}
	return p, rejoined, nil
}

// Leave unseats the player on connID. If it was their turn the pointer moves
// on to whoever is next in the current direction.
func (e *Engine) Leave(connID string) (LeaveResult, error) {
	p, idx := e.reg.Leave(connID)
	if idx < 0 {
		return LeaveResult{}, ErrUnknownConnection
	}
	res := LeaveResult{Player: p}
	n := e.reg.Len()
	if n == 0 {
		e.phase = PhaseIdle
		e.turn = 0
		e.direction = 1
		return res, nil
	}
	switch {
	case idx < e.turn:
		e.turn--
	case idx == e.turn:
		res.WasActive = e.phase == PhaseAwaitingMove
		if e.direction > 0 {
			if e.turn >= n {
				e.turn = 0
			}
		} else {
			e.turn = (e.turn - 1 + n) % n
		}
	}
	return res, nil
}

// PlayCard plays hand[handIndex] for identity.
func (e *Engine) PlayCard(identity string, handIndex int, chosen model.Color) (PlayResult, error) {
	p, err := e.activePlayer(identity)
	if err != nil {
		return PlayResult{}, err
	}
	if handIndex < 0 || handIndex >= len(p.Hand) {
		return PlayResult{}, fmt.Errorf("%w: hand index %d out of range", ErrIllegalMove, handIndex)
	}
	card := p.Hand[handIndex]
	top, _ := e.Top()
	if !IsLegal(card, top) {
		return PlayResult{}, fmt.Errorf("%w: %s does not match %s", ErrIllegalMove, card, top)
	}
	placed := card
	if card.IsWild() {
		if !chosen.Valid() {
			return PlayResult{}, fmt.Errorf("%w: %s needs a colour", ErrIllegalMove, card.Value)
		}
		placed.Color = chosen
	}

	p.Hand = append(p.Hand[:handIndex], p.Hand[handIndex+1:]...)
	e.discard = append(e.discard, placed)
	res := PlayResult{Actor: p, Card: placed, Effect: ClassifyEffect(card)}

	if len(p.Hand) == 0 {
		e.phase = PhaseRoundOver
		e.winner = p.Identity
		e.scores[p.Identity]++
		res.Winner = p.Identity
		return res, nil
	}
	if len(p.Hand) == 1 && !p.DeclaredLow && e.rules.LowHandPenalty > 0 {
		res.LowPenalty = e.deal(p, e.rules.LowHandPenalty)
	}

	switch res.Effect.Kind {
	case EffectSkip:
		e.advance(2)
	case EffectReverse:
		if e.reg.Len() == 2 {
			e.advance(2)
		} else {
			e.direction = -e.direction
			e.advance(1)
		}
	case EffectDrawPenalty:
		victim := e.reg.Seat(e.seatAfter(1))
		res.Penalized = victim
		res.PenaltyCards = e.deal(victim, res.Effect.Draw)
		e.advance(2)
	default:
		e.advance(1)
	}
	return res, nil
}

// DrawCard gives the active player one card and passes the turn. An empty
// deck that cannot be refilled from the discard pile ends the round without
// a winner.
func (e *Engine) DrawCard(identity string) (DrawResult, error) {
	p, err := e.activePlayer(identity)
	if err != nil {
		return DrawResult{}, err
	}
	c, err := e.drawOne()
	if err != nil {
		e.endInDraw()
		return DrawResult{Actor: p}, err
	}
	e.give(p, c)
	e.advance(1)
	return DrawResult{Actor: p, Card: c}, nil
}

// Timeout is the idle penalty: the active player draws one card and the turn
// moves on.
func (e *Engine) Timeout() (DrawResult, error) {
	p := e.Current()
	if p == nil || !e.InPlay() {
		return DrawResult{}, fmt.Errorf("%w: no turn in progress", ErrIllegalMove)
	}
	return e.DrawCard(p.Identity)
}

// DeclareLow records a low-hand call. counted is false when the player had
// already declared.
func (e *Engine) DeclareLow(identity string) (counted bool, err error) {
	p, ok := e.reg.ByName(identity)
	if !ok {
		return false, ErrUnknownConnection
	}
	if e.phase != PhaseAwaitingMove {
		return false, fmt.Errorf("%w: round not in progress", ErrIllegalMove)
	}
	if len(p.Hand) > 2 {
		return false, fmt.Errorf("%w: %d cards is not a low hand", ErrIllegalMove, len(p.Hand))
	}
	if p.DeclaredLow {
		return false, nil
	}
	p.DeclaredLow = true
	return true, nil
}

// Restart deals a new round to everyone seated.
func (e *Engine) Restart() error {
	if e.reg.Len() == 0 {
		return fmt.Errorf("%w: nobody seated", ErrIllegalMove)
	}
	e.newRound()
	for _, p := range e.reg.Seats() {
		p.Hand = nil
		p.DeclaredLow = false
		e.deal(p, e.rules.HandSize)
	}
	e.flipStart()
	return nil
}

func (e *Engine) newRound() {
	e.deck = BuildDeck(e.rng)
	e.discard = nil
	e.reg.ClearParked()
	e.turn = 0
	e.direction = 1
	e.winner = ""
	e.phase = PhaseAwaitingMove
}

// flipStart turns over the first number card as the opening discard.
// Action and wild cards go back under the deck.
func (e *Engine) flipStart() {
	for i := e.deck.Len(); i > 0; i-- {
		c, _ := e.deck.Draw()
		if c.Value.IsNumber() {
			e.discard = append(e.discard, c)
			return
		}
		e.deck.PutBottom(c)
	}
	if c, ok := e.deck.Draw(); ok {
		if c.Color == model.Black {
			c.Color = model.Red
		}
		e.discard = append(e.discard, c)
	}
}

func (e *Engine) activePlayer(identity string) (*Player, error) {
	if e.phase != PhaseAwaitingMove {
		return nil, fmt.Errorf("%w: round not in progress", ErrIllegalMove)
	}
	if e.reg.Len() < 2 {
		return nil, fmt.Errorf("%w: waiting for players", ErrIllegalMove)
	}
	if _, ok := e.reg.ByName(identity); !ok {
		return nil, ErrUnknownConnection
	}
	p := e.reg.Seat(e.turn)
	if p.Identity != identity {
		return nil, fmt.Errorf("%w: it is %s's turn", ErrIllegalMove, p.Identity)
	}
	return p, nil
}

// drawOne takes a card, refilling the deck from the discard pile (minus its
// top) when it runs dry.
func (e *Engine) drawOne() (model.Card, error) {
	if c, ok := e.deck.Draw(); ok {
		return c, nil
	}
	if len(e.discard) > 1 {
		top := e.discard[len(e.discard)-1]
		rest := make([]model.Card, len(e.discard)-1)
		copy(rest, e.discard)
		e.deck.Refill(rest)
		e.discard = []model.Card{top}
	}
	if c, ok := e.deck.Draw(); ok {
		return c, nil
	}
	return model.Card{}, ErrDeckExhausted
}

// deal gives p up to n cards and returns how many were dealt.
func (e *Engine) deal(p *Player, n int) int {
	dealt := 0
	for ; dealt < n; dealt++ {
		c, err := e.drawOne()
		if err != nil {
			break
		}
		e.give(p, c)
	}
	return dealt
}

func (e *Engine) give(p *Player, c model.Card) {
	p.Hand = append(p.Hand, c)
	if len(p.Hand) > 2 {
		p.DeclaredLow = false
	}
}

func (e *Engine) endInDraw() {
	e.phase = PhaseRoundOver
	e.winner = ""
}

func (e *Engine) seatAfter(steps int) int {
	n := e.reg.Len()
	return ((e.turn+e.direction*steps)%n + n) % n
}

func (e *Engine) advance(steps int) {
	e.turn = e.seatAfter(steps)
}

// InPlay reports whether a turn is running: a round in progress with at
// least two players seated.
func (e *Engine) InPlay() bool {
	return e.phase == PhaseAwaitingMove && e.reg.Len() >= 2
}

// Current returns the player whose turn it is, or nil.
func (e *Engine) Current() *Player {
	if e.phase != PhaseAwaitingMove || e.reg.Len() == 0 {
		return nil
	}
	return e.reg.Seat(e.turn)
}

// CurrentTurn is the identity of the active player, or "".
func (e *Engine) CurrentTurn() string {
	if p := e.Current(); p != nil {
		return p.Identity
	}
	return ""
}

func (e *Engine) Top() (model.Card, bool) {
	if len(e.discard) == 0 {
		return model.Card{}, false
	}
	return e.discard[len(e.discard)-1], true
}

func (e *Engine) Phase() Phase        { return e.phase }
func (e *Engine) Winner() string      { return e.winner }
func (e *Engine) Direction() int      { return e.direction }
func (e *Engine) TurnIndex() int      { return e.turn }
func (e *Engine) Registry() *Registry { return e.reg }

func (e *Engine) Scores() map[string]int {
	out := make(map[string]int, len(e.scores))
	for k, v := range e.scores {
		out[k] = v
	}
	return out
}

// Players returns the public view of every seat in turn order.
func (e *Engine) Players() []model.PlayerView {
	seats := e.reg.Seats()
	out := make([]model.PlayerView, 0, len(seats))
	for _, p := range seats {
		out = append(out, model.PlayerView{
			Name:        p.Identity,
			CardCount:   len(p.Hand),
			DeclaredLow: p.DeclaredLow,
			Score:       e.scores[p.Identity],
		})
	}
	return out
}

// CardCount totals every card of the round: deck, discard pile, seated and
// parked hands.
func (e *Engine) CardCount() int {
	n := e.deck.Len() + len(e.discard)
	for _, p := range e.reg.Seats() {
		n += len(p.Hand)
	}
	for _, p := range e.reg.Parked() {
		n += len(p.Hand)
	}
	return n
}
