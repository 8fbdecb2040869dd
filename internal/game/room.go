package game

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"uno/internal/model"
)

const maxChatLen = 500

type envelopeKind int

const (
	kindJoin envelopeKind = iota
	kindAction
	kindDisconnect
	kindTimeout
)

type envelope struct {
	kind   envelopeKind
	connID string
	action model.Action
	gen    uint64
}

// Room is one game session. All of its state is owned by the goroutine in
// run. Player joins and actions arrive on the bounded inbox and are refused
// when it is full. Disconnects and timer expiries come from the server
// itself and have their own paths that never drop.
type Room struct {
	key      string
	mgr      *Manager
	engine   *Engine
	timer    *TurnTimer
	out      Broadcaster
	stats    StatsRecorder
	log      zerolog.Logger
	password string

	inbox chan envelope
	quit  chan struct{}
	done  chan struct{}

	// ticks signals a timer fire; fired holds the newest generation.
	ticks chan struct{}
	fired atomic.Uint64

	leaveMu sync.Mutex
	leaving []string
	leaves  chan struct{}

	summaryMu sync.Mutex
	summary   model.RoomSummary
}

func newRoom(key string, m *Manager) *Room {
	r := &Room{
		key:    key,
		mgr:    m,
		engine: NewEngine(m.opts.Rules, NewRand(m.seed())),
		out:    m.out,
		stats:  m.stats,
		log:    m.log.With().Str("room", key).Logger(),
		inbox:  make(chan envelope, m.opts.InboxSize),
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
		ticks:  make(chan struct{}, 1),
		leaves: make(chan struct{}, 1),
	}
	r.timer = NewTurnTimer(m.opts.TurnTimeout, m.opts.Schedule, r.postTimeout)
	r.publishSummary()
	return r
}

// post queues a player envelope without blocking. It reports false if the
// inbox is full.
func (r *Room) post(env envelope) bool {
	select {
	case r.inbox <- env:
		return true
	default:
		return false
	}
}

// postTimeout records a timer fire. Fires coalesce: only the newest
// generation can still be live.
func (r *Room) postTimeout(gen uint64) {
	for {
		cur := r.fired.Load()
		if gen <= cur || r.fired.CompareAndSwap(cur, gen) {
			break
		}
	}
	signal(r.ticks)
}

// postLeave queues a disconnect. It never blocks and never drops.
func (r *Room) postLeave(connID string) {
	r.leaveMu.Lock()
	r.leaving = append(r.leaving, connID)
	r.leaveMu.Unlock()
	signal(r.leaves)
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func (r *Room) handleTick() {
	r.dispatch(envelope{kind: kindTimeout, gen: r.fired.Load()})
}

func (r *Room) handleLeaves() {
	r.leaveMu.Lock()
	conns := r.leaving
	r.leaving = nil
	r.leaveMu.Unlock()
	for _, connID := range conns {
		r.dispatch(envelope{kind: kindDisconnect, connID: connID})
	}
}

func (r *Room) run() {
	defer close(r.done)
	for {
		select {
		case <-r.leaves:
			r.handleLeaves()
		case <-r.ticks:
			r.handleTick()
		case env := <-r.inbox:
			r.dispatch(env)
		case <-r.quit:
			r.timer.Cancel()
			return
		}
		if r.engine.Registry().Len() == 0 && r.mgr.release(r) {
			r.timer.Cancel()
			r.log.Info().Msg("room empty, released")
			return
		}
	}
}

// dispatch handles one envelope. A panic is logged and swallowed so a bad
// message cannot take down the room or the process.
func (r *Room) dispatch(env envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().
				Interface("panic", rec).
				Str("conn", env.connID).
				Str("action", env.action.Type).
				Msg("room handler panicked")
		}
		r.publishSummary()
	}()

	switch env.kind {
	case kindJoin:
		r.handleJoin(env.connID, env.action)
	case kindAction:
		r.handleAction(env.connID, env.action)
	case kindDisconnect:
		r.handleDisconnect(env.connID)
	case kindTimeout:
		r.handleTimeout(env.gen)
	}
}

func (r *Room) handleJoin(connID string, a model.Action) {
	// a connection that closed while its join was queued is not seated
	if !r.mgr.bound(connID, r) {
		r.log.Debug().Str("conn", connID).Msg("join from closed connection dropped")
		return
	}
	fresh := r.engine.Registry().Len() == 0
	if !fresh && r.password != "" && a.Password != r.password {
		r.reject(connID, a.Type, ErrBadPassword)
		r.mgr.unbind(connID, r)
		return
	}
	wasInPlay := r.engine.InPlay()
	p, rejoined, err := r.engine.Join(a.Name, connID)
	if err != nil {
		r.log.Debug().Err(err).Str("conn", connID).Str("player", a.Name).Msg("join rejected")
		r.reject(connID, a.Type, err)
		r.mgr.unbind(connID, r)
		return
	}
	if fresh {
		r.password = a.Password
	}
	r.log.Info().
		Str("conn", connID).
		Str("player", p.Identity).
		Bool("rejoined", rejoined).
		Int("seats", r.engine.Registry().Len()).
		Msg("player joined")

	r.sendTo(connID, model.MsgJoined, r.joinedPayload(p))
	r.broadcastPlayers()
	if !wasInPlay && r.engine.InPlay() {
		r.timer.Arm()
		r.broadcastTurn()
	}
}

func (r *Room) handleAction(connID string, a model.Action) {
	p, ok := r.engine.Registry().ByConn(connID)
	if !ok {
		r.log.Debug().Str("conn", connID).Str("action", a.Type).Msg("action from unseated connection ignored")
		return
	}
	switch a.Type {
	case model.ActionPlayCard:
		r.playCard(p, a)
	case model.ActionDrawCard:
		r.drawCard(p, a)
	case model.ActionDeclareLow:
		r.declareLow(p, a)
	case model.ActionChat:
		r.chat(p, a)
	case model.ActionRestart:
		r.restart(p, a)
	case model.ActionLeaderboard:
		r.sendTo(p.ConnID, model.MsgLeaderboard, r.stats.Leaderboard())
	default:
		r.reject(connID, a.Type, errors.New("unknown action"))
	}
}

func (r *Room) playCard(p *Player, a model.Action) {
	if a.HandIndex == nil {
		r.reject(p.ConnID, a.Type, fmt.Errorf("%w: handIndex required", ErrIllegalMove))
		return
	}
	res, err := r.engine.PlayCard(p.Identity, *a.HandIndex, a.Color)
	if err != nil {
		r.reject(p.ConnID, a.Type, err)
		return
	}
	r.log.Debug().Str("player", p.Identity).Stringer("card", res.Card).Stringer("effect", res.Effect.Kind).Msg("card played")

	r.broadcast(model.MsgTopCard, res.Card)
	r.sendHand(res.Actor)
	if res.LowPenalty > 0 {
		r.broadcast(model.MsgPenalty, model.PenaltyPayload{Identity: p.Identity, Cards: res.LowPenalty, Reason: "lowHand"})
	}
	if res.Penalized != nil {
		r.sendHand(res.Penalized)
		r.broadcast(model.MsgPenalty, model.PenaltyPayload{
			Identity: res.Penalized.Identity,
			Cards:    res.PenaltyCards,
			Reason:   string(res.Card.Value),
		})
	}
	r.broadcastPlayers()
	if res.Winner != "" {
		r.finishRound(res.Winner)
		return
	}
	r.timer.Arm()
	r.broadcastTurn()
}

func (r *Room) drawCard(p *Player, a model.Action) {
	res, err := r.engine.DrawCard(p.Identity)
	if errors.Is(err, ErrDeckExhausted) {
		r.endInDraw()
		return
	}
	if err != nil {
		r.reject(p.ConnID, a.Type, err)
		return
	}
	r.sendHand(res.Actor)
	r.broadcastPlayers()
	r.timer.Arm()
	r.broadcastTurn()
}

func (r *Room) handleTimeout(gen uint64) {
	if !r.timer.Live(gen) {
		r.log.Debug().Uint64("gen", gen).Msg("stale timer ignored")
		return
	}
	r.timer.Expired()
	res, err := r.engine.Timeout()
	if errors.Is(err, ErrDeckExhausted) {
		r.endInDraw()
		return
	}
	if err != nil {
		r.log.Warn().Err(err).Msg("timeout with no turn in progress")
		return
	}
	r.log.Info().Str("player", res.Actor.Identity).Msg("turn timed out")
	r.broadcast(model.MsgPenalty, model.PenaltyPayload{Identity: res.Actor.Identity, Cards: 1, Reason: "timeout"})
	r.sendHand(res.Actor)
	r.broadcastPlayers()
	r.timer.Arm()
	r.broadcastTurn()
}

func (r *Room) declareLow(p *Player, a model.Action) {
	counted, err := r.engine.DeclareLow(p.Identity)
	if err != nil {
		r.reject(p.ConnID, a.Type, err)
		return
	}
	if counted {
		r.stats.RecordUnoCall(p.Identity)
		r.broadcastPlayers()
	}
	r.sendTo(p.ConnID, model.MsgAck, map[string]string{"action": a.Type})
}

func (r *Room) chat(p *Player, a model.Action) {
	text := strings.TrimSpace(a.Text)
	if text == "" {
		r.reject(p.ConnID, a.Type, errors.New("empty message"))
		return
	}
	if utf8.RuneCountInString(text) > maxChatLen {
		text = string([]rune(text)[:maxChatLen])
	}
	r.broadcast(model.MsgChat, model.ChatPayload{Identity: p.Identity, Text: text})
}

func (r *Room) restart(p *Player, a model.Action) {
	if err := r.engine.Restart(); err != nil {
		r.reject(p.ConnID, a.Type, err)
		return
	}
	r.log.Info().Str("player", p.Identity).Msg("round restarted")
	for _, s := range r.engine.Registry().Seats() {
		r.sendTo(s.ConnID, model.MsgJoined, r.joinedPayload(s))
	}
	if r.engine.InPlay() {
		r.timer.Arm()
	} else {
		r.timer.Cancel()
	}
}

func (r *Room) handleDisconnect(connID string) {
	res, err := r.engine.Leave(connID)
	if err != nil {
		return
	}
	r.mgr.unbind(connID, r)
	r.log.Info().Str("conn", connID).Str("player", res.Player.Identity).Bool("active", res.WasActive).Msg("player left")
	if r.engine.Registry().Len() == 0 {
		r.timer.Cancel()
		return
	}
	r.broadcastPlayers()
	switch {
	case !r.engine.InPlay():
		r.timer.Cancel()
	case res.WasActive:
		r.timer.Arm()
		r.broadcastTurn()
	}
}

func (r *Room) finishRound(winner string) {
	r.timer.Cancel()
	losers := make([]string, 0, r.engine.Registry().Len())
	for _, s := range r.engine.Registry().Seats() {
		if s.Identity != winner {
			losers = append(losers, s.Identity)
		}
	}
	r.stats.RecordRound(winner, losers)
	r.log.Info().Str("winner", winner).Strs("losers", losers).Msg("round over")
	r.broadcast(model.MsgGameOver, model.GameOverPayload{Winner: winner, Scores: r.engine.Scores()})
}

func (r *Room) endInDraw() {
	r.timer.Cancel()
	r.log.Warn().Msg("deck exhausted, round ends without a winner")
	r.broadcast(model.MsgGameOver, model.GameOverPayload{Scores: r.engine.Scores()})
}

func (r *Room) publishSummary() {
	s := model.RoomSummary{
		Key:         r.key,
		PlayerCount: r.engine.Registry().Len(),
		Phase:       string(r.engine.Phase()),
	}
	r.summaryMu.Lock()
	r.summary = s
	r.summaryMu.Unlock()
}

func (r *Room) Summary() model.RoomSummary {
	r.summaryMu.Lock()
	defer r.summaryMu.Unlock()
	return r.summary
}

func (r *Room) Key() string { return r.key }
