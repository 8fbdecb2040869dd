package game

import (
	"uno/internal/model"
)

// Broadcaster delivers a message to one connection. Implementations must not
// block; a slow connection drops messages rather than stalling a room.
type Broadcaster interface {
	Send(connID string, msg model.Message)
}

// StatsRecorder is the Stats Ledger as seen from a room. Calls must return
// quickly; persistence happens elsewhere.
type StatsRecorder interface {
	RecordRound(winner string, losers []string)
	RecordUnoCall(identity string)
	Leaderboard() []model.Standing
}

func (r *Room) sendTo(connID, typ string, payload interface{}) {
	if connID == "" {
		return
	}
	r.out.Send(connID, model.Message{Type: typ, Payload: payload})
}

// broadcast sends to every seated player.
func (r *Room) broadcast(typ string, payload interface{}) {
	msg := model.Message{Type: typ, Payload: payload}
	for _, p := range r.engine.Registry().Seats() {
		r.out.Send(p.ConnID, msg)
	}
}

func (r *Room) broadcastPlayers() {
	r.broadcast(model.MsgPlayerList, r.engine.Players())
}

func (r *Room) broadcastTurn() {
	r.broadcast(model.MsgUpdateTurn, model.TurnPayload{
		CurrentTurn: r.engine.CurrentTurn(),
		Direction:   r.engine.Direction(),
	})
}

func (r *Room) sendHand(p *Player) {
	hand := make([]model.Card, len(p.Hand))
	copy(hand, p.Hand)
	r.sendTo(p.ConnID, model.MsgUpdateHand, hand)
}

func (r *Room) reject(connID, action string, err error) {
	r.sendTo(connID, model.MsgRejected, model.RejectedPayload{Action: action, Reason: err.Error()})
}

func (r *Room) joinedPayload(p *Player) model.JoinedPayload {
	hand := make([]model.Card, len(p.Hand))
	copy(hand, p.Hand)
	jp := model.JoinedPayload{
		Room:        r.key,
		Players:     r.engine.Players(),
		CurrentTurn: r.engine.CurrentTurn(),
		YourHand:    hand,
	}
	if top, ok := r.engine.Top(); ok {
		jp.TopCard = &top
	}
	return jp
}
