package game

import (
	"fmt"
	"slices"

	"uno/internal/model"
)

// Player is a seat in a room. Identity is the durable key; ConnID changes
// on every reconnect.
type Player struct {
	Identity    string
	ConnID      string
	Hand        []model.Card
	DeclaredLow bool

	// seat is the turn-order index held when the player was parked.
	seat int
}

// Registry keeps the seated players of one room in join order, plus the
// hands of players who dropped out mid-round so a rejoin can pick them up.
type Registry struct {
	seats  []*Player
	byName map[string]*Player
	byConn map[string]*Player
	away   map[string]*Player
}

func NewRegistry() *Registry {
	return &Registry{
		byName: make(map[string]*Player),
		byConn: make(map[string]*Player),
		away:   make(map[string]*Player),
	}
}

// Join seats identity under connID. rejoined is true when a parked hand was
// restored, and the player takes back their old place in turn order;
// otherwise the caller deals a fresh hand and the player sits last.
func (r *Registry) Join(identity, connID string) (p *Player, rejoined bool, err error) {
	if identity == "" {
		return nil, false, fmt.Errorf("%w: name required", ErrIllegalMove)
	}
	if _, ok := r.byName[identity]; ok {
		return nil, false, fmt.Errorf("%w: %q is already seated", ErrDuplicateName, identity)
	}
	if _, ok := r.byConn[connID]; ok {
		return nil, false, fmt.Errorf("%w: connection already seated", ErrIllegalMove)
	}
	if parked, ok := r.away[identity]; ok {
		delete(r.away, identity)
		p, rejoined = parked, true
		p.ConnID = connID
		r.seats = slices.Insert(r.seats, min(p.seat, len(r.seats)), p)
	} else {
		p = &Player{Identity: identity, ConnID: connID}
		r.seats = append(r.seats, p)
	}
	r.byName[identity] = p
	r.byConn[connID] = p
	return p, rejoined, nil
}

// Leave unseats the player on connID and parks their hand. It returns the
// seat index the player held, or -1 if the connection is not seated.
func (r *Registry) Leave(connID string) (*Player, int) {
	p, ok := r.byConn[connID]
	if !ok {
		return nil, -1
	}
	idx := r.indexOf(p)
	r.seats = append(r.seats[:idx], r.seats[idx+1:]...)
	delete(r.byConn, connID)
	delete(r.byName, p.Identity)
	p.ConnID = ""
	p.seat = idx
	r.away[p.Identity] = p
	return p, idx
}

func (r *Registry) indexOf(p *Player) int {
	for i, s := range r.seats {
		if s == p {
			return i
		}
	}
	return -1
}

func (r *Registry) ByConn(connID string) (*Player, bool) {
	p, ok := r.byConn[connID]
	return p, ok
}

func (r *Registry) ByName(identity string) (*Player, bool) {
	p, ok := r.byName[identity]
	return p, ok
}

// Seat returns the player at turn-order index i.
func (r *Registry) Seat(i int) *Player { return r.seats[i] }

func (r *Registry) Len() int { return len(r.seats) }

// Seats returns the seated players in turn order. The slice must not be
// modified.
func (r *Registry) Seats() []*Player { return r.seats }

// Parked returns the hands of players who left mid-round.
func (r *Registry) Parked() []*Player {
	out := make([]*Player, 0, len(r.away))
	for _, p := range r.away {
		out = append(out, p)
	}
	return out
}

// ClearParked forgets every parked hand, e.g. on a fresh deal.
func (r *Registry) ClearParked() {
	r.away = make(map[string]*Player)
}
