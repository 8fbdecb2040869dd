package game

import (
	"errors"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"uno/internal/model"
)

type Options struct {
	Rules       Rules
	TurnTimeout time.Duration
	// Schedule arms turn timers; nil means time.AfterFunc.
	Schedule Scheduler
	// Seed seeds each new room's deck; nil means random.
	Seed      func() uint64
	InboxSize int
}

// Manager owns every live room and the connection→room index.
type Manager struct {
	opts  Options
	out   Broadcaster
	stats StatsRecorder
	log   zerolog.Logger

	mu    sync.Mutex
	rooms map[string]*Room
	conns map[string]*Room
}

func NewManager(opts Options, out Broadcaster, stats StatsRecorder, log zerolog.Logger) *Manager {
	if opts.InboxSize <= 0 {
		opts.InboxSize = 256
	}
	return &Manager{
		opts:  opts,
		out:   out,
		stats: stats,
		log:   log,
		rooms: make(map[string]*Room),
		conns: make(map[string]*Room),
	}
}

func (m *Manager) seed() uint64 {
	if m.opts.Seed != nil {
		return m.opts.Seed()
	}
	return rand.Uint64()
}

// ResolveRoom returns the room for key, creating and starting it on first
// reference.
func (m *Manager) ResolveRoom(key string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolveLocked(key)
}

func (m *Manager) resolveLocked(key string) *Room {
	if r, ok := m.rooms[key]; ok {
		return r
	}
	r := newRoom(key, m)
	m.rooms[key] = r
	go r.run()
	m.log.Info().Str("room", key).Msg("room created")
	return r
}

// HandleAction routes an inbound action. Joins are addressed by room key,
// everything else by the room the connection already belongs to.
func (m *Manager) HandleAction(connID string, a model.Action) {
	if a.Type == model.ActionJoin {
		m.join(connID, a)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.conns[connID]
	if !ok {
		m.log.Debug().Str("conn", connID).Str("action", a.Type).Err(ErrUnknownConnection).Msg("stray action dropped")
		return
	}
	if !r.post(envelope{kind: kindAction, connID: connID, action: a}) {
		m.busy(connID, r, a.Type)
	}
}

func (m *Manager) join(connID string, a model.Action) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if a.Room == "" {
		m.reject(connID, a.Type, errors.New("room required"))
		return
	}
	if r, ok := m.conns[connID]; ok {
		m.reject(connID, a.Type, errors.New("already in room "+r.key))
		return
	}
	r := m.resolveLocked(a.Room)
	// Reserve the index entry now so actions sent right after the join
	// reach this room; the room unbinds it again if the join is rejected.
	m.conns[connID] = r
	if !r.post(envelope{kind: kindJoin, connID: connID, action: a}) {
		delete(m.conns, connID)
		m.busy(connID, r, a.Type)
	}
}

// OnDisconnect removes connID from its room. Without an index entry the
// disconnect is offered to every room; rooms ignore connections they do
// not seat. Disconnects bypass the inbox, so a flooded room still sees them.
func (m *Manager) OnDisconnect(connID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.conns[connID]; ok {
		delete(m.conns, connID)
		r.postLeave(connID)
		return
	}
	for _, r := range m.rooms {
		r.postLeave(connID)
	}
}

// bound reports whether connID is still indexed to r.
func (m *Manager) bound(connID string, r *Room) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conns[connID] == r
}

// unbind drops connID from the index if it still points at r.
func (m *Manager) unbind(connID string, r *Room) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conns[connID] == r {
		delete(m.conns, connID)
	}
}

// release tears r down if nothing is waiting in its inbox. Every post from
// the manager happens under mu, so an empty inbox here stays empty.
func (m *Manager) release(r *Room) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(r.inbox) > 0 {
		return false
	}
	if m.rooms[r.key] == r {
		delete(m.rooms, r.key)
	}
	return true
}

func (m *Manager) busy(connID string, r *Room, action string) {
	r.log.Warn().Str("conn", connID).Str("action", action).Msg("inbox full, action rejected")
	m.reject(connID, action, errors.New("room busy, try again"))
}

func (m *Manager) reject(connID, action string, err error) {
	m.out.Send(connID, model.Message{
		Type:    model.MsgRejected,
		Payload: model.RejectedPayload{Action: action, Reason: err.Error()},
	})
}

// Summaries lists live rooms sorted by key.
func (m *Manager) Summaries() []model.RoomSummary {
	m.mu.Lock()
	list := make([]model.RoomSummary, 0, len(m.rooms))
	for _, r := range m.rooms {
		list = append(list, r.Summary())
	}
	m.mu.Unlock()

	sort.Slice(list, func(i, j int) bool { return list[i].Key < list[j].Key })
	return list
}

// RoomOf reports the key of the room connID belongs to.
func (m *Manager) RoomOf(connID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.conns[connID]
	if !ok {
		return "", false
	}
	return r.key, true
}

// Shutdown stops every room and waits for their goroutines to exit.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for key, r := range m.rooms {
		rooms = append(rooms, r)
		delete(m.rooms, key)
	}
	m.conns = make(map[string]*Room)
	m.mu.Unlock()

	for _, r := range rooms {
		close(r.quit)
		<-r.done
	}
	m.log.Info().Int("rooms", len(rooms)).Msg("room manager stopped")
}
