package game

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"uno/internal/model"
)

// capture records every message per connection.
type capture struct {
	mu   sync.Mutex
	msgs map[string][]model.Message
}

func newCapture() *capture {
	return &capture{msgs: make(map[string][]model.Message)}
}

func (c *capture) Send(connID string, msg model.Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs[connID] = append(c.msgs[connID], msg)
}

func (c *capture) of(connID string) []model.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]model.Message(nil), c.msgs[connID]...)
}

// last returns the latest message of type typ sent to connID.
func (c *capture) last(connID, typ string) (model.Message, bool) {
	msgs := c.of(connID)
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Type == typ {
			return msgs[i], true
		}
	}
	return model.Message{}, false
}

func (c *capture) count(connID, typ string) int {
	n := 0
	for _, m := range c.of(connID) {
		if m.Type == typ {
			n++
		}
	}
	return n
}

func (c *capture) reset() {
	c.mu.Lock()
	c.msgs = make(map[string][]model.Message)
	c.mu.Unlock()
}

type roundRecord struct {
	winner string
	losers []string
}

type fakeStats struct {
	mu       sync.Mutex
	rounds   []roundRecord
	unoCalls map[string]int
	board    []model.Standing
}

func newFakeStats() *fakeStats {
	return &fakeStats{unoCalls: make(map[string]int)}
}

func (s *fakeStats) RecordRound(winner string, losers []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rounds = append(s.rounds, roundRecord{winner: winner, losers: losers})
}

func (s *fakeStats) RecordUnoCall(identity string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unoCalls[identity]++
}

func (s *fakeStats) Leaderboard() []model.Standing {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.board
}

func (s *fakeStats) recorded() []roundRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]roundRecord(nil), s.rounds...)
}

type roomFixture struct {
	room  *Room
	out   *capture
	stats *fakeStats
	clock *fakeClock
}

// newRoomFixture builds a room that is driven synchronously through
// dispatch; its run loop is never started.
func newRoomFixture(t *testing.T) *roomFixture {
	t.Helper()
	f := &roomFixture{out: newCapture(), stats: newFakeStats(), clock: &fakeClock{}}
	m := NewManager(Options{
		Rules:       DefaultRules(),
		TurnTimeout: 30 * time.Second,
		Schedule:    f.clock.Schedule,
		Seed:        func() uint64 { return 1 },
	}, f.out, f.stats, zerolog.Nop())
	f.room = newRoom("table", m)
	return f
}

func at(i int) *int { return &i }

// join indexes connID to the room the way Manager.join does, then delivers
// the join.
func (f *roomFixture) join(connID, name, password string) {
	m := f.room.mgr
	m.mu.Lock()
	m.conns[connID] = f.room
	m.mu.Unlock()
	f.room.dispatch(envelope{kind: kindJoin, connID: connID, action: model.Action{
		Type: model.ActionJoin, Room: f.room.key, Name: name, Password: password,
	}})
}

func (f *roomFixture) act(connID string, a model.Action) {
	f.room.dispatch(envelope{kind: kindAction, connID: connID, action: a})
}

// deliver runs everything queued for the room, as run would.
func (f *roomFixture) deliver() {
	for {
		select {
		case <-f.room.leaves:
			f.room.handleLeaves()
		case <-f.room.ticks:
			f.room.handleTick()
		case env := <-f.room.inbox:
			f.room.dispatch(env)
		default:
			return
		}
	}
}

// faultyBroadcaster panics on the first message of type failOn and passes
// everything else through.
type faultyBroadcaster struct {
	next   Broadcaster
	failOn string
	failed bool
}

func (b *faultyBroadcaster) Send(connID string, msg model.Message) {
	if msg.Type == b.failOn && !b.failed {
		b.failed = true
		panic("connection table corrupted")
	}
	b.next.Send(connID, msg)
}
