package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"uno/internal/model"
)

// Store persists the full ledger.
type Store interface {
	Load(ctx context.Context) (map[string]model.PlayerStats, error)
	Save(ctx context.Context, snapshot map[string]model.PlayerStats) error
	Close() error
}

// RoundRecorder is implemented by stores that also keep a round history.
type RoundRecorder interface {
	RecordGameResult(ctx context.Context, winner string, losers []string) error
}

// Open returns the store for backend ("json" or "sqlite").
func Open(backend, path string) (Store, error) {
	switch backend {
	case "", "json":
		return NewJSONStore(path), nil
	case "sqlite":
		s, err := NewSQLiteStore(path)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown stats backend %q", backend)
}

// retryDelay spaces out writes while the store keeps failing.
var retryDelay = time.Second

type round struct {
	winner string
	losers []string
}

// Ledger holds cumulative per-player counters in memory. Recording never
// touches the store; a single writer goroutine (Run) saves snapshots in the
// background, so a crash between a record and the next save loses it.
type Ledger struct {
	store Store
	log   zerolog.Logger

	mu      sync.Mutex
	stats   map[string]model.PlayerStats
	pending []round

	dirty chan struct{}
}

func NewLedger(store Store, log zerolog.Logger) *Ledger {
	return &Ledger{
		store: store,
		log:   log,
		stats: make(map[string]model.PlayerStats),
		dirty: make(chan struct{}, 1),
	}
}

// Load merges the persisted counters into memory.
func (l *Ledger) Load(ctx context.Context) error {
	prior, err := l.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load ledger: %w", err)
	}
	l.Merge(prior)
	l.log.Info().Int("players", len(prior)).Msg("stats ledger loaded")
	return nil
}

// Merge adds prior counters onto the in-memory ones.
func (l *Ledger) Merge(prior map[string]model.PlayerStats) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for name, p := range prior {
		st := l.stats[name]
		st.Wins += p.Wins
		st.Losses += p.Losses
		st.UnoCalls += p.UnoCalls
		l.stats[name] = st
	}
}

func (l *Ledger) RecordRound(winner string, losers []string) {
	l.mu.Lock()
	st := l.stats[winner]
	st.Wins++
	l.stats[winner] = st
	for _, name := range losers {
		st := l.stats[name]
		st.Losses++
		l.stats[name] = st
	}
	l.pending = append(l.pending, round{winner: winner, losers: append([]string(nil), losers...)})
	l.mu.Unlock()
	l.markDirty()
}

func (l *Ledger) RecordUnoCall(identity string) {
	l.mu.Lock()
	st := l.stats[identity]
	st.UnoCalls++
	l.stats[identity] = st
	l.mu.Unlock()
	l.markDirty()
}

func (l *Ledger) markDirty() {
	select {
	case l.dirty <- struct{}{}:
	default:
	}
}

func (l *Ledger) Snapshot() map[string]model.PlayerStats {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make(map[string]model.PlayerStats, len(l.stats))
	for k, v := range l.stats {
		out[k] = v
	}
	return out
}

// Leaderboard lists every player by wins, most first, ties by name.
func (l *Ledger) Leaderboard() []model.Standing {
	l.mu.Lock()
	list := make([]model.Standing, 0, len(l.stats))
	for name, st := range l.stats {
		list = append(list, model.Standing{Identity: name, Wins: st.Wins})
	}
	l.mu.Unlock()

	sort.Slice(list, func(i, j int) bool {
		if list[i].Wins != list[j].Wins {
			return list[i].Wins > list[j].Wins
		}
		return list[i].Identity < list[j].Identity
	})
	return list
}

// Flush saves the current snapshot and any rounds not yet written. Rounds
// that fail to write stay queued for the next flush.
func (l *Ledger) Flush(ctx context.Context) error {
	l.mu.Lock()
	snap := make(map[string]model.PlayerStats, len(l.stats))
	for k, v := range l.stats {
		snap[k] = v
	}
	rounds := l.pending
	l.pending = nil
	l.mu.Unlock()

	if err := l.store.Save(ctx, snap); err != nil {
		l.requeue(rounds)
		return fmt.Errorf("save ledger: %w", err)
	}
	if rr, ok := l.store.(RoundRecorder); ok {
		for i, r := range rounds {
			if err := rr.RecordGameResult(ctx, r.winner, r.losers); err != nil {
				l.requeue(rounds[i:])
				return fmt.Errorf("record round: %w", err)
			}
		}
	}
	return nil
}

// requeue puts unwritten rounds back ahead of any recorded since.
func (l *Ledger) requeue(rounds []round) {
	if len(rounds) == 0 {
		return
	}
	l.mu.Lock()
	l.pending = append(append([]round(nil), rounds...), l.pending...)
	l.mu.Unlock()
}

// Run is the single ledger writer. It saves after every change until ctx is
// cancelled, then writes whatever is still dirty. A failed write is retried
// after retryDelay.
func (l *Ledger) Run(ctx context.Context) error {
	var retry <-chan time.Time
	flush := func() {
		retry = nil
		if err := l.Flush(ctx); err != nil {
			l.log.Error().Err(err).Msg("stats ledger write failed")
			retry = time.After(retryDelay)
		}
	}
	for {
		select {
		case <-l.dirty:
			flush()
		case <-retry:
			flush()
		case <-ctx.Done():
			pending := retry != nil
			select {
			case <-l.dirty:
				pending = true
			default:
			}
			if pending {
				flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := l.Flush(flushCtx); err != nil {
					l.log.Error().Err(err).Msg("final stats ledger write failed")
				}
			}
			return nil
		}
	}
}
