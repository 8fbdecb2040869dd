package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"uno/internal/model"
)

// SQLiteStore keeps the ledger in a player_stats table and appends one
// game_history row per finished round.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dbPath, err)
	}
	// one connection keeps ":memory:" databases shared and writes serialized
	db.SetMaxOpenConns(1)

	sqlStmt := `CREATE TABLE IF NOT EXISTS player_stats (name TEXT PRIMARY KEY, wins INTEGER NOT NULL DEFAULT 0, losses INTEGER NOT NULL DEFAULT 0, uno_calls INTEGER NOT NULL DEFAULT 0, updated_at DATETIME DEFAULT CURRENT_TIMESTAMP);`
	sqlStmt += `CREATE TABLE IF NOT EXISTS game_history (id INTEGER PRIMARY KEY AUTOINCREMENT, winner TEXT, losers TEXT, played_at DATETIME DEFAULT CURRENT_TIMESTAMP);`
	if _, err = db.Exec(sqlStmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) (map[string]model.PlayerStats, error) {
	stats := make(map[string]model.PlayerStats)
	rows, err := s.db.QueryContext(ctx, `SELECT name, wins, losses, uno_calls FROM player_stats`)
	if err != nil {
		return nil, fmt.Errorf("query player_stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		var st model.PlayerStats
		if err := rows.Scan(&name, &st.Wins, &st.Losses, &st.UnoCalls); err != nil {
			return nil, fmt.Errorf("scan player_stats: %w", err)
		}
		stats[name] = st
	}
	return stats, rows.Err()
}

// Save upserts every entry of the snapshot in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, snapshot map[string]model.PlayerStats) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO player_stats (name, wins, losses, uno_calls, updated_at) VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(name) DO UPDATE SET wins = excluded.wins, losses = excluded.losses, uno_calls = excluded.uno_calls, updated_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return fmt.Errorf("prepare upsert: %w", err)
	}
	defer stmt.Close()

	for name, st := range snapshot {
		if _, err := stmt.ExecContext(ctx, name, st.Wins, st.Losses, st.UnoCalls); err != nil {
			return fmt.Errorf("upsert %s: %w", name, err)
		}
	}
	return tx.Commit()
}

// RecordGameResult appends a finished round to game_history.
func (s *SQLiteStore) RecordGameResult(ctx context.Context, winner string, losers []string) error {
	names, err := json.Marshal(losers)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO game_history (winner, losers) VALUES (?, ?)`, winner, string(names))
	if err != nil {
		return fmt.Errorf("insert game_history: %w", err)
	}
	return nil
}
