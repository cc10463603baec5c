package syncdb

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"quizsync/internal/domain"
	"quizsync/internal/session"
)

const schema = `
CREATE TABLE IF NOT EXISTS game_results (
	run_id      UUID        NOT NULL,
	channel_id  TEXT        NOT NULL,
	room_id     TEXT        NOT NULL,
	game_seq    INT         NOT NULL,
	username    TEXT        NOT NULL,
	score       INT         NOT NULL,
	rank        INT         NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (run_id, room_id, game_seq, username)
)`

const insertResult = `
INSERT INTO game_results (run_id, channel_id, room_id, game_seq,
                          username, score, rank, finished_at)
     VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT DO NOTHING`

// Archive stores final scoreboards. It is a results table, not an event
// log: one row per player per finished game.
type Archive struct {
	db    *sql.DB
	runID uuid.UUID
}

// NewArchive tags every row with a fresh run id, so game sequence numbers
// from different processes never collide.
func NewArchive(db *sql.DB) *Archive {
	return &Archive{db: db, runID: uuid.New()}
}

func (a *Archive) RunID() uuid.UUID { return a.runID }

func (a *Archive) Migrate(ctx context.Context) error {
	if _, err := a.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate game_results: %w", err)
	}
	return nil
}

type Standing struct {
	Username string
	Score    int
	Rank     int
}

// Standings orders a scoreboard by score, then name. Tied scores share a
// rank.
func Standings(b session.ScoreBoard) []Standing {
	out := make([]Standing, 0, len(b))
	for name, score := range b {
		out = append(out, Standing{Username: name, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Username < out[j].Username
	})
	for i := range out {
		if i > 0 && out[i].Score == out[i-1].Score {
			out[i].Rank = out[i-1].Rank
		} else {
			out[i].Rank = i + 1
		}
	}
	return out
}

// RecordResult writes one finished game in a single transaction.
func (a *Archive) RecordResult(ctx context.Context, r session.GameFinished) error {
	if r.Scope.Kind != domain.ScopeGameRoom || len(r.Scores) == 0 {
		return nil
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("syncdb begin: %w", err)
	}
	defer tx.Rollback()

	for _, s := range Standings(r.Scores) {
		if _, err := tx.ExecContext(ctx, insertResult,
			a.runID, r.Scope.Channel, r.Scope.Room, r.GameSeq,
			s.Username, s.Score, s.Rank, r.FinishedAt); err != nil {
			return fmt.Errorf("syncdb insert %s: %w", s.Username, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("syncdb commit: %w", err)
	}
	zap.L().Info("syncdb.recorded",
		zap.String("room", r.Scope.Room),
		zap.Int("game_seq", r.GameSeq),
		zap.Int("players", len(r.Scores)))
	return nil
}
