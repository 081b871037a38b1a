// Package playlog records proof-of-play events reported by players.
package playlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	OutcomeShown  = "shown"
	OutcomeEnded  = "ended"
	OutcomeError  = "error"
	OutcomeCutOff = "cut_off"
)

const MaxRecent = 500

var (
	ErrInvalidPlay = errors.New("play needs a player, a src and a start time")
	ErrNoPlays     = errors.New("no plays recorded")
)

// Play is one item having been on screen.
type Play struct {
	ID         string    `json:"id"`
	Player     string    `json:"player"`
	Src        string    `json:"src"`
	Type       string    `json:"type"`
	Outcome    string    `json:"outcome"`
	StartedAt  time.Time `json:"startedAt"`
	DurationMs int64     `json:"durationMs"`
}

func (p Play) Validate() error {
	if p.Player == "" || p.Src == "" || p.StartedAt.IsZero() || p.DurationMs < 0 {
		return ErrInvalidPlay
	}
	if p.ID != "" {
		if _, err := uuid.Parse(p.ID); err != nil {
			return ErrInvalidPlay
		}
	}
	return nil
}

type Store interface {
	Record(ctx context.Context, p Play) (Play, error)
	Recent(ctx context.Context, limit int) ([]Play, error)
	Last(ctx context.Context, src string) (Play, error)
}

// DB is implemented by *pgxpool.Pool and can be mocked for testing.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Record(ctx context.Context, p Play) (Play, error) {
	if err := p.Validate(); err != nil {
		return Play{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.Outcome == "" {
		p.Outcome = OutcomeShown
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO plays (id, player, src, type, outcome, started_at, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`, p.ID, p.Player, p.Src, p.Type, p.Outcome, p.StartedAt, p.DurationMs)
	if err != nil {
		return Play{}, fmt.Errorf("insert play: %w", err)
	}
	return p, nil
}

// Recent returns the latest plays, newest first.
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Play, error) {
	if limit <= 0 || limit > MaxRecent {
		limit = MaxRecent
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, player, src, type, outcome, started_at, duration_ms
		FROM plays
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query plays: %w", err)
	}
	defer rows.Close()

	out := make([]Play, 0)
	for rows.Next() {
		var p Play
		if err := rows.Scan(&p.ID, &p.Player, &p.Src, &p.Type, &p.Outcome, &p.StartedAt, &p.DurationMs); err != nil {
			return nil, fmt.Errorf("scan play: %w", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate plays: %w", err)
	}
	return out, nil
}

// Last returns the most recent play of src, or ErrNoPlays.
func (s *PostgresStore) Last(ctx context.Context, src string) (Play, error) {
	var p Play
	err := s.db.QueryRow(ctx, `
		SELECT id, player, src, type, outcome, started_at, duration_ms
		FROM plays
		WHERE src = $1
		ORDER BY started_at DESC
		LIMIT 1
	`, src).Scan(&p.ID, &p.Player, &p.Src, &p.Type, &p.Outcome, &p.StartedAt, &p.DurationMs)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Play{}, ErrNoPlays
		}
		return Play{}, fmt.Errorf("query last play: %w", err)
	}
	return p, nil
}

// Nop accepts plays and forgets them. It is used when no database is
// configured.
type Nop struct{}

func (Nop) Record(_ context.Context, p Play) (Play, error) {
	if err := p.Validate(); err != nil {
		return Play{}, err
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return p, nil
}

func (Nop) Recent(context.Context, int) ([]Play, error) { return []Play{}, nil }

func (Nop) Last(context.Context, string) (Play, error) { return Play{}, ErrNoPlays }
