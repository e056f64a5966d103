package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"live-session-service/internal/domain"
)

// SessionArchive persists the final snapshot of ended sessions as JSONB.
type SessionArchive struct {
	pool *pgxpool.Pool
}

func NewSessionArchive(pool *pgxpool.Pool) *SessionArchive {
	return &SessionArchive{pool: pool}
}

func (a *SessionArchive) ArchiveSession(ctx context.Context, snap domain.SessionSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}
	_, err = a.pool.Exec(ctx,
		`INSERT INTO sessions_archive (id, data, ended_at) VALUES ($1, $2::jsonb, now())
		 ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, ended_at = now()`,
		snap.ID, string(data))
	if err != nil {
		return fmt.Errorf("archive session: %w", err)
	}
	return nil
}

// LoadSession reads an archived snapshot back, for post-session review.
func (a *SessionArchive) LoadSession(ctx context.Context, sessionID string) (domain.SessionSnapshot, error) {
	var raw []byte
	err := a.pool.QueryRow(ctx, `SELECT data FROM sessions_archive WHERE id=$1`, sessionID).Scan(&raw)
	if err != nil {
		return domain.SessionSnapshot{}, fmt.Errorf("load session: %w", err)
	}
	var snap domain.SessionSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return domain.SessionSnapshot{}, fmt.Errorf("unmarshal session: %w", err)
	}
	return snap, nil
}
