package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type sessionRepo struct {
	pool DBPool
}

func (r *sessionRepo) Create(ctx context.Context, s Session) error {
	defer observeDB(ctx, "sessions.create")()
	const q = `INSERT INTO sessions (id, user_id, user_agent, ip_address, expires_at)
VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.pool.Exec(ctx, q, s.ID, s.UserID, s.UserAgent, s.IPAddress, s.ExpiresAt); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetByID returns ErrNotFound for unknown and expired sessions alike.
func (r *sessionRepo) GetByID(ctx context.Context, id string) (*Session, error) {
	defer observeDB(ctx, "sessions.get_by_id")()
	const q = `SELECT id, user_id, user_agent, ip_address, created_at, expires_at, last_seen_at
FROM sessions WHERE id=$1 AND expires_at > NOW()`

	var s Session
	err := r.pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.UserID, &s.UserAgent, &s.IPAddress, &s.CreatedAt, &s.ExpiresAt, &s.LastSeenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &s, nil
}

func (r *sessionRepo) Touch(ctx context.Context, id string) error {
	defer observeDB(ctx, "sessions.touch")()
	if _, err := r.pool.Exec(ctx, `UPDATE sessions SET last_seen_at = NOW() WHERE id=$1`, id); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

func (r *sessionRepo) Delete(ctx context.Context, id string) error {
	defer observeDB(ctx, "sessions.delete")()
	if _, err := r.pool.Exec(ctx, `DELETE FROM sessions WHERE id=$1`, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpired removes expired sessions and returns their ids.
func (r *sessionRepo) DeleteExpired(ctx context.Context) ([]string, error) {
	defer observeDB(ctx, "sessions.delete_expired")()
	rows, err := r.pool.Query(ctx, `DELETE FROM sessions WHERE expires_at <= NOW() RETURNING id`)
	if err != nil {
		return nil, fmt.Errorf("delete expired sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired session: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("delete expired sessions: %w", err)
	}
	return ids, nil
}
