package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

type messageRepo struct {
	pool DBPool
}

const messageColumns = `m.id, m.user_id, u.primary_email, m.content, m.image_url, m.created_at`

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	if err := row.Scan(&m.ID, &m.UserID, &m.AuthorEmail, &m.Content, &m.ImageURL, &m.CreatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *messageRepo) Create(ctx context.Context, msg Message) (*Message, error) {
	defer observeDB(ctx, "messages.create")()
	const q = `WITH m AS (
	INSERT INTO messages (user_id, content, image_url)
	VALUES ($1, $2, $3)
	RETURNING id, user_id, content, image_url, created_at
)
SELECT ` + messageColumns + ` FROM m JOIN users u ON u.id = m.user_id`

	created, err := scanMessage(r.pool.QueryRow(ctx, q, msg.UserID, msg.Content, msg.ImageURL))
	if err != nil {
		return nil, fmt.Errorf("create message: %w", err)
	}
	return created, nil
}

func (r *messageRepo) GetByID(ctx context.Context, id int64) (*Message, error) {
	defer observeDB(ctx, "messages.get_by_id")()
	const q = `SELECT ` + messageColumns + ` FROM messages m JOIN users u ON u.id = m.user_id WHERE m.id=$1`

	m, err := scanMessage(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get message %d: %w", id, err)
	}
	return m, nil
}

// ListRecent returns the newest limit messages in chronological order.
func (r *messageRepo) ListRecent(ctx context.Context, limit int) ([]Message, error) {
	defer observeDB(ctx, "messages.list_recent")()
	const q = `SELECT * FROM (
	SELECT ` + messageColumns + ` FROM messages m JOIN users u ON u.id = m.user_id
	ORDER BY m.created_at DESC, m.id DESC
	LIMIT $1
) recent ORDER BY created_at ASC, id ASC`

	rows, err := r.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return out, nil
}
