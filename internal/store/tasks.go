package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type taskRepo struct {
	pool DBPool
}

const taskColumns = `id::text, user_id, task_type, COALESCE(invocation_id, ''), parameters, result, status, created_at, updated_at`

func scanTask(row pgx.Row) (*Task, error) {
	var t Task
	var params, result []byte
	var status string
	if err := row.Scan(&t.ID, &t.UserID, &t.TaskType, &t.InvocationID, &params, &result, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Parameters = params
	t.Result = result
	t.Status = TaskStatus(status)
	return &t, nil
}

func jsonArg(raw []byte) string {
	if len(raw) == 0 {
		return "null"
	}
	return string(raw)
}

// Create inserts the task, assigning a UUID when ID is empty. Conflicts on
// (user_id, invocation_id) return the existing row.
func (r *taskRepo) Create(ctx context.Context, task Task) (*Task, error) {
	defer observeDB(ctx, "tasks.create")()
	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	if !task.Status.Valid() {
		return nil, fmt.Errorf("create task: invalid status %q", task.Status)
	}
	const q = `INSERT INTO ai_tasks (id, user_id, task_type, invocation_id, parameters, result, status)
VALUES ($1::uuid, $2, $3, NULLIF($4, ''), $5::jsonb, $6::jsonb, $7)
ON CONFLICT (user_id, invocation_id) DO UPDATE SET invocation_id = ai_tasks.invocation_id
RETURNING ` + taskColumns

	created, err := scanTask(r.pool.QueryRow(ctx, q,
		task.ID, task.UserID, task.TaskType, task.InvocationID,
		jsonArg(task.Parameters), jsonArg(task.Result), string(task.Status)))
	if err != nil {
		return nil, fmt.Errorf("create task: %w", err)
	}
	return created, nil
}

func (r *taskRepo) GetByID(ctx context.Context, id string) (*Task, error) {
	defer observeDB(ctx, "tasks.get_by_id")()
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}
	const q = `SELECT ` + taskColumns + ` FROM ai_tasks WHERE id=$1::uuid`

	t, err := scanTask(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get task %s: %w", id, err)
	}
	return t, nil
}

func (r *taskRepo) ListByUser(ctx context.Context, userID int64, limit int) ([]Task, error) {
	defer observeDB(ctx, "tasks.list_by_user")()
	const q = `SELECT ` + taskColumns + ` FROM ai_tasks WHERE user_id=$1 ORDER BY created_at DESC LIMIT $2`

	rows, err := r.pool.Query(ctx, q, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var out []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return out, nil
}
