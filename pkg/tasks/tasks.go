// Package tasks stores per-context handoff notes. When a preset switch is
// commanded with a message for the incoming preset, the outgoing preset
// leaves a task note that gets injected into the next prompt by the host.
package tasks

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/jmoiron/sqlx"
)

var ErrTaskNotFound = errors.New("task not found")

type Task struct {
	ContextID string    `json:"context_id" db:"context_id"`
	Content   string    `json:"content" db:"content"`
	UpdatedAt time.Time `json:"updated_at"`
}

type dbTask struct {
	ContextID string `db:"context_id"`
	Content   string `db:"content"`
	UpdatedAt string `db:"updated_at"`
}

type Service struct {
	logger *log.Logger
	db     *sqlx.DB
}

func NewService(logger *log.Logger, db *sqlx.DB) *Service {
	return &Service{
		logger: logger,
		db:     db,
	}
}

const upsertTaskQuery = `
INSERT INTO tasks (context_id, content, updated_at)
VALUES (?, ?, ?)
ON CONFLICT (context_id) DO UPDATE SET content = excluded.content, updated_at = excluded.updated_at;
`

func (s *Service) Set(ctx context.Context, contextID, content string) error {
	_, err := s.db.ExecContext(ctx, upsertTaskQuery, contextID, content, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		s.logger.Error("failed to set task", "error", err, "context_id", contextID)
		return err
	}
	return nil
}

const selectTaskQuery = `SELECT context_id, content, updated_at FROM tasks WHERE context_id = ?;`

// Get returns the task for a context. An empty (cleared) task counts as
// not found, matching how the admin surface treats it.
func (s *Service) Get(ctx context.Context, contextID string) (*Task, error) {
	var row dbTask
	err := s.db.GetContext(ctx, &row, selectTaskQuery, contextID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		s.logger.Error("failed to get task", "error", err, "context_id", contextID)
		return nil, err
	}
	if row.Content == "" {
		return nil, ErrTaskNotFound
	}
	return toTask(row), nil
}

const selectTasksQuery = `SELECT context_id, content, updated_at FROM tasks WHERE content != '' ORDER BY context_id ASC;`

// List returns all non-empty tasks.
func (s *Service) List(ctx context.Context) ([]*Task, error) {
	var rows []dbTask
	if err := s.db.SelectContext(ctx, &rows, selectTasksQuery); err != nil {
		s.logger.Error("failed to list tasks", "error", err)
		return nil, err
	}
	result := make([]*Task, 0, len(rows))
	for _, row := range rows {
		result = append(result, toTask(row))
	}
	return result, nil
}

const deleteTaskQuery = `DELETE FROM tasks WHERE context_id = ?;`

func (s *Service) Delete(ctx context.Context, contextID string) error {
	result, err := s.db.ExecContext(ctx, deleteTaskQuery, contextID)
	if err != nil {
		s.logger.Error("failed to delete task", "error", err, "context_id", contextID)
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// Clear blanks the task content but keeps the row, mirroring a context
// reset rather than an operator delete.
func (s *Service) Clear(ctx context.Context, contextID string) error {
	return s.Set(ctx, contextID, "")
}

const countTasksQuery = `SELECT COUNT(*) FROM tasks WHERE content != '';`

func (s *Service) CountPending(ctx context.Context) (int, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, countTasksQuery); err != nil {
		return 0, err
	}
	return count, nil
}

func toTask(row dbTask) *Task {
	t := &Task{
		ContextID: row.ContextID,
		Content:   row.Content,
	}
	if parsed, err := time.Parse(time.RFC3339, row.UpdatedAt); err == nil {
		t.UpdatedAt = parsed
	}
	return t
}
