package store

import (
	"database/sql"
	"errors"
	"strings"

	"github.com/shoplane/fulfillment/pkg/api"
)

// SQLiteTaskStore is a TaskStore backed by SQLite. Claiming relies on a
// conditional UPDATE, so the first-writer-wins guarantee holds across
// processes sharing the database, not just within one.
type SQLiteTaskStore struct {
	db *sql.DB
}

var _ TaskStore = (*SQLiteTaskStore)(nil)

// NewSQLiteTaskStore initializes the required schema in the given database
// and returns a new SQLiteTaskStore.
func NewSQLiteTaskStore(db *sql.DB) (*SQLiteTaskStore, error) {
	s := &SQLiteTaskStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteTaskStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			instance_id TEXT NOT NULL,
			process_key TEXT NOT NULL,
			step_key TEXT NOT NULL,
			assignee TEXT NOT NULL DEFAULT '',
			candidate_group TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			due_at TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_tasks_instance ON tasks(instance_id);`,
	)
	return err
}

func (s *SQLiteTaskStore) CreateTask(task *api.Task) error {
	_, err := s.db.Exec(`
		INSERT INTO tasks (id, name, instance_id, process_key, step_key, assignee, candidate_group, created_at, due_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID,
		task.Name,
		task.InstanceID,
		task.ProcessKey,
		task.StepKey,
		task.Assignee,
		task.CandidateGroup,
		formatTime(task.CreatedAt),
		formatTime(task.DueAt),
	)
	return err
}

func (s *SQLiteTaskStore) GetTask(id string) (*api.Task, error) {
	row := s.db.QueryRow(taskSelect+` WHERE id = ?`, id)
	task, err := scanTask(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, api.ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

func (s *SQLiteTaskStore) ListTasks(filter api.TaskFilter) ([]*api.Task, error) {
	query := taskSelect
	var args []any
	var clauses []string

	// Priority order: exactly one branch applies.
	switch {
	case filter.InstanceID != "":
		clauses = append(clauses, "instance_id = ?")
		args = append(args, filter.InstanceID)
	case filter.Assignee != "":
		clauses = append(clauses, "assignee = ?")
		args = append(args, filter.Assignee)
	case filter.CandidateGroup != "":
		clauses = append(clauses, "candidate_group = ?")
		args = append(args, filter.CandidateGroup)
	}

	if len(clauses) > 0 {
		query = query + " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*api.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *SQLiteTaskStore) ClaimTask(id, userID string) error {
	res, err := s.db.Exec(`
		UPDATE tasks SET assignee = ?
		WHERE id = ? AND (assignee = '' OR assignee = ?)`,
		userID, id, userID,
	)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	// The CAS lost: either the task is gone or someone else holds it.
	if _, err := s.GetTask(id); err != nil {
		return err
	}
	return api.ErrConflict
}

func (s *SQLiteTaskStore) UnclaimTask(id string) error {
	res, err := s.db.Exec(`UPDATE tasks SET assignee = '' WHERE id = ?`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return api.ErrTaskNotFound
	}
	return nil
}

func (s *SQLiteTaskStore) RemoveTask(id string) (*api.Task, error) {
	task, err := s.GetTask(id)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(`DELETE FROM tasks WHERE id = ?`, id); err != nil {
		return nil, err
	}
	return task, nil
}

const taskSelect = `
	SELECT id, name, instance_id, process_key, step_key, assignee, candidate_group, created_at, due_at
	FROM tasks`

func scanTask(row rowScanner) (*api.Task, error) {
	var task api.Task
	var createdAt, dueAt sql.NullString

	if err := row.Scan(
		&task.ID,
		&task.Name,
		&task.InstanceID,
		&task.ProcessKey,
		&task.StepKey,
		&task.Assignee,
		&task.CandidateGroup,
		&createdAt,
		&dueAt,
	); err != nil {
		return nil, err
	}

	var err error
	if task.CreatedAt, err = parseTime(createdAt.String); err != nil {
		return nil, err
	}
	if task.DueAt, err = parseTime(dueAt.String); err != nil {
		return nil, err
	}
	return &task, nil
}
