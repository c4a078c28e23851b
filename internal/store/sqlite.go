package store

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shoplane/fulfillment/pkg/api"
)

// SQLiteInstanceStore is an InstanceStore backed by SQLite.
//
// It expects an *sql.DB that uses a SQLite driver (for example,
// "modernc.org/sqlite"). The caller is responsible for importing
// the driver, e.g.:
//
//	import _ "modernc.org/sqlite"
type SQLiteInstanceStore struct {
	db *sql.DB
}

var _ InstanceStore = (*SQLiteInstanceStore)(nil)

// NewSQLiteInstanceStore initializes the required schema in the given
// database and returns a new SQLiteInstanceStore.
func NewSQLiteInstanceStore(db *sql.DB) (*SQLiteInstanceStore, error) {
	s := &SQLiteInstanceStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLiteInstanceStore) initSchema() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS process_instances (
			id TEXT PRIMARY KEY,
			process_key TEXT NOT NULL,
			version INTEGER NOT NULL,
			status TEXT NOT NULL,
			current_step INTEGER NOT NULL,
			order_id INTEGER NOT NULL DEFAULT 0,
			variables BLOB,
			history BLOB,
			last_error TEXT,
			started_at TEXT NOT NULL,
			ended_at TEXT
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_process_instances_order_unique
			ON process_instances(order_id) WHERE order_id > 0;`,
	)
	return err
}

func (s *SQLiteInstanceStore) SaveInstance(inst *api.ProcessInstance) error {
	vars, history, err := encodeInstanceBlobs(inst)
	if err != nil {
		return err
	}

	orderID, _ := inst.Variables.Int64(api.VarOrderID)

	_, err = s.db.Exec(`
		INSERT INTO process_instances
			(id, process_key, version, status, current_step, order_id, variables, history, last_error, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inst.ID,
		inst.ProcessKey,
		inst.Version,
		string(inst.Status),
		inst.CurrentStep,
		orderID,
		vars,
		history,
		inst.LastError,
		formatTime(inst.StartedAt),
		formatTime(inst.EndedAt),
	)
	if err != nil && isUniqueViolation(err) {
		// The unique order index is the cross-process duplicate-start
		// reservation: the second saga for one order dies here.
		return api.ErrDuplicateStart
	}
	return err
}

// isUniqueViolation matches the constraint error text modernc.org/sqlite
// surfaces; the driver exposes no typed error for it.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func (s *SQLiteInstanceStore) UpdateInstance(inst *api.ProcessInstance) error {
	vars, history, err := encodeInstanceBlobs(inst)
	if err != nil {
		return err
	}

	res, err := s.db.Exec(`
		UPDATE process_instances
		SET status = ?, current_step = ?, variables = ?, history = ?, last_error = ?, ended_at = ?
		WHERE id = ?`,
		string(inst.Status),
		inst.CurrentStep,
		vars,
		history,
		inst.LastError,
		formatTime(inst.EndedAt),
		inst.ID,
	)
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return api.ErrInstanceNotFound
	}
	return nil
}

func (s *SQLiteInstanceStore) GetInstance(id string) (*api.ProcessInstance, error) {
	row := s.db.QueryRow(instanceSelect+` WHERE id = ?`, id)
	inst, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, api.ErrInstanceNotFound
		}
		return nil, err
	}
	return inst, nil
}

func (s *SQLiteInstanceStore) FindInstanceByOrder(orderID int64) (*api.ProcessInstance, error) {
	row := s.db.QueryRow(instanceSelect+` WHERE order_id = ? ORDER BY started_at LIMIT 1`, orderID)
	inst, err := scanInstance(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, api.ErrInstanceNotFound
		}
		return nil, err
	}
	return inst, nil
}

func (s *SQLiteInstanceStore) ListInstances(filter InstanceFilter) ([]*api.ProcessInstance, error) {
	query := instanceSelect
	var args []any
	var clauses []string

	if filter.ProcessKey != "" {
		clauses = append(clauses, "process_key = ?")
		args = append(args, filter.ProcessKey)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if len(clauses) > 0 {
		query = query + " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY started_at"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var instances []*api.ProcessInstance
	for rows.Next() {
		inst, err := scanInstance(rows)
		if err != nil {
			return nil, err
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return instances, nil
}

const instanceSelect = `
	SELECT id, process_key, version, status, current_step, variables, history, last_error, started_at, ended_at
	FROM process_instances`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInstance(row rowScanner) (*api.ProcessInstance, error) {
	var inst api.ProcessInstance
	var statusStr string
	var vars, history []byte
	var lastError, startedAt sql.NullString
	var endedAt sql.NullString

	if err := row.Scan(
		&inst.ID,
		&inst.ProcessKey,
		&inst.Version,
		&statusStr,
		&inst.CurrentStep,
		&vars,
		&history,
		&lastError,
		&startedAt,
		&endedAt,
	); err != nil {
		return nil, err
	}

	inst.Status = api.InstanceStatus(statusStr)
	inst.LastError = lastError.String

	decoded, err := decodeVariables(vars)
	if err != nil {
		return nil, err
	}
	inst.Variables = decoded

	records, err := decodeHistory(history)
	if err != nil {
		return nil, err
	}
	inst.History = records

	if inst.StartedAt, err = parseTime(startedAt.String); err != nil {
		return nil, err
	}
	if inst.EndedAt, err = parseTime(endedAt.String); err != nil {
		return nil, err
	}
	return &inst, nil
}

func encodeInstanceBlobs(inst *api.ProcessInstance) (vars, history []byte, err error) {
	if vars, err = encodeVariables(inst.Variables); err != nil {
		return nil, nil, err
	}
	if history, err = encodeHistory(inst.History); err != nil {
		return nil, nil, err
	}
	return vars, history, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
