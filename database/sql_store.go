package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jerry-enebeli/offline/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// SQLActionStore keeps one row per action. The full record is stored as JSON in the
// data column; the other columns exist for inspection and indexing.
type SQLActionStore struct {
	db      *sql.DB
	dialect Dialect
}

func NewSQLActionStore(db *sql.DB, dialect Dialect) *SQLActionStore {
	return &SQLActionStore{db: db, dialect: dialect}
}

// rebind rewrites ? placeholders to $n for Postgres.
func (s *SQLActionStore) rebind(query string) string {
	if s.dialect != PostgresDialect {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(fmt.Sprintf("$%d", n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *SQLActionStore) LoadActions(ctx context.Context) ([]*model.QueuedAction, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, data FROM queued_actions`)
	if err != nil {
		return nil, errors.Wrap(err, "load actions")
	}
	defer rows.Close()

	actions := []*model.QueuedAction{}
	for rows.Next() {
		var id, data string
		if err := rows.Scan(&id, &data); err != nil {
			return nil, errors.Wrap(err, "scan action")
		}
		var a model.QueuedAction
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			logrus.WithError(err).WithField("action_id", id).Error("skipping unreadable queued action")
			continue
		}
		actions = append(actions, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate actions")
	}
	return actions, nil
}

func (s *SQLActionStore) PutAction(ctx context.Context, action *model.QueuedAction) error {
	data, err := json.Marshal(action)
	if err != nil {
		return errors.Wrap(err, "encode action")
	}

	_, err = s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO queued_actions (id, type, status, priority, sequence, temp_id, server_id, dedupe_key, created_at, updated_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			priority = excluded.priority,
			server_id = excluded.server_id,
			updated_at = excluded.updated_at,
			data = excluded.data`),
		action.ID,
		string(action.Type),
		string(action.Status),
		action.Priority,
		action.Sequence,
		action.TempID,
		action.ServerID,
		action.DedupeKey,
		action.Timestamp.Format(time.RFC3339Nano),
		action.UpdatedAt.Format(time.RFC3339Nano),
		string(data),
	)
	return errors.Wrapf(err, "put action %s", action.ID)
}

func (s *SQLActionStore) DeleteActions(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM queued_actions WHERE id IN (`+placeholders+`)`), args...)
	return errors.Wrap(err, "delete actions")
}

func (s *SQLActionStore) Close() error {
	return s.db.Close()
}
