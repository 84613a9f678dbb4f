package eventquiz

import (
	"database/sql"
)

// SaveScore appends one record to the statistics ledger.
// Records are never updated or deleted.
func (db *DB) SaveScore(userID, eventID int64, taskID *int64, score int) error {
	var tid interface{}
	if taskID != nil {
		tid = *taskID
	}
	_, err := db.db.Exec(
		"INSERT INTO stats (user_id, event_id, task_id, score, timestamp) VALUES (?, ?, ?, ?, datetime('now'))",
		userID, eventID, tid, score,
	)
	if err != nil {
		return &PersistenceError{Op: "save score", Err: err}
	}
	return nil
}

// ScoreFilter narrows a ledger query. Zero fields are ignored.
type ScoreFilter struct {
	EventID int64
	TaskID  int64
	Limit   int
	Offset  int
}

// LoadScores retrieves a user's score records, most recent first
func (db *DB) LoadScores(userID int64, filter ScoreFilter) ([]ScoreRecord, error) {
	query := "SELECT id, user_id, event_id, task_id, score, timestamp FROM stats WHERE user_id = ?"
	args := []interface{}{userID}

	if filter.EventID != 0 {
		query += " AND event_id = ?"
		args = append(args, filter.EventID)
	}
	if filter.TaskID != 0 {
		query += " AND task_id = ?"
		args = append(args, filter.TaskID)
	}
	query += " ORDER BY timestamp DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, &PersistenceError{Op: "load scores", Err: err}
	}
	defer rows.Close()

	var records []ScoreRecord
	for rows.Next() {
		var rec ScoreRecord
		var taskID sql.NullInt64
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.EventID, &taskID, &rec.Score, &rec.Timestamp); err != nil {
			return nil, &PersistenceError{Op: "scan score", Err: err}
		}
		if taskID.Valid {
			rec.TaskID = &taskID.Int64
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "iterate scores", Err: err}
	}
	return records, nil
}
