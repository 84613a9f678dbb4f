package eventquiz

import (
	"database/sql"
	"strings"
)

// SaveChatMessage appends one message to the chat log and returns its id
func (db *DB) SaveChatMessage(msg *ChatMessage) (int64, error) {
	if msg.Role != "user" && msg.Role != "assistant" {
		return 0, &ValidationError{Field: "role", Reason: "must be 'user' or 'assistant'"}
	}
	if strings.TrimSpace(msg.Content) == "" {
		return 0, &ValidationError{Field: "content", Reason: "must not be empty"}
	}

	var eventID, taskID interface{}
	if msg.EventID != nil {
		eventID = *msg.EventID
	}
	if msg.TaskID != nil {
		taskID = *msg.TaskID
	}

	res, err := db.db.Exec(
		"INSERT INTO chat_messages (user_id, event_id, task_id, role, content, timestamp) VALUES (?, ?, ?, ?, ?, datetime('now'))",
		msg.UserID, eventID, taskID, msg.Role, msg.Content,
	)
	if err != nil {
		return 0, &PersistenceError{Op: "save chat message", Err: err}
	}
	return res.LastInsertId()
}

// GetChatHistory loads a user's chat log, oldest first. A task id narrows
// to that task's thread; an event id alone narrows to the event-level
// thread (messages without a task).
func (db *DB) GetChatHistory(userID int64, eventID, taskID *int64) ([]ChatMessage, error) {
	query := "SELECT id, user_id, event_id, task_id, role, content, timestamp FROM chat_messages WHERE user_id = ?"
	args := []interface{}{userID}

	switch {
	case taskID != nil:
		query += " AND task_id = ?"
		args = append(args, *taskID)
	case eventID != nil:
		query += " AND event_id = ? AND task_id IS NULL"
		args = append(args, *eventID)
	}
	query += " ORDER BY timestamp ASC, id ASC"

	rows, err := db.db.Query(query, args...)
	if err != nil {
		return nil, &PersistenceError{Op: "load chat history", Err: err}
	}
	defer rows.Close()

	var messages []ChatMessage
	for rows.Next() {
		var msg ChatMessage
		var evID, tID sql.NullInt64
		if err := rows.Scan(&msg.ID, &msg.UserID, &evID, &tID, &msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, &PersistenceError{Op: "scan chat message", Err: err}
		}
		if evID.Valid {
			msg.EventID = &evID.Int64
		}
		if tID.Valid {
			msg.TaskID = &tID.Int64
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "iterate chat messages", Err: err}
	}
	return messages, nil
}

// ClearChatHistory deletes a user's chat messages, optionally narrowed to
// an event or task, and returns the number of deleted rows
func (db *DB) ClearChatHistory(userID int64, eventID, taskID *int64) (int64, error) {
	query := "DELETE FROM chat_messages WHERE user_id = ?"
	args := []interface{}{userID}

	switch {
	case taskID != nil:
		query += " AND task_id = ?"
		args = append(args, *taskID)
	case eventID != nil:
		query += " AND event_id = ?"
		args = append(args, *eventID)
	}

	res, err := db.db.Exec(query, args...)
	if err != nil {
		return 0, &PersistenceError{Op: "clear chat history", Err: err}
	}
	return res.RowsAffected()
}

// GetChatActivity summarizes a user's chat volume, optionally for one event
func (db *DB) GetChatActivity(userID int64, eventID *int64) (*ChatActivity, error) {
	query := `SELECT COUNT(*),
	                 COUNT(CASE WHEN role = 'user' THEN 1 END),
	                 COUNT(CASE WHEN role = 'assistant' THEN 1 END),
	                 COALESCE(MIN(timestamp), ''),
	                 COALESCE(MAX(timestamp), '')
	          FROM chat_messages WHERE user_id = ?`
	args := []interface{}{userID}
	if eventID != nil {
		query += " AND event_id = ?"
		args = append(args, *eventID)
	}

	var activity ChatActivity
	err := db.db.QueryRow(query, args...).Scan(
		&activity.TotalMessages, &activity.UserMessages, &activity.AssistantMessages,
		&activity.FirstMessage, &activity.LastMessage,
	)
	if err != nil {
		return nil, &PersistenceError{Op: "load chat activity", Err: err}
	}
	return &activity, nil
}
