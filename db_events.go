package eventquiz

import (
	"database/sql"
	"fmt"
	"strings"
)

// CreateEvent creates a new event owned by the given user
func (db *DB) CreateEvent(userID int64, title, description string) (int64, error) {
	if strings.TrimSpace(title) == "" {
		return 0, &ValidationError{Field: "title", Reason: "must not be empty"}
	}

	res, err := db.db.Exec(
		"INSERT INTO events (user_id, title, description) VALUES (?, ?, ?)",
		userID, title, description,
	)
	if err != nil {
		return 0, &PersistenceError{Op: "create event", Err: err}
	}
	return res.LastInsertId()
}

// GetEvent retrieves an event by id
func (db *DB) GetEvent(eventID int64) (*Event, error) {
	var event Event
	var imported sql.NullInt64
	err := db.db.QueryRow(
		"SELECT id, user_id, title, description, is_imported, created_at FROM events WHERE id = ?",
		eventID,
	).Scan(&event.ID, &event.UserID, &event.Title, &event.Description, &imported, &event.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("event not found: %d", eventID)
		}
		return nil, &PersistenceError{Op: "get event", Err: err}
	}
	event.Imported = imported.Valid && imported.Int64 == 1
	return &event, nil
}

// GetEvents retrieves all events owned by a user, newest first
func (db *DB) GetEvents(userID int64) ([]Event, error) {
	rows, err := db.db.Query(
		"SELECT id, user_id, title, description, is_imported, created_at FROM events WHERE user_id = ? ORDER BY created_at DESC",
		userID,
	)
	if err != nil {
		return nil, &PersistenceError{Op: "get events", Err: err}
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var imported sql.NullInt64
		if err := rows.Scan(&event.ID, &event.UserID, &event.Title, &event.Description, &imported, &event.CreatedAt); err != nil {
			return nil, &PersistenceError{Op: "scan event", Err: err}
		}
		event.Imported = imported.Valid && imported.Int64 == 1
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "iterate events", Err: err}
	}
	return events, nil
}

// UpdateEvent updates an event's title and description
func (db *DB) UpdateEvent(eventID int64, title, description string) error {
	if strings.TrimSpace(title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	_, err := db.db.Exec(
		"UPDATE events SET title = ?, description = ? WHERE id = ?",
		title, description, eventID,
	)
	if err != nil {
		return &PersistenceError{Op: "update event", Err: err}
	}
	return nil
}

// DeleteEvent deletes an event; its tasks cascade with it
func (db *DB) DeleteEvent(eventID int64) error {
	if _, err := db.db.Exec("DELETE FROM events WHERE id = ?", eventID); err != nil {
		return &PersistenceError{Op: "delete event", Err: err}
	}
	return nil
}

// CreateTask creates a new task under an event
func (db *DB) CreateTask(eventID int64, title, content string) (int64, error) {
	if strings.TrimSpace(title) == "" {
		return 0, &ValidationError{Field: "title", Reason: "must not be empty"}
	}

	res, err := db.db.Exec(
		"INSERT INTO tasks (event_id, title, content) VALUES (?, ?, ?)",
		eventID, title, content,
	)
	if err != nil {
		return 0, &PersistenceError{Op: "create task", Err: err}
	}
	return res.LastInsertId()
}

// GetTask retrieves a task by id
func (db *DB) GetTask(taskID int64) (*Task, error) {
	var task Task
	err := db.db.QueryRow(
		"SELECT id, event_id, title, content, status FROM tasks WHERE id = ?",
		taskID,
	).Scan(&task.ID, &task.EventID, &task.Title, &task.Content, &task.Status)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("task not found: %d", taskID)
		}
		return nil, &PersistenceError{Op: "get task", Err: err}
	}
	return &task, nil
}

// GetTasks retrieves all tasks under an event
func (db *DB) GetTasks(eventID int64) ([]Task, error) {
	rows, err := db.db.Query(
		"SELECT id, event_id, title, content, status FROM tasks WHERE event_id = ?",
		eventID,
	)
	if err != nil {
		return nil, &PersistenceError{Op: "get tasks", Err: err}
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		var task Task
		if err := rows.Scan(&task.ID, &task.EventID, &task.Title, &task.Content, &task.Status); err != nil {
			return nil, &PersistenceError{Op: "scan task", Err: err}
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "iterate tasks", Err: err}
	}
	return tasks, nil
}

// UpdateTask updates a task's title and content
func (db *DB) UpdateTask(taskID int64, title, content string) error {
	if strings.TrimSpace(title) == "" {
		return &ValidationError{Field: "title", Reason: "must not be empty"}
	}
	_, err := db.db.Exec(
		"UPDATE tasks SET title = ?, content = ? WHERE id = ?",
		title, content, taskID,
	)
	if err != nil {
		return &PersistenceError{Op: "update task", Err: err}
	}
	return nil
}

// DeleteTask deletes a single task
func (db *DB) DeleteTask(taskID int64) error {
	if _, err := db.db.Exec("DELETE FROM tasks WHERE id = ?", taskID); err != nil {
		return &PersistenceError{Op: "delete task", Err: err}
	}
	return nil
}

// ShareEvent makes an event visible to another user, identified by username.
// The event's tasks are shared along with it. Duplicate shares are rejected.
func (db *DB) ShareEvent(eventID, sharedBy int64, sharedWithUsername string) error {
	recipient, err := db.GetUserByUsername(sharedWithUsername)
	if err != nil {
		return err
	}

	var existing int64
	err = db.db.QueryRow(
		"SELECT id FROM shared_events WHERE event_id = ? AND shared_with_user_id = ?",
		eventID, recipient.ID,
	).Scan(&existing)
	if err == nil {
		return ErrDuplicateShare
	}
	if err != sql.ErrNoRows {
		return &PersistenceError{Op: "check existing share", Err: err}
	}

	tx, err := db.db.Begin()
	if err != nil {
		return &PersistenceError{Op: "share event", Err: err}
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		"INSERT INTO shared_events (event_id, shared_by_user_id, shared_with_user_id) VALUES (?, ?, ?)",
		eventID, sharedBy, recipient.ID,
	)
	if err != nil {
		return &PersistenceError{Op: "share event", Err: err}
	}

	// Share all tasks of the event so the recipient can quiz on them
	_, err = tx.Exec(
		`INSERT OR IGNORE INTO shared_tasks (task_id, shared_by_user_id, shared_with_user_id)
		 SELECT id, ?, ? FROM tasks WHERE event_id = ?`,
		sharedBy, recipient.ID, eventID,
	)
	if err != nil {
		return &PersistenceError{Op: "share event tasks", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return &PersistenceError{Op: "share event", Err: err}
	}
	return nil
}

// ShareTask makes a single task visible to another user, identified by username
func (db *DB) ShareTask(taskID, sharedBy int64, sharedWithUsername string) error {
	recipient, err := db.GetUserByUsername(sharedWithUsername)
	if err != nil {
		return err
	}

	_, err = db.db.Exec(
		"INSERT INTO shared_tasks (task_id, shared_by_user_id, shared_with_user_id) VALUES (?, ?, ?)",
		taskID, sharedBy, recipient.ID,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateShare
		}
		return &PersistenceError{Op: "share task", Err: err}
	}
	return nil
}

// GetSharedEvents retrieves events shared with a user
func (db *DB) GetSharedEvents(userID int64) ([]SharedEvent, error) {
	rows, err := db.db.Query(
		`SELECT shared_events.id, events.id, shared_events.shared_by_user_id, shared_events.shared_with_user_id,
		        events.title, users.username
		 FROM shared_events
		 JOIN events ON shared_events.event_id = events.id
		 JOIN users ON shared_events.shared_by_user_id = users.id
		 WHERE shared_events.shared_with_user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, &PersistenceError{Op: "get shared events", Err: err}
	}
	defer rows.Close()

	var shares []SharedEvent
	for rows.Next() {
		var s SharedEvent
		if err := rows.Scan(&s.ID, &s.EventID, &s.SharedBy, &s.SharedWith, &s.Title, &s.SharerName); err != nil {
			return nil, &PersistenceError{Op: "scan shared event", Err: err}
		}
		shares = append(shares, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "iterate shared events", Err: err}
	}
	return shares, nil
}

// GetSharedTasks retrieves tasks shared with a user
func (db *DB) GetSharedTasks(userID int64) ([]SharedTask, error) {
	rows, err := db.db.Query(
		`SELECT shared_tasks.id, tasks.id, shared_tasks.shared_by_user_id, shared_tasks.shared_with_user_id,
		        tasks.title, tasks.content, users.username
		 FROM shared_tasks
		 JOIN tasks ON shared_tasks.task_id = tasks.id
		 JOIN users ON shared_tasks.shared_by_user_id = users.id
		 WHERE shared_tasks.shared_with_user_id = ?`,
		userID,
	)
	if err != nil {
		return nil, &PersistenceError{Op: "get shared tasks", Err: err}
	}
	defer rows.Close()

	var shares []SharedTask
	for rows.Next() {
		var s SharedTask
		if err := rows.Scan(&s.ID, &s.TaskID, &s.SharedBy, &s.SharedWith, &s.Title, &s.Content, &s.SharerName); err != nil {
			return nil, &PersistenceError{Op: "scan shared task", Err: err}
		}
		shares = append(shares, s)
	}
	if err := rows.Err(); err != nil {
		return nil, &PersistenceError{Op: "iterate shared tasks", Err: err}
	}
	return shares, nil
}

// HasEventAccess reports whether a user owns an event or had it shared with them
func (db *DB) HasEventAccess(userID, eventID int64) (bool, error) {
	var exists bool
	err := db.db.QueryRow(
		`SELECT EXISTS(
			SELECT 1 FROM events WHERE id = ? AND user_id = ?
			UNION
			SELECT 1 FROM shared_events WHERE event_id = ? AND shared_with_user_id = ?
		)`,
		eventID, userID, eventID, userID,
	).Scan(&exists)
	if err != nil {
		return false, &PersistenceError{Op: "check event access", Err: err}
	}
	return exists, nil
}
