package eventquiz

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the SQLite connection behind typed accessors
type DB struct {
	db *sql.DB
}

// OpenDB opens the SQLite database at the given path.
// Foreign keys are enabled so task rows cascade with their event.
func OpenDB(dbPath string) (*DB, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{db: db}, nil
}

// CloseDB closes the database connection
func (db *DB) CloseDB() error {
	return db.db.Close()
}

// CreateTables creates the necessary tables if they don't exist
func (db *DB) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			username TEXT UNIQUE NOT NULL,
			password TEXT NOT NULL,
			is_premium INTEGER NOT NULL DEFAULT 0,
			daily_quiz_count INTEGER NOT NULL DEFAULT 0,
			last_quiz_reset TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			description TEXT,
			is_imported INTEGER,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users (id)
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id INTEGER NOT NULL,
			title TEXT NOT NULL,
			content TEXT,
			status TEXT NOT NULL DEFAULT 'in progress',
			FOREIGN KEY (event_id) REFERENCES events (id) ON DELETE CASCADE
		)`,
		`CREATE TABLE IF NOT EXISTS shared_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			event_id INTEGER NOT NULL,
			shared_by_user_id INTEGER NOT NULL,
			shared_with_user_id INTEGER NOT NULL,
			UNIQUE (event_id, shared_with_user_id),
			FOREIGN KEY (event_id) REFERENCES events (id) ON DELETE CASCADE,
			FOREIGN KEY (shared_by_user_id) REFERENCES users (id),
			FOREIGN KEY (shared_with_user_id) REFERENCES users (id)
		)`,
		`CREATE TABLE IF NOT EXISTS shared_tasks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task_id INTEGER NOT NULL,
			shared_by_user_id INTEGER NOT NULL,
			shared_with_user_id INTEGER NOT NULL,
			UNIQUE (task_id, shared_with_user_id),
			FOREIGN KEY (task_id) REFERENCES tasks (id) ON DELETE CASCADE,
			FOREIGN KEY (shared_by_user_id) REFERENCES users (id),
			FOREIGN KEY (shared_with_user_id) REFERENCES users (id)
		)`,
		`CREATE TABLE IF NOT EXISTS stats (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			event_id INTEGER NOT NULL,
			task_id INTEGER,
			score INTEGER NOT NULL,
			timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users (id),
			FOREIGN KEY (event_id) REFERENCES events (id),
			FOREIGN KEY (task_id) REFERENCES tasks (id)
		)`,
		`CREATE TABLE IF NOT EXISTS chat_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id INTEGER NOT NULL,
			event_id INTEGER,
			task_id INTEGER,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY (user_id) REFERENCES users (id)
		)`,
	}

	for _, query := range queries {
		if _, err := db.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute %s: %w", query, err)
		}
	}
	return nil
}

// CreateUser registers a new user and returns its id
func (db *DB) CreateUser(username, password string) (int64, error) {
	if strings.TrimSpace(username) == "" {
		return 0, &ValidationError{Field: "username", Reason: "must not be empty"}
	}
	if password == "" {
		return 0, &ValidationError{Field: "password", Reason: "must not be empty"}
	}

	res, err := db.db.Exec(
		"INSERT INTO users (username, password) VALUES (?, ?)",
		username, password,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return 0, &ValidationError{Field: "username", Reason: "already taken"}
		}
		return 0, &PersistenceError{Op: "create user", Err: err}
	}
	return res.LastInsertId()
}

// GetUser retrieves a user by id
func (db *DB) GetUser(userID int64) (*User, error) {
	return db.scanUser(db.db.QueryRow(
		"SELECT id, username, password, is_premium, daily_quiz_count, last_quiz_reset FROM users WHERE id = ?",
		userID,
	))
}

// GetUserByUsername retrieves a user by username
func (db *DB) GetUserByUsername(username string) (*User, error) {
	return db.scanUser(db.db.QueryRow(
		"SELECT id, username, password, is_premium, daily_quiz_count, last_quiz_reset FROM users WHERE username = ?",
		username,
	))
}

func (db *DB) scanUser(row *sql.Row) (*User, error) {
	var user User
	var premium int
	var lastReset sql.NullString
	err := row.Scan(&user.ID, &user.Username, &user.Password, &premium, &user.DailyQuizCount, &lastReset)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, &PersistenceError{Op: "get user", Err: err}
	}
	user.IsPremium = premium == 1
	user.LastQuizReset = parseResetDate(lastReset)
	return &user, nil
}

// parseResetDate converts the stored reset date string to a time.
// An unparseable value is treated as absent, which forces a quota reset.
func parseResetDate(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s.String)
	if err != nil {
		return nil
	}
	return &t
}

// SetUserPremium flips the premium flag. There is no downgrade path.
func (db *DB) SetUserPremium(userID int64) error {
	res, err := db.db.Exec("UPDATE users SET is_premium = 1 WHERE id = ?", userID)
	if err != nil {
		return &PersistenceError{Op: "premium upgrade", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrUserNotFound
	}
	return nil
}

// GetUsernameByID returns the username for a user id
func (db *DB) GetUsernameByID(userID int64) (string, error) {
	var username string
	err := db.db.QueryRow("SELECT username FROM users WHERE id = ?", userID).Scan(&username)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", ErrUserNotFound
		}
		return "", &PersistenceError{Op: "get username", Err: err}
	}
	return username, nil
}
