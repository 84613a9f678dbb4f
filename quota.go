package eventquiz

import (
	"database/sql"
	"time"
)

// DailyQuizLimit is the number of quiz attempts a non-premium user gets per
// calendar day. Premium users are unlimited.
const DailyQuizLimit = 5

// QuotaTracker gates quiz attempts behind the per-user daily allowance
type QuotaTracker struct {
	db  *DB
	now func() time.Time
}

// NewQuotaTracker creates a quota tracker over the given database
func NewQuotaTracker(db *DB) *QuotaTracker {
	return &QuotaTracker{db: db, now: time.Now}
}

// GetStatus reads the stored quota state for a user. No side effects.
func (qt *QuotaTracker) GetStatus(userID int64) (*QuotaStatus, error) {
	user, err := qt.db.GetUser(userID)
	if err != nil {
		return nil, err
	}
	return &QuotaStatus{
		IsPremium:  user.IsPremium,
		DailyCount: user.DailyQuizCount,
		LastReset:  user.LastQuizReset,
	}, nil
}

// EffectiveCount returns the count the gate should compare against the
// limit: a stored counter from a previous calendar day counts as 0, since
// RecordAttempt will reset it before incrementing. The stored date carries
// no zone, so both sides compare as formatted dates in the clock's frame.
func (qt *QuotaTracker) EffectiveCount(status *QuotaStatus) int {
	if status.LastReset == nil {
		return 0
	}
	if status.LastReset.Format("2006-01-02") < qt.now().Format("2006-01-02") {
		return 0
	}
	return status.DailyCount
}

// Allow reports whether the user may start another question/answer cycle.
// Callers must check this before RecordAttempt; RecordAttempt itself never
// refuses on quota grounds.
func (qt *QuotaTracker) Allow(status *QuotaStatus) bool {
	if status.IsPremium {
		return true
	}
	return qt.EffectiveCount(status) < DailyQuizLimit
}

// Remaining returns how many attempts are left today; -1 means unlimited
func (qt *QuotaTracker) Remaining(status *QuotaStatus) int {
	if status.IsPremium {
		return -1
	}
	remaining := DailyQuizLimit - qt.EffectiveCount(status)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RecordAttempt increments the stored counter. If the last reset is absent
// or before today, the counter resets first, so the attempt lands at 1.
// Reset-then-increment runs in a single transaction to avoid lost updates
// from concurrent sessions of the same user.
func (qt *QuotaTracker) RecordAttempt(userID int64) (int, error) {
	tx, err := qt.db.db.Begin()
	if err != nil {
		return 0, &PersistenceError{Op: "record attempt", Err: err}
	}
	defer tx.Rollback()

	var count int
	var lastReset sql.NullString
	err = tx.QueryRow(
		"SELECT daily_quiz_count, last_quiz_reset FROM users WHERE id = ?",
		userID,
	).Scan(&count, &lastReset)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrUserNotFound
		}
		return 0, &PersistenceError{Op: "record attempt", Err: err}
	}

	today := qt.now().Format("2006-01-02")
	resetDate := parseResetDate(lastReset)

	newCount := count + 1
	newReset := today
	if resetDate == nil || resetDate.Format("2006-01-02") < today {
		newCount = 1
	} else {
		newReset = resetDate.Format("2006-01-02")
	}

	_, err = tx.Exec(
		"UPDATE users SET daily_quiz_count = ?, last_quiz_reset = ? WHERE id = ?",
		newCount, newReset, userID,
	)
	if err != nil {
		return 0, &PersistenceError{Op: "record attempt", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return 0, &PersistenceError{Op: "record attempt", Err: err}
	}
	return newCount, nil
}

// Upgrade flips the user to premium; quota checks are bypassed from then on
func (qt *QuotaTracker) Upgrade(userID int64) error {
	return qt.db.SetUserPremium(userID)
}
