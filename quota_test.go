package eventquiz

import (
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQuota(t *testing.T, db *DB, today time.Time) *QuotaTracker {
	t.Helper()
	qt := NewQuotaTracker(db)
	qt.now = func() time.Time { return today }
	return qt
}

func setQuotaState(t *testing.T, db *DB, userID int64, count int, lastReset string) {
	t.Helper()
	_, err := db.db.Exec(
		"UPDATE users SET daily_quiz_count = ?, last_quiz_reset = ? WHERE id = ?",
		count, lastReset, userID,
	)
	require.NoError(t, err)
}

func TestRecordAttemptIncrementsSameDay(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "alice")
	today := time.Date(2026, 8, 31, 14, 0, 0, 0, time.UTC)
	qt := newTestQuota(t, db, today)

	for want := 1; want <= 3; want++ {
		count, err := qt.RecordAttempt(userID)
		require.NoError(t, err)
		assert.Equal(t, want, count)
	}

	status, err := qt.GetStatus(userID)
	require.NoError(t, err)
	assert.Equal(t, 3, status.DailyCount)
	require.NotNil(t, status.LastReset)
	assert.Equal(t, "2026-08-31", status.LastReset.Format("2006-01-02"))
}

func TestRecordAttemptResetsOnNewDay(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "alice")
	setQuotaState(t, db, userID, 5, "2026-08-30")

	qt := newTestQuota(t, db, time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC))

	// First attempt on the new day lands at 1 regardless of the prior count
	count, err := qt.RecordAttempt(userID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecordAttemptTreatsBadResetAsAbsent(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "alice")
	setQuotaState(t, db, userID, 4, "not-a-date")

	qt := newTestQuota(t, db, time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC))

	status, err := qt.GetStatus(userID)
	require.NoError(t, err)
	assert.Nil(t, status.LastReset)
	assert.Equal(t, 0, qt.EffectiveCount(status))

	count, err := qt.RecordAttempt(userID)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRecordAttemptUnknownUser(t *testing.T) {
	db := newTestDB(t)
	qt := newTestQuota(t, db, time.Now())

	_, err := qt.RecordAttempt(9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

// Scenario: a free user at 4 attempts gets a 5th, then is refused the 6th
// the same day.
func TestQuotaGateAtLimit(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "alice")
	today := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	setQuotaState(t, db, userID, 4, "2026-08-31")

	qt := newTestQuota(t, db, today)

	status, err := qt.GetStatus(userID)
	require.NoError(t, err)
	assert.True(t, qt.Allow(status))
	assert.Equal(t, 1, qt.Remaining(status))

	count, err := qt.RecordAttempt(userID)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	status, err = qt.GetStatus(userID)
	require.NoError(t, err)
	assert.False(t, qt.Allow(status))
	assert.Equal(t, 0, qt.Remaining(status))
}

// The reset rule follows the caller's calendar day regardless of zone: a
// same-day exhausted counter still blocks, and the counter resets right
// after local midnight, on both sides of UTC.
func TestQuotaUsesCallerCalendarDay(t *testing.T) {
	zones := map[string]*time.Location{
		"west": time.FixedZone("UTC-5", -5*3600),
		"east": time.FixedZone("UTC+9", 9*3600),
	}
	for name, zone := range zones {
		t.Run(name, func(t *testing.T) {
			db := newTestDB(t)
			userID := seedUser(t, db, "alice")
			setQuotaState(t, db, userID, DailyQuizLimit, "2026-08-31")

			qt := newTestQuota(t, db, time.Date(2026, 8, 31, 12, 0, 0, 0, zone))

			status, err := qt.GetStatus(userID)
			require.NoError(t, err)
			assert.Equal(t, DailyQuizLimit, qt.EffectiveCount(status))
			assert.False(t, qt.Allow(status))

			count, err := qt.RecordAttempt(userID)
			require.NoError(t, err)
			assert.Equal(t, DailyQuizLimit+1, count)

			// Shortly after local midnight the counter resets
			qt.now = func() time.Time { return time.Date(2026, 9, 1, 0, 30, 0, 0, zone) }

			status, err = qt.GetStatus(userID)
			require.NoError(t, err)
			assert.Equal(t, 0, qt.EffectiveCount(status))
			assert.True(t, qt.Allow(status))

			count, err = qt.RecordAttempt(userID)
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	}
}

func TestQuotaGateIgnoresStaleCount(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "alice")
	setQuotaState(t, db, userID, 5, "2026-08-30")

	qt := newTestQuota(t, db, time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC))

	// Yesterday's exhausted counter does not block today
	status, err := qt.GetStatus(userID)
	require.NoError(t, err)
	assert.True(t, qt.Allow(status))
	assert.Equal(t, DailyQuizLimit, qt.Remaining(status))
}

func TestPremiumBypassesQuota(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "alice")
	qt := newTestQuota(t, db, time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC))

	require.NoError(t, qt.Upgrade(userID))
	setQuotaState(t, db, userID, 100, "2026-08-31")

	status, err := qt.GetStatus(userID)
	require.NoError(t, err)
	assert.True(t, status.IsPremium)
	assert.True(t, qt.Allow(status))
	assert.Equal(t, -1, qt.Remaining(status))
}

func TestRecordAttemptPersistenceFailure(t *testing.T) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer mockDB.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT daily_quiz_count, last_quiz_reset FROM users").
		WithArgs(int64(1)).
		WillReturnError(fmt.Errorf("disk I/O error"))
	mock.ExpectRollback()

	qt := NewQuotaTracker(&DB{db: mockDB})
	_, err = qt.RecordAttempt(1)

	var persErr *PersistenceError
	require.ErrorAs(t, err, &persErr)
	assert.Equal(t, "record attempt", persErr.Op)
	assert.NoError(t, mock.ExpectationsWereMet())
}
