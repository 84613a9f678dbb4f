package eventquiz

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestDB opens a fresh in-memory database. The pool is pinned to one
// connection so every query sees the same memory database.
func newTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDB(":memory:")
	require.NoError(t, err)
	db.db.SetMaxOpenConns(1)
	require.NoError(t, db.CreateTables())
	t.Cleanup(func() { db.CloseDB() })
	return db
}

func seedUser(t *testing.T, db *DB, username string) int64 {
	t.Helper()
	id, err := db.CreateUser(username, "secret")
	require.NoError(t, err)
	return id
}

func seedEventWithTask(t *testing.T, db *DB, userID int64) (int64, int64) {
	t.Helper()
	eventID, err := db.CreateEvent(userID, "Birthday party", "60th birthday")
	require.NoError(t, err)
	taskID, err := db.CreateTask(eventID, "Book venue", "Call 10 venues, compare price and availability")
	require.NoError(t, err)
	return eventID, taskID
}

func TestCreateUserValidation(t *testing.T) {
	db := newTestDB(t)

	_, err := db.CreateUser("", "pw")
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "username", valErr.Field)

	_, err = db.CreateUser("alice", "")
	require.ErrorAs(t, err, &valErr)

	_, err = db.CreateUser("alice", "pw")
	require.NoError(t, err)

	// Duplicate usernames are rejected
	_, err = db.CreateUser("alice", "other")
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Reason, "taken")
}

func TestGetUser(t *testing.T) {
	db := newTestDB(t)
	id := seedUser(t, db, "alice")

	user, err := db.GetUser(id)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.False(t, user.IsPremium)
	assert.Zero(t, user.DailyQuizCount)
	assert.Nil(t, user.LastQuizReset)

	_, err = db.GetUser(9999)
	assert.ErrorIs(t, err, ErrUserNotFound)

	byName, err := db.GetUserByUsername("alice")
	require.NoError(t, err)
	assert.Equal(t, id, byName.ID)
}

func TestSetUserPremium(t *testing.T) {
	db := newTestDB(t)
	id := seedUser(t, db, "alice")

	require.NoError(t, db.SetUserPremium(id))
	user, err := db.GetUser(id)
	require.NoError(t, err)
	assert.True(t, user.IsPremium)

	assert.ErrorIs(t, db.SetUserPremium(9999), ErrUserNotFound)
}

func TestEventCRUD(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "alice")

	_, err := db.CreateEvent(userID, "  ", "desc")
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)

	eventID, err := db.CreateEvent(userID, "Wedding", "June wedding")
	require.NoError(t, err)

	event, err := db.GetEvent(eventID)
	require.NoError(t, err)
	assert.Equal(t, "Wedding", event.Title)
	assert.Equal(t, userID, event.UserID)
	assert.False(t, event.Imported)

	require.NoError(t, db.UpdateEvent(eventID, "Wedding 2026", "moved"))
	event, err = db.GetEvent(eventID)
	require.NoError(t, err)
	assert.Equal(t, "Wedding 2026", event.Title)

	events, err := db.GetEvents(userID)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestDeleteEventCascadesTasks(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "alice")
	eventID, taskID := seedEventWithTask(t, db, userID)

	require.NoError(t, db.DeleteEvent(eventID))

	_, err := db.GetTask(taskID)
	assert.Error(t, err)
}

func TestShareEventRejectsDuplicates(t *testing.T) {
	db := newTestDB(t)
	alice := seedUser(t, db, "alice")
	seedUser(t, db, "bob")
	eventID, taskID := seedEventWithTask(t, db, alice)

	require.NoError(t, db.ShareEvent(eventID, alice, "bob"))
	assert.ErrorIs(t, db.ShareEvent(eventID, alice, "bob"), ErrDuplicateShare)

	assert.ErrorIs(t, db.ShareEvent(eventID, alice, "nobody"), ErrUserNotFound)

	// Sharing the event also shared its tasks
	bob, err := db.GetUserByUsername("bob")
	require.NoError(t, err)
	shared, err := db.GetSharedTasks(bob.ID)
	require.NoError(t, err)
	require.Len(t, shared, 1)
	assert.Equal(t, taskID, shared[0].TaskID)
	assert.Equal(t, "alice", shared[0].SharerName)
}

func TestShareTaskRejectsDuplicates(t *testing.T) {
	db := newTestDB(t)
	alice := seedUser(t, db, "alice")
	seedUser(t, db, "bob")
	_, taskID := seedEventWithTask(t, db, alice)

	require.NoError(t, db.ShareTask(taskID, alice, "bob"))
	assert.ErrorIs(t, db.ShareTask(taskID, alice, "bob"), ErrDuplicateShare)
}

func TestHasEventAccess(t *testing.T) {
	db := newTestDB(t)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	carol := seedUser(t, db, "carol")
	eventID, _ := seedEventWithTask(t, db, alice)

	require.NoError(t, db.ShareEvent(eventID, alice, "bob"))

	owner, err := db.HasEventAccess(alice, eventID)
	require.NoError(t, err)
	assert.True(t, owner)

	sharedWith, err := db.HasEventAccess(bob, eventID)
	require.NoError(t, err)
	assert.True(t, sharedWith)

	stranger, err := db.HasEventAccess(carol, eventID)
	require.NoError(t, err)
	assert.False(t, stranger)
}

func TestScoreRoundTrip(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "alice")
	eventID, taskID := seedEventWithTask(t, db, userID)

	for _, score := range []int{40, 60, 80, 95} {
		require.NoError(t, db.SaveScore(userID, eventID, &taskID, score))
	}

	records, err := db.LoadScores(userID, ScoreFilter{EventID: eventID, TaskID: taskID})
	require.NoError(t, err)
	require.Len(t, records, 4)

	// Most recent first
	assert.Equal(t, 95, records[0].Score)
	assert.Equal(t, 40, records[3].Score)
	require.NotNil(t, records[0].TaskID)
	assert.Equal(t, taskID, *records[0].TaskID)

	limited, err := db.LoadScores(userID, ScoreFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

// Sharing an event must not leak the owner's score records into the
// recipient's statistics: each user sees only their own ledger rows.
func TestSharedEventStatsStayPerUser(t *testing.T) {
	db := newTestDB(t)
	alice := seedUser(t, db, "alice")
	bob := seedUser(t, db, "bob")
	eventID, taskID := seedEventWithTask(t, db, alice)
	require.NoError(t, db.ShareEvent(eventID, alice, "bob"))

	require.NoError(t, db.SaveScore(alice, eventID, &taskID, 90))
	require.NoError(t, db.SaveScore(bob, eventID, &taskID, 55))

	bobRecords, err := db.LoadScores(bob, ScoreFilter{EventID: eventID})
	require.NoError(t, err)
	require.Len(t, bobRecords, 1)
	assert.Equal(t, 55, bobRecords[0].Score)
	assert.Equal(t, bob, bobRecords[0].UserID)
}

func TestChatHistoryFilters(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "alice")
	eventID, taskID := seedEventWithTask(t, db, userID)

	save := func(eID, tID *int64, role, content string) {
		t.Helper()
		_, err := db.SaveChatMessage(&ChatMessage{UserID: userID, EventID: eID, TaskID: tID, Role: role, Content: content})
		require.NoError(t, err)
	}

	save(nil, nil, "user", "general question")
	save(&eventID, nil, "user", "event question")
	save(&eventID, nil, "assistant", "event answer")
	save(&eventID, &taskID, "user", "task question")

	all, err := db.GetChatHistory(userID, nil, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	// Event filter excludes task-level messages
	eventThread, err := db.GetChatHistory(userID, &eventID, nil)
	require.NoError(t, err)
	require.Len(t, eventThread, 2)
	assert.Equal(t, "event question", eventThread[0].Content)

	taskThread, err := db.GetChatHistory(userID, nil, &taskID)
	require.NoError(t, err)
	require.Len(t, taskThread, 1)
	assert.Equal(t, "task question", taskThread[0].Content)

	activity, err := db.GetChatActivity(userID, &eventID)
	require.NoError(t, err)
	assert.Equal(t, 3, activity.TotalMessages)
	assert.Equal(t, 2, activity.UserMessages)
	assert.Equal(t, 1, activity.AssistantMessages)

	deleted, err := db.ClearChatHistory(userID, nil, &taskID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, deleted)
}

func TestSaveChatMessageValidation(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "alice")

	var valErr *ValidationError
	_, err := db.SaveChatMessage(&ChatMessage{UserID: userID, Role: "system", Content: "hi"})
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "role", valErr.Field)

	_, err = db.SaveChatMessage(&ChatMessage{UserID: userID, Role: "user", Content: "   "})
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "content", valErr.Field)
}
