package eventquiz

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAverageScore(t *testing.T) {
	assert.Equal(t, 0.0, AverageScore(nil))
	assert.Equal(t, 0.0, AverageScore([]ScoreRecord{}))

	records := []ScoreRecord{{Score: 80}, {Score: 60}, {Score: 70}}
	assert.InDelta(t, 70.0, AverageScore(records), 0.001)
}

func TestStatusLabelThresholds(t *testing.T) {
	tests := []struct {
		score float64
		label string
		tier  string
	}{
		{100, "Excellent", TierExcellent},
		{80, "Excellent", TierExcellent},
		{79.9, "Good", TierGood},
		{65, "Good", TierGood},
		{64.9, "Average", TierAverage},
		{50, "Average", TierAverage},
		{49.9, "Weak", TierWeak},
		{0, "Weak", TierWeak},
	}
	for _, tt := range tests {
		label, tier := StatusLabel(tt.score)
		assert.Equal(t, tt.label, label, "score %v", tt.score)
		assert.Equal(t, tt.tier, tier, "score %v", tt.score)
	}
}

func TestTrend(t *testing.T) {
	assert.Equal(t, 15, Trend(80, 65))
	assert.Equal(t, -20, Trend(40, 60))
	assert.Equal(t, 0, Trend(50, 50))
}

func taskRecord(id, taskID int64, score int, at time.Time) ScoreRecord {
	return ScoreRecord{ID: id, UserID: 1, EventID: 1, TaskID: &taskID, Score: score, Timestamp: at}
}

func TestPerTaskBreakdown(t *testing.T) {
	base := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)

	records := []ScoreRecord{
		taskRecord(1, 10, 40, base),
		taskRecord(2, 10, 55, base.Add(time.Hour)),
		taskRecord(3, 10, 70, base.Add(2*time.Hour)),
		taskRecord(4, 10, 85, base.Add(3*time.Hour)),
		taskRecord(5, 20, 90, base),
		// Legacy row without a task id is left out
		{ID: 6, UserID: 1, EventID: 1, Score: 30, Timestamp: base},
	}

	breakdown := PerTaskBreakdown(records)
	require.Len(t, breakdown, 2)

	first := breakdown[0]
	assert.EqualValues(t, 10, first.TaskID)
	// Most recent first, capped at RecentAttempts
	require.Len(t, first.Recent, RecentAttempts)
	assert.Equal(t, 85, first.Recent[0].Score)
	assert.Equal(t, 70, first.Recent[1].Score)
	assert.Equal(t, 55, first.Recent[2].Score)
	assert.InDelta(t, 70.0, first.Average, 0.001)
	assert.Equal(t, "Good", first.Label)
	require.NotNil(t, first.Trend)
	assert.Equal(t, 15, *first.Trend)

	second := breakdown[1]
	assert.EqualValues(t, 20, second.TaskID)
	require.Len(t, second.Recent, 1)
	assert.Nil(t, second.Trend)
	assert.Equal(t, "Excellent", second.Label)
}

func TestPerTaskBreakdownEmpty(t *testing.T) {
	assert.Empty(t, PerTaskBreakdown(nil))
}

func TestImprovementTips(t *testing.T) {
	assert.Len(t, ImprovementTips(40, "Wedding"), 3)
	assert.Len(t, ImprovementTips(55, "Wedding"), 2)
	assert.Empty(t, ImprovementTips(65, "Wedding"))
	assert.Empty(t, ImprovementTips(90, "Wedding"))
}

// A write through the ledger comes back through the breakdown with the
// same score, most recent first.
func TestBreakdownRoundTripThroughDB(t *testing.T) {
	db := newTestDB(t)
	userID := seedUser(t, db, "alice")
	eventID, taskID := seedEventWithTask(t, db, userID)

	for _, score := range []int{45, 65, 95} {
		require.NoError(t, db.SaveScore(userID, eventID, &taskID, score))
	}

	records, err := db.LoadScores(userID, ScoreFilter{EventID: eventID})
	require.NoError(t, err)

	breakdown := PerTaskBreakdown(records)
	require.Len(t, breakdown, 1)
	assert.EqualValues(t, taskID, breakdown[0].TaskID)
	assert.Equal(t, 95, breakdown[0].Recent[0].Score)
	require.NotNil(t, breakdown[0].Trend)
	assert.Equal(t, 30, *breakdown[0].Trend)
}
