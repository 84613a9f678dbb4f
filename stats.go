package eventquiz

import (
	"fmt"
	"sort"
)

// RecentAttempts is how many of a task's latest score records the
// breakdown exposes for trend display
const RecentAttempts = 3

// Status tiers, ordered best to worst. The cut points are part of the
// display contract and tests assert on them.
const (
	TierExcellent = "excellent"
	TierGood      = "good"
	TierAverage   = "average"
	TierWeak      = "weak"
)

// AverageScore returns the arithmetic mean over the given records, or 0
// when there are none. The zero is a display convention only; a finalized
// session with no answered questions reports ErrNoAnsweredQuestions
// instead of an average.
func AverageScore(records []ScoreRecord) float64 {
	if len(records) == 0 {
		return 0
	}
	total := 0
	for _, rec := range records {
		total += rec.Score
	}
	return float64(total) / float64(len(records))
}

// StatusLabel classifies a score into a display label and tier
func StatusLabel(score float64) (string, string) {
	switch {
	case score >= 80:
		return "Excellent", TierExcellent
	case score >= 65:
		return "Good", TierGood
	case score >= 50:
		return "Average", TierAverage
	default:
		return "Weak", TierWeak
	}
}

// Trend returns the delta between the two most recent same-task scores.
// Display only; no control decision depends on it.
func Trend(latest, previous int) int {
	return latest - previous
}

// TaskStats is the per-task slice of the breakdown
type TaskStats struct {
	TaskID  int64         `json:"task_id"`
	Recent  []ScoreRecord `json:"recent"` // most recent first, at most RecentAttempts
	Average float64       `json:"average"`
	Label   string        `json:"label"`
	Tier    string        `json:"tier"`
	Trend   *int          `json:"trend,omitempty"` // nil with fewer than two attempts
}

// PerTaskBreakdown groups score records by task, orders each group most
// recent first, and summarizes the latest RecentAttempts of each. Records
// without a task id (legacy rows) are left out.
func PerTaskBreakdown(records []ScoreRecord) []TaskStats {
	byTask := make(map[int64][]ScoreRecord)
	for _, rec := range records {
		if rec.TaskID == nil {
			continue
		}
		byTask[*rec.TaskID] = append(byTask[*rec.TaskID], rec)
	}

	taskIDs := make([]int64, 0, len(byTask))
	for id := range byTask {
		taskIDs = append(taskIDs, id)
	}
	sort.Slice(taskIDs, func(i, j int) bool { return taskIDs[i] < taskIDs[j] })

	var breakdown []TaskStats
	for _, taskID := range taskIDs {
		group := byTask[taskID]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].Timestamp.Equal(group[j].Timestamp) {
				return group[i].ID > group[j].ID
			}
			return group[i].Timestamp.After(group[j].Timestamp)
		})

		recent := group
		if len(recent) > RecentAttempts {
			recent = recent[:RecentAttempts]
		}

		stats := TaskStats{
			TaskID:  taskID,
			Recent:  recent,
			Average: AverageScore(recent),
		}
		stats.Label, stats.Tier = StatusLabel(stats.Average)
		if len(group) >= 2 {
			delta := Trend(group[0].Score, group[1].Score)
			stats.Trend = &delta
		}
		breakdown = append(breakdown, stats)
	}
	return breakdown
}

// ImprovementTips suggests follow-ups for an event when the average sits
// below the Good band
func ImprovementTips(average float64, eventTitle string) []string {
	var tips []string
	if average < 50 {
		tips = append(tips,
			fmt.Sprintf("Revisit the fundamentals: go over the core steps of %q again.", eventTitle),
			fmt.Sprintf("Mind the details: check the specific requirements of %q.", eventTitle),
			"Practice once more with focus on the weak areas.",
		)
	} else if average < 65 {
		tips = append(tips,
			fmt.Sprintf("Set priorities: identify the most important aspects of %q.", eventTitle),
			"Summarize the key facts of the event in your own words.",
		)
	}
	return tips
}
