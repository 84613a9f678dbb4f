package eventquiz

import "time"

// User represents a registered account with its daily quiz allowance state
type User struct {
	ID             int64      `json:"id"`
	Username       string     `json:"username"`
	Password       string     `json:"-"`
	IsPremium      bool       `json:"is_premium"`
	DailyQuizCount int        `json:"daily_quiz_count"`
	LastQuizReset  *time.Time `json:"last_quiz_reset,omitempty"`
}

// Event represents a planning event owned by a single user
type Event struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Imported    bool      `json:"imported"`
	CreatedAt   time.Time `json:"created_at"`
}

// Task represents a single task under an event; Content is the quiz source material
type Task struct {
	ID      int64  `json:"id"`
	EventID int64  `json:"event_id"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Status  string `json:"status"`
}

// SharedEvent records that an event was made visible to another user
type SharedEvent struct {
	ID         int64  `json:"id"`
	EventID    int64  `json:"event_id"`
	SharedBy   int64  `json:"shared_by_user_id"`
	SharedWith int64  `json:"shared_with_user_id"`
	Title      string `json:"title,omitempty"`
	SharerName string `json:"sharer_name,omitempty"`
}

// SharedTask records that a task was made visible to another user
type SharedTask struct {
	ID         int64  `json:"id"`
	TaskID     int64  `json:"task_id"`
	SharedBy   int64  `json:"shared_by_user_id"`
	SharedWith int64  `json:"shared_with_user_id"`
	Title      string `json:"title,omitempty"`
	Content    string `json:"content,omitempty"`
	SharerName string `json:"sharer_name,omitempty"`
}

// QuizQuestion is one generated question/model-answer pair.
// Question sets are ephemeral: regenerating a task's set overwrites the prior one.
type QuizQuestion struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ScoreRecord is one row of the append-only statistics ledger,
// written per graded question at finalization
type ScoreRecord struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	EventID   int64     `json:"event_id"`
	TaskID    *int64    `json:"task_id,omitempty"` // nullable for legacy rows
	Score     int       `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatMessage is one entry in the persistent chat log
type ChatMessage struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	EventID   *int64    `json:"event_id,omitempty"`
	TaskID    *int64    `json:"task_id,omitempty"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// QuotaStatus is a read-only snapshot of a user's quiz allowance
type QuotaStatus struct {
	IsPremium  bool       `json:"is_premium"`
	DailyCount int        `json:"daily_count"`
	LastReset  *time.Time `json:"last_reset,omitempty"`
}

// ChatActivity summarizes a user's chat log for display
type ChatActivity struct {
	TotalMessages     int    `json:"total_messages"`
	UserMessages      int    `json:"user_messages"`
	AssistantMessages int    `json:"assistant_messages"`
	FirstMessage      string `json:"first_message,omitempty"`
	LastMessage       string `json:"last_message,omitempty"`
}
