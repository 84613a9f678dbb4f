package eventquiz

import (
	"errors"
	"fmt"
)

// Sentinel errors for conditions callers branch on
var (
	// ErrQuotaExceeded means a non-premium user hit the daily attempt limit.
	// It is an actionable condition (offer the upgrade), not a hard failure.
	ErrQuotaExceeded = errors.New("daily quiz limit reached")

	// ErrNoAnsweredQuestions means every question in a session was skipped,
	// so there is no aggregate score to report
	ErrNoAnsweredQuestions = errors.New("no answered questions")

	// ErrDuplicateShare means the target was already shared with that recipient
	ErrDuplicateShare = errors.New("already shared with this user")

	// ErrUserNotFound means no user row matched the given id or username
	ErrUserNotFound = errors.New("user not found")
)

// GenerationError wraps a failed question-generation call.
// The question set is unchanged and retrying is safe.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("question generation failed: %v", e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// GradingError wraps a failed grading call for a single question.
// Finalization degrades the affected question to score 0 and continues.
type GradingError struct {
	Err error
}

func (e *GradingError) Error() string {
	return fmt.Sprintf("answer grading failed: %v", e.Err)
}

func (e *GradingError) Unwrap() error { return e.Err }

// PersistenceError wraps a failed database write. Retrying is safe;
// in-memory quiz state is preserved so entered answers are not lost.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// ValidationError reports a rejected input before any persistence call
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}
