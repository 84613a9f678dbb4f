package eventquiz

import (
	"context"
	"fmt"
)

// SessionState tracks where a quiz session is in its lifecycle
type SessionState string

const (
	StateIdle            SessionState = "idle"
	StateQuestionsLoaded SessionState = "questions_loaded"
	StateAnswering       SessionState = "answering"
	StateFinalizing      SessionState = "finalizing"
	StateFinished        SessionState = "finished"
)

// QuizSession holds the transient progress of one user through one task's
// question set. Nothing is persisted until finalization, so abandoning a
// session leaves no trace.
type QuizSession struct {
	UserID  int64
	EventID int64
	TaskID  int64

	State     SessionState
	Questions []QuizQuestion
	Index     int
	Answers   map[int]string
	Skipped   map[int]bool

	// graded and persisted survive a failed finalize, so a retry neither
	// re-grades nor re-writes what already went through
	graded    map[int]int
	persisted map[int]bool
}

// QuestionScore is the graded outcome for a single question
type QuestionScore struct {
	Question string `json:"question"`
	Score    int    `json:"score"`
	Skipped  bool   `json:"skipped"`
}

// QuizResult is the outcome of a finalized session
type QuizResult struct {
	Average     float64         `json:"average_score"`
	Answered    int             `json:"answered"`
	PerQuestion []QuestionScore `json:"per_question"`
}

// QuestionSource produces a question set from task content
type QuestionSource interface {
	GenerateQuestions(ctx context.Context, title string, tasks []Task) ([]QuizQuestion, error)
}

// ScoreWriter appends graded results to the statistics ledger
type ScoreWriter interface {
	SaveScore(userID, eventID int64, taskID *int64, score int) error
}

// QuizEngine drives sessions from generation through answering to
// finalization
type QuizEngine struct {
	generator  QuestionSource
	grader     AnswerGrader
	scores     ScoreWriter
	store      *QuestionStore
	transcript *LLMLogger
}

// SetTranscript attaches a per-session transcript logger; nil disables it
func (e *QuizEngine) SetTranscript(transcript *LLMLogger) {
	e.transcript = transcript
}

// NewQuizEngine creates an engine. The question store may be nil, in which
// case sets live only in the session.
func NewQuizEngine(generator QuestionSource, grader AnswerGrader, scores ScoreWriter, store *QuestionStore) *QuizEngine {
	return &QuizEngine{
		generator: generator,
		grader:    grader,
		scores:    scores,
		store:     store,
	}
}

// NewSession starts an idle session for a user and task
func (e *QuizEngine) NewSession(userID int64, task *Task) *QuizSession {
	return &QuizSession{
		UserID:    userID,
		EventID:   task.EventID,
		TaskID:    task.ID,
		State:     StateIdle,
		Answers:   make(map[int]string),
		Skipped:   make(map[int]bool),
		graded:    make(map[int]int),
		persisted: make(map[int]bool),
	}
}

// LoadQuestions restores the task's stored question set into the session,
// if one exists. Returns true when a set was loaded.
func (e *QuizEngine) LoadQuestions(session *QuizSession) (bool, error) {
	if e.store == nil {
		return false, nil
	}
	questions, err := e.store.Load(session.TaskID)
	if err != nil {
		return false, err
	}
	if questions == nil {
		return false, nil
	}
	session.setQuestions(questions)
	return true, nil
}

// Generate produces a fresh question set for the session's task. On success
// the prior set and all in-progress answers are discarded; on failure the
// session is left unchanged so the user can retry.
func (e *QuizEngine) Generate(ctx context.Context, session *QuizSession, task *Task) error {
	questions, err := e.generator.GenerateQuestions(ctx, task.Title, []Task{*task})
	if err != nil {
		return err
	}

	session.setQuestions(questions)

	if e.transcript != nil {
		e.transcript.Logf("Generated %d questions for task %d\n", len(questions), session.TaskID)
	}

	if e.store != nil {
		if err := e.store.Save(session.TaskID, questions); err != nil {
			// The in-memory set is usable either way
			Log.Warnf("Failed to store question set for task %d: %v", session.TaskID, err)
		}
	}
	return nil
}

func (s *QuizSession) setQuestions(questions []QuizQuestion) {
	s.Questions = questions
	s.Answers = make(map[int]string)
	s.Skipped = make(map[int]bool)
	s.graded = make(map[int]int)
	s.persisted = make(map[int]bool)
	s.Index = 0
	s.State = StateQuestionsLoaded
}

// Begin moves a loaded session into answering at the first question
func (s *QuizSession) Begin() error {
	if s.State != StateQuestionsLoaded {
		return fmt.Errorf("cannot begin in state %q", s.State)
	}
	s.Index = 0
	s.State = StateAnswering
	return nil
}

// Submit records the free-text answer for the current question.
// Nothing is graded until finalization.
func (s *QuizSession) Submit(answer string) error {
	if s.State != StateAnswering {
		return fmt.Errorf("cannot submit in state %q", s.State)
	}
	s.Answers[s.Index] = answer
	// A changed answer invalidates any score cached by a failed finalize
	delete(s.graded, s.Index)
	return nil
}

// ToggleSkip flips the skip mark on the current question. The toggle is
// reversible while the session is still answering.
func (s *QuizSession) ToggleSkip() error {
	if s.State != StateAnswering {
		return fmt.Errorf("cannot skip in state %q", s.State)
	}
	if s.Skipped[s.Index] {
		delete(s.Skipped, s.Index)
	} else {
		s.Skipped[s.Index] = true
	}
	return nil
}

// Next advances to the next question without grading
func (s *QuizSession) Next() bool {
	if s.State != StateAnswering || s.Index >= len(s.Questions)-1 {
		return false
	}
	s.Index++
	return true
}

// Prev moves back to the previous question without grading
func (s *QuizSession) Prev() bool {
	if s.State != StateAnswering || s.Index <= 0 {
		return false
	}
	s.Index--
	return true
}

// AtLastQuestion reports whether the session sits on the final question
func (s *QuizSession) AtLastQuestion() bool {
	return len(s.Questions) > 0 && s.Index == len(s.Questions)-1
}

// Finalize grades every non-skipped question and writes one score record
// per graded question. A grading failure degrades that question to 0 with a
// logged warning rather than aborting the loop. A persistence failure
// preserves the in-memory session so no entered answers are lost, and a
// retried finalize writes only the records still missing from the ledger.
// If every question was skipped there is no aggregate: the session
// finishes with ErrNoAnsweredQuestions and no records are written.
func (e *QuizEngine) Finalize(ctx context.Context, session *QuizSession) (*QuizResult, error) {
	if session.State != StateAnswering {
		return nil, fmt.Errorf("cannot finalize in state %q", session.State)
	}
	session.State = StateFinalizing

	// Grade first, write second. Scores cached by an earlier finalize of
	// this session are reused rather than graded again.
	for i, q := range session.Questions {
		if session.Skipped[i] {
			continue
		}
		if _, ok := session.graded[i]; ok {
			continue
		}

		answer := session.Answers[i] // empty string when nothing was entered

		score, err := e.grader.Grade(ctx, q.Question, answer, q.Answer)
		degraded := err != nil
		if degraded {
			Log.Warnf("Grading failed for question %d of task %d, falling back to score 0: %v", i+1, session.TaskID, err)
			score = 0
		}
		if e.transcript != nil {
			e.transcript.LogScore(i+1, score, degraded)
		}
		session.graded[i] = score
	}

	for i := range session.Questions {
		if session.Skipped[i] || session.persisted[i] {
			continue
		}
		if err := e.scores.SaveScore(session.UserID, session.EventID, &session.TaskID, session.graded[i]); err != nil {
			session.State = StateAnswering
			return nil, err
		}
		session.persisted[i] = true
	}

	result := &QuizResult{}
	total := 0
	for i, q := range session.Questions {
		if session.Skipped[i] {
			result.PerQuestion = append(result.PerQuestion, QuestionScore{Question: q.Question, Skipped: true})
			continue
		}
		score := session.graded[i]
		result.PerQuestion = append(result.PerQuestion, QuestionScore{Question: q.Question, Score: score})
		total += score
		result.Answered++
	}

	session.State = StateFinished

	if result.Answered == 0 {
		return nil, ErrNoAnsweredQuestions
	}
	result.Average = float64(total) / float64(result.Answered)
	return result, nil
}

// Retry re-enters answering with cleared answers and the same question set
func (s *QuizSession) Retry() error {
	if s.State != StateFinished {
		return fmt.Errorf("cannot retry in state %q", s.State)
	}
	s.Answers = make(map[int]string)
	s.Skipped = make(map[int]bool)
	s.graded = make(map[int]int)
	s.persisted = make(map[int]bool)
	s.Index = 0
	s.State = StateAnswering
	return nil
}

// Reset discards the question set entirely; a new set must be generated or
// loaded before answering again. Already-persisted score records from prior
// completed sessions are unaffected.
func (s *QuizSession) Reset() {
	s.Questions = nil
	s.Answers = make(map[int]string)
	s.Skipped = make(map[int]bool)
	s.graded = make(map[int]int)
	s.persisted = make(map[int]bool)
	s.Index = 0
	s.State = StateIdle
}
