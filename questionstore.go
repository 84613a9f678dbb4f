package eventquiz

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// QuestionStore keeps the generated question set for each task as a JSON
// file on disk. Sets are regenerable and overwritten, never versioned.
type QuestionStore struct {
	dir string
}

// NewQuestionStore creates the store, making the directory if needed
func NewQuestionStore(dir string) (*QuestionStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create questions directory: %w", err)
	}
	return &QuestionStore{dir: dir}, nil
}

// Save writes the question set for a task, replacing any prior set
func (qs *QuestionStore) Save(taskID int64, questions []QuizQuestion) error {
	data, err := json.MarshalIndent(questions, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal questions: %w", err)
	}
	if err := os.WriteFile(qs.path(taskID), data, 0644); err != nil {
		return fmt.Errorf("failed to write questions file: %w", err)
	}
	return nil
}

// Load returns the stored question set for a task, or nil if there is none
func (qs *QuestionStore) Load(taskID int64) ([]QuizQuestion, error) {
	data, err := os.ReadFile(qs.path(taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read questions file: %w", err)
	}

	var questions []QuizQuestion
	if err := json.Unmarshal(data, &questions); err != nil {
		return nil, fmt.Errorf("failed to parse questions file: %w", err)
	}
	return questions, nil
}

// Delete removes the stored question set for a task
func (qs *QuestionStore) Delete(taskID int64) error {
	err := os.Remove(qs.path(taskID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete questions file: %w", err)
	}
	return nil
}

func (qs *QuestionStore) path(taskID int64) string {
	return filepath.Join(qs.dir, fmt.Sprintf("task_%d.json", taskID))
}
