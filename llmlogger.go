package eventquiz

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// LLMLogger writes a transcript of all gateway interactions for one quiz
// session to its own file, for debugging prompts and grading behavior
type LLMLogger struct {
	file *os.File
	mu   sync.Mutex
}

// NewLLMLogger creates a transcript logger for the given task's session
func NewLLMLogger(dir string, taskID int64, taskTitle string) (*LLMLogger, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	filename := filepath.Join(dir, fmt.Sprintf("task_%d_%d.log", taskID, time.Now().Unix()))
	file, err := os.Create(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}

	logger := &LLMLogger{file: file}
	logger.Logf("=== Quiz Session Log ===\n")
	logger.Logf("Task ID: %d\n", taskID)
	logger.Logf("Task: %s\n", taskTitle)
	logger.Logf("Started: %s\n", time.Now().Format(time.RFC3339))
	logger.Logf("========================\n\n")
	return logger, nil
}

// Logf writes a formatted transcript entry with timestamp
func (ll *LLMLogger) Logf(format string, args ...interface{}) {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(ll.file, "[%s] %s", timestamp, fmt.Sprintf(format, args...))
	ll.file.Sync()
}

// LogRequest records a prompt sent to the gateway
func (ll *LLMLogger) LogRequest(stage, prompt string) {
	ll.Logf("=== REQUEST (%s) ===\n%s\n====================\n\n", stage, prompt)
}

// LogResponse records a raw gateway response
func (ll *LLMLogger) LogResponse(stage, response string) {
	ll.Logf("=== RESPONSE (%s) ===\n%s\n=====================\n\n", stage, response)
}

// LogScore records the graded outcome for one question
func (ll *LLMLogger) LogScore(questionNum, score int, degraded bool) {
	if degraded {
		ll.Logf("Question %d: score %d (grading failed, degraded)\n", questionNum, score)
		return
	}
	ll.Logf("Question %d: score %d\n", questionNum, score)
}

// Close finishes and closes the transcript
func (ll *LLMLogger) Close() error {
	ll.mu.Lock()
	defer ll.mu.Unlock()

	if ll.file == nil {
		return nil
	}
	timestamp := time.Now().Format("15:04:05.000")
	fmt.Fprintf(ll.file, "[%s] === Session Complete: %s ===\n", timestamp, time.Now().Format(time.RFC3339))
	return ll.file.Close()
}
