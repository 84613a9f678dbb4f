package eventquiz

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

const chatTimeout = 10 * time.Second

// fallbackReply is returned when the gateway is unreachable, so the chat
// surface degrades instead of erroring
const fallbackReply = "Regarding your task: please review the current status and identify the next steps."

// ChatAssistant answers user messages with event and task context and
// persists both sides of the conversation
type ChatAssistant struct {
	client *openai.Client
	model  string
	db     *DB
}

// NewChatAssistant creates an assistant over the given database
func NewChatAssistant(client *openai.Client, model string, db *DB) *ChatAssistant {
	return &ChatAssistant{client: client, model: model, db: db}
}

// Send stores the user's message, generates an assistant reply, stores it,
// and returns the reply. The user message is persisted even when the
// gateway call fails.
func (ca *ChatAssistant) Send(ctx context.Context, userID int64, eventID, taskID *int64, message string) (string, error) {
	if strings.TrimSpace(message) == "" {
		return "", &ValidationError{Field: "content", Reason: "must not be empty"}
	}

	if _, err := ca.db.SaveChatMessage(&ChatMessage{
		UserID:  userID,
		EventID: eventID,
		TaskID:  taskID,
		Role:    "user",
		Content: message,
	}); err != nil {
		return "", err
	}

	reply := ca.generateReply(ctx, userID, eventID, taskID, message)

	if _, err := ca.db.SaveChatMessage(&ChatMessage{
		UserID:  userID,
		EventID: eventID,
		TaskID:  taskID,
		Role:    "assistant",
		Content: reply,
	}); err != nil {
		return "", err
	}
	return reply, nil
}

func (ca *ChatAssistant) generateReply(ctx context.Context, userID int64, eventID, taskID *int64, message string) string {
	prompt := ca.buildPrompt(userID, eventID, taskID, message)

	ctx, cancel := context.WithTimeout(ctx, chatTimeout)
	defer cancel()

	resp, err := ca.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: ca.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You are a concise planning assistant for personal events and tasks. Answer with concrete next steps.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		},
	)
	if err != nil {
		Log.Errorf("Chat completion failed for user %d: %v", userID, err)
		return fallbackReply
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		Log.Warnf("Empty chat completion for user %d", userID)
		return fallbackReply
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content)
}

// buildPrompt enriches the user message with whatever event, task, and
// score context can be loaded. Lookup failures degrade to less context,
// never to an error.
func (ca *ChatAssistant) buildPrompt(userID int64, eventID, taskID *int64, message string) string {
	var sb strings.Builder

	if eventID != nil {
		if event, err := ca.db.GetEvent(*eventID); err == nil {
			sb.WriteString(fmt.Sprintf("Event: %s\n", event.Title))
			if event.Description != "" {
				sb.WriteString(fmt.Sprintf("Description: %s\n", event.Description))
			}
			if tasks, err := ca.db.GetTasks(*eventID); err == nil && len(tasks) > 0 {
				sb.WriteString("Tasks of this event:\n")
				for _, task := range tasks {
					sb.WriteString(fmt.Sprintf("- %s (%s)\n", task.Title, task.Status))
				}
			}
		}
	}

	if taskID != nil {
		if task, err := ca.db.GetTask(*taskID); err == nil {
			sb.WriteString(fmt.Sprintf("Current task: %s\nTask details: %s\n", task.Title, task.Content))
		}
		if records, err := ca.db.LoadScores(userID, ScoreFilter{TaskID: *taskID, Limit: RecentAttempts}); err == nil && len(records) > 0 {
			avg := AverageScore(records)
			label, _ := StatusLabel(avg)
			sb.WriteString(fmt.Sprintf("Recent quiz performance on this task: %.0f%% (%s)\n", avg, label))
		}
	}

	if sb.Len() > 0 {
		sb.WriteString("\n")
	}
	sb.WriteString(fmt.Sprintf("User question: %s", message))
	return sb.String()
}
