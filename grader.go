package eventquiz

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// MaxScore is the top of the grading scale. Scores are percentages so they
// line up with the status-label thresholds.
const MaxScore = 100

// gradeTimeout bounds each grading call, converting a gateway hang into a
// retryable error
const gradeTimeout = 10 * time.Second

// AnswerGrader scores one free-text answer against a model answer
type AnswerGrader interface {
	Grade(ctx context.Context, question, userAnswer, modelAnswer string) (int, error)
}

// Grader grades answers via the chat-completion gateway
type Grader struct {
	client *openai.Client
	model  string
}

// NewGrader creates a grader using the given model
func NewGrader(client *openai.Client, model string) *Grader {
	return &Grader{client: client, model: model}
}

// Grade sends the question, the user's answer, and the model answer to the
// gateway and returns a score in [0, MaxScore]. Malformed responses go
// through the parse fallback chain; a hard parse failure or transport error
// comes back as a GradingError.
func (g *Grader) Grade(ctx context.Context, question, userAnswer, modelAnswer string) (int, error) {
	prompt := g.buildPrompt(question, userAnswer, modelAnswer)

	ctx, cancel := context.WithTimeout(ctx, gradeTimeout)
	defer cancel()

	resp, err := g.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: g.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		},
	)
	if err != nil {
		return 0, &GradingError{Err: err}
	}

	if len(resp.Choices) == 0 {
		return 0, &GradingError{Err: fmt.Errorf("no choices in response")}
	}

	score, err := parseScore(resp.Choices[0].Message.Content)
	if err != nil {
		return 0, &GradingError{Err: err}
	}
	return clampScore(score), nil
}

func (g *Grader) buildPrompt(question, userAnswer, modelAnswer string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Grade the student's answer as a teacher, on a scale of 0 to %d points, focusing on:\n", MaxScore))
	sb.WriteString("1. Mention of concrete process steps and milestones\n")
	sb.WriteString("2. Quantitative figures: counts, dates, deadlines, percentages\n")
	sb.WriteString("3. Explicit decision criteria\n")
	sb.WriteString("4. The current state of the process\n\n")
	sb.WriteString(fmt.Sprintf("Question: %s\n", question))
	sb.WriteString(fmt.Sprintf("Model answer: %s\n", modelAnswer))
	sb.WriteString(fmt.Sprintf("Student answer: %s\n\n", userAnswer))
	sb.WriteString("Grading rules:\n")
	sb.WriteString("- 90-100: covers all relevant process steps plus quantitative details\n")
	sb.WriteString("- 70-89: names the main steps but gives few details\n")
	sb.WriteString("- 50-69: general statements without concrete reference\n")
	sb.WriteString("- 20-49: only partially relevant\n")
	sb.WriteString("- 0-19: no topical relevance to the question\n\n")
	sb.WriteString(`Return ONLY JSON: {"score": N}`)
	return sb.String()
}
