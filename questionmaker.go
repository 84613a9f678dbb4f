package eventquiz

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// NumQuizQuestions is the size of every generated question set
const NumQuizQuestions = 5

// generateTimeout bounds the question-generation batch call
const generateTimeout = 30 * time.Second

// NewChatClient builds a chat-completion client. An empty baseURL uses the
// default OpenAI endpoint; any OpenAI-compatible gateway works.
func NewChatClient(apiKey, baseURL string) *openai.Client {
	if baseURL == "" {
		return openai.NewClient(apiKey)
	}
	config := openai.DefaultConfig(apiKey)
	config.BaseURL = baseURL
	return openai.NewClientWithConfig(config)
}

// QuestionMaker generates question/model-answer pairs from task content
type QuestionMaker struct {
	client *openai.Client
	model  string
}

// NewQuestionMaker creates a question maker using the given model
func NewQuestionMaker(client *openai.Client, model string) *QuestionMaker {
	return &QuestionMaker{client: client, model: model}
}

// GenerateQuestions produces a full question set from the given tasks.
// On any failure the set is rejected whole; callers keep their prior set.
func (qm *QuestionMaker) GenerateQuestions(ctx context.Context, title string, tasks []Task) ([]QuizQuestion, error) {
	Log.Infof("Generating %d questions for %q from %d task(s)", NumQuizQuestions, title, len(tasks))

	prompt := qm.buildPrompt(title, tasks)

	ctx, cancel := context.WithTimeout(ctx, generateTimeout)
	defer cancel()

	resp, err := qm.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: qm.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
		},
	)
	if err != nil {
		return nil, &GenerationError{Err: err}
	}

	if len(resp.Choices) == 0 {
		return nil, &GenerationError{Err: fmt.Errorf("no choices in response")}
	}

	questions, err := parseQuestionList(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, &GenerationError{Err: err}
	}

	Log.Infof("Generated %d questions for %q", len(questions), title)
	return questions, nil
}

func (qm *QuestionMaker) buildPrompt(title string, tasks []Task) string {
	var combined strings.Builder
	for _, task := range tasks {
		combined.WriteString(fmt.Sprintf("%s: %s\n", task.Title, task.Content))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Generate %d precise questions based on the following tasks of the event %q. The questions should:\n", NumQuizQuestions, title))
	sb.WriteString("- Ask about concrete progress and decisions in the work process\n")
	sb.WriteString("- Refer to the steps actually carried out, not just general themes\n")
	sb.WriteString("- Ask for measurable criteria of the current state of work\n")
	sb.WriteString("- For each question include a model answer a well-prepared person would give\n\n")
	sb.WriteString("Examples of good questions:\n")
	sb.WriteString("- \"How many venues did you contact and how many replied?\"\n")
	sb.WriteString("- \"Which comparison criteria were decisive for the selection?\"\n")
	sb.WriteString("- \"Which milestones have been reached and which are still open?\"\n\n")
	sb.WriteString(fmt.Sprintf("Tasks:\n%s\n", combined.String()))
	sb.WriteString("Return ONLY a JSON array of the form ")
	sb.WriteString(`[{"question": "...", "answer": "..."}]`)
	sb.WriteString(", nothing else.")
	return sb.String()
}
