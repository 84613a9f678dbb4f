package eventquiz

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway serves a canned chat-completion response
func fakeGateway(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/chat/completions", handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func completionReply(t *testing.T, w http.ResponseWriter, content string) {
	t.Helper()
	resp := map[string]interface{}{
		"id":     "cmpl-test",
		"object": "chat.completion",
		"choices": []map[string]interface{}{
			{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": content},
				"finish_reason": "stop",
			},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(resp))
}

func TestGraderParsesScore(t *testing.T) {
	var prompt string
	server := fakeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompt = req.Messages[len(req.Messages)-1].Content
		completionReply(t, w, "```json\n{\"score\": 78}\n```")
	})

	grader := NewGrader(NewChatClient("test-key", server.URL+"/v1"), "gpt-4o")
	score, err := grader.Grade(context.Background(), "How many venues?", "I called ten", "Ten venues, four replied")
	require.NoError(t, err)
	assert.Equal(t, 78, score)

	// The grading rubric travels in the prompt, not in local logic
	assert.Contains(t, prompt, "process steps")
	assert.Contains(t, prompt, "decision criteria")
	assert.Contains(t, prompt, "Student answer: I called ten")
	assert.Contains(t, prompt, "Model answer: Ten venues, four replied")
}

func TestGraderClampsOutOfRangeScore(t *testing.T) {
	server := fakeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		completionReply(t, w, `{"score": 140}`)
	})

	grader := NewGrader(NewChatClient("test-key", server.URL+"/v1"), "gpt-4o")
	score, err := grader.Grade(context.Background(), "q", "a", "m")
	require.NoError(t, err)
	assert.Equal(t, MaxScore, score)
}

func TestGraderGatewayError(t *testing.T) {
	server := fakeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
	})

	grader := NewGrader(NewChatClient("test-key", server.URL+"/v1"), "gpt-4o")
	_, err := grader.Grade(context.Background(), "q", "a", "m")

	var gradeErr *GradingError
	assert.ErrorAs(t, err, &gradeErr)
}

func TestGraderUnparseableResponse(t *testing.T) {
	server := fakeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		completionReply(t, w, "This answer deserves a good grade.")
	})

	grader := NewGrader(NewChatClient("test-key", server.URL+"/v1"), "gpt-4o")
	_, err := grader.Grade(context.Background(), "q", "a", "m")

	var gradeErr *GradingError
	assert.ErrorAs(t, err, &gradeErr)
}

func TestQuestionMakerGeneratesSet(t *testing.T) {
	server := fakeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		completionReply(t, w, "```json\n"+`[
			{"question": "q1", "answer": "a1"},
			{"question": "q2", "answer": "a2"},
			{"question": "q3", "answer": "a3"},
			{"question": "q4", "answer": "a4"},
			{"question": "q5", "answer": "a5"}
		]`+"\n```")
	})

	maker := NewQuestionMaker(NewChatClient("test-key", server.URL+"/v1"), "gpt-4o")
	questions, err := maker.GenerateQuestions(context.Background(), "Book venue", []Task{
		{Title: "Book venue", Content: "Call 10 venues, compare price and availability"},
	})
	require.NoError(t, err)
	assert.Len(t, questions, NumQuizQuestions)
	assert.Equal(t, "q1", questions[0].Question)
}

func TestQuestionMakerRejectsMalformedSet(t *testing.T) {
	server := fakeGateway(t, func(w http.ResponseWriter, r *http.Request) {
		completionReply(t, w, "Here are some questions: 1) ...")
	})

	maker := NewQuestionMaker(NewChatClient("test-key", server.URL+"/v1"), "gpt-4o")
	_, err := maker.GenerateQuestions(context.Background(), "Book venue", []Task{{Title: "t", Content: "c"}})

	var genErr *GenerationError
	assert.ErrorAs(t, err, &genErr)
}
