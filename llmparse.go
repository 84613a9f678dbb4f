package eventquiz

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// The chat gateway is asked for bare JSON but routinely wraps it in a
// markdown code fence anyway. All response parsing goes through this file
// so the rest of the engine only ever sees typed results.

var scorePattern = regexp.MustCompile(`(?i)score["']?\s*[:=]\s*(\d+)`)

// stripCodeFence removes a surrounding ``` or ```json fence if present
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// parseQuestionList parses a generation response into question/answer pairs.
// Fallback chain: strip code fence, then direct JSON parse. There is no
// partial recovery for question lists: a malformed set is rejected whole.
func parseQuestionList(raw string) ([]QuizQuestion, error) {
	cleaned := stripCodeFence(raw)
	if cleaned == "" {
		return nil, fmt.Errorf("empty response")
	}

	var questions []QuizQuestion
	if err := json.Unmarshal([]byte(cleaned), &questions); err != nil {
		return nil, fmt.Errorf("failed to parse question list: %w", err)
	}

	for i, q := range questions {
		if strings.TrimSpace(q.Question) == "" || strings.TrimSpace(q.Answer) == "" {
			return nil, fmt.Errorf("question %d has an empty field", i+1)
		}
	}
	if len(questions) == 0 {
		return nil, fmt.Errorf("response contained no questions")
	}
	return questions, nil
}

// parseScore parses a grading response into a numeric score.
// Fallback chain: strip code fence, direct JSON parse of {"score": N},
// then best-effort regex extraction of the numeric field from the raw text.
func parseScore(raw string) (int, error) {
	cleaned := stripCodeFence(raw)
	if cleaned == "" {
		return 0, fmt.Errorf("empty response")
	}

	var parsed struct {
		Score *int `json:"score"`
	}
	if err := json.Unmarshal([]byte(cleaned), &parsed); err == nil && parsed.Score != nil {
		return *parsed.Score, nil
	}

	if m := scorePattern.FindStringSubmatch(cleaned); m != nil {
		score, err := strconv.Atoi(m[1])
		if err == nil {
			return score, nil
		}
	}

	return 0, fmt.Errorf("no score field in response: %q", truncate(raw, 120))
}

// clampScore bounds a score to the grading scale
func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
