package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"eventquiz"

	"github.com/joho/godotenv"
)

func main() {
	var (
		dbPath       = flag.String("db", "./eventquiz.db", "Path to the SQLite database")
		userID       = flag.Int64("user", 0, "User id taking the quiz (required)")
		taskID       = flag.Int64("task", 0, "Task id to quiz on (required)")
		regenerate   = flag.Bool("generate", false, "Generate a fresh question set even if one is stored")
		questionsDir = flag.String("questions", "data/questions", "Directory for stored question sets")
		logDir       = flag.String("logs", "log", "Directory for session transcripts")
		apiKey       = flag.String("api-key", "", "API key (or set OPENAI_API_KEY env var)")
		model        = flag.String("model", "gpt-4o", "Chat completion model")
		verbose      = flag.Bool("verbose", false, "Enable verbose debugging output")
	)
	flag.Parse()

	godotenv.Load()
	eventquiz.SetVerbose(*verbose)
	log := eventquiz.Log

	if *userID == 0 || *taskID == 0 {
		log.Fatal("Both -user and -task are required.")
	}

	if *apiKey == "" {
		*apiKey = os.Getenv("OPENAI_API_KEY")
		if *apiKey == "" {
			log.Fatal("API key is required. Use -api-key flag or set OPENAI_API_KEY environment variable.")
		}
	}

	db, err := eventquiz.OpenDB(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.CloseDB()
	if err := db.CreateTables(); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	task, err := db.GetTask(*taskID)
	if err != nil {
		log.Fatalf("Failed to load task: %v", err)
	}

	// Quota gate comes before any gateway call
	quota := eventquiz.NewQuotaTracker(db)
	status, err := quota.GetStatus(*userID)
	if err != nil {
		log.Fatalf("Failed to load quota status: %v", err)
	}
	if !quota.Allow(status) {
		fmt.Printf("You have reached your daily limit of %d quiz attempts.\n", eventquiz.DailyQuizLimit)
		fmt.Println("Upgrade to premium for unlimited quizzes.")
		os.Exit(1)
	}
	if _, err := quota.RecordAttempt(*userID); err != nil {
		log.Fatalf("Failed to record quiz attempt: %v", err)
	}

	qstore, err := eventquiz.NewQuestionStore(*questionsDir)
	if err != nil {
		log.Fatalf("Failed to create question store: %v", err)
	}

	client := eventquiz.NewChatClient(*apiKey, os.Getenv("OPENAI_BASE_URL"))
	engine := eventquiz.NewQuizEngine(
		eventquiz.NewQuestionMaker(client, *model),
		eventquiz.NewGrader(client, *model),
		db,
		qstore,
	)

	if transcript, err := eventquiz.NewLLMLogger(*logDir, task.ID, task.Title); err != nil {
		log.Warnf("Continuing without transcript: %v", err)
	} else {
		engine.SetTranscript(transcript)
		defer transcript.Close()
	}

	ctx := context.Background()
	session := engine.NewSession(*userID, task)

	if !*regenerate {
		loaded, err := engine.LoadQuestions(session)
		if err != nil {
			log.Warnf("Failed to load stored questions: %v", err)
		} else if loaded {
			fmt.Printf("Loaded %d stored questions for %q.\n", len(session.Questions), task.Title)
		}
	}
	if session.State == eventquiz.StateIdle {
		fmt.Println("Generating questions... (this may take a moment)")
		if err := engine.Generate(ctx, session, task); err != nil {
			log.Fatalf("Question generation failed (safe to retry): %v", err)
		}
	}

	if err := session.Begin(); err != nil {
		log.Fatalf("Failed to start quiz: %v", err)
	}

	fmt.Printf("\nQuiz on task: %s\n", task.Title)
	fmt.Println("Type your answer, or a command: :skip  :back  :next  :done")
	fmt.Println()

	runQuiz(session)

	fmt.Println("\nGrading answers...")
	result, err := engine.Finalize(ctx, session)
	if err != nil {
		if err == eventquiz.ErrNoAnsweredQuestions {
			fmt.Println("All questions were skipped; nothing to grade.")
			return
		}
		log.Fatalf("Finalize failed (safe to retry, your answers are kept): %v", err)
	}

	printResult(result)
}

func runQuiz(session *eventquiz.QuizSession) {
	scanner := bufio.NewScanner(os.Stdin)

	for {
		idx := session.Index
		question := session.Questions[idx]

		marker := ""
		if session.Skipped[idx] {
			marker = " [skipped]"
		}
		fmt.Printf("Question %d of %d%s:\n%s\n", idx+1, len(session.Questions), marker, question.Question)
		if prev, ok := session.Answers[idx]; ok && prev != "" {
			fmt.Printf("(current answer: %s)\n", prev)
		}
		fmt.Print("> ")

		if !scanner.Scan() {
			return
		}
		input := strings.TrimSpace(scanner.Text())

		switch input {
		case ":skip":
			session.ToggleSkip()
			if session.Skipped[idx] {
				fmt.Println("Question marked as skipped.")
			} else {
				fmt.Println("Skip mark removed.")
			}
		case ":back":
			if !session.Prev() {
				fmt.Println("Already at the first question.")
			}
		case ":next":
			if !session.Next() {
				fmt.Println("Already at the last question. Use :done to finish.")
			}
		case ":done":
			if session.AtLastQuestion() {
				return
			}
			fmt.Println("Move to the last question before finishing.")
		default:
			session.Submit(input)
			if !session.Next() {
				return
			}
		}
		fmt.Println()
	}
}

func printResult(result *eventquiz.QuizResult) {
	fmt.Println("\n=== Result ===")
	for i, q := range result.PerQuestion {
		if q.Skipped {
			fmt.Printf("%d. skipped\n", i+1)
			continue
		}
		fmt.Printf("%d. %d/%d\n", i+1, q.Score, eventquiz.MaxScore)
	}
	label, _ := eventquiz.StatusLabel(result.Average)
	fmt.Printf("\nAverage over %d answered question(s): %.1f%% (%s)\n", result.Answered, result.Average, label)
}
