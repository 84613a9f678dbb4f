package main

import (
	"net/http"
	"os"

	"eventquiz"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/gorilla/sessions"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Server bundles the quiz core with its HTTP surface
type Server struct {
	db       *eventquiz.DB
	quota    *eventquiz.QuotaTracker
	maker    *eventquiz.QuestionMaker
	grader   *eventquiz.Grader
	chat     *eventquiz.ChatAssistant
	qstore   *eventquiz.QuestionStore
	store    *sessions.CookieStore
	validate *validator.Validate
	log      *logrus.Logger
}

func main() {
	// .env is optional; real environments set variables directly
	godotenv.Load()

	log := eventquiz.Log
	log.SetFormatter(&logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})

	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Fatal("OPENAI_API_KEY environment variable is required")
	}

	dbPath := envOr("DB_PATH", "./eventquiz.db")
	db, err := eventquiz.OpenDB(dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.CloseDB()

	if err := db.CreateTables(); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	qstore, err := eventquiz.NewQuestionStore(envOr("QUESTIONS_DIR", "data/questions"))
	if err != nil {
		log.Fatalf("Failed to create question store: %v", err)
	}

	client := eventquiz.NewChatClient(apiKey, os.Getenv("OPENAI_BASE_URL"))
	model := envOr("QUIZ_MODEL", "gpt-4o")

	secret := os.Getenv("SESSION_SECRET")
	if secret == "" {
		log.Warn("SESSION_SECRET not set, using an insecure default")
		secret = "insecure-dev-secret"
	}

	server := &Server{
		db:       db,
		quota:    eventquiz.NewQuotaTracker(db),
		maker:    eventquiz.NewQuestionMaker(client, model),
		grader:   eventquiz.NewGrader(client, model),
		chat:     eventquiz.NewChatAssistant(client, model, db),
		qstore:   qstore,
		store:    sessions.NewCookieStore([]byte(secret)),
		validate: validator.New(),
		log:      log,
	}

	router := mux.NewRouter()

	router.HandleFunc("/auth/register", server.handleRegister).Methods("POST")
	router.HandleFunc("/auth/login", server.handleLogin).Methods("POST")
	router.HandleFunc("/auth/logout", server.handleLogout).Methods("POST")
	router.HandleFunc("/auth/upgrade", server.handleUpgrade).Methods("POST")

	router.HandleFunc("/quiz/status", server.handleQuizStatus).Methods("GET")
	router.HandleFunc("/quiz/attempt", server.handleQuizAttempt).Methods("POST")
	router.HandleFunc("/quiz/generate", server.handleQuizGenerate).Methods("POST")
	router.HandleFunc("/quiz/finalize", server.handleQuizFinalize).Methods("POST")

	router.HandleFunc("/events", server.handleCreateEvent).Methods("POST")
	router.HandleFunc("/events", server.handleListEvents).Methods("GET")
	router.HandleFunc("/events/{id:[0-9]+}", server.handleUpdateEvent).Methods("PUT")
	router.HandleFunc("/events/{id:[0-9]+}", server.handleDeleteEvent).Methods("DELETE")
	router.HandleFunc("/events/{id:[0-9]+}/share", server.handleShareEvent).Methods("POST")
	router.HandleFunc("/events/{id:[0-9]+}/tasks", server.handleCreateTask).Methods("POST")
	router.HandleFunc("/events/{id:[0-9]+}/tasks", server.handleListTasks).Methods("GET")
	router.HandleFunc("/tasks/{id:[0-9]+}", server.handleUpdateTask).Methods("PUT")
	router.HandleFunc("/tasks/{id:[0-9]+}", server.handleDeleteTask).Methods("DELETE")
	router.HandleFunc("/tasks/{id:[0-9]+}/share", server.handleShareTask).Methods("POST")
	router.HandleFunc("/shared/events", server.handleSharedEvents).Methods("GET")
	router.HandleFunc("/shared/tasks", server.handleSharedTasks).Methods("GET")

	router.HandleFunc("/stats", server.handleStats).Methods("GET")

	router.HandleFunc("/chat/send", server.handleChatSend).Methods("POST")
	router.HandleFunc("/chat/history", server.handleChatHistory).Methods("GET")
	router.HandleFunc("/chat/clear", server.handleChatClear).Methods("DELETE")
	router.HandleFunc("/chat/stats", server.handleChatStats).Methods("GET")

	port := envOr("PORT", "8180")
	log.Infof("Starting server on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, router))
}

func envOr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
