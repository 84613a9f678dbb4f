package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"eventquiz"

	"github.com/gorilla/mux"
)

const sessionName = "eventquiz-session"

// errorResponse names the action that failed and whether retrying is safe
type errorResponse struct {
	Error     string `json:"error"`
	Action    string `json:"action"`
	Retryable bool   `json:"retryable"`
	Upgrade   bool   `json:"upgrade,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Errorf("Failed to encode response: %v", err)
	}
}

// writeError maps the error taxonomy onto HTTP statuses and retry hints
func (s *Server) writeError(w http.ResponseWriter, action string, err error) {
	var valErr *eventquiz.ValidationError
	var genErr *eventquiz.GenerationError
	var gradeErr *eventquiz.GradingError
	var persErr *eventquiz.PersistenceError

	resp := errorResponse{Error: err.Error(), Action: action}
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, eventquiz.ErrQuotaExceeded):
		status = http.StatusForbidden
		resp.Upgrade = true
		resp.Error = fmt.Sprintf("you have reached your daily limit of %d quiz attempts; upgrade to premium for unlimited quizzes", eventquiz.DailyQuizLimit)
	case errors.As(err, &valErr):
		status = http.StatusBadRequest
	case errors.Is(err, eventquiz.ErrUserNotFound):
		status = http.StatusNotFound
	case errors.Is(err, eventquiz.ErrDuplicateShare):
		status = http.StatusConflict
	case errors.As(err, &genErr), errors.As(err, &gradeErr):
		status = http.StatusBadGateway
		resp.Retryable = true
	case errors.As(err, &persErr):
		resp.Retryable = true
	}

	if status >= http.StatusInternalServerError {
		s.log.Errorf("%s: %v", action, err)
	}
	s.writeJSON(w, status, resp)
}

func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, action string, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.writeError(w, action, &eventquiz.ValidationError{Field: "body", Reason: "malformed JSON"})
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		s.writeError(w, action, &eventquiz.ValidationError{Field: "body", Reason: err.Error()})
		return false
	}
	return true
}

func queryInt64(r *http.Request, key string) (int64, bool) {
	value, err := strconv.ParseInt(r.URL.Query().Get(key), 10, 64)
	return value, err == nil
}

func optionalQueryInt64(r *http.Request, key string) *int64 {
	if value, ok := queryInt64(r, key); ok {
		return &value
	}
	return nil
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

// requireEventAccess enforces that score records and quiz runs only ever
// reference events the user owns or has been granted share access to
func (s *Server) requireEventAccess(w http.ResponseWriter, action string, userID, eventID int64) bool {
	ok, err := s.db.HasEventAccess(userID, eventID)
	if err != nil {
		s.writeError(w, action, err)
		return false
	}
	if !ok {
		s.writeJSON(w, http.StatusForbidden, errorResponse{
			Error:  "no access to this event",
			Action: action,
		})
		return false
	}
	return true
}

func (s *Server) engine() *eventquiz.QuizEngine {
	return eventquiz.NewQuizEngine(s.maker, s.grader, s.db, s.qstore)
}

// --- auth ---

type registerRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=4"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !s.decodeJSON(w, r, "register", &req) {
		return
	}

	id, err := s.db.CreateUser(req.Username, req.Password)
	if err != nil {
		s.writeError(w, "register", err)
		return
	}
	s.log.Infof("Registered user %s (%d)", req.Username, id)
	s.writeJSON(w, http.StatusCreated, map[string]interface{}{"id": id, "username": req.Username})
}

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !s.decodeJSON(w, r, "login", &req) {
		return
	}

	user, err := s.db.GetUserByUsername(req.Username)
	if err != nil || user.Password != req.Password {
		s.writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid credentials", Action: "login"})
		return
	}

	session, _ := s.store.Get(r, sessionName)
	session.Values["user_id"] = user.ID
	if err := session.Save(r, w); err != nil {
		s.log.Errorf("Failed to save session: %v", err)
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":         user.ID,
		"username":   user.Username,
		"is_premium": user.IsPremium,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	session, _ := s.store.Get(r, sessionName)
	session.Options.MaxAge = -1
	if err := session.Save(r, w); err != nil {
		s.log.Errorf("Failed to clear session: %v", err)
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "logged out"})
}

type upgradeRequest struct {
	UserID int64 `json:"user_id" validate:"required"`
}

func (s *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	var req upgradeRequest
	if !s.decodeJSON(w, r, "premium upgrade", &req) {
		return
	}
	if err := s.quota.Upgrade(req.UserID); err != nil {
		s.writeError(w, "premium upgrade", err)
		return
	}
	s.log.Infof("User %d upgraded to premium", req.UserID)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"is_premium": true})
}

// --- quiz ---

func (s *Server) handleQuizStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryInt64(r, "user_id")
	if !ok {
		s.writeError(w, "quiz status", &eventquiz.ValidationError{Field: "user_id", Reason: "required"})
		return
	}

	status, err := s.quota.GetStatus(userID)
	if err != nil {
		s.writeError(w, "quiz status", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"is_premium":  status.IsPremium,
		"daily_count": s.quota.EffectiveCount(status),
		"remaining":   s.quota.Remaining(status),
	})
}

type attemptRequest struct {
	UserID  int64 `json:"user_id" validate:"required"`
	EventID int64 `json:"event_id" validate:"required"`
	TaskID  int64 `json:"task_id" validate:"required"`
}

func (s *Server) handleQuizAttempt(w http.ResponseWriter, r *http.Request) {
	var req attemptRequest
	if !s.decodeJSON(w, r, "quiz attempt", &req) {
		return
	}
	if !s.requireEventAccess(w, "quiz attempt", req.UserID, req.EventID) {
		return
	}

	status, err := s.quota.GetStatus(req.UserID)
	if err != nil {
		s.writeError(w, "quiz attempt", err)
		return
	}
	if !s.quota.Allow(status) {
		s.writeError(w, "quiz attempt", eventquiz.ErrQuotaExceeded)
		return
	}

	newCount, err := s.quota.RecordAttempt(req.UserID)
	if err != nil {
		s.writeError(w, "quiz attempt", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "new_count": newCount})
}

type generateRequest struct {
	UserID int64 `json:"user_id" validate:"required"`
	TaskID int64 `json:"task_id" validate:"required"`
}

func (s *Server) handleQuizGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if !s.decodeJSON(w, r, "question generation", &req) {
		return
	}

	task, err := s.db.GetTask(req.TaskID)
	if err != nil {
		s.writeError(w, "question generation", err)
		return
	}
	if !s.requireEventAccess(w, "question generation", req.UserID, task.EventID) {
		return
	}

	engine := s.engine()
	session := engine.NewSession(req.UserID, task)
	if err := engine.Generate(r.Context(), session, task); err != nil {
		s.writeError(w, "question generation", err)
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"task_id":   task.ID,
		"questions": session.Questions,
	})
}

type finalizeAnswer struct {
	Answer string `json:"answer"`
	Skip   bool   `json:"skip"`
}

type finalizeRequest struct {
	UserID  int64            `json:"user_id" validate:"required"`
	EventID int64            `json:"event_id" validate:"required"`
	TaskID  int64            `json:"task_id" validate:"required"`
	Answers []finalizeAnswer `json:"answers" validate:"required"`
}

func (s *Server) handleQuizFinalize(w http.ResponseWriter, r *http.Request) {
	var req finalizeRequest
	if !s.decodeJSON(w, r, "quiz finalize", &req) {
		return
	}
	if !s.requireEventAccess(w, "quiz finalize", req.UserID, req.EventID) {
		return
	}

	task, err := s.db.GetTask(req.TaskID)
	if err != nil {
		s.writeError(w, "quiz finalize", err)
		return
	}
	if task.EventID != req.EventID {
		s.writeError(w, "quiz finalize", &eventquiz.ValidationError{Field: "task_id", Reason: "task does not belong to the event"})
		return
	}

	engine := s.engine()
	session := engine.NewSession(req.UserID, task)
	loaded, err := engine.LoadQuestions(session)
	if err != nil {
		s.writeError(w, "quiz finalize", err)
		return
	}
	if !loaded {
		s.writeError(w, "quiz finalize", &eventquiz.ValidationError{Field: "task_id", Reason: "no question set generated for this task"})
		return
	}
	if len(req.Answers) != len(session.Questions) {
		s.writeError(w, "quiz finalize", &eventquiz.ValidationError{
			Field:  "answers",
			Reason: fmt.Sprintf("expected %d answers, got %d", len(session.Questions), len(req.Answers)),
		})
		return
	}

	if err := session.Begin(); err != nil {
		s.writeError(w, "quiz finalize", err)
		return
	}
	for i, answer := range req.Answers {
		var err error
		if answer.Skip {
			err = session.ToggleSkip()
		} else {
			err = session.Submit(answer.Answer)
		}
		if err != nil {
			s.writeError(w, "quiz finalize", err)
			return
		}
		if i < len(req.Answers)-1 && !session.Next() {
			s.writeError(w, "quiz finalize", fmt.Errorf("failed to advance past question %d", i+1))
			return
		}
	}

	result, err := engine.Finalize(r.Context(), session)
	if err != nil {
		if errors.Is(err, eventquiz.ErrNoAnsweredQuestions) {
			s.writeJSON(w, http.StatusOK, map[string]interface{}{
				"answered": 0,
				"message":  "no answered questions",
			})
			return
		}
		s.writeError(w, "quiz finalize", err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

// --- events and tasks ---

type eventRequest struct {
	UserID      int64  `json:"user_id" validate:"required"`
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !s.decodeJSON(w, r, "create event", &req) {
		return
	}
	id, err := s.db.CreateEvent(req.UserID, req.Title, req.Description)
	if err != nil {
		s.writeError(w, "create event", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]interface{}{"id": id})
}

func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryInt64(r, "user_id")
	if !ok {
		s.writeError(w, "list events", &eventquiz.ValidationError{Field: "user_id", Reason: "required"})
		return
	}
	events, err := s.db.GetEvents(userID)
	if err != nil {
		s.writeError(w, "list events", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func (s *Server) handleUpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !s.decodeJSON(w, r, "update event", &req) {
		return
	}
	if err := s.db.UpdateEvent(pathID(r), req.Title, req.Description); err != nil {
		s.writeError(w, "update event", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteEvent(pathID(r)); err != nil {
		s.writeError(w, "delete event", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type shareRequest struct {
	UserID   int64  `json:"user_id" validate:"required"`
	Username string `json:"username" validate:"required"`
}

func (s *Server) handleShareEvent(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if !s.decodeJSON(w, r, "share event", &req) {
		return
	}
	if err := s.db.ShareEvent(pathID(r), req.UserID, req.Username); err != nil {
		s.writeError(w, "share event", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "shared"})
}

type taskRequest struct {
	Title   string `json:"title" validate:"required"`
	Content string `json:"content"`
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !s.decodeJSON(w, r, "create task", &req) {
		return
	}
	id, err := s.db.CreateTask(pathID(r), req.Title, req.Content)
	if err != nil {
		s.writeError(w, "create task", err)
		return
	}
	s.writeJSON(w, http.StatusCreated, map[string]interface{}{"id": id})
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.db.GetTasks(pathID(r))
	if err != nil {
		s.writeError(w, "list tasks", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"tasks": tasks})
}

func (s *Server) handleUpdateTask(w http.ResponseWriter, r *http.Request) {
	var req taskRequest
	if !s.decodeJSON(w, r, "update task", &req) {
		return
	}
	if err := s.db.UpdateTask(pathID(r), req.Title, req.Content); err != nil {
		s.writeError(w, "update task", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *Server) handleDeleteTask(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteTask(pathID(r)); err != nil {
		s.writeError(w, "delete task", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (s *Server) handleShareTask(w http.ResponseWriter, r *http.Request) {
	var req shareRequest
	if !s.decodeJSON(w, r, "share task", &req) {
		return
	}
	if err := s.db.ShareTask(pathID(r), req.UserID, req.Username); err != nil {
		s.writeError(w, "share task", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "shared"})
}

func (s *Server) handleSharedEvents(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryInt64(r, "user_id")
	if !ok {
		s.writeError(w, "list shared events", &eventquiz.ValidationError{Field: "user_id", Reason: "required"})
		return
	}
	shares, err := s.db.GetSharedEvents(userID)
	if err != nil {
		s.writeError(w, "list shared events", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"shared_events": shares})
}

func (s *Server) handleSharedTasks(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryInt64(r, "user_id")
	if !ok {
		s.writeError(w, "list shared tasks", &eventquiz.ValidationError{Field: "user_id", Reason: "required"})
		return
	}
	shares, err := s.db.GetSharedTasks(userID)
	if err != nil {
		s.writeError(w, "list shared tasks", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"shared_tasks": shares})
}

// --- statistics ---

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryInt64(r, "user_id")
	if !ok {
		s.writeError(w, "statistics", &eventquiz.ValidationError{Field: "user_id", Reason: "required"})
		return
	}

	filter := eventquiz.ScoreFilter{}
	var eventTitle string
	if eventID := optionalQueryInt64(r, "event_id"); eventID != nil {
		// Shared users see their own records for the event, never the owner's
		if !s.requireEventAccess(w, "statistics", userID, *eventID) {
			return
		}
		filter.EventID = *eventID
		if event, err := s.db.GetEvent(*eventID); err == nil {
			eventTitle = event.Title
		}
	}

	records, err := s.db.LoadScores(userID, filter)
	if err != nil {
		s.writeError(w, "statistics", err)
		return
	}

	average := eventquiz.AverageScore(records)
	label, tier := eventquiz.StatusLabel(average)

	resp := map[string]interface{}{
		"average": average,
		"label":   label,
		"tier":    tier,
		"tasks":   eventquiz.PerTaskBreakdown(records),
	}
	if eventTitle != "" {
		resp["tips"] = eventquiz.ImprovementTips(average, eventTitle)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

// --- chat ---

type chatSendRequest struct {
	UserID  int64  `json:"user_id" validate:"required"`
	EventID *int64 `json:"event_id"`
	TaskID  *int64 `json:"task_id"`
	Message string `json:"message" validate:"required"`
}

func (s *Server) handleChatSend(w http.ResponseWriter, r *http.Request) {
	var req chatSendRequest
	if !s.decodeJSON(w, r, "chat send", &req) {
		return
	}
	reply, err := s.chat.Send(r.Context(), req.UserID, req.EventID, req.TaskID, req.Message)
	if err != nil {
		s.writeError(w, "chat send", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryInt64(r, "user_id")
	if !ok {
		s.writeError(w, "chat history", &eventquiz.ValidationError{Field: "user_id", Reason: "required"})
		return
	}
	messages, err := s.db.GetChatHistory(userID, optionalQueryInt64(r, "event_id"), optionalQueryInt64(r, "task_id"))
	if err != nil {
		s.writeError(w, "chat history", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"messages": messages})
}

func (s *Server) handleChatClear(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryInt64(r, "user_id")
	if !ok {
		s.writeError(w, "chat clear", &eventquiz.ValidationError{Field: "user_id", Reason: "required"})
		return
	}
	deleted, err := s.db.ClearChatHistory(userID, optionalQueryInt64(r, "event_id"), optionalQueryInt64(r, "task_id"))
	if err != nil {
		s.writeError(w, "chat clear", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"deleted": deleted})
}

func (s *Server) handleChatStats(w http.ResponseWriter, r *http.Request) {
	userID, ok := queryInt64(r, "user_id")
	if !ok {
		s.writeError(w, "chat stats", &eventquiz.ValidationError{Field: "user_id", Reason: "required"})
		return
	}
	activity, err := s.db.GetChatActivity(userID, optionalQueryInt64(r, "event_id"))
	if err != nil {
		s.writeError(w, "chat stats", err)
		return
	}
	s.writeJSON(w, http.StatusOK, activity)
}
