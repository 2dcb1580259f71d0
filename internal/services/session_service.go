package services

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/skillloop/backend/internal/models"
	"github.com/spf13/viper"
)

// CreditRates maps a session duration in minutes to its price in credits.
// Unlisted durations fall back to one credit per three minutes.
type CreditRates map[int]int

// DefaultCreditRates reads the duration-rate table from config.
func DefaultCreditRates() CreditRates {
	viper.SetDefault("credits.rate_15", 5)
	viper.SetDefault("credits.rate_30", 10)
	viper.SetDefault("credits.rate_60", 20)
	return CreditRates{
		15: viper.GetInt("credits.rate_15"),
		30: viper.GetInt("credits.rate_30"),
		60: viper.GetInt("credits.rate_60"),
	}
}

// PriceFor returns the credit price for a duration.
func (r CreditRates) PriceFor(duration int) int {
	if price, ok := r[duration]; ok {
		return price
	}
	return duration / 3
}

// SessionService drives the bookable session lifecycle:
// pending → scheduled → completed, pending → rejected,
// {pending, scheduled} → cancelled. Completion is the only point where
// credits move, exactly once per session.
type SessionService struct {
	db        *sql.DB
	ledger    *LedgerService
	rating    *RatingService
	rates     CreditRates
	validator *ValidationHelper
}

func NewSessionService(db *sql.DB, ledger *LedgerService, rating *RatingService, rates CreditRates) *SessionService {
	return &SessionService{
		db:        db,
		ledger:    ledger,
		rating:    rating,
		rates:     rates,
		validator: NewValidationHelper(),
	}
}

const sessionColumns = `id, title, user_id, participant_id, participant_name, skill,
	session_date, session_time, duration, credits_amount, session_type, status,
	rating, feedback, rated_by, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*models.Session, error) {
	var sess models.Session
	err := row.Scan(&sess.ID, &sess.Title, &sess.UserID, &sess.ParticipantID, &sess.ParticipantName,
		&sess.Skill, &sess.Date, &sess.Time, &sess.Duration, &sess.CreditsAmount, &sess.Type,
		&sess.Status, &sess.Rating, &sess.Feedback, &sess.RatedBy, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

func (s *SessionService) getSession(sessionID string) (*models.Session, error) {
	sess, err := scanSession(s.db.QueryRow(
		"SELECT "+sessionColumns+" FROM sessions WHERE id = $1", sessionID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: session %s", ErrNotFound, sessionID)
	}
	return sess, err
}

// Create books a new session request. The price is computed from the rate
// table once and frozen on the row. When the organizer is the learner (and
// therefore the payer) their balance must already cover the price; credits
// are checked but never escrowed.
func (s *SessionService) Create(organizerID string, req *SessionCreateRequest) (*models.Session, error) {
	price := s.rates.PriceFor(req.Duration)

	if req.Type == models.SessionTypeLearning {
		var credits int
		if err := s.db.QueryRow("SELECT credits FROM users WHERE id = $1", organizerID).Scan(&credits); err != nil {
			return nil, err
		}
		if credits < price {
			return nil, fmt.Errorf("%w: you need %d credits but have %d", ErrInsufficientCredits, price, credits)
		}
	}

	var participantName string
	err := s.db.QueryRow("SELECT name FROM users WHERE id = $1", req.ParticipantID).Scan(&participantName)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: participant %s", ErrNotFound, req.ParticipantID)
	}
	if err != nil {
		return nil, err
	}

	sess := &models.Session{
		ID:              uuid.New().String(),
		Title:           req.Title,
		UserID:          organizerID,
		ParticipantID:   req.ParticipantID,
		ParticipantName: participantName,
		Skill:           req.Skill,
		Date:            req.Date,
		Time:            req.Time,
		Duration:        req.Duration,
		CreditsAmount:   price,
		Type:            req.Type,
		Status:          models.SessionStatusPending,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}

	_, err = s.db.Exec(`
		INSERT INTO sessions (id, title, user_id, participant_id, participant_name, skill,
			session_date, session_time, duration, credits_amount, session_type, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		sess.ID, sess.Title, sess.UserID, sess.ParticipantID, sess.ParticipantName, sess.Skill,
		sess.Date, sess.Time, sess.Duration, sess.CreditsAmount, sess.Type, sess.Status,
		sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return nil, err
	}

	log.Printf("[SESSION] %s created by %s with %s (%d min, %d credits, organizer %s)",
		sess.ID, organizerID, req.ParticipantID, req.Duration, price, req.Type)
	return sess, nil
}

// Accept transitions pending → scheduled. Only the participant may accept.
// When the organizer teaches, the participant pays at completion, so their
// balance is re-validated here; it may have drifted since creation.
func (s *SessionService) Accept(sessionID, participantID string) (*models.Session, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	sess, err := scanSession(tx.QueryRow(`
		SELECT `+sessionColumns+` FROM sessions
		WHERE id = $1 AND participant_id = $2 AND status = $3
		FOR UPDATE`, sessionID, participantID, models.SessionStatusPending))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: session request %s not found or you cannot accept it", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}

	if sess.Type == models.SessionTypeTeaching {
		var credits int
		if err := tx.QueryRow("SELECT credits FROM users WHERE id = $1", participantID).Scan(&credits); err != nil {
			return nil, err
		}
		if credits < sess.CreditsAmount {
			return nil, fmt.Errorf("%w: you need %d credits but have %d", ErrInsufficientCredits, sess.CreditsAmount, credits)
		}
	}

	if err := s.transitionTx(tx, sessionID, models.SessionStatusPending, models.SessionStatusScheduled); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	sess.Status = models.SessionStatusScheduled
	log.Printf("[SESSION] %s accepted by %s", sessionID, participantID)
	return sess, nil
}

// Reject transitions pending → rejected. Participant only.
func (s *SessionService) Reject(sessionID, participantID string) (*models.Session, error) {
	result, err := s.db.Exec(`
		UPDATE sessions SET status = $1, updated_at = NOW()
		WHERE id = $2 AND participant_id = $3 AND status = $4`,
		models.SessionStatusRejected, sessionID, participantID, models.SessionStatusPending)
	if err != nil {
		return nil, err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: session request %s not found or you cannot reject it", ErrNotFound, sessionID)
	}

	log.Printf("[SESSION] %s rejected by %s", sessionID, participantID)
	return s.getSession(sessionID)
}

// Cancel transitions pending or scheduled → cancelled. Either party may
// cancel; no credits move because none were ever held.
func (s *SessionService) Cancel(sessionID, actorID string) (*models.Session, error) {
	result, err := s.db.Exec(`
		UPDATE sessions SET status = $1, updated_at = NOW()
		WHERE id = $2 AND (user_id = $3 OR participant_id = $3) AND status IN ($4, $5)`,
		models.SessionStatusCancelled, sessionID, actorID,
		models.SessionStatusPending, models.SessionStatusScheduled)
	if err != nil {
		return nil, err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: session %s not found or cannot be cancelled", ErrNotFound, sessionID)
	}

	log.Printf("[SESSION] %s cancelled by %s", sessionID, actorID)
	return s.getSession(sessionID)
}

// Complete settles a scheduled session: the learner pays the frozen price to
// the teacher and the status flips to completed, all in one transaction. The
// status guard runs before any money moves, so the loser of a concurrent
// completion race sees ErrNotFound and no credits are touched twice.
func (s *SessionService) Complete(sessionID, actorID string) (*models.Session, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	sess, err := scanSession(tx.QueryRow(`
		SELECT `+sessionColumns+` FROM sessions
		WHERE id = $1 AND (user_id = $2 OR participant_id = $2) AND status = $3
		FOR UPDATE`, sessionID, actorID, models.SessionStatusScheduled))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: session %s not found or not in scheduled status", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}

	if err := s.transitionTx(tx, sessionID, models.SessionStatusScheduled, models.SessionStatusCompleted); err != nil {
		return nil, err
	}

	teacherID, learnerID := sess.TeacherLearner()
	if err := s.ledger.TransferTx(tx, learnerID, teacherID, sess.CreditsAmount, sess.ID,
		fmt.Sprintf("Paid for learning session: %s (%d min)", sess.Title, sess.Duration),
		fmt.Sprintf("Earned from teaching session: %s (%d min)", sess.Title, sess.Duration)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	sess.Status = models.SessionStatusCompleted
	log.Printf("[SESSION] %s completed: %d credits from %s to %s", sessionID, sess.CreditsAmount, learnerID, teacherID)
	return sess, nil
}

func (s *SessionService) transitionTx(tx *sql.Tx, sessionID, from, to string) error {
	result, err := tx.Exec(`
		UPDATE sessions SET status = $1, updated_at = NOW()
		WHERE id = $2 AND status = $3`, to, sessionID, from)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: session %s left %s state", ErrConflict, sessionID, from)
	}
	return nil
}

// Update patches the mutable fields of a pending or scheduled session.
// Organizer only. A duration change recomputes the frozen price.
func (s *SessionService) Update(sessionID, organizerID string, patch *SessionUpdateRequest) (*models.Session, error) {
	set := []string{"updated_at = NOW()"}
	args := []any{}
	n := 1

	addField := func(column string, value any) {
		set = append(set, fmt.Sprintf("%s = $%d", column, n))
		args = append(args, value)
		n++
	}

	if patch.Title != nil {
		addField("title", *patch.Title)
	}
	if patch.Date != nil {
		addField("session_date", *patch.Date)
	}
	if patch.Time != nil {
		addField("session_time", *patch.Time)
	}
	if patch.Duration != nil {
		addField("duration", *patch.Duration)
		addField("credits_amount", s.rates.PriceFor(*patch.Duration))
	}

	if len(args) == 0 {
		return nil, fmt.Errorf("%w: no fields to update", ErrInvalidRequest)
	}

	query := fmt.Sprintf(`
		UPDATE sessions SET %s
		WHERE id = $%d AND user_id = $%d AND status IN ($%d, $%d)`,
		strings.Join(set, ", "), n, n+1, n+2, n+3)
	args = append(args, sessionID, organizerID, models.SessionStatusPending, models.SessionStatusScheduled)

	result, err := s.db.Exec(query, args...)
	if err != nil {
		return nil, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return nil, fmt.Errorf("%w: session %s not found or cannot be updated", ErrNotFound, sessionID)
	}

	return s.getSession(sessionID)
}

// Rate records a rating on a completed session, once, and recomputes the
// rated party's aggregate.
func (s *SessionService) Rate(sessionID, raterID string, rating float64, feedback string) (*models.Session, error) {
	if rating < 0 || rating > 5 {
		return nil, fmt.Errorf("%w: rating must be in [0,5]", ErrInvalidRequest)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	sess, err := scanSession(tx.QueryRow(`
		SELECT `+sessionColumns+` FROM sessions
		WHERE id = $1 AND (user_id = $2 OR participant_id = $2) AND status = $3
		FOR UPDATE`, sessionID, raterID, models.SessionStatusCompleted))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: session %s not found or not completed", ErrNotFound, sessionID)
	}
	if err != nil {
		return nil, err
	}

	if sess.Rating != nil {
		return nil, fmt.Errorf("%w: session %s", ErrAlreadyRated, sessionID)
	}

	var fb *string
	if feedback != "" {
		fb = &feedback
	}
	if _, err := tx.Exec(`
		UPDATE sessions SET rating = $1, feedback = $2, rated_by = $3, updated_at = NOW()
		WHERE id = $4`, rating, fb, raterID, sessionID); err != nil {
		return nil, err
	}

	// The rating goes to the other party, not the rater.
	if err := s.rating.RecomputeTx(tx, sess.OtherParty(raterID)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	sess.Rating = &rating
	sess.Feedback = fb
	sess.RatedBy = &raterID
	log.Printf("[SESSION] %s rated %.1f by %s", sessionID, rating, raterID)
	return sess, nil
}

// Delete removes a pending session. Organizer only.
func (s *SessionService) Delete(sessionID, organizerID string) error {
	result, err := s.db.Exec(`
		DELETE FROM sessions
		WHERE id = $1 AND user_id = $2 AND status = $3`,
		sessionID, organizerID, models.SessionStatusPending)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: session %s not found or cannot be deleted", ErrNotFound, sessionID)
	}

	log.Printf("[SESSION] %s deleted by %s", sessionID, organizerID)
	return nil
}

func (s *SessionService) listSessions(where, order string, args ...any) ([]models.Session, error) {
	rows, err := s.db.Query(
		"SELECT "+sessionColumns+" FROM sessions WHERE "+where+" ORDER BY "+order, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []models.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, rows.Err()
}

// SessionCreateRequest is the body for booking a session.
type SessionCreateRequest struct {
	Title         string `json:"title" validate:"required,max=255" example:"Intro to goroutines"`
	ParticipantID string `json:"participant_id" validate:"required,uuid4"`
	Skill         string `json:"skill" validate:"required,max=100" example:"Go"`
	Date          string `json:"date" validate:"required" example:"2026-09-14"`
	Time          string `json:"time" validate:"required" example:"18:30"`
	Duration      int    `json:"duration" validate:"required,gt=0" example:"60"`
	Type          string `json:"type" validate:"required,oneof=teaching learning"`
}

// SessionUpdateRequest patches the mutable session fields. Absent fields are
// left as they are.
type SessionUpdateRequest struct {
	Title    *string `json:"title,omitempty"`
	Date     *string `json:"date,omitempty"`
	Time     *string `json:"time,omitempty"`
	Duration *int    `json:"duration,omitempty" validate:"omitempty,gt=0"`
}

// SessionRatingRequest is the body for rating a completed session.
type SessionRatingRequest struct {
	Rating   float64 `json:"rating" validate:"gte=0,lte=5" example:"4.5"`
	Feedback string  `json:"feedback,omitempty"`
}

// CreateSession books a session
// @Summary Create a session request
// @Description Book a session; type is from the organizer's perspective
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SessionCreateRequest true "Session"
// @Success 201 {object} models.Session
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions [post]
func (s *SessionService) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req SessionCreateRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	sess, err := s.Create(userID, &req)
	if err != nil {
		SendBusinessError(w, err)
		return
	}

	SendJSON(w, http.StatusCreated, sess)
}

// AcceptSession accepts a pending session
// @Summary Accept a session request
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 200 {object} models.Session
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{sessionId}/accept [put]
func (s *SessionService) AcceptSession(w http.ResponseWriter, r *http.Request) {
	s.actionHandler(w, r, s.Accept)
}

// RejectSession rejects a pending session
// @Summary Reject a session request
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 200 {object} models.Session
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{sessionId}/reject [put]
func (s *SessionService) RejectSession(w http.ResponseWriter, r *http.Request) {
	s.actionHandler(w, r, s.Reject)
}

// CancelSession cancels a pending or scheduled session
// @Summary Cancel a session
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 200 {object} models.Session
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{sessionId}/cancel [put]
func (s *SessionService) CancelSession(w http.ResponseWriter, r *http.Request) {
	s.actionHandler(w, r, s.Cancel)
}

// CompleteSession completes a scheduled session and settles credits
// @Summary Complete a session
// @Description Transfer the frozen credit price from learner to teacher
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 200 {object} models.Session
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{sessionId}/complete [put]
func (s *SessionService) CompleteSession(w http.ResponseWriter, r *http.Request) {
	s.actionHandler(w, r, s.Complete)
}

func (s *SessionService) actionHandler(w http.ResponseWriter, r *http.Request, action func(string, string) (*models.Session, error)) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	sess, err := action(chi.URLParam(r, "sessionId"), userID)
	if err != nil {
		SendBusinessError(w, err)
		return
	}

	SendJSON(w, http.StatusOK, sess)
}

// UpdateSession patches a session
// @Summary Update a session
// @Description Patch title, date, time or duration; duration changes reprice
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Param request body SessionUpdateRequest true "Patch"
// @Success 200 {object} models.Session
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{sessionId} [put]
func (s *SessionService) UpdateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req SessionUpdateRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	sess, err := s.Update(chi.URLParam(r, "sessionId"), userID, &req)
	if err != nil {
		SendBusinessError(w, err)
		return
	}

	SendJSON(w, http.StatusOK, sess)
}

// RateSession rates a completed session
// @Summary Rate a session
// @Description Store a one-time rating and recompute the other party's mean
// @Tags sessions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Param request body SessionRatingRequest true "Rating"
// @Success 200 {object} models.Session
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{sessionId}/rate [post]
func (s *SessionService) RateSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req SessionRatingRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	sess, err := s.Rate(chi.URLParam(r, "sessionId"), userID, req.Rating, req.Feedback)
	if err != nil {
		SendBusinessError(w, err)
		return
	}

	SendJSON(w, http.StatusOK, sess)
}

// DeleteSession deletes a pending session
// @Summary Delete a session request
// @Tags sessions
// @Security BearerAuth
// @Param sessionId path string true "Session ID"
// @Success 204 "No Content"
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{sessionId} [delete]
func (s *SessionService) DeleteSession(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	if err := s.Delete(chi.URLParam(r, "sessionId"), userID); err != nil {
		SendBusinessError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetSessions lists the caller's sessions, optionally filtered by status
// @Summary List sessions
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Param status query string false "Status filter"
// @Success 200 {array} models.Session
// @Router /sessions [get]
func (s *SessionService) GetSessions(w http.ResponseWriter, r *http.Request) {
	s.listHandler(w, r, func(userID string) ([]models.Session, error) {
		if status := r.URL.Query().Get("status"); status != "" {
			return s.listSessions("(user_id = $1 OR participant_id = $1) AND status = $2",
				"created_at DESC", userID, status)
		}
		return s.listSessions("user_id = $1 OR participant_id = $1", "created_at DESC", userID)
	})
}

// GetPendingRequests lists pending sessions awaiting the caller's response
// @Summary List received session requests
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Session
// @Router /sessions/pending [get]
func (s *SessionService) GetPendingRequests(w http.ResponseWriter, r *http.Request) {
	s.listHandler(w, r, func(userID string) ([]models.Session, error) {
		return s.listSessions("participant_id = $1 AND status = $2", "created_at DESC",
			userID, models.SessionStatusPending)
	})
}

// GetSentRequests lists pending sessions the caller organized
// @Summary List sent session requests
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Session
// @Router /sessions/sent [get]
func (s *SessionService) GetSentRequests(w http.ResponseWriter, r *http.Request) {
	s.listHandler(w, r, func(userID string) ([]models.Session, error) {
		return s.listSessions("user_id = $1 AND status = $2", "created_at DESC",
			userID, models.SessionStatusPending)
	})
}

// GetScheduledSessions lists the caller's scheduled sessions
// @Summary List scheduled sessions
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Session
// @Router /sessions/scheduled [get]
func (s *SessionService) GetScheduledSessions(w http.ResponseWriter, r *http.Request) {
	s.listHandler(w, r, func(userID string) ([]models.Session, error) {
		return s.listSessions("(user_id = $1 OR participant_id = $1) AND status = $2",
			"session_date, session_time", userID, models.SessionStatusScheduled)
	})
}

// GetSessionHistory lists the caller's completed sessions
// @Summary List completed sessions
// @Tags sessions
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Session
// @Router /sessions/history [get]
func (s *SessionService) GetSessionHistory(w http.ResponseWriter, r *http.Request) {
	s.listHandler(w, r, func(userID string) ([]models.Session, error) {
		return s.listSessions("(user_id = $1 OR participant_id = $1) AND status = $2",
			"updated_at DESC", userID, models.SessionStatusCompleted)
	})
}

func (s *SessionService) listHandler(w http.ResponseWriter, r *http.Request, list func(string) ([]models.Session, error)) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	sessions, err := list(userID)
	if err != nil {
		log.Printf("[SESSION] Listing failed for %s: %v", userID, err)
		SendBusinessError(w, err)
		return
	}

	SendJSON(w, http.StatusOK, sessions)
}

// GetCreditRates returns the duration-rate table
// @Summary Get credit rates
// @Tags sessions
// @Produce json
// @Success 200 {object} object{rates=map[int]int,description=string}
// @Router /credits/rates [get]
func (s *SessionService) GetCreditRates(w http.ResponseWriter, r *http.Request) {
	SendJSON(w, http.StatusOK, map[string]any{
		"rates":       s.rates,
		"description": "Credits required/earned per session duration in minutes",
	})
}
