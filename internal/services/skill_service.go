package services

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/skillloop/backend/internal/models"
)

// SkillService manages the per-user teaching/learning skill sets the matcher
// reads. Skill changes invalidate the cached candidate lists.
type SkillService struct {
	db        *sql.DB
	matcher   *MatchService
	validator *ValidationHelper
}

func NewSkillService(db *sql.DB, matcher *MatchService) *SkillService {
	return &SkillService{
		db:        db,
		matcher:   matcher,
		validator: NewValidationHelper(),
	}
}

// SkillCreateRequest is the body for declaring a skill.
type SkillCreateRequest struct {
	Name     string `json:"name" validate:"required,max=100" example:"Go"`
	Category string `json:"category" validate:"required,max=100" example:"Programming"`
	Level    string `json:"level" validate:"required,oneof=beginner intermediate advanced"`
	Type     string `json:"type" validate:"required,oneof=teaching learning"`
	Priority int    `json:"priority" validate:"gte=0"`
}

// GetSkills lists the caller's skills
// @Summary List my skills
// @Tags skills
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Skill
// @Router /skills [get]
func (s *SkillService) GetSkills(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}
	s.listForUser(w, userID)
}

// GetUserSkills lists another user's skills
// @Summary List a user's skills
// @Tags skills
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {array} models.Skill
// @Router /skills/user/{userId} [get]
func (s *SkillService) GetUserSkills(w http.ResponseWriter, r *http.Request) {
	s.listForUser(w, chi.URLParam(r, "userId"))
}

func (s *SkillService) listForUser(w http.ResponseWriter, userID string) {
	rows, err := s.db.Query(`
		SELECT id, user_id, name, category, level, skill_type, priority, created_at
		FROM skills WHERE user_id = $1
		ORDER BY priority DESC, created_at`, userID)
	if err != nil {
		log.Printf("[SKILL] Listing failed for %s: %v", userID, err)
		SendBusinessError(w, err)
		return
	}
	defer rows.Close()

	skills := []models.Skill{}
	for rows.Next() {
		var sk models.Skill
		if err := rows.Scan(&sk.ID, &sk.UserID, &sk.Name, &sk.Category, &sk.Level, &sk.Type, &sk.Priority, &sk.CreatedAt); err != nil {
			SendBusinessError(w, err)
			return
		}
		skills = append(skills, sk)
	}

	SendJSON(w, http.StatusOK, skills)
}

// CreateSkill declares a new skill for the caller
// @Summary Add a skill
// @Tags skills
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body SkillCreateRequest true "Skill"
// @Success 201 {object} models.Skill
// @Failure 400 {object} ErrorResponse
// @Router /skills [post]
func (s *SkillService) CreateSkill(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req SkillCreateRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	sk := models.Skill{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      req.Name,
		Category:  req.Category,
		Level:     req.Level,
		Type:      req.Type,
		Priority:  req.Priority,
		CreatedAt: time.Now(),
	}

	_, err := s.db.Exec(`
		INSERT INTO skills (id, user_id, name, category, level, skill_type, priority, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		sk.ID, sk.UserID, sk.Name, sk.Category, sk.Level, sk.Type, sk.Priority, sk.CreatedAt)
	if err != nil {
		log.Printf("[SKILL] Creation failed for %s: %v", userID, err)
		SendBusinessError(w, err)
		return
	}

	s.matcher.InvalidateCandidates(r.Context(), userID)
	log.Printf("[SKILL] %s added %s skill %q", userID, req.Type, req.Name)
	SendJSON(w, http.StatusCreated, sk)
}

// DeleteSkill removes one of the caller's skills
// @Summary Delete a skill
// @Tags skills
// @Security BearerAuth
// @Param skillId path string true "Skill ID"
// @Success 204 "No Content"
// @Failure 404 {object} ErrorResponse
// @Router /skills/{skillId} [delete]
func (s *SkillService) DeleteSkill(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	skillID := chi.URLParam(r, "skillId")
	result, err := s.db.Exec("DELETE FROM skills WHERE id = $1 AND user_id = $2", skillID, userID)
	if err != nil {
		SendBusinessError(w, err)
		return
	}
	if n, _ := result.RowsAffected(); n == 0 {
		SendBusinessError(w, fmt.Errorf("%w: skill %s", ErrNotFound, skillID))
		return
	}

	s.matcher.InvalidateCandidates(r.Context(), userID)
	w.WriteHeader(http.StatusNoContent)
}

// GetCategories lists all distinct skill categories
// @Summary List skill categories
// @Tags skills
// @Produce json
// @Security BearerAuth
// @Success 200 {array} string
// @Router /skills/categories [get]
func (s *SkillService) GetCategories(w http.ResponseWriter, r *http.Request) {
	rows, err := s.db.Query("SELECT DISTINCT category FROM skills ORDER BY category")
	if err != nil {
		SendBusinessError(w, err)
		return
	}
	defer rows.Close()

	categories := []string{}
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			SendBusinessError(w, err)
			return
		}
		categories = append(categories, category)
	}

	SendJSON(w, http.StatusOK, categories)
}
