package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/skillloop/backend/internal/models"
)

const (
	maxCandidates     = 20
	neutralMatchScore = 50.0
	candidateCacheTTL = 5 * time.Minute
)

// MatchService computes skill compatibility between users and manages the
// connection request lifecycle: pending → accepted | rejected, or deletion
// by the sender while still pending.
type MatchService struct {
	db        *sql.DB
	redis     *redis.Client
	validator *ValidationHelper
}

func NewMatchService(db *sql.DB, redisClient *redis.Client) *MatchService {
	return &MatchService{
		db:        db,
		redis:     redisClient,
		validator: NewValidationHelper(),
	}
}

// skillSets returns the lower-cased teaching and learning skill name sets
// for every user, keyed by user id.
func (s *MatchService) skillSets() (teaching, learning map[string]map[string]bool, err error) {
	rows, err := s.db.Query("SELECT user_id, name, skill_type FROM skills")
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	teaching = make(map[string]map[string]bool)
	learning = make(map[string]map[string]bool)
	for rows.Next() {
		var userID, name, skillType string
		if err := rows.Scan(&userID, &name, &skillType); err != nil {
			return nil, nil, err
		}
		target := teaching
		if skillType == models.SkillTypeLearning {
			target = learning
		}
		if target[userID] == nil {
			target[userID] = make(map[string]bool)
		}
		target[userID][strings.ToLower(name)] = true
	}
	return teaching, learning, rows.Err()
}

// connectedUserIDs returns every user that shares a match row with userID in
// either direction, whatever the status. Pending requests block duplicate
// proposals just like accepted ones.
func (s *MatchService) connectedUserIDs(userID string) (map[string]bool, error) {
	rows, err := s.db.Query(
		"SELECT user_id, matched_user_id FROM matches WHERE user_id = $1 OR matched_user_id = $1", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	connected := make(map[string]bool)
	for rows.Next() {
		var a, b string
		if err := rows.Scan(&a, &b); err != nil {
			return nil, err
		}
		connected[a] = true
		connected[b] = true
	}
	delete(connected, userID)
	return connected, rows.Err()
}

// FindCandidates scores every unconnected user against userID and returns
// the top candidates, best first.
func (s *MatchService) FindCandidates(ctx context.Context, userID string) ([]models.Candidate, error) {
	if cached := s.cachedCandidates(ctx, userID); cached != nil {
		return cached, nil
	}

	teaching, learning, err := s.skillSets()
	if err != nil {
		return nil, err
	}
	myTeaching := teaching[userID]
	myLearning := learning[userID]

	connected, err := s.connectedUserIDs(userID)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.Query(
		"SELECT id, name, email, bio, avatar, rating FROM users WHERE id <> $1", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	candidates := []models.Candidate{}
	for rows.Next() {
		var profile models.PublicProfile
		if err := rows.Scan(&profile.ID, &profile.Name, &profile.Email, &profile.Bio, &profile.Avatar, &profile.Rating); err != nil {
			return nil, err
		}
		if connected[profile.ID] {
			continue
		}

		theyTeachILearn := intersect(teaching[profile.ID], myLearning)
		iTeachTheyLearn := intersect(myTeaching, learning[profile.ID])
		common := union(theyTeachILearn, iTeachTheyLearn)
		if len(common) == 0 {
			continue
		}

		total := len(myLearning) + len(myTeaching)
		score := neutralMatchScore
		if total > 0 {
			score = math.Min(100, float64(len(common))/float64(total)*200)
		}

		candidates = append(candidates, models.Candidate{
			User:            profile,
			MatchScore:      math.Round(score*10) / 10,
			CommonSkills:    common,
			TheyCanTeach:    theyTeachILearn,
			TheyWantToLearn: iTeachTheyLearn,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].MatchScore > candidates[j].MatchScore
	})
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	s.cacheCandidates(ctx, userID, candidates)
	return candidates, nil
}

func intersect(a, b map[string]bool) []string {
	out := []string{}
	for name := range a {
		if b[name] {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

func union(a, b []string) []string {
	seen := make(map[string]bool)
	out := []string{}
	for _, batch := range [][]string{a, b} {
		for _, name := range batch {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}

func (s *MatchService) cachedCandidates(ctx context.Context, userID string) []models.Candidate {
	if s.redis == nil {
		return nil
	}
	data, err := s.redis.Get(ctx, candidateCacheKey(userID)).Bytes()
	if err != nil {
		return nil
	}
	var candidates []models.Candidate
	if err := json.Unmarshal(data, &candidates); err != nil {
		return nil
	}
	return candidates
}

func (s *MatchService) cacheCandidates(ctx context.Context, userID string, candidates []models.Candidate) {
	if s.redis == nil {
		return
	}
	data, err := json.Marshal(candidates)
	if err != nil {
		return
	}
	if err := s.redis.Set(ctx, candidateCacheKey(userID), data, candidateCacheTTL).Err(); err != nil {
		log.Printf("[MATCH] Failed to cache candidates for %s: %v", userID, err)
	}
}

// InvalidateCandidates drops the cached candidate list for a user. Called
// when their skills change or a match involving them is created or removed.
func (s *MatchService) InvalidateCandidates(ctx context.Context, userIDs ...string) {
	if s.redis == nil {
		return
	}
	for _, id := range userIDs {
		s.redis.Del(ctx, candidateCacheKey(id))
	}
}

func candidateCacheKey(userID string) string {
	return fmt.Sprintf("match_candidates:%s", userID)
}

// Propose creates a pending match from userID to matchedUserID. Fails with
// ErrInvalidRequest on self-match and ErrDuplicateRequest when any match
// already exists between the pair in either direction.
func (s *MatchService) Propose(ctx context.Context, userID, matchedUserID string, score float64, commonSkills []string) (*models.Match, error) {
	if userID == matchedUserID {
		return nil, fmt.Errorf("%w: cannot match with yourself", ErrInvalidRequest)
	}
	if score < 0 || score > 100 {
		return nil, fmt.Errorf("%w: match score must be in [0,100]", ErrInvalidRequest)
	}

	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM matches
			WHERE (user_id = $1 AND matched_user_id = $2)
			   OR (user_id = $2 AND matched_user_id = $1)
		)`, userID, matchedUserID).Scan(&exists)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: between %s and %s", ErrDuplicateRequest, userID, matchedUserID)
	}

	if commonSkills == nil {
		commonSkills = []string{}
	}
	skillsJSON, err := json.Marshal(commonSkills)
	if err != nil {
		return nil, err
	}

	match := &models.Match{
		ID:            uuid.New().String(),
		UserID:        userID,
		MatchedUserID: matchedUserID,
		MatchScore:    score,
		CommonSkills:  commonSkills,
		Status:        models.MatchStatusPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	_, err = s.db.Exec(`
		INSERT INTO matches (id, user_id, matched_user_id, match_score, common_skills, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		match.ID, match.UserID, match.MatchedUserID, match.MatchScore, skillsJSON,
		match.Status, match.CreatedAt, match.UpdatedAt)
	if err != nil {
		return nil, err
	}

	s.InvalidateCandidates(ctx, userID, matchedUserID)
	log.Printf("[MATCH] Request %s sent from %s to %s (score %.1f)", match.ID, userID, matchedUserID, score)
	return match, nil
}

// Respond transitions a pending match to accepted or rejected. Only the
// recipient may respond; the guard on status makes the loser of a race see
// ErrNotFound rather than overwriting a terminal state.
func (s *MatchService) Respond(matchID, responderID, newStatus string) (*models.Match, error) {
	result, err := s.db.Exec(`
		UPDATE matches SET status = $1, updated_at = NOW()
		WHERE id = $2 AND matched_user_id = $3 AND status = $4`,
		newStatus, matchID, responderID, models.MatchStatusPending)
	if err != nil {
		return nil, err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%w: match request %s not found or you cannot respond to it", ErrNotFound, matchID)
	}

	log.Printf("[MATCH] Request %s %s by %s", matchID, newStatus, responderID)
	return s.getMatch(matchID)
}

// Cancel deletes a still-pending match. Only the original sender may cancel.
func (s *MatchService) Cancel(ctx context.Context, matchID, requesterID string) error {
	var matchedUserID string
	err := s.db.QueryRow(`
		DELETE FROM matches
		WHERE id = $1 AND user_id = $2 AND status = $3
		RETURNING matched_user_id`,
		matchID, requesterID, models.MatchStatusPending).Scan(&matchedUserID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: match request %s not found or you cannot cancel it", ErrNotFound, matchID)
	}
	if err != nil {
		return err
	}

	s.InvalidateCandidates(ctx, requesterID, matchedUserID)
	log.Printf("[MATCH] Request %s cancelled by %s", matchID, requesterID)
	return nil
}

func (s *MatchService) getMatch(matchID string) (*models.Match, error) {
	var m models.Match
	var skillsJSON []byte
	err := s.db.QueryRow(`
		SELECT id, user_id, matched_user_id, match_score, common_skills, status, created_at, updated_at
		FROM matches WHERE id = $1`, matchID).
		Scan(&m.ID, &m.UserID, &m.MatchedUserID, &m.MatchScore, &skillsJSON, &m.Status, &m.CreatedAt, &m.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: match %s", ErrNotFound, matchID)
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(skillsJSON, &m.CommonSkills); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *MatchService) listMatches(where string, args ...any) ([]models.Match, error) {
	rows, err := s.db.Query(`
		SELECT id, user_id, matched_user_id, match_score, common_skills, status, created_at, updated_at
		FROM matches WHERE `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := []models.Match{}
	for rows.Next() {
		var m models.Match
		var skillsJSON []byte
		if err := rows.Scan(&m.ID, &m.UserID, &m.MatchedUserID, &m.MatchScore, &skillsJSON, &m.Status, &m.CreatedAt, &m.UpdatedAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(skillsJSON, &m.CommonSkills); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// MatchCreateRequest is the body for sending a connection request.
type MatchCreateRequest struct {
	MatchedUserID string   `json:"matched_user_id" validate:"required,uuid4"`
	MatchScore    float64  `json:"match_score" validate:"gte=0,lte=100"`
	CommonSkills  []string `json:"common_skills"`
}

// FindMatches returns scored candidates for the caller
// @Summary Find potential matches
// @Description Score all unconnected users by skill compatibility
// @Tags matches
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Candidate
// @Failure 401 {object} ErrorResponse
// @Router /matches/find [get]
func (s *MatchService) FindMatches(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	candidates, err := s.FindCandidates(r.Context(), userID)
	if err != nil {
		log.Printf("[MATCH] Candidate search failed for %s: %v", userID, err)
		SendBusinessError(w, err)
		return
	}

	SendJSON(w, http.StatusOK, candidates)
}

// CreateMatch sends a connection request
// @Summary Send a connection request
// @Description Create a pending match between the caller and another user
// @Tags matches
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body MatchCreateRequest true "Match request"
// @Success 201 {object} models.Match
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /matches [post]
func (s *MatchService) CreateMatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req MatchCreateRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	match, err := s.Propose(r.Context(), userID, req.MatchedUserID, req.MatchScore, req.CommonSkills)
	if err != nil {
		SendBusinessError(w, err)
		return
	}

	SendJSON(w, http.StatusCreated, match)
}

// AcceptMatch accepts a received request
// @Summary Accept a connection request
// @Tags matches
// @Produce json
// @Security BearerAuth
// @Param matchId path string true "Match ID"
// @Success 200 {object} models.Match
// @Failure 404 {object} ErrorResponse
// @Router /matches/{matchId}/accept [put]
func (s *MatchService) AcceptMatch(w http.ResponseWriter, r *http.Request) {
	s.respondHandler(w, r, models.MatchStatusAccepted)
}

// RejectMatch rejects a received request
// @Summary Reject a connection request
// @Tags matches
// @Produce json
// @Security BearerAuth
// @Param matchId path string true "Match ID"
// @Success 200 {object} models.Match
// @Failure 404 {object} ErrorResponse
// @Router /matches/{matchId}/reject [put]
func (s *MatchService) RejectMatch(w http.ResponseWriter, r *http.Request) {
	s.respondHandler(w, r, models.MatchStatusRejected)
}

func (s *MatchService) respondHandler(w http.ResponseWriter, r *http.Request, newStatus string) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	match, err := s.Respond(chi.URLParam(r, "matchId"), userID, newStatus)
	if err != nil {
		SendBusinessError(w, err)
		return
	}

	SendJSON(w, http.StatusOK, match)
}

// CancelMatch deletes a request the caller sent
// @Summary Cancel a sent connection request
// @Tags matches
// @Produce json
// @Security BearerAuth
// @Param matchId path string true "Match ID"
// @Success 200 {object} map[string]string
// @Failure 404 {object} ErrorResponse
// @Router /matches/{matchId} [delete]
func (s *MatchService) CancelMatch(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	if err := s.Cancel(r.Context(), chi.URLParam(r, "matchId"), userID); err != nil {
		SendBusinessError(w, err)
		return
	}

	SendJSON(w, http.StatusOK, map[string]string{"message": "Request cancelled"})
}

// GetSentRequests lists pending requests the caller sent
// @Summary List sent connection requests
// @Tags matches
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Match
// @Router /matches/sent [get]
func (s *MatchService) GetSentRequests(w http.ResponseWriter, r *http.Request) {
	s.listHandler(w, r, func(userID string) ([]models.Match, error) {
		return s.listMatches("user_id = $1 AND status = $2", userID, models.MatchStatusPending)
	})
}

// GetReceivedRequests lists pending requests awaiting the caller's response
// @Summary List received connection requests
// @Tags matches
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Match
// @Router /matches/received [get]
func (s *MatchService) GetReceivedRequests(w http.ResponseWriter, r *http.Request) {
	s.listHandler(w, r, func(userID string) ([]models.Match, error) {
		return s.listMatches("matched_user_id = $1 AND status = $2", userID, models.MatchStatusPending)
	})
}

// GetConnections lists accepted matches in either direction
// @Summary List connections
// @Tags matches
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Match
// @Router /matches/connections [get]
func (s *MatchService) GetConnections(w http.ResponseWriter, r *http.Request) {
	s.listHandler(w, r, func(userID string) ([]models.Match, error) {
		return s.listMatches("(user_id = $1 OR matched_user_id = $1) AND status = $2",
			userID, models.MatchStatusAccepted)
	})
}

// GetMatches lists every match involving the caller
// @Summary List all matches
// @Tags matches
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.Match
// @Router /matches [get]
func (s *MatchService) GetMatches(w http.ResponseWriter, r *http.Request) {
	s.listHandler(w, r, func(userID string) ([]models.Match, error) {
		return s.listMatches("user_id = $1 OR matched_user_id = $1", userID)
	})
}

func (s *MatchService) listHandler(w http.ResponseWriter, r *http.Request, list func(string) ([]models.Match, error)) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	matches, err := list(userID)
	if err != nil {
		log.Printf("[MATCH] Listing failed for %s: %v", userID, err)
		SendBusinessError(w, err)
		return
	}

	SendJSON(w, http.StatusOK, matches)
}
