package services

import (
	"database/sql"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/skillloop/backend/internal/models"
	qrcode "github.com/skip2/go-qrcode"
	"github.com/spf13/viper"
)

// UserService exposes profile reads and updates. Credits and rating are
// deliberately absent from the update surface; those columns belong to the
// ledger and the rating aggregator.
type UserService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewUserService(db *sql.DB) *UserService {
	return &UserService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// ProfileUpdateRequest patches the caller's own profile.
type ProfileUpdateRequest struct {
	Name   *string `json:"name,omitempty" validate:"omitempty,min=2,max=255"`
	Bio    *string `json:"bio,omitempty" validate:"omitempty,max=1000"`
	Avatar *string `json:"avatar,omitempty" validate:"omitempty,url,max=500"`
}

// GetProfile returns a user's public profile
// @Summary Get a public profile
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param userId path string true "User ID"
// @Success 200 {object} models.PublicProfile
// @Failure 404 {object} ErrorResponse
// @Router /users/{userId} [get]
func (s *UserService) GetProfile(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userId")

	var user models.User
	err := s.db.QueryRow(`
		SELECT id, email, name, bio, avatar, rating FROM users WHERE id = $1`, userID).
		Scan(&user.ID, &user.Email, &user.Name, &user.Bio, &user.Avatar, &user.Rating)
	if err != nil {
		if err == sql.ErrNoRows {
			SendBusinessError(w, fmt.Errorf("%w: user %s", ErrNotFound, userID))
		} else {
			SendBusinessError(w, err)
		}
		return
	}

	SendJSON(w, http.StatusOK, user.Public())
}

// UpdateProfile patches the caller's profile
// @Summary Update my profile
// @Tags users
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body ProfileUpdateRequest true "Profile patch"
// @Success 200 {object} models.User
// @Failure 400 {object} ErrorResponse
// @Router /users/me [put]
func (s *UserService) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req ProfileUpdateRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	_, err := s.db.Exec(`
		UPDATE users SET
			name = COALESCE($1, name),
			bio = COALESCE($2, bio),
			avatar = COALESCE($3, avatar),
			updated_at = NOW()
		WHERE id = $4`,
		req.Name, req.Bio, req.Avatar, userID)
	if err != nil {
		log.Printf("[USER] Profile update failed for %s: %v", userID, err)
		SendBusinessError(w, err)
		return
	}

	var user models.User
	err = s.db.QueryRow(`
		SELECT id, email, name, bio, avatar, credits, rating, last_login, created_at, updated_at
		FROM users WHERE id = $1`, userID).
		Scan(&user.ID, &user.Email, &user.Name, &user.Bio, &user.Avatar, &user.Credits,
			&user.Rating, &user.LastLogin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		SendBusinessError(w, err)
		return
	}

	SendJSON(w, http.StatusOK, user)
}

// GetProfileQR returns a QR code pointing at the caller's public profile
// @Summary Get my profile QR code
// @Description Generate a QR code PNG (base64) encoding the caller's profile URL
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{url=string,qrImage=string}
// @Failure 401 {object} ErrorResponse
// @Router /users/me/qr [get]
func (s *UserService) GetProfileQR(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	viper.SetDefault("app.frontend_url", "http://localhost:5173")
	profileURL := fmt.Sprintf("%s/profile/%s", viper.GetString("app.frontend_url"), userID)

	png, err := qrcode.Encode(profileURL, qrcode.Medium, 256)
	if err != nil {
		log.Printf("[USER] QR generation failed for %s: %v", userID, err)
		SendBusinessError(w, err)
		return
	}

	SendJSON(w, http.StatusOK, map[string]string{
		"url":     profileURL,
		"qrImage": base64.StdEncoding.EncodeToString(png),
	})
}
