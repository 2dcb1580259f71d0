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

// MessageService handles conversations between connected users. A
// conversation may only be started once the pair holds an accepted match;
// delivery is pull-only.
type MessageService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewMessageService(db *sql.DB) *MessageService {
	return &MessageService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

// StartConversationRequest opens a conversation with a connected user.
type StartConversationRequest struct {
	UserID string `json:"user_id" validate:"required,uuid4"`
}

// MessageCreateRequest is the body for sending a message.
type MessageCreateRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
}

func (s *MessageService) acceptedMatchExists(a, b string) (bool, error) {
	var exists bool
	err := s.db.QueryRow(`
		SELECT EXISTS (
			SELECT 1 FROM matches
			WHERE ((user_id = $1 AND matched_user_id = $2)
			    OR (user_id = $2 AND matched_user_id = $1))
			  AND status = $3
		)`, a, b, models.MatchStatusAccepted).Scan(&exists)
	return exists, err
}

// conversationMember fetches a conversation the caller belongs to.
func (s *MessageService) conversationMember(conversationID, userID string) (*models.Conversation, error) {
	var c models.Conversation
	err := s.db.QueryRow(`
		SELECT id, user1_id, user2_id, created_at, updated_at
		FROM conversations
		WHERE id = $1 AND (user1_id = $2 OR user2_id = $2)`, conversationID, userID).
		Scan(&c.ID, &c.User1ID, &c.User2ID, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: conversation %s", ErrNotFound, conversationID)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// GetConversations lists the caller's conversations with summaries
// @Summary List conversations
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Success 200 {array} models.ConversationSummary
// @Router /messages/conversations [get]
func (s *MessageService) GetConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	rows, err := s.db.Query(`
		SELECT c.id, c.created_at, c.updated_at,
			u.id, u.name, u.email, u.bio, u.avatar, u.rating,
			last.content, last.created_at,
			(SELECT COUNT(*) FROM messages m
			 WHERE m.conversation_id = c.id AND m.sender_id <> $1 AND m.is_read = FALSE)
		FROM conversations c
		JOIN users u ON u.id = CASE WHEN c.user1_id = $1 THEN c.user2_id ELSE c.user1_id END
		LEFT JOIN LATERAL (
			SELECT content, created_at FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC LIMIT 1
		) last ON TRUE
		WHERE c.user1_id = $1 OR c.user2_id = $1
		ORDER BY c.updated_at DESC`, userID)
	if err != nil {
		log.Printf("[MESSAGE] Conversation listing failed for %s: %v", userID, err)
		SendBusinessError(w, err)
		return
	}
	defer rows.Close()

	summaries := []models.ConversationSummary{}
	for rows.Next() {
		var cs models.ConversationSummary
		var lastContent sql.NullString
		var lastTime sql.NullTime
		if err := rows.Scan(&cs.ID, &cs.CreatedAt, &cs.UpdatedAt,
			&cs.OtherUser.ID, &cs.OtherUser.Name, &cs.OtherUser.Email, &cs.OtherUser.Bio,
			&cs.OtherUser.Avatar, &cs.OtherUser.Rating,
			&lastContent, &lastTime, &cs.UnreadCount); err != nil {
			SendBusinessError(w, err)
			return
		}
		if lastContent.Valid {
			cs.LastMessage = &lastContent.String
		}
		if lastTime.Valid {
			t := lastTime.Time
			cs.LastMessageTime = &t
		}
		summaries = append(summaries, cs)
	}

	SendJSON(w, http.StatusOK, summaries)
}

// StartConversation opens a conversation with a connected user
// @Summary Start a conversation
// @Description Requires an accepted match with the target user
// @Tags messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body StartConversationRequest true "Target user"
// @Success 201 {object} models.Conversation
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /messages/conversations [post]
func (s *MessageService) StartConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req StartConversationRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	if req.UserID == userID {
		SendBusinessError(w, fmt.Errorf("%w: cannot start a conversation with yourself", ErrInvalidRequest))
		return
	}

	connected, err := s.acceptedMatchExists(userID, req.UserID)
	if err != nil {
		SendBusinessError(w, err)
		return
	}
	if !connected {
		SendBusinessError(w, fmt.Errorf("%w: no accepted connection with user %s", ErrNotFound, req.UserID))
		return
	}

	// Reuse the existing conversation if one exists in either direction
	var c models.Conversation
	err = s.db.QueryRow(`
		SELECT id, user1_id, user2_id, created_at, updated_at
		FROM conversations
		WHERE (user1_id = $1 AND user2_id = $2) OR (user1_id = $2 AND user2_id = $1)`,
		userID, req.UserID).
		Scan(&c.ID, &c.User1ID, &c.User2ID, &c.CreatedAt, &c.UpdatedAt)
	if err == nil {
		SendJSON(w, http.StatusOK, c)
		return
	}
	if err != sql.ErrNoRows {
		SendBusinessError(w, err)
		return
	}

	c = models.Conversation{
		ID:        uuid.New().String(),
		User1ID:   userID,
		User2ID:   req.UserID,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	_, err = s.db.Exec(`
		INSERT INTO conversations (id, user1_id, user2_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.User1ID, c.User2ID, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		SendBusinessError(w, err)
		return
	}

	log.Printf("[MESSAGE] Conversation %s started between %s and %s", c.ID, userID, req.UserID)
	SendJSON(w, http.StatusCreated, c)
}

// GetMessages lists a conversation's messages, oldest first
// @Summary List messages
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param conversationId path string true "Conversation ID"
// @Success 200 {array} models.Message
// @Failure 404 {object} ErrorResponse
// @Router /messages/conversations/{conversationId} [get]
func (s *MessageService) GetMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	conv, err := s.conversationMember(chi.URLParam(r, "conversationId"), userID)
	if err != nil {
		SendBusinessError(w, err)
		return
	}

	rows, err := s.db.Query(`
		SELECT id, conversation_id, sender_id, content, is_read, created_at
		FROM messages WHERE conversation_id = $1
		ORDER BY created_at`, conv.ID)
	if err != nil {
		SendBusinessError(w, err)
		return
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Content, &m.IsRead, &m.CreatedAt); err != nil {
			SendBusinessError(w, err)
			return
		}
		messages = append(messages, m)
	}

	SendJSON(w, http.StatusOK, messages)
}

// SendMessage appends a message to a conversation
// @Summary Send a message
// @Tags messages
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param conversationId path string true "Conversation ID"
// @Param request body MessageCreateRequest true "Message"
// @Success 201 {object} models.Message
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /messages/conversations/{conversationId}/messages [post]
func (s *MessageService) SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	conv, err := s.conversationMember(chi.URLParam(r, "conversationId"), userID)
	if err != nil {
		SendBusinessError(w, err)
		return
	}

	var req MessageCreateRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	m := models.Message{
		ID:             uuid.New().String(),
		ConversationID: conv.ID,
		SenderID:       userID,
		Content:        req.Content,
		CreatedAt:      time.Now(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		SendBusinessError(w, err)
		return
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO messages (id, conversation_id, sender_id, content, is_read, created_at)
		VALUES ($1, $2, $3, $4, FALSE, $5)`,
		m.ID, m.ConversationID, m.SenderID, m.Content, m.CreatedAt)
	if err != nil {
		SendBusinessError(w, err)
		return
	}

	if _, err = tx.Exec("UPDATE conversations SET updated_at = NOW() WHERE id = $1", conv.ID); err != nil {
		SendBusinessError(w, err)
		return
	}

	if err := tx.Commit(); err != nil {
		SendBusinessError(w, err)
		return
	}

	SendJSON(w, http.StatusCreated, m)
}

// MarkRead marks the other party's messages as read
// @Summary Mark conversation read
// @Tags messages
// @Produce json
// @Security BearerAuth
// @Param conversationId path string true "Conversation ID"
// @Success 200 {object} map[string]int
// @Failure 404 {object} ErrorResponse
// @Router /messages/conversations/{conversationId}/read [put]
func (s *MessageService) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	conv, err := s.conversationMember(chi.URLParam(r, "conversationId"), userID)
	if err != nil {
		SendBusinessError(w, err)
		return
	}

	result, err := s.db.Exec(`
		UPDATE messages SET is_read = TRUE
		WHERE conversation_id = $1 AND sender_id <> $2 AND is_read = FALSE`,
		conv.ID, userID)
	if err != nil {
		SendBusinessError(w, err)
		return
	}

	n, _ := result.RowsAffected()
	SendJSON(w, http.StatusOK, map[string]int{"marked_read": int(n)})
}
