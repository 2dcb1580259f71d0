package services

import (
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/skillloop/backend/internal/models"
)

// LedgerService owns every credit movement. Each mutation writes exactly one
// append-only credit_transactions row per affected account, with
// balance_after equal to the post-adjustment balance, so replaying the log
// in creation order reproduces the live balance at every row.
type LedgerService struct {
	db        *sql.DB
	validator *ValidationHelper
}

func NewLedgerService(db *sql.DB) *LedgerService {
	return &LedgerService{
		db:        db,
		validator: NewValidationHelper(),
	}
}

type lockedAccount struct {
	ID      string
	Credits int
	Version int
}

// Transfer moves amount credits from payer to payee in a single database
// transaction, writing both ledger rows tagged with sessionID. All-or-nothing.
func (s *LedgerService) Transfer(payerID, payeeID string, amount int, sessionID, payerDesc, payeeDesc string) error {
	if amount <= 0 {
		return fmt.Errorf("%w: transfer amount must be positive", ErrInvalidRequest)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := s.TransferTx(tx, payerID, payeeID, amount, sessionID, payerDesc, payeeDesc); err != nil {
		return err
	}

	return tx.Commit()
}

// TransferTx performs the transfer inside an existing transaction so session
// completion can settle and flip status atomically.
func (s *LedgerService) TransferTx(tx *sql.Tx, payerID, payeeID string, amount int, sessionID, payerDesc, payeeDesc string) error {
	// Lock accounts in consistent order to prevent deadlocks
	firstLock, secondLock := payerID, payeeID
	if payerID > payeeID {
		firstLock, secondLock = payeeID, payerID
	}

	payer, err := s.lockAccount(tx, firstLock)
	if err != nil {
		return err
	}

	payee, err := s.lockAccount(tx, secondLock)
	if err != nil {
		return err
	}

	// Determine which locked account is payer/payee
	if firstLock != payerID {
		payer, payee = payee, payer
	}

	if payer.Credits < amount {
		return fmt.Errorf("%w: need %d, have %d", ErrInsufficientCredits, amount, payer.Credits)
	}

	sessionRef := &sessionID
	if sessionID == "" {
		sessionRef = nil
	}

	if err := s.appendEntry(tx, payer.ID, sessionRef, -amount, models.TransactionTypeSessionPayment, payerDesc, payer.Credits-amount); err != nil {
		return err
	}

	if err := s.appendEntry(tx, payee.ID, sessionRef, amount, models.TransactionTypeSessionEarned, payeeDesc, payee.Credits+amount); err != nil {
		return err
	}

	if err := s.updateBalance(tx, payer.ID, payer.Credits-amount, payer.Version); err != nil {
		return err
	}

	if err := s.updateBalance(tx, payee.ID, payee.Credits+amount, payee.Version); err != nil {
		return err
	}

	log.Printf("[LEDGER] Transferred %d credits from %s to %s (session %s)", amount, payerID, payeeID, sessionID)
	return nil
}

// Adjust applies a single-sided credit change and records it. amount must be
// positive; direction comes from txType (spent-like types debit). Used for
// bonuses and manual earn/spend.
func (s *LedgerService) Adjust(userID string, amount int, txType, description string, sessionID *string) (*models.CreditTransaction, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidRequest)
	}

	signed := amount
	if txType == models.TransactionTypeSpent || txType == models.TransactionTypeSessionPayment {
		signed = -amount
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	account, err := s.lockAccount(tx, userID)
	if err != nil {
		return nil, err
	}

	newBalance := account.Credits + signed
	if newBalance < 0 {
		return nil, fmt.Errorf("%w: need %d, have %d", ErrInsufficientCredits, amount, account.Credits)
	}

	entry := &models.CreditTransaction{
		ID:              uuid.New().String(),
		UserID:          userID,
		SessionID:       sessionID,
		Amount:          signed,
		TransactionType: txType,
		Description:     description,
		BalanceAfter:    newBalance,
		CreatedAt:       time.Now(),
	}

	if err := s.insertEntry(tx, entry); err != nil {
		return nil, err
	}

	if err := s.updateBalance(tx, userID, newBalance, account.Version); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.Printf("[LEDGER] %s: %+d credits for user %s, balance now %d", txType, signed, userID, newBalance)
	return entry, nil
}

// GrantWelcomeBonusTx records the signup bonus inside the registration
// transaction. The user row is brand new so no lock is needed; the caller
// owns the transaction.
func (s *LedgerService) GrantWelcomeBonusTx(tx *sql.Tx, userID string, amount int) error {
	if err := s.appendEntry(tx, userID, nil, amount, models.TransactionTypeWelcomeBonus,
		fmt.Sprintf("Welcome bonus - %d free credits!", amount), amount); err != nil {
		return err
	}

	result, err := tx.Exec("UPDATE users SET credits = $1, version = version + 1, updated_at = NOW() WHERE id = $2",
		amount, userID)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *LedgerService) lockAccount(tx *sql.Tx, userID string) (*lockedAccount, error) {
	var account lockedAccount
	err := tx.QueryRow(`
		SELECT id, credits, version
		FROM users
		WHERE id = $1
		FOR UPDATE`, userID).Scan(&account.ID, &account.Credits, &account.Version)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
	}
	return &account, err
}

func (s *LedgerService) appendEntry(tx *sql.Tx, userID string, sessionID *string, amount int, txType, description string, balanceAfter int) error {
	return s.insertEntry(tx, &models.CreditTransaction{
		ID:              uuid.New().String(),
		UserID:          userID,
		SessionID:       sessionID,
		Amount:          amount,
		TransactionType: txType,
		Description:     description,
		BalanceAfter:    balanceAfter,
		CreatedAt:       time.Now(),
	})
}

func (s *LedgerService) insertEntry(tx *sql.Tx, entry *models.CreditTransaction) error {
	_, err := tx.Exec(`
		INSERT INTO credit_transactions (id, user_id, session_id, amount, transaction_type, description, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		entry.ID, entry.UserID, entry.SessionID, entry.Amount, entry.TransactionType,
		entry.Description, entry.BalanceAfter, entry.CreatedAt)
	return err
}

func (s *LedgerService) updateBalance(tx *sql.Tx, userID string, newBalance, version int) error {
	result, err := tx.Exec(`
		UPDATE users SET credits = $1, version = version + 1, updated_at = NOW()
		WHERE id = $2 AND version = $3`,
		newBalance, userID, version)
	if err != nil {
		return err
	}

	// The row is locked, so a version miss means something bypassed the lock.
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: concurrent balance update for user %s", ErrConflict, userID)
	}
	return nil
}

// GetBalance returns the caller's credit balance
// @Summary Get credit balance
// @Description Get the authenticated user's current credit balance
// @Tags credits
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{user_id=string,credits=int}
// @Failure 401 {object} ErrorResponse
// @Router /credits/balance [get]
func (s *LedgerService) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var credits int
	err := s.db.QueryRow("SELECT credits FROM users WHERE id = $1", userID).Scan(&credits)
	if err != nil {
		if err == sql.ErrNoRows {
			SendBusinessError(w, fmt.Errorf("%w: user %s", ErrNotFound, userID))
		} else {
			log.Printf("[LEDGER] Failed to fetch balance for %s: %v", userID, err)
			SendBusinessError(w, err)
		}
		return
	}

	SendJSON(w, http.StatusOK, map[string]any{"user_id": userID, "credits": credits})
}

// GetHistory lists the caller's ledger rows, newest first
// @Summary Get credit history
// @Description List the authenticated user's credit transactions
// @Tags credits
// @Produce json
// @Security BearerAuth
// @Param skip query int false "Rows to skip"
// @Param limit query int false "Max rows (default 50)"
// @Success 200 {array} models.CreditTransaction
// @Failure 401 {object} ErrorResponse
// @Router /credits/history [get]
func (s *LedgerService) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	skip, _ := strconv.Atoi(r.URL.Query().Get("skip"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := s.db.Query(`
		SELECT id, user_id, session_id, amount, transaction_type, description, balance_after, created_at
		FROM credit_transactions
		WHERE user_id = $1
		ORDER BY created_at DESC
		OFFSET $2 LIMIT $3`, userID, skip, limit)
	if err != nil {
		log.Printf("[LEDGER] Failed to fetch history for %s: %v", userID, err)
		SendBusinessError(w, err)
		return
	}
	defer rows.Close()

	transactions := []models.CreditTransaction{}
	for rows.Next() {
		var t models.CreditTransaction
		var desc sql.NullString
		if err := rows.Scan(&t.ID, &t.UserID, &t.SessionID, &t.Amount, &t.TransactionType, &desc, &t.BalanceAfter, &t.CreatedAt); err != nil {
			SendBusinessError(w, err)
			return
		}
		t.Description = desc.String
		transactions = append(transactions, t)
	}

	SendJSON(w, http.StatusOK, transactions)
}

// GetTransaction fetches one of the caller's ledger rows by id
// @Summary Get a credit transaction
// @Description Fetch a single credit transaction owned by the caller
// @Tags credits
// @Produce json
// @Security BearerAuth
// @Param transactionId path string true "Transaction ID"
// @Success 200 {object} models.CreditTransaction
// @Failure 404 {object} ErrorResponse
// @Router /credits/transactions/{transactionId} [get]
func (s *LedgerService) GetTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	txID := chi.URLParam(r, "transactionId")

	var t models.CreditTransaction
	var desc sql.NullString
	err := s.db.QueryRow(`
		SELECT id, user_id, session_id, amount, transaction_type, description, balance_after, created_at
		FROM credit_transactions
		WHERE id = $1 AND user_id = $2`, txID, userID).
		Scan(&t.ID, &t.UserID, &t.SessionID, &t.Amount, &t.TransactionType, &desc, &t.BalanceAfter, &t.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			SendBusinessError(w, fmt.Errorf("%w: transaction %s", ErrNotFound, txID))
		} else {
			SendBusinessError(w, err)
		}
		return
	}
	t.Description = desc.String

	SendJSON(w, http.StatusOK, t)
}

// CreditAdjustRequest is the body for manual earn/spend operations.
type CreditAdjustRequest struct {
	Amount          int     `json:"amount" validate:"required,gt=0" example:"10"`
	TransactionType string  `json:"transaction_type,omitempty" example:"earned"`
	Description     string  `json:"description,omitempty" example:"Referral reward"`
	SessionID       *string `json:"session_id,omitempty"`
}

// EarnCredits applies a positive adjustment
// @Summary Earn credits
// @Description Credit the authenticated user's account
// @Tags credits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreditAdjustRequest true "Adjustment"
// @Success 201 {object} models.CreditTransaction
// @Failure 400 {object} ErrorResponse
// @Router /credits/earn [post]
func (s *LedgerService) EarnCredits(w http.ResponseWriter, r *http.Request) {
	s.handleAdjust(w, r, false)
}

// SpendCredits applies a negative adjustment
// @Summary Spend credits
// @Description Debit the authenticated user's account
// @Tags credits
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreditAdjustRequest true "Adjustment"
// @Success 201 {object} models.CreditTransaction
// @Failure 400 {object} ErrorResponse
// @Router /credits/spend [post]
func (s *LedgerService) SpendCredits(w http.ResponseWriter, r *http.Request) {
	s.handleAdjust(w, r, true)
}

func (s *LedgerService) handleAdjust(w http.ResponseWriter, r *http.Request, spend bool) {
	userID, ok := r.Context().Value("userID").(string)
	if !ok || userID == "" {
		SendErrorResponse(w, "Unauthorized", http.StatusUnauthorized, nil)
		return
	}

	var req CreditAdjustRequest
	if err := DecodeJSONBody(w, r, &req); err != nil {
		SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := s.validator.ValidateStruct(&req); err != nil {
		SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	txType := req.TransactionType
	if spend {
		txType = models.TransactionTypeSpent
	} else if txType == "" {
		txType = models.TransactionTypeEarned
	}

	entry, err := s.Adjust(userID, req.Amount, txType, req.Description, req.SessionID)
	if err != nil {
		SendBusinessError(w, err)
		return
	}

	SendJSON(w, http.StatusCreated, entry)
}
