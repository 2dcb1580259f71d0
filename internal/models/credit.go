package models

import "time"

// Transaction types recorded on the credit ledger.
const (
	TransactionTypeSessionPayment = "session_payment"
	TransactionTypeSessionEarned  = "session_earned"
	TransactionTypeWelcomeBonus   = "welcome_bonus"
	TransactionTypeEarned         = "earned"
	TransactionTypeSpent          = "spent"
)

// CreditTransaction is one append-only ledger row. Amount is signed (positive
// credits in, negative credits out) and BalanceAfter must equal the running
// sum of Amount over the user's rows in creation order; replaying the log
// reproduces the live balance.
type CreditTransaction struct {
	ID              string    `json:"id" db:"id"`
	UserID          string    `json:"user_id" db:"user_id"`
	SessionID       *string   `json:"session_id,omitempty" db:"session_id"`
	Amount          int       `json:"amount" db:"amount" example:"-20"`
	TransactionType string    `json:"transaction_type" db:"transaction_type" example:"session_payment"`
	Description     string    `json:"description" db:"description"`
	BalanceAfter    int       `json:"balance_after" db:"balance_after" example:"30"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
