package models

import "time"

// Match statuses. Accepted and rejected are terminal; a pending match may be
// deleted by its sender instead.
const (
	MatchStatusPending  = "pending"
	MatchStatusAccepted = "accepted"
	MatchStatusRejected = "rejected"
)

// Match is a connection request from UserID to MatchedUserID. At most one
// match may exist per unordered user pair, whatever its status.
type Match struct {
	ID            string    `json:"id" db:"id"`
	UserID        string    `json:"user_id" db:"user_id"`
	MatchedUserID string    `json:"matched_user_id" db:"matched_user_id"`
	MatchScore    float64   `json:"match_score" db:"match_score" example:"87.5"`
	CommonSkills  []string  `json:"common_skills" db:"common_skills"`
	Status        string    `json:"status" db:"status" example:"pending"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}

// OtherParty returns the user on the far side of the match from selfID.
func (m *Match) OtherParty(selfID string) string {
	if m.UserID == selfID {
		return m.MatchedUserID
	}
	return m.UserID
}

// Candidate is a scored potential match produced by the matcher. It never
// touches the database; a Match row exists only once a request is sent.
type Candidate struct {
	User            PublicProfile `json:"user"`
	MatchScore      float64       `json:"match_score"`
	CommonSkills    []string      `json:"common_skills"`
	TheyCanTeach    []string      `json:"they_can_teach"`
	TheyWantToLearn []string      `json:"they_want_to_learn"`
}
