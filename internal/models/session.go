package models

import "time"

// Session statuses. pending → scheduled → completed is the happy path;
// pending → rejected, {pending,scheduled} → cancelled. Terminal states are
// absorbing; completion in particular is the guard against double
// settlement.
const (
	SessionStatusPending   = "pending"
	SessionStatusScheduled = "scheduled"
	SessionStatusCompleted = "completed"
	SessionStatusCancelled = "cancelled"
	SessionStatusRejected  = "rejected"
)

// Session types, from the organizer's perspective. If the organizer teaches,
// the participant learns and pays; if the organizer learns, the organizer
// pays.
const (
	SessionTypeTeaching = "teaching"
	SessionTypeLearning = "learning"
)

type Session struct {
	ID              string    `json:"id" db:"id"`
	Title           string    `json:"title" db:"title" example:"Intro to goroutines"`
	UserID          string    `json:"user_id" db:"user_id"` // organizer
	ParticipantID   string    `json:"participant_id" db:"participant_id"`
	ParticipantName string    `json:"participant_name" db:"participant_name"`
	Skill           string    `json:"skill" db:"skill" example:"Go"`
	Date            string    `json:"date" db:"session_date" example:"2026-09-14"`
	Time            string    `json:"time" db:"session_time" example:"18:30"`
	Duration        int       `json:"duration" db:"duration" example:"60"` // minutes
	CreditsAmount   int       `json:"credits_amount" db:"credits_amount" example:"20"`
	Type            string    `json:"type" db:"session_type" example:"teaching"`
	Status          string    `json:"status" db:"status" example:"scheduled"`
	Rating          *float64  `json:"rating,omitempty" db:"rating"`
	Feedback        *string   `json:"feedback,omitempty" db:"feedback"`
	RatedBy         *string   `json:"rated_by,omitempty" db:"rated_by"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

// TeacherLearner resolves which party teaches and which pays, from the
// session type stored on the organizer's perspective.
func (s *Session) TeacherLearner() (teacherID, learnerID string) {
	if s.Type == SessionTypeTeaching {
		return s.UserID, s.ParticipantID
	}
	return s.ParticipantID, s.UserID
}

// OtherParty returns the session member that is not selfID.
func (s *Session) OtherParty(selfID string) string {
	if s.UserID == selfID {
		return s.ParticipantID
	}
	return s.UserID
}
