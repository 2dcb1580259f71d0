package services

import (
	"database/sql"
	"log"
)

// RatingService recomputes a user's public rating from the ratings they
// received on completed sessions. It runs only as the final step of rating
// a session, inside that operation's transaction.
type RatingService struct {
	db *sql.DB
}

func NewRatingService(db *sql.DB) *RatingService {
	return &RatingService{db: db}
}

// RecomputeTx sets the subject's rating to the mean of ratings given to
// them (rated_by is the other party). When no qualifying session exists the
// stored rating is left untouched.
func (s *RatingService) RecomputeTx(tx *sql.Tx, userID string) error {
	var mean sql.NullFloat64
	err := tx.QueryRow(`
		SELECT AVG(rating)
		FROM sessions
		WHERE (user_id = $1 OR participant_id = $1)
		  AND rating IS NOT NULL
		  AND rated_by <> $1`, userID).Scan(&mean)
	if err != nil {
		return err
	}

	if !mean.Valid {
		return nil
	}

	if _, err := tx.Exec("UPDATE users SET rating = $1, updated_at = NOW() WHERE id = $2", mean.Float64, userID); err != nil {
		return err
	}

	log.Printf("[RATING] User %s rating recomputed to %.2f", userID, mean.Float64)
	return nil
}
