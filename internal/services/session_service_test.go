package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/skillloop/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func sessionRows(sess *models.Session) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "title", "user_id", "participant_id", "participant_name", "skill",
		"session_date", "session_time", "duration", "credits_amount", "session_type", "status",
		"rating", "feedback", "rated_by", "created_at", "updated_at",
	}).AddRow(sess.ID, sess.Title, sess.UserID, sess.ParticipantID, sess.ParticipantName, sess.Skill,
		sess.Date, sess.Time, sess.Duration, sess.CreditsAmount, sess.Type, sess.Status,
		sess.Rating, sess.Feedback, sess.RatedBy, sess.CreatedAt, sess.UpdatedAt)
}

func testRates() CreditRates {
	return CreditRates{15: 5, 30: 10, 60: 20}
}

func TestCreditRates_PriceFor(t *testing.T) {
	rates := testRates()

	assert.Equal(t, 5, rates.PriceFor(15))
	assert.Equal(t, 10, rates.PriceFor(30))
	assert.Equal(t, 20, rates.PriceFor(60))

	// Unlisted durations: one credit per three minutes
	assert.Equal(t, 15, rates.PriceFor(45))
	assert.Equal(t, 30, rates.PriceFor(90))
	assert.Equal(t, 3, rates.PriceFor(10))
}

func TestSessionService_Create(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewSessionService(db, NewLedgerService(db), NewRatingService(db), testRates())

	req := &SessionCreateRequest{
		Title:         "Intro to goroutines",
		ParticipantID: "teacher-1",
		Skill:         "Go",
		Date:          "2026-09-14",
		Time:          "18:30",
		Duration:      60,
		Type:          models.SessionTypeLearning,
	}

	t.Run("learning organizer pays the frozen price", func(t *testing.T) {
		mock.ExpectQuery("SELECT credits FROM users").
			WithArgs("learner-1").
			WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(50))

		mock.ExpectQuery("SELECT name FROM users").
			WithArgs("teacher-1").
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Teacher One"))

		mock.ExpectExec("INSERT INTO sessions").
			WithArgs(sqlmock.AnyArg(), "Intro to goroutines", "learner-1", "teacher-1", "Teacher One", "Go",
				"2026-09-14", "18:30", 60, 20, models.SessionTypeLearning, models.SessionStatusPending,
				sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		sess, err := service.Create("learner-1", req)
		assert.NoError(t, err)
		assert.Equal(t, 20, sess.CreditsAmount)
		assert.Equal(t, models.SessionStatusPending, sess.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("learning organizer without the credits", func(t *testing.T) {
		mock.ExpectQuery("SELECT credits FROM users").
			WithArgs("learner-1").
			WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(5))

		_, err := service.Create("learner-1", req)
		assert.ErrorIs(t, err, ErrInsufficientCredits)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("teaching organizer skips the balance check", func(t *testing.T) {
		teachReq := *req
		teachReq.Type = models.SessionTypeTeaching

		mock.ExpectQuery("SELECT name FROM users").
			WithArgs("teacher-1").
			WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Teacher One"))

		mock.ExpectExec("INSERT INTO sessions").
			WillReturnResult(sqlmock.NewResult(1, 1))

		sess, err := service.Create("broke-user", &teachReq)
		assert.NoError(t, err)
		assert.Equal(t, 20, sess.CreditsAmount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown participant", func(t *testing.T) {
		mock.ExpectQuery("SELECT credits FROM users").
			WithArgs("learner-1").
			WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(50))

		mock.ExpectQuery("SELECT name FROM users").
			WithArgs("teacher-1").
			WillReturnRows(sqlmock.NewRows([]string{"name"}))

		_, err := service.Create("learner-1", req)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionService_Accept(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewSessionService(db, NewLedgerService(db), NewRatingService(db), testRates())

	pending := &models.Session{
		ID:            "sess-1",
		Title:         "Intro to goroutines",
		UserID:        "teacher-1",
		ParticipantID: "learner-1",
		Duration:      60,
		CreditsAmount: 20,
		Type:          models.SessionTypeTeaching,
		Status:        models.SessionStatusPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	t.Run("participant accepts and pays later", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("SELECT id, title, user_id").
			WithArgs("sess-1", "learner-1", models.SessionStatusPending).
			WillReturnRows(sessionRows(pending))

		// Organizer teaches, so the accepting participant is the payer
		mock.ExpectQuery("SELECT credits FROM users").
			WithArgs("learner-1").
			WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(50))

		mock.ExpectExec("UPDATE sessions SET status").
			WithArgs(models.SessionStatusScheduled, "sess-1", models.SessionStatusPending).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		sess, err := service.Accept("sess-1", "learner-1")
		assert.NoError(t, err)
		assert.Equal(t, models.SessionStatusScheduled, sess.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("participant cannot afford a teaching session", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("SELECT id, title, user_id").
			WithArgs("sess-1", "learner-1", models.SessionStatusPending).
			WillReturnRows(sessionRows(pending))

		mock.ExpectQuery("SELECT credits FROM users").
			WithArgs("learner-1").
			WillReturnRows(sqlmock.NewRows([]string{"credits"}).AddRow(3))

		mock.ExpectRollback()

		_, err := service.Accept("sess-1", "learner-1")
		assert.ErrorIs(t, err, ErrInsufficientCredits)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("only the participant may accept", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("SELECT id, title, user_id").
			WithArgs("sess-1", "teacher-1", models.SessionStatusPending).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		mock.ExpectRollback()

		_, err := service.Accept("sess-1", "teacher-1")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionService_Complete(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	ledger := NewLedgerService(db)
	service := NewSessionService(db, ledger, NewRatingService(db), testRates())

	scheduled := &models.Session{
		ID:            "sess-1",
		Title:         "Intro to goroutines",
		UserID:        "teacher-1", // organizer teaches
		ParticipantID: "learner-1",
		Duration:      60,
		CreditsAmount: 20,
		Type:          models.SessionTypeTeaching,
		Status:        models.SessionStatusScheduled,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	t.Run("settles learner to teacher in one transaction", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("SELECT id, title, user_id").
			WithArgs("sess-1", "teacher-1", models.SessionStatusScheduled).
			WillReturnRows(sessionRows(scheduled))

		// Status flips before any credits move
		mock.ExpectExec("UPDATE sessions SET status").
			WithArgs(models.SessionStatusCompleted, "sess-1", models.SessionStatusScheduled).
			WillReturnResult(sqlmock.NewResult(1, 1))

		// learner-1 sorts before teacher-1, so the payer locks first
		mock.ExpectQuery("SELECT id, credits, version").
			WithArgs("learner-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "credits", "version"}).
				AddRow("learner-1", 50, 1))

		mock.ExpectQuery("SELECT id, credits, version").
			WithArgs("teacher-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "credits", "version"}).
				AddRow("teacher-1", 10, 1))

		mock.ExpectExec("INSERT INTO credit_transactions").
			WithArgs(sqlmock.AnyArg(), "learner-1", "sess-1", -20, models.TransactionTypeSessionPayment,
				"Paid for learning session: Intro to goroutines (60 min)", 30, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("INSERT INTO credit_transactions").
			WithArgs(sqlmock.AnyArg(), "teacher-1", "sess-1", 20, models.TransactionTypeSessionEarned,
				"Earned from teaching session: Intro to goroutines (60 min)", 30, sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("UPDATE users SET credits = \\$1, version = version \\+ 1").
			WithArgs(30, "learner-1", 1).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectExec("UPDATE users SET credits = \\$1, version = version \\+ 1").
			WithArgs(30, "teacher-1", 1).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		sess, err := service.Complete("sess-1", "teacher-1")
		assert.NoError(t, err)
		assert.Equal(t, models.SessionStatusCompleted, sess.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("second completion finds no scheduled row", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("SELECT id, title, user_id").
			WithArgs("sess-1", "teacher-1", models.SessionStatusScheduled).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		mock.ExpectRollback()

		_, err := service.Complete("sess-1", "teacher-1")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("insufficient learner balance aborts the completion", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("SELECT id, title, user_id").
			WithArgs("sess-1", "teacher-1", models.SessionStatusScheduled).
			WillReturnRows(sessionRows(scheduled))

		mock.ExpectExec("UPDATE sessions SET status").
			WithArgs(models.SessionStatusCompleted, "sess-1", models.SessionStatusScheduled).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectQuery("SELECT id, credits, version").
			WithArgs("learner-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "credits", "version"}).
				AddRow("learner-1", 5, 1))

		mock.ExpectQuery("SELECT id, credits, version").
			WithArgs("teacher-1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "credits", "version"}).
				AddRow("teacher-1", 10, 1))

		mock.ExpectRollback()

		_, err := service.Complete("sess-1", "teacher-1")
		assert.ErrorIs(t, err, ErrInsufficientCredits)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionService_Rate(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewSessionService(db, NewLedgerService(db), NewRatingService(db), testRates())

	completed := &models.Session{
		ID:            "sess-1",
		Title:         "Intro to goroutines",
		UserID:        "teacher-1",
		ParticipantID: "learner-1",
		Duration:      60,
		CreditsAmount: 20,
		Type:          models.SessionTypeTeaching,
		Status:        models.SessionStatusCompleted,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	t.Run("stores the rating and recomputes the other party", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("SELECT id, title, user_id").
			WithArgs("sess-1", "learner-1", models.SessionStatusCompleted).
			WillReturnRows(sessionRows(completed))

		mock.ExpectExec("UPDATE sessions SET rating").
			WithArgs(4.5, "great session", "learner-1", "sess-1").
			WillReturnResult(sqlmock.NewResult(1, 1))

		// Aggregate goes to the teacher, not the rater
		mock.ExpectQuery("SELECT AVG\\(rating\\)").
			WithArgs("teacher-1").
			WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow(4.5))

		mock.ExpectExec("UPDATE users SET rating").
			WithArgs(4.5, "teacher-1").
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectCommit()

		sess, err := service.Rate("sess-1", "learner-1", 4.5, "great session")
		assert.NoError(t, err)
		assert.NotNil(t, sess.Rating)
		assert.Equal(t, 4.5, *sess.Rating)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already rated", func(t *testing.T) {
		rated := *completed
		r := 5.0
		ratedBy := "learner-1"
		rated.Rating = &r
		rated.RatedBy = &ratedBy

		mock.ExpectBegin()

		mock.ExpectQuery("SELECT id, title, user_id").
			WithArgs("sess-1", "learner-1", models.SessionStatusCompleted).
			WillReturnRows(sessionRows(&rated))

		mock.ExpectRollback()

		_, err := service.Rate("sess-1", "learner-1", 4.0, "")
		assert.ErrorIs(t, err, ErrAlreadyRated)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rating outside range", func(t *testing.T) {
		_, err := service.Rate("sess-1", "learner-1", 5.5, "")
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("cannot rate an incomplete session", func(t *testing.T) {
		mock.ExpectBegin()

		mock.ExpectQuery("SELECT id, title, user_id").
			WithArgs("sess-1", "learner-1", models.SessionStatusCompleted).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		mock.ExpectRollback()

		_, err := service.Rate("sess-1", "learner-1", 4.0, "")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionService_Update(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewSessionService(db, NewLedgerService(db), NewRatingService(db), testRates())

	t.Run("duration change reprices the session", func(t *testing.T) {
		newDuration := 30

		mock.ExpectExec("UPDATE sessions SET updated_at = NOW\\(\\), duration = \\$1, credits_amount = \\$2").
			WithArgs(30, 10, "sess-1", "teacher-1", models.SessionStatusPending, models.SessionStatusScheduled).
			WillReturnResult(sqlmock.NewResult(1, 1))

		repriced := &models.Session{
			ID: "sess-1", UserID: "teacher-1", ParticipantID: "learner-1",
			Duration: 30, CreditsAmount: 10,
			Type: models.SessionTypeTeaching, Status: models.SessionStatusPending,
			CreatedAt: time.Now(), UpdatedAt: time.Now(),
		}
		mock.ExpectQuery("SELECT id, title, user_id").
			WithArgs("sess-1").
			WillReturnRows(sessionRows(repriced))

		sess, err := service.Update("sess-1", "teacher-1", &SessionUpdateRequest{Duration: &newDuration})
		assert.NoError(t, err)
		assert.Equal(t, 10, sess.CreditsAmount)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty patch is invalid", func(t *testing.T) {
		_, err := service.Update("sess-1", "teacher-1", &SessionUpdateRequest{})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("non-organizer cannot update", func(t *testing.T) {
		title := "New title"

		mock.ExpectExec("UPDATE sessions SET updated_at").
			WithArgs(title, "sess-1", "learner-1", models.SessionStatusPending, models.SessionStatusScheduled).
			WillReturnResult(sqlmock.NewResult(1, 0))

		_, err := service.Update("sess-1", "learner-1", &SessionUpdateRequest{Title: &title})
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSessionService_Delete(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewSessionService(db, NewLedgerService(db), NewRatingService(db), testRates())

	t.Run("organizer deletes a pending session", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM sessions").
			WithArgs("sess-1", "teacher-1", models.SessionStatusPending).
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := service.Delete("sess-1", "teacher-1")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("scheduled sessions cannot be deleted", func(t *testing.T) {
		mock.ExpectExec("DELETE FROM sessions").
			WithArgs("sess-1", "teacher-1", models.SessionStatusPending).
			WillReturnResult(sqlmock.NewResult(1, 0))

		err := service.Delete("sess-1", "teacher-1")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
