package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-redis/redismock/v8"
	"github.com/skillloop/backend/internal/models"
	"github.com/stretchr/testify/assert"
)

func skillRows(rows ...[]driverValue) *sqlmock.Rows {
	out := sqlmock.NewRows([]string{"user_id", "name", "skill_type"})
	for _, r := range rows {
		out.AddRow(r[0], r[1], r[2])
	}
	return out
}

type driverValue = any

func userProfileRows(ids ...string) *sqlmock.Rows {
	out := sqlmock.NewRows([]string{"id", "name", "email", "bio", "avatar", "rating"})
	for _, id := range ids {
		out.AddRow(id, "User "+id, id+"@example.com", nil, nil, nil)
	}
	return out
}

func TestMatchService_FindCandidates(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewMatchService(db, nil)
	ctx := context.Background()

	t.Run("perfect complement scores 100", func(t *testing.T) {
		// u1 teaches go and wants piano; u2 is the mirror image
		mock.ExpectQuery("SELECT user_id, name, skill_type FROM skills").
			WillReturnRows(skillRows(
				[]driverValue{"u1", "Go", models.SkillTypeTeaching},
				[]driverValue{"u1", "Piano", models.SkillTypeLearning},
				[]driverValue{"u2", "Piano", models.SkillTypeTeaching},
				[]driverValue{"u2", "Go", models.SkillTypeLearning},
			))

		mock.ExpectQuery("SELECT user_id, matched_user_id FROM matches").
			WithArgs("u1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "matched_user_id"}))

		mock.ExpectQuery("SELECT id, name, email, bio, avatar, rating FROM users").
			WithArgs("u1").
			WillReturnRows(userProfileRows("u2"))

		candidates, err := service.FindCandidates(ctx, "u1")
		assert.NoError(t, err)
		assert.Len(t, candidates, 1)
		assert.Equal(t, "u2", candidates[0].User.ID)
		assert.Equal(t, 100.0, candidates[0].MatchScore)
		assert.Equal(t, []string{"go", "piano"}, candidates[0].CommonSkills)
		assert.Equal(t, []string{"piano"}, candidates[0].TheyCanTeach)
		assert.Equal(t, []string{"go"}, candidates[0].TheyWantToLearn)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("partial overlap scores proportionally", func(t *testing.T) {
		// u1 lists four skills, u2 covers only one of them: 1/4*200 = 50
		mock.ExpectQuery("SELECT user_id, name, skill_type FROM skills").
			WillReturnRows(skillRows(
				[]driverValue{"u1", "Go", models.SkillTypeTeaching},
				[]driverValue{"u1", "Rust", models.SkillTypeTeaching},
				[]driverValue{"u1", "Piano", models.SkillTypeLearning},
				[]driverValue{"u1", "Chess", models.SkillTypeLearning},
				[]driverValue{"u2", "Piano", models.SkillTypeTeaching},
			))

		mock.ExpectQuery("SELECT user_id, matched_user_id FROM matches").
			WithArgs("u1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "matched_user_id"}))

		mock.ExpectQuery("SELECT id, name, email, bio, avatar, rating FROM users").
			WithArgs("u1").
			WillReturnRows(userProfileRows("u2"))

		candidates, err := service.FindCandidates(ctx, "u1")
		assert.NoError(t, err)
		assert.Len(t, candidates, 1)
		assert.Equal(t, 50.0, candidates[0].MatchScore)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("skips users with no overlap and existing connections", func(t *testing.T) {
		mock.ExpectQuery("SELECT user_id, name, skill_type FROM skills").
			WillReturnRows(skillRows(
				[]driverValue{"u1", "Go", models.SkillTypeTeaching},
				[]driverValue{"u2", "Go", models.SkillTypeLearning},
				[]driverValue{"u3", "Knitting", models.SkillTypeTeaching},
			))

		// u2 already has a pending request with u1
		mock.ExpectQuery("SELECT user_id, matched_user_id FROM matches").
			WithArgs("u1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "matched_user_id"}).
				AddRow("u1", "u2"))

		mock.ExpectQuery("SELECT id, name, email, bio, avatar, rating FROM users").
			WithArgs("u1").
			WillReturnRows(userProfileRows("u2", "u3"))

		candidates, err := service.FindCandidates(ctx, "u1")
		assert.NoError(t, err)
		assert.Empty(t, candidates)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("ranks candidates best first", func(t *testing.T) {
		mock.ExpectQuery("SELECT user_id, name, skill_type FROM skills").
			WillReturnRows(skillRows(
				[]driverValue{"u1", "Go", models.SkillTypeTeaching},
				[]driverValue{"u1", "Piano", models.SkillTypeLearning},
				[]driverValue{"u2", "Go", models.SkillTypeLearning},
				[]driverValue{"u3", "Go", models.SkillTypeLearning},
				[]driverValue{"u3", "Piano", models.SkillTypeTeaching},
			))

		mock.ExpectQuery("SELECT user_id, matched_user_id FROM matches").
			WithArgs("u1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "matched_user_id"}))

		mock.ExpectQuery("SELECT id, name, email, bio, avatar, rating FROM users").
			WithArgs("u1").
			WillReturnRows(userProfileRows("u2", "u3"))

		candidates, err := service.FindCandidates(ctx, "u1")
		assert.NoError(t, err)
		assert.Len(t, candidates, 2)
		assert.Equal(t, "u3", candidates[0].User.ID)
		assert.Equal(t, 100.0, candidates[0].MatchScore)
		assert.Equal(t, "u2", candidates[1].User.ID)
		assert.Equal(t, 100.0, candidates[1].MatchScore)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMatchService_CandidateCache(t *testing.T) {
	ctx := context.Background()

	cached := []models.Candidate{{
		User:            models.PublicProfile{ID: "u2", Name: "User u2", Email: "u2@example.com"},
		MatchScore:      100,
		CommonSkills:    []string{"go"},
		TheyCanTeach:    []string{"go"},
		TheyWantToLearn: []string{},
	}}
	payload, err := json.Marshal(cached)
	assert.NoError(t, err)

	t.Run("cache hit skips the database", func(t *testing.T) {
		db, _, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		redisClient, redisMock := redismock.NewClientMock()
		service := NewMatchService(db, redisClient)

		redisMock.ExpectGet("match_candidates:u1").SetVal(string(payload))

		candidates, err := service.FindCandidates(ctx, "u1")
		assert.NoError(t, err)
		assert.Equal(t, cached, candidates)
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("cache miss stores the computed list", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		assert.NoError(t, err)
		defer db.Close()

		redisClient, redisMock := redismock.NewClientMock()
		service := NewMatchService(db, redisClient)

		redisMock.ExpectGet("match_candidates:u1").RedisNil()

		mock.ExpectQuery("SELECT user_id, name, skill_type FROM skills").
			WillReturnRows(skillRows(
				[]driverValue{"u1", "Go", models.SkillTypeLearning},
				[]driverValue{"u2", "Go", models.SkillTypeTeaching},
			))

		mock.ExpectQuery("SELECT user_id, matched_user_id FROM matches").
			WithArgs("u1").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "matched_user_id"}))

		mock.ExpectQuery("SELECT id, name, email, bio, avatar, rating FROM users").
			WithArgs("u1").
			WillReturnRows(userProfileRows("u2"))

		redisMock.ExpectSet("match_candidates:u1", payload, 5*time.Minute).SetVal("OK")

		candidates, err := service.FindCandidates(ctx, "u1")
		assert.NoError(t, err)
		assert.Len(t, candidates, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})
}

func TestMatchService_Propose(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewMatchService(db, nil)
	ctx := context.Background()

	t.Run("creates a pending request", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("u1", "u2").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		mock.ExpectExec("INSERT INTO matches").
			WithArgs(sqlmock.AnyArg(), "u1", "u2", 85.5, []byte(`["go"]`),
				models.MatchStatusPending, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		match, err := service.Propose(ctx, "u1", "u2", 85.5, []string{"go"})
		assert.NoError(t, err)
		assert.Equal(t, models.MatchStatusPending, match.Status)
		assert.Equal(t, 85.5, match.MatchScore)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("self match is invalid", func(t *testing.T) {
		_, err := service.Propose(ctx, "u1", "u1", 50, nil)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("score outside range is invalid", func(t *testing.T) {
		_, err := service.Propose(ctx, "u1", "u2", 101, nil)
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("duplicate in either direction", func(t *testing.T) {
		mock.ExpectQuery("SELECT EXISTS").
			WithArgs("u1", "u2").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		_, err := service.Propose(ctx, "u1", "u2", 50, nil)
		assert.ErrorIs(t, err, ErrDuplicateRequest)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMatchService_Respond(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewMatchService(db, nil)

	t.Run("recipient accepts", func(t *testing.T) {
		mock.ExpectExec("UPDATE matches SET status").
			WithArgs(models.MatchStatusAccepted, "m1", "u2", models.MatchStatusPending).
			WillReturnResult(sqlmock.NewResult(1, 1))

		mock.ExpectQuery("SELECT id, user_id, matched_user_id, match_score, common_skills, status").
			WithArgs("m1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "matched_user_id", "match_score", "common_skills", "status", "created_at", "updated_at"}).
				AddRow("m1", "u1", "u2", 85.5, []byte(`["go"]`), models.MatchStatusAccepted, time.Now(), time.Now()))

		match, err := service.Respond("m1", "u2", models.MatchStatusAccepted)
		assert.NoError(t, err)
		assert.Equal(t, models.MatchStatusAccepted, match.Status)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("already responded", func(t *testing.T) {
		mock.ExpectExec("UPDATE matches SET status").
			WithArgs(models.MatchStatusRejected, "m1", "u2", models.MatchStatusPending).
			WillReturnResult(sqlmock.NewResult(1, 0))

		_, err := service.Respond("m1", "u2", models.MatchStatusRejected)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMatchService_Cancel(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewMatchService(db, nil)
	ctx := context.Background()

	t.Run("sender cancels a pending request", func(t *testing.T) {
		mock.ExpectQuery("DELETE FROM matches").
			WithArgs("m1", "u1", models.MatchStatusPending).
			WillReturnRows(sqlmock.NewRows([]string{"matched_user_id"}).AddRow("u2"))

		err := service.Cancel(ctx, "m1", "u1")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("recipient cannot cancel", func(t *testing.T) {
		mock.ExpectQuery("DELETE FROM matches").
			WithArgs("m1", "u2", models.MatchStatusPending).
			WillReturnRows(sqlmock.NewRows([]string{"matched_user_id"}))

		err := service.Cancel(ctx, "m1", "u2")
		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
