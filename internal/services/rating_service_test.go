package services

import (
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestRatingService_RecomputeTx(t *testing.T) {
	db, mock, err := sqlmock.New()
	assert.NoError(t, err)
	defer db.Close()

	service := NewRatingService(db)

	t.Run("updates the mean of received ratings", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()

		mock.ExpectQuery("SELECT AVG\\(rating\\)").
			WithArgs("u1").
			WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow(4.25))

		mock.ExpectExec("UPDATE users SET rating").
			WithArgs(4.25, "u1").
			WillReturnResult(sqlmock.NewResult(1, 1))

		err := service.RecomputeTx(tx, "u1")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no qualifying sessions leaves the rating alone", func(t *testing.T) {
		mock.ExpectBegin()
		tx, _ := db.Begin()

		mock.ExpectQuery("SELECT AVG\\(rating\\)").
			WithArgs("u1").
			WillReturnRows(sqlmock.NewRows([]string{"avg"}).AddRow(nil))

		err := service.RecomputeTx(tx, "u1")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
