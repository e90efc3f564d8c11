package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/siakad-api/internal/models"
)

var termRowColumns = []string{"id", "year_label", "term_name", "start_date", "end_date", "is_active", "created_at", "updated_at"}

func TestTermRepositoryFindActive(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta(termFindActiveQuery)).
		WillReturnRows(sqlmock.NewRows(termRowColumns).
			AddRow("term-2", "2024/2025", "Genap", now, now.AddDate(0, 5, 0), true, now, now))

	term, err := repo.FindActive(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "term-2", term.ID)
	assert.Equal(t, models.TermGenap, term.TermName)
	assert.True(t, term.IsActive)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermRepositoryFindActiveNone(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(termFindActiveQuery)).WillReturnRows(sqlmock.NewRows(termRowColumns))

	_, err := repo.FindActive(context.Background())
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestTermRepositoryActivateSwapsPointer(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(termLockQuery)).
		WithArgs("term-2").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("term-2"))
	mock.ExpectExec(regexp.QuoteMeta(termActivateQuery)).
		WithArgs("term-2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Activate(context.Background(), "term-2"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermRepositoryActivateUnknownTerm(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(termLockQuery)).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectRollback()

	err := repo.Activate(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTermRepositoryListDefaultsToNewestFirst(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewTermRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY t.start_date DESC LIMIT 20 OFFSET 0")).
		WillReturnRows(sqlmock.NewRows(termRowColumns).
			AddRow("term-1", "2024/2025", "Ganjil", now, now, false, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM academic_terms t")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	terms, total, err := repo.List(context.Background(), models.TermFilter{})
	require.NoError(t, err)
	assert.Len(t, terms, 1)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
