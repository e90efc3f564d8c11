package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/siakad-api/internal/models"
)

var enrollmentRowColumns = []string{"id", "student_id", "term_id", "status", "total_credits", "approved_by", "approved_at", "submitted_at", "notes", "created_at", "updated_at"}

func enrollmentRow(status models.EnrollmentStatus, credits int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(enrollmentRowColumns).
		AddRow("enr-1", "stu-1", "term-1", string(status), credits, nil, nil, nil, nil, now, now)
}

func expectDraftLock(mock sqlmock.Sqlmock, status models.EnrollmentStatus) {
	mock.ExpectQuery(regexp.QuoteMeta(enrollmentLockStatusQuery)).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow(string(status)))
}

func expectSectionLock(mock sqlmock.Sqlmock, termID string, capacity, filled int) {
	mock.ExpectQuery(regexp.QuoteMeta(sectionLockQuery)).
		WithArgs("sec-1").
		WillReturnRows(sqlmock.NewRows([]string{"term_id", "capacity", "seats_filled"}).AddRow(termID, capacity, filled))
}

func expectLineExists(mock sqlmock.Sqlmock, exists bool) {
	mock.ExpectQuery(regexp.QuoteMeta(lineExistsQuery)).
		WithArgs("enr-1", "sec-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(exists))
}

func TestGetOrCreateDraftInsertsWhenMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(enrollmentInsertDraftQuery)).
		WithArgs(sqlmock.AnyArg(), "stu-1", "term-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(enrollmentByStudentTermQuery)).
		WithArgs("stu-1", "term-1").
		WillReturnRows(enrollmentRow(models.EnrollmentDraft, 0))

	enrollment, created, err := repo.GetOrCreateDraft(context.Background(), "stu-1", "term-1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, models.EnrollmentDraft, enrollment.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetOrCreateDraftReturnsExisting(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(enrollmentInsertDraftQuery)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta(enrollmentByStudentTermQuery)).
		WillReturnRows(enrollmentRow(models.EnrollmentSubmitted, 6))

	enrollment, created, err := repo.GetOrCreateDraft(context.Background(), "stu-1", "term-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, models.EnrollmentSubmitted, enrollment.Status)
	assert.Equal(t, 6, enrollment.TotalCredits)
}

func TestAddLineReservesSeatAndRecountsCredits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	expectDraftLock(mock, models.EnrollmentDraft)
	expectSectionLock(mock, "term-1", 40, 39)
	expectLineExists(mock, false)
	mock.ExpectExec(regexp.QuoteMeta(sectionReserveSeatQuery)).
		WithArgs("sec-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(lineInsertQuery)).
		WithArgs(sqlmock.AnyArg(), "enr-1", "sec-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(enrollmentRecountQuery)).
		WithArgs("enr-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"total_credits"}).AddRow(3))
	mock.ExpectCommit()

	line, total, err := repo.AddLine(context.Background(), "enr-1", "term-1", "sec-1")
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Equal(t, "sec-1", line.SectionID)
	assert.NotEmpty(t, line.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAddLineRejections(t *testing.T) {
	cases := []struct {
		name   string
		expect func(mock sqlmock.Sqlmock)
		want   error
	}{
		{
			name: "enrollment not draft",
			expect: func(mock sqlmock.Sqlmock) {
				expectDraftLock(mock, models.EnrollmentSubmitted)
			},
			want: ErrEnrollmentLocked,
		},
		{
			name: "section missing",
			expect: func(mock sqlmock.Sqlmock) {
				expectDraftLock(mock, models.EnrollmentDraft)
				mock.ExpectQuery(regexp.QuoteMeta(sectionLockQuery)).WillReturnError(sql.ErrNoRows)
			},
			want: ErrSectionUnavailable,
		},
		{
			name: "section in another term",
			expect: func(mock sqlmock.Sqlmock) {
				expectDraftLock(mock, models.EnrollmentDraft)
				expectSectionLock(mock, "term-0", 40, 0)
			},
			want: ErrSectionUnavailable,
		},
		{
			name: "duplicate section",
			expect: func(mock sqlmock.Sqlmock) {
				expectDraftLock(mock, models.EnrollmentDraft)
				expectSectionLock(mock, "term-1", 40, 1)
				expectLineExists(mock, true)
			},
			want: ErrDuplicateLine,
		},
		{
			name: "section at capacity",
			expect: func(mock sqlmock.Sqlmock) {
				expectDraftLock(mock, models.EnrollmentDraft)
				expectSectionLock(mock, "term-1", 40, 40)
				expectLineExists(mock, false)
			},
			want: ErrSectionFull,
		},
		{
			name: "guarded increment touches no row",
			expect: func(mock sqlmock.Sqlmock) {
				expectDraftLock(mock, models.EnrollmentDraft)
				expectSectionLock(mock, "term-1", 40, 39)
				expectLineExists(mock, false)
				mock.ExpectExec(regexp.QuoteMeta(sectionReserveSeatQuery)).WillReturnResult(sqlmock.NewResult(0, 0))
			},
			want: ErrSectionFull,
		},
		{
			name: "unique violation on insert",
			expect: func(mock sqlmock.Sqlmock) {
				expectDraftLock(mock, models.EnrollmentDraft)
				expectSectionLock(mock, "term-1", 40, 2)
				expectLineExists(mock, false)
				mock.ExpectExec(regexp.QuoteMeta(sectionReserveSeatQuery)).WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectExec(regexp.QuoteMeta(lineInsertQuery)).WillReturnError(&pq.Error{Code: "23505"})
			},
			want: ErrDuplicateLine,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			db, mock, cleanup := newMock(t)
			defer cleanup()
			repo := NewEnrollmentRepository(db)

			mock.ExpectBegin()
			tc.expect(mock)
			mock.ExpectRollback()

			_, _, err := repo.AddLine(context.Background(), "enr-1", "term-1", "sec-1")
			assert.ErrorIs(t, err, tc.want)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRemoveLineReleasesSeat(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	expectDraftLock(mock, models.EnrollmentDraft)
	mock.ExpectQuery(regexp.QuoteMeta(lineDeleteQuery)).
		WithArgs("line-1", "enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"section_id"}).AddRow("sec-1"))
	mock.ExpectExec(regexp.QuoteMeta(sectionReleaseSeatQuery)).
		WithArgs("sec-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(enrollmentRecountQuery)).
		WithArgs("enr-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"total_credits"}).AddRow(0))
	mock.ExpectCommit()

	total, err := repo.RemoveLine(context.Background(), "enr-1", "line-1")
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveLineUnknownLine(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	expectDraftLock(mock, models.EnrollmentDraft)
	mock.ExpectQuery(regexp.QuoteMeta(lineDeleteQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"section_id"}))
	mock.ExpectRollback()

	_, err := repo.RemoveLine(context.Background(), "enr-1", "line-x")
	assert.ErrorIs(t, err, ErrLineNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRemoveLineLockedEnrollment(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	expectDraftLock(mock, models.EnrollmentApproved)
	mock.ExpectRollback()

	_, err := repo.RemoveLine(context.Background(), "enr-1", "line-1")
	assert.ErrorIs(t, err, ErrEnrollmentLocked)
}

func TestTransitionSubmitRequiresLines(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(enrollmentLockQuery)).
		WithArgs("enr-1").
		WillReturnRows(enrollmentRow(models.EnrollmentDraft, 0))
	mock.ExpectQuery(regexp.QuoteMeta(lineCountQuery)).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	_, err := repo.Transition(context.Background(), TransitionParams{EnrollmentID: "enr-1", Action: models.ActionSubmit})
	assert.ErrorIs(t, err, ErrNoLines)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionSubmit(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(enrollmentLockQuery)).
		WillReturnRows(enrollmentRow(models.EnrollmentDraft, 5))
	mock.ExpectQuery(regexp.QuoteMeta(lineCountQuery)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectExec(regexp.QuoteMeta(enrollmentTransitionQuery)).
		WithArgs("enr-1", string(models.EnrollmentSubmitted), sqlmock.AnyArg(), nil, nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment, err := repo.Transition(context.Background(), TransitionParams{EnrollmentID: "enr-1", Action: models.ActionSubmit})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentSubmitted, enrollment.Status)
	require.NotNil(t, enrollment.SubmittedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionApproveRecordsActor(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	actor := "user-9"
	notes := "ok"
	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(enrollmentLockQuery)).
		WillReturnRows(enrollmentRow(models.EnrollmentSubmitted, 5))
	mock.ExpectExec(regexp.QuoteMeta(enrollmentTransitionQuery)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	enrollment, err := repo.Transition(context.Background(), TransitionParams{EnrollmentID: "enr-1", Action: models.ActionApprove, ActorID: &actor, Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentApproved, enrollment.Status)
	require.NotNil(t, enrollment.ApprovedBy)
	assert.Equal(t, actor, *enrollment.ApprovedBy)
	assert.Equal(t, "ok", *enrollment.Notes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTransitionRejectsInvalidEdge(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(enrollmentLockQuery)).
		WillReturnRows(enrollmentRow(models.EnrollmentApproved, 5))
	mock.ExpectRollback()

	_, err := repo.Transition(context.Background(), TransitionParams{EnrollmentID: "enr-1", Action: models.ActionSubmit})
	assert.ErrorIs(t, err, ErrStatusConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHasSection(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewEnrollmentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(enrollmentHasSectionQuery)).
		WithArgs("stu-1", "sec-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectQuery(regexp.QuoteMeta(enrollmentHasSectionQuery)).
		WithArgs("stu-1", "sec-9").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	enrolled, err := repo.HasSection(context.Background(), "stu-1", "sec-1")
	require.NoError(t, err)
	assert.True(t, enrolled)

	enrolled, err = repo.HasSection(context.Background(), "stu-1", "sec-9")
	require.NoError(t, err)
	assert.False(t, enrolled)
	assert.NoError(t, mock.ExpectationsWereMet())
}
