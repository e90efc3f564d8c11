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

func TestCourseListFiltersAndSorts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	now := time.Now()
	listQuery := "SELECT " + courseColumns + " FROM courses WHERE 1=1 AND program_id = $1 AND semester_number = $2 ORDER BY name DESC LIMIT 10 OFFSET 10"
	mock.ExpectQuery(regexp.QuoteMeta(listQuery)).
		WithArgs("prog-1", 3).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "credit_hours", "semester_number", "kind", "program_id", "description", "created_at", "updated_at"}).
			AddRow("c-1", "IF201", "Struktur Data", 3, 3, "required", "prog-1", nil, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM courses WHERE 1=1 AND program_id = $1 AND semester_number = $2")).
		WithArgs("prog-1", 3).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	courses, total, err := repo.List(context.Background(), models.CourseFilter{ProgramID: "prog-1", SemesterNumber: 3, Page: 2, PageSize: 10, SortBy: "name", SortOrder: "desc"})
	require.NoError(t, err)
	require.Len(t, courses, 1)
	assert.Equal(t, models.CourseRequired, courses[0].Kind)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseExistsByCode(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewCourseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM courses WHERE UPPER(code) = UPPER($1) LIMIT 1")).
		WithArgs("if101").
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsByCode(context.Background(), "if101", "")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestSectionListAvailableExcludesEnrolled(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewSectionRepository(db)

	now := time.Now()
	day := 1
	start, end := "08:00", "10:30"
	rows := sqlmock.NewRows([]string{"id", "section_code", "course_id", "instructor_id", "term_id", "room_id", "capacity", "seats_filled", "day_of_week", "start_time", "end_time", "created_at", "updated_at", "course_code", "course_name", "credit_hours", "semester_number", "instructor_name", "room_name"}).
		AddRow("sec-1", "A", "c-1", "lec-1", "term-1", nil, 40, 40, day, start, end, now, now, "IF101", "Algoritma", 3, 1, "Dr. Sari", nil)
	mock.ExpectQuery(regexp.QuoteMeta(sectionAvailableQuery)).
		WithArgs("term-1", "stu-1").
		WillReturnRows(rows)

	sections, err := repo.ListAvailable(context.Background(), "term-1", "stu-1")
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "IF101", sections[0].CourseCode)
	assert.Zero(t, sections[0].RemainingSeats())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentFindByUserID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	now := time.Now()
	query := studentSelect + ` WHERE s.user_id = $1`
	mock.ExpectQuery(regexp.QuoteMeta(query)).
		WithArgs("user-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "nim", "name", "program_id", "program_name", "cohort_year", "current_semester", "status", "advisor_id", "advisor_name", "created_at", "updated_at"}).
			AddRow("stu-1", "user-1", "2201001", "Budi", "prog-1", "Informatika", 2022, 5, "active", "lec-1", "Dr. Sari", now, now))

	student, err := repo.FindByUserID(context.Background(), "user-1")
	require.NoError(t, err)
	assert.Equal(t, "2201001", student.NIM)
	assert.Equal(t, models.StudentActive, student.Status)
	require.NotNil(t, student.AdvisorID)
	assert.Equal(t, "lec-1", *student.AdvisorID)
}
