package models

import "time"

// StudyProgram is a degree program (program studi).
type StudyProgram struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Level     string    `db:"level" json:"level"`
	Faculty   string    `db:"faculty" json:"faculty"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Lecturer teaches sections and advises students.
type Lecturer struct {
	ID             string    `db:"id" json:"id"`
	UserID         *string   `db:"user_id" json:"user_id,omitempty"`
	EmployeeNumber string    `db:"employee_number" json:"employee_number"`
	Name           string    `db:"name" json:"name"`
	Email          string    `db:"email" json:"email"`
	Status         string    `db:"status" json:"status"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// Room is a physical classroom.
type Room struct {
	ID        string    `db:"id" json:"id"`
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Building  string    `db:"building" json:"building"`
	Floor     int       `db:"floor" json:"floor"`
	Capacity  int       `db:"capacity" json:"capacity"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CourseKind distinguishes required from elective courses.
type CourseKind string

const (
	CourseRequired CourseKind = "required"
	CourseElective CourseKind = "elective"
)

// Course is a catalog entry (mata kuliah).
type Course struct {
	ID             string     `db:"id" json:"id"`
	Code           string     `db:"code" json:"code"`
	Name           string     `db:"name" json:"name"`
	CreditHours    int        `db:"credit_hours" json:"credit_hours"`
	SemesterNumber int        `db:"semester_number" json:"semester_number"`
	Kind           CourseKind `db:"kind" json:"kind"`
	ProgramID      string     `db:"program_id" json:"program_id"`
	Description    *string    `db:"description" json:"description,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// CourseFilter captures list filters for courses.
type CourseFilter struct {
	ProgramID      string
	SemesterNumber int
	Kind           CourseKind
	Search         string
	Page           int
	PageSize       int
	SortBy         string
	SortOrder      string
}

// CourseSection is an offering of a course in a term (kelas).
type CourseSection struct {
	ID           string    `db:"id" json:"id"`
	SectionCode  string    `db:"section_code" json:"section_code"`
	CourseID     string    `db:"course_id" json:"course_id"`
	InstructorID string    `db:"instructor_id" json:"instructor_id"`
	TermID       string    `db:"term_id" json:"term_id"`
	RoomID       *string   `db:"room_id" json:"room_id,omitempty"`
	Capacity     int       `db:"capacity" json:"capacity"`
	SeatsFilled  int       `db:"seats_filled" json:"seats_filled"`
	DayOfWeek    *int      `db:"day_of_week" json:"day_of_week,omitempty"`
	StartTime    *string   `db:"start_time" json:"start_time,omitempty"`
	EndTime      *string   `db:"end_time" json:"end_time,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// RemainingSeats never reports a negative number.
func (s CourseSection) RemainingSeats() int {
	if s.SeatsFilled >= s.Capacity {
		return 0
	}
	return s.Capacity - s.SeatsFilled
}

// SectionDetail joins a section with its course, lecturer and room.
type SectionDetail struct {
	CourseSection
	CourseCode     string  `db:"course_code" json:"course_code"`
	CourseName     string  `db:"course_name" json:"course_name"`
	CreditHours    int     `db:"credit_hours" json:"credit_hours"`
	SemesterNumber int     `db:"semester_number" json:"semester_number"`
	InstructorName string  `db:"instructor_name" json:"instructor_name"`
	RoomName       *string `db:"room_name" json:"room_name,omitempty"`
}

// SectionFilter captures list filters for sections.
type SectionFilter struct {
	TermID       string
	CourseID     string
	InstructorID string
	Page         int
	PageSize     int
}
