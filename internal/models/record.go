package models

// ScheduleDay groups the sections meeting on one weekday.
type ScheduleDay struct {
	Day     int                    `json:"day"`
	DayName string                 `json:"day_name"`
	Entries []EnrollmentLineDetail `json:"entries"`
}

// ScheduleView is a student's weekly timetable for a term.
type ScheduleView struct {
	Term        *AcademicTerm          `json:"term"`
	Days        []ScheduleDay          `json:"days"`
	Unscheduled []EnrollmentLineDetail `json:"unscheduled"`
}

// KHSView is the term study result card (Kartu Hasil Studi).
type KHSView struct {
	Student       *Student       `json:"student"`
	Term          *AcademicTerm  `json:"term"`
	Courses       []GradedCourse `json:"courses"`
	TermGPA       GPAResult      `json:"ips"`
	CumulativeGPA GPAResult      `json:"ipk"`
}

// TranscriptTerm is one term block of a transcript.
type TranscriptTerm struct {
	TermID    string         `json:"term_id"`
	YearLabel string         `json:"year_label"`
	TermName  TermName       `json:"term_name"`
	Courses   []GradedCourse `json:"courses"`
	TermGPA   GPAResult      `json:"ips"`
}

// TranscriptView is the full academic record, newest term first.
type TranscriptView struct {
	Student       *Student         `json:"student"`
	Terms         []TranscriptTerm `json:"terms"`
	CumulativeGPA GPAResult        `json:"ipk"`
	TotalCredits  int              `json:"total_credits"`
	CourseCount   int              `json:"course_count"`
}

// AttendanceView is the attendance record of a term.
type AttendanceView struct {
	Term *AcademicTerm `json:"term"`
	TermAttendance
}

// ExportFile is a rendered document ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Content     []byte
}
