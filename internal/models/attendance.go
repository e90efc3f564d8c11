package models

import "time"

// AttendanceStatus is the mark recorded for a student at a meeting.
type AttendanceStatus string

const (
	AttendancePresent AttendanceStatus = "present"
	AttendanceExcused AttendanceStatus = "excused"
	AttendanceSick    AttendanceStatus = "sick"
	AttendanceAbsent  AttendanceStatus = "absent"
)

// MeetingAttendance is one meeting of a section and the student's mark, if any.
type MeetingAttendance struct {
	MeetingID      string            `db:"meeting_id" json:"meeting_id"`
	SectionID      string            `db:"section_id" json:"section_id"`
	SequenceNumber int               `db:"sequence_number" json:"sequence_number"`
	HeldOn         time.Time         `db:"held_on" json:"held_on"`
	Topic          *string           `db:"topic" json:"topic,omitempty"`
	Status         *AttendanceStatus `db:"status" json:"status,omitempty"`
}

// AttendanceSummary counts a student's marks over a set of meetings.
type AttendanceSummary struct {
	Total             int  `json:"total"`
	Present           int  `json:"present"`
	Excused           int  `json:"excused"`
	Sick              int  `json:"sick"`
	Absent            int  `json:"absent"`
	Unrecorded        int  `json:"unrecorded"`
	PresentPercentage int  `json:"present_percentage"`
	NoData            bool `json:"no_data"`
	LowAttendance     bool `json:"low_attendance"`
}

// SectionAttendance is the rollup of one section with its meetings.
type SectionAttendance struct {
	SectionID   string `json:"section_id"`
	SectionCode string `json:"section_code,omitempty"`
	CourseCode  string `json:"course_code,omitempty"`
	CourseName  string `json:"course_name,omitempty"`
	AttendanceSummary
	Meetings []MeetingAttendance `json:"meetings"`
}

// TermAttendance rolls every section on the student's enrollment for a term.
type TermAttendance struct {
	TermID   string              `json:"term_id"`
	Sections []SectionAttendance `json:"sections"`
}
