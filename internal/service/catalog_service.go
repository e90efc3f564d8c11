package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/siakad-api/internal/models"
	"github.com/noah-isme/siakad-api/internal/repository"
	appErrors "github.com/noah-isme/siakad-api/pkg/errors"
)

var clockPattern = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

type courseRepository interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, int, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	ExistsByCode(ctx context.Context, code, excludeID string) (bool, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
	CountSections(ctx context.Context, id string) (int, error)
}

type sectionRepository interface {
	List(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.SectionDetail, error)
	ListAvailable(ctx context.Context, termID, studentID string) ([]models.SectionDetail, error)
	Create(ctx context.Context, section *models.CourseSection) error
}

type programRepository interface {
	List(ctx context.Context, activeOnly bool) ([]models.StudyProgram, error)
	FindByID(ctx context.Context, id string) (*models.StudyProgram, error)
	Create(ctx context.Context, program *models.StudyProgram) error
}

type roomRepository interface {
	List(ctx context.Context, activeOnly bool) ([]models.Room, error)
	FindByID(ctx context.Context, id string) (*models.Room, error)
	Create(ctx context.Context, room *models.Room) error
}

type lecturerRepository interface {
	List(ctx context.Context, search string, page, size int) ([]models.Lecturer, int, error)
	FindByID(ctx context.Context, id string) (*models.Lecturer, error)
	FindByUserID(ctx context.Context, userID string) (*models.Lecturer, error)
	Create(ctx context.Context, lecturer *models.Lecturer) error
}

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	FindByUserID(ctx context.Context, userID string) (*models.Student, error)
	Create(ctx context.Context, student *models.Student) error
	Update(ctx context.Context, student *models.Student) error
}

// CatalogRepositories groups the master data stores.
type CatalogRepositories struct {
	Programs  programRepository
	Rooms     roomRepository
	Lecturers lecturerRepository
	Courses   courseRepository
	Sections  sectionRepository
	Students  studentRepository
}

// CreateProgramRequest is the payload for a study program.
type CreateProgramRequest struct {
	Code    string `json:"code" validate:"required,max=20"`
	Name    string `json:"name" validate:"required"`
	Level   string `json:"level" validate:"required,oneof=D3 D4 S1 S2 S3"`
	Faculty string `json:"faculty"`
}

// CreateRoomRequest is the payload for a room.
type CreateRoomRequest struct {
	Code     string `json:"code" validate:"required,max=20"`
	Name     string `json:"name" validate:"required"`
	Building string `json:"building"`
	Floor    int    `json:"floor" validate:"gte=0"`
	Capacity int    `json:"capacity" validate:"required,gt=0"`
}

// CreateLecturerRequest is the payload for a lecturer (dosen).
type CreateLecturerRequest struct {
	UserID         *string `json:"user_id" validate:"omitempty,uuid"`
	EmployeeNumber string  `json:"employee_number" validate:"required"`
	Name           string  `json:"name" validate:"required"`
	Email          string  `json:"email" validate:"omitempty,email"`
}

// CourseRequest is the payload for creating or updating a course.
type CourseRequest struct {
	Code           string            `json:"code" validate:"required,max=20"`
	Name           string            `json:"name" validate:"required"`
	CreditHours    int               `json:"credit_hours" validate:"required,gt=0,lte=24"`
	SemesterNumber int               `json:"semester_number" validate:"required,gte=1,lte=14"`
	Kind           models.CourseKind `json:"kind" validate:"omitempty,oneof=required elective"`
	ProgramID      string            `json:"program_id" validate:"required"`
	Description    *string           `json:"description"`
}

// CreateSectionRequest is the payload for a course section.
type CreateSectionRequest struct {
	SectionCode  string  `json:"section_code" validate:"required,max=10"`
	CourseID     string  `json:"course_id" validate:"required"`
	InstructorID string  `json:"instructor_id" validate:"required"`
	TermID       string  `json:"term_id" validate:"required"`
	RoomID       *string `json:"room_id"`
	Capacity     int     `json:"capacity" validate:"required,gt=0"`
	DayOfWeek    *int    `json:"day_of_week" validate:"omitempty,gte=1,lte=7"`
	StartTime    *string `json:"start_time"`
	EndTime      *string `json:"end_time"`
}

// CreateStudentRequest is the payload for a student.
type CreateStudentRequest struct {
	UserID          *string `json:"user_id" validate:"omitempty,uuid"`
	NIM             string  `json:"nim" validate:"required,max=20"`
	Name            string  `json:"name" validate:"required"`
	ProgramID       string  `json:"program_id" validate:"required"`
	CohortYear      int     `json:"cohort_year" validate:"required,gte=1950"`
	CurrentSemester int     `json:"current_semester" validate:"omitempty,gte=1"`
	AdvisorID       *string `json:"advisor_id"`
}

// CatalogService manages master data: programs, rooms, lecturers, courses,
// sections and students.
type CatalogService struct {
	repos     CatalogRepositories
	terms     termRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(repos CatalogRepositories, terms termRepository, validate *validator.Validate, logger *zap.Logger) *CatalogService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{repos: repos, terms: terms, validator: validate, logger: logger}
}

// ListPrograms returns study programs.
func (s *CatalogService) ListPrograms(ctx context.Context, activeOnly bool) ([]models.StudyProgram, error) {
	programs, err := s.repos.Programs.List(ctx, activeOnly)
	if err != nil {
		return nil, internalError(s.logger, "failed to list programs", err)
	}
	return programs, nil
}

// CreateProgram adds a study program.
func (s *CatalogService) CreateProgram(ctx context.Context, req CreateProgramRequest) (*models.StudyProgram, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid program payload")
	}
	program := &models.StudyProgram{
		Code:     strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:     strings.TrimSpace(req.Name),
		Level:    req.Level,
		Faculty:  req.Faculty,
		IsActive: true,
	}
	if err := s.repos.Programs.Create(ctx, program); err != nil {
		return nil, s.writeError("failed to create program", "program code already exists", err)
	}
	return program, nil
}

// ListRooms returns rooms.
func (s *CatalogService) ListRooms(ctx context.Context, activeOnly bool) ([]models.Room, error) {
	rooms, err := s.repos.Rooms.List(ctx, activeOnly)
	if err != nil {
		return nil, internalError(s.logger, "failed to list rooms", err)
	}
	return rooms, nil
}

// CreateRoom adds a room.
func (s *CatalogService) CreateRoom(ctx context.Context, req CreateRoomRequest) (*models.Room, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid room payload")
	}
	room := &models.Room{
		Code:     strings.ToUpper(strings.TrimSpace(req.Code)),
		Name:     strings.TrimSpace(req.Name),
		Building: req.Building,
		Floor:    req.Floor,
		Capacity: req.Capacity,
		IsActive: true,
	}
	if err := s.repos.Rooms.Create(ctx, room); err != nil {
		return nil, s.writeError("failed to create room", "room code already exists", err)
	}
	return room, nil
}

// ListLecturers returns lecturers matching search.
func (s *CatalogService) ListLecturers(ctx context.Context, search string, page, size int) ([]models.Lecturer, *models.Pagination, error) {
	lecturers, total, err := s.repos.Lecturers.List(ctx, search, page, size)
	if err != nil {
		return nil, nil, internalError(s.logger, "failed to list lecturers", err)
	}
	return lecturers, models.NewPagination(page, size, total), nil
}

// CreateLecturer adds a lecturer.
func (s *CatalogService) CreateLecturer(ctx context.Context, req CreateLecturerRequest) (*models.Lecturer, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid lecturer payload")
	}
	lecturer := &models.Lecturer{
		UserID:         req.UserID,
		EmployeeNumber: strings.TrimSpace(req.EmployeeNumber),
		Name:           strings.TrimSpace(req.Name),
		Email:          req.Email,
		Status:         "active",
	}
	if err := s.repos.Lecturers.Create(ctx, lecturer); err != nil {
		return nil, s.writeError("failed to create lecturer", "employee number already exists", err)
	}
	return lecturer, nil
}

// ListCourses returns courses with pagination.
func (s *CatalogService) ListCourses(ctx context.Context, filter models.CourseFilter) ([]models.Course, *models.Pagination, error) {
	courses, total, err := s.repos.Courses.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(s.logger, "failed to list courses", err)
	}
	return courses, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// GetCourse returns a course.
func (s *CatalogService) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	course, err := s.repos.Courses.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "course not found")
		}
		return nil, internalError(s.logger, "failed to load course", err)
	}
	return course, nil
}

// CreateCourse adds a course with a unique code.
func (s *CatalogService) CreateCourse(ctx context.Context, req CourseRequest) (*models.Course, error) {
	course, err := s.courseFromRequest(ctx, req, "")
	if err != nil {
		return nil, err
	}
	if err := s.repos.Courses.Create(ctx, course); err != nil {
		return nil, s.writeError("failed to create course", "course code already exists", err)
	}
	return course, nil
}

// UpdateCourse replaces a course's fields.
func (s *CatalogService) UpdateCourse(ctx context.Context, id string, req CourseRequest) (*models.Course, error) {
	existing, err := s.GetCourse(ctx, id)
	if err != nil {
		return nil, err
	}
	course, err := s.courseFromRequest(ctx, req, id)
	if err != nil {
		return nil, err
	}
	course.ID = existing.ID
	course.CreatedAt = existing.CreatedAt
	if err := s.repos.Courses.Update(ctx, course); err != nil {
		return nil, s.writeError("failed to update course", "course code already exists", err)
	}
	return course, nil
}

// DeleteCourse removes a course no section references.
func (s *CatalogService) DeleteCourse(ctx context.Context, id string) error {
	if _, err := s.GetCourse(ctx, id); err != nil {
		return err
	}
	count, err := s.repos.Courses.CountSections(ctx, id)
	if err != nil {
		return internalError(s.logger, "failed to check course sections", err)
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, "course is offered in existing sections")
	}
	if err := s.repos.Courses.Delete(ctx, id); err != nil {
		return internalError(s.logger, "failed to delete course", err)
	}
	return nil
}

func (s *CatalogService) courseFromRequest(ctx context.Context, req CourseRequest, excludeID string) (*models.Course, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid course payload")
	}
	code := strings.ToUpper(strings.TrimSpace(req.Code))
	exists, err := s.repos.Courses.ExistsByCode(ctx, code, excludeID)
	if err != nil {
		return nil, internalError(s.logger, "failed to check course code", err)
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "course code already exists")
	}
	if _, err := s.repos.Programs.FindByID(ctx, req.ProgramID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, "program not found")
		}
		return nil, internalError(s.logger, "failed to load program", err)
	}
	kind := req.Kind
	if kind == "" {
		kind = models.CourseRequired
	}
	return &models.Course{
		Code:           code,
		Name:           strings.TrimSpace(req.Name),
		CreditHours:    req.CreditHours,
		SemesterNumber: req.SemesterNumber,
		Kind:           kind,
		ProgramID:      req.ProgramID,
		Description:    req.Description,
	}, nil
}

// ListSections returns sections with course, lecturer and room detail.
func (s *CatalogService) ListSections(ctx context.Context, filter models.SectionFilter) ([]models.SectionDetail, *models.Pagination, error) {
	sections, total, err := s.repos.Sections.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(s.logger, "failed to list sections", err)
	}
	return sections, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// GetSection returns a section.
func (s *CatalogService) GetSection(ctx context.Context, id string) (*models.SectionDetail, error) {
	section, err := s.repos.Sections.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found")
		}
		return nil, internalError(s.logger, "failed to load section", err)
	}
	return section, nil
}

// CreateSection opens a section of a course in a term.
func (s *CatalogService) CreateSection(ctx context.Context, req CreateSectionRequest) (*models.SectionDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid section payload")
	}
	if err := validateMeetingTime(req.DayOfWeek, req.StartTime, req.EndTime); err != nil {
		return nil, err
	}
	if _, err := s.GetCourse(ctx, req.CourseID); err != nil {
		return nil, err
	}
	if err := s.mustExist(ctx, "term", func() error { _, err := s.terms.FindByID(ctx, req.TermID); return err }); err != nil {
		return nil, err
	}
	if err := s.mustExist(ctx, "lecturer", func() error { _, err := s.repos.Lecturers.FindByID(ctx, req.InstructorID); return err }); err != nil {
		return nil, err
	}
	if req.RoomID != nil {
		room, err := s.repos.Rooms.FindByID(ctx, *req.RoomID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrValidation, "room not found")
			}
			return nil, internalError(s.logger, "failed to load room", err)
		}
		if req.Capacity > room.Capacity {
			return nil, appErrors.Clone(appErrors.ErrValidation, "capacity exceeds room capacity")
		}
	}

	section := &models.CourseSection{
		SectionCode:  strings.ToUpper(strings.TrimSpace(req.SectionCode)),
		CourseID:     req.CourseID,
		InstructorID: req.InstructorID,
		TermID:       req.TermID,
		RoomID:       req.RoomID,
		Capacity:     req.Capacity,
		DayOfWeek:    req.DayOfWeek,
		StartTime:    req.StartTime,
		EndTime:      req.EndTime,
	}
	if err := s.repos.Sections.Create(ctx, section); err != nil {
		return nil, s.writeError("failed to create section", "section code already used for this course and term", err)
	}
	return s.GetSection(ctx, section.ID)
}

// ListStudents returns students with pagination.
func (s *CatalogService) ListStudents(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	students, total, err := s.repos.Students.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(s.logger, "failed to list students", err)
	}
	return students, models.NewPagination(filter.Page, filter.PageSize, total), nil
}

// GetStudent returns a student.
func (s *CatalogService) GetStudent(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repos.Students.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, internalError(s.logger, "failed to load student", err)
	}
	return student, nil
}

// GetStudentByUser returns the student linked to a user account.
func (s *CatalogService) GetStudentByUser(ctx context.Context, userID string) (*models.Student, error) {
	student, err := s.repos.Students.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "account is not linked to a student")
		}
		return nil, internalError(s.logger, "failed to load student", err)
	}
	return student, nil
}

// CreateStudent registers a student.
func (s *CatalogService) CreateStudent(ctx context.Context, req CreateStudentRequest) (*models.Student, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid student payload")
	}
	if err := s.mustExist(ctx, "program", func() error { _, err := s.repos.Programs.FindByID(ctx, req.ProgramID); return err }); err != nil {
		return nil, err
	}
	if req.AdvisorID != nil {
		if err := s.mustExist(ctx, "advisor", func() error { _, err := s.repos.Lecturers.FindByID(ctx, *req.AdvisorID); return err }); err != nil {
			return nil, err
		}
	}
	semester := req.CurrentSemester
	if semester == 0 {
		semester = 1
	}
	student := &models.Student{
		UserID:          req.UserID,
		NIM:             strings.TrimSpace(req.NIM),
		Name:            strings.TrimSpace(req.Name),
		ProgramID:       req.ProgramID,
		CohortYear:      req.CohortYear,
		CurrentSemester: semester,
		Status:          models.StudentActive,
		AdvisorID:       req.AdvisorID,
	}
	if err := s.repos.Students.Create(ctx, student); err != nil {
		return nil, s.writeError("failed to create student", "NIM or user already registered", err)
	}
	return s.GetStudent(ctx, student.ID)
}

func (s *CatalogService) mustExist(ctx context.Context, what string, find func() error) error {
	if err := find(); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrValidation, what+" not found")
		}
		return internalError(s.logger, "failed to load "+what, err)
	}
	return nil
}

func (s *CatalogService) writeError(msg, conflict string, err error) error {
	switch {
	case repository.IsUniqueViolation(err):
		return appErrors.Clone(appErrors.ErrConflict, conflict)
	case repository.IsForeignKeyViolation(err), repository.IsCheckViolation(err):
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "payload violates catalog constraints")
	}
	return internalError(s.logger, msg, err)
}

// validateMeetingTime requires day, start and end together with start < end.
func validateMeetingTime(day *int, start, end *string) error {
	if day == nil && start == nil && end == nil {
		return nil
	}
	if day == nil || start == nil || end == nil {
		return appErrors.Clone(appErrors.ErrValidation, "day_of_week, start_time and end_time must be set together")
	}
	if !clockPattern.MatchString(*start) || !clockPattern.MatchString(*end) {
		return appErrors.Clone(appErrors.ErrValidation, "times must use HH:MM")
	}
	if *start >= *end {
		return appErrors.Clone(appErrors.ErrValidation, "start_time must be before end_time")
	}
	return nil
}
