package repository

import (
	"errors"

	"github.com/lib/pq"
)

// Sentinel errors returned by the enrollment transactions. Services translate
// them into API errors.
var (
	ErrEnrollmentLocked   = errors.New("enrollment is not in draft")
	ErrSectionUnavailable = errors.New("section not offered in term")
	ErrDuplicateLine      = errors.New("section already on enrollment")
	ErrSectionFull        = errors.New("section at capacity")
	ErrNoLines            = errors.New("enrollment has no lines")
	ErrStatusConflict     = errors.New("status transition not allowed")
	ErrLineNotFound       = errors.New("enrollment line not found")
)

const (
	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	pqCheckViolation      = "23514"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint failure.
func IsUniqueViolation(err error) bool {
	return pqCode(err) == pqUniqueViolation
}

// IsForeignKeyViolation reports whether err references a missing parent row.
func IsForeignKeyViolation(err error) bool {
	return pqCode(err) == pqForeignKeyViolation
}

// IsCheckViolation reports whether err is a CHECK constraint failure.
func IsCheckViolation(err error) bool {
	return pqCode(err) == pqCheckViolation
}
