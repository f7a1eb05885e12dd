package warehouse

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var ErrNotFound = errors.New("warehouse record not found")

const pgUniqueViolation = "23505"

// IsUniqueViolation recognises a uniqueness conflict from either supported driver.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// IsDataViolation recognises constraint and data errors other than uniqueness:
// not-null, check, foreign key, value too long and friends.
func IsDataViolation(err error) bool {
	if err == nil || IsUniqueViolation(err) {
		return false
	}
	if errors.Is(err, gorm.ErrForeignKeyViolated) || errors.Is(err, gorm.ErrCheckConstraintViolated) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "23") || strings.HasPrefix(pgErr.Code, "22")
	}
	msg := err.Error()
	for _, marker := range []string{
		"NOT NULL constraint failed",
		"CHECK constraint failed",
		"FOREIGN KEY constraint failed",
		"datatype mismatch",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
