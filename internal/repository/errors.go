package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when no record matches the requested id,
	// including ids the store cannot parse.
	ErrNotFound = errors.New("record not found")
	// ErrVersionConflict is returned by Save when the stored post changed
	// since it was read.
	ErrVersionConflict = errors.New("version conflict")
)

const pgUniqueViolation = "23505"

// isUniqueViolation reports whether err came from a unique index, either
// translated by gorm or raw from the postgres driver.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
