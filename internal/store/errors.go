// Package store persists catalog products, invoices and users through gorm.
package store

import (
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"gorm.io/gorm"
)

var (
	// ErrNotFound is returned when the addressed record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicateKey is returned when a unique constraint rejects a write.
	ErrDuplicateKey = errors.New("duplicate key")
)

const pgUniqueViolation = "23505"

// translate maps driver errors onto the package sentinels, keeping the
// driver message for diagnostics.
func translate(err error, op string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return errors.Wrap(ErrNotFound, op)
	case IsUniqueViolation(err):
		return errors.Wrapf(ErrDuplicateKey, "%s: %v", op, err)
	default:
		return errors.Wrap(err, op)
	}
}

// IsUniqueViolation reports whether err comes from a unique index rejection,
// whichever driver produced it.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, ErrDuplicateKey) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique constraint")
}

// likePattern builds a lower-cased substring pattern for LIKE ... ESCAPE '\'.
func likePattern(q string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(strings.TrimSpace(q))) + "%"
}
