package datastore

import (
	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"gorm.io/gorm"

	"github.com/nutrisnap/nutrisnap/internal/errors"
)

// Sentinel errors of the datastore. They match by category, so any error
// built with the same category satisfies errors.Is.
var (
	// ErrPersistence is returned when a write could not be committed.
	ErrPersistence = errors.Sentinel(errors.CategoryDatabase, "persistence failure")
	// ErrProfileNotFound is returned when no nutrition profile exists for a key.
	ErrProfileNotFound = errors.Sentinel(errors.CategoryNotFound, "nutrition profile not found")
	// ErrNotOpen is returned by operations on a store whose Open has not succeeded.
	ErrNotOpen = errors.NewStd("database connection is not initialized")
)

// dbError creates a categorized database error with operation context
func dbError(err error, operation string, kv ...any) error {
	builder := errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", operation)

	if isConstraintViolation(err) {
		builder = builder.Context("constraint_violation", true)
	}
	for i := 0; i+1 < len(kv); i += 2 {
		if key, ok := kv[i].(string); ok {
			builder = builder.Context(key, kv[i+1])
		}
	}
	return builder.Build()
}

// isConstraintViolation recognizes unique and foreign key violations of both drivers
func isConstraintViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) || errors.Is(err, gorm.ErrForeignKeyViolated) {
		return true
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}

	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1062, 1451, 1452: // duplicate entry, parent row referenced, child row without parent
			return true
		}
	}
	return false
}
