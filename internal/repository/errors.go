// Package repository defines the MySQL-backed stores used by the service
// layer together with the sentinel errors they share. Handlers never see
// these values directly; the service layer translates them into its own
// error kinds.
package repository

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// ErrNotFound is returned when the requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a conditional write lost to a concurrent
// writer or MySQL aborted the transaction with a deadlock or lock wait
// timeout. Callers may retry the whole operation.
var ErrConflict = errors.New("conflict")

// ErrDuplicate is returned when an insert violates a unique key.
var ErrDuplicate = errors.New("duplicate")

// ErrNotPending is returned when a review targets an access request that
// has already been reviewed.
var ErrNotPending = errors.New("request is not pending")

// MySQL server error numbers that are mapped onto the sentinels above.
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// translate maps driver errors onto the package sentinels. Errors that have
// no sentinel are returned unchanged.
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		switch me.Number {
		case mysqlDeadlock, mysqlLockWaitTimeout:
			return fmt.Errorf("%w: %v", ErrConflict, err)
		case mysqlDuplicateEntry:
			return fmt.Errorf("%w: %v", ErrDuplicate, err)
		}
	}
	return err
}
