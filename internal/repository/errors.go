// Package repository is the MySQL-backed schedule store. Repositories map
// rows to model types; Store groups them and runs transactional work. Not
// found conditions are reported with sentinels that wrap
// apperr.ErrNotFound so handlers can match either.
package repository

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/podium-scheduler/internal/apperr"
)

var (
	ErrSessionTypeNotFound = fmt.Errorf("session type %w", apperr.ErrNotFound)
	ErrSlotNotFound        = fmt.Errorf("slot %w", apperr.ErrNotFound)
	ErrBookingNotFound     = fmt.Errorf("booking %w", apperr.ErrNotFound)
	ErrChildNotFound       = fmt.Errorf("child %w", apperr.ErrNotFound)
	ErrUserNotFound        = fmt.Errorf("user %w", apperr.ErrNotFound)
)

// ErrEmailExists is returned when a user is created with an email already
// in use.
var ErrEmailExists = errors.New("email already exists")

// ER_DUP_ENTRY
const mysqlDuplicateKey = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateKey
}
