package mysql

import (
	"context"
	"errors"
	"strconv"

	"github.com/go-sql-driver/mysql"

	"github.com/sqlmodel/sqlmodel-go/core"
)

// classifyNumber maps a MySQL server error number onto the shared taxonomy.
// The original number is retained verbatim in Code.
func classifyNumber(number uint16) core.ErrorKind {
	switch number {
	case 1044, 1045, 1698: // access denied
		return core.KindConnectionAuthentication
	case 1040, 1203: // too many connections
		return core.KindConnectionConnect
	case 1064, 1054, 1146, 1149: // parse errors, unknown column/table
		return core.KindQuerySyntax
	case 1022, 1048, 1062, 1169, 1216, 1217, 1451, 1452, 1557, 3819:
		return core.KindQueryConstraint
	case 1213: // deadlock found
		return core.KindQueryDeadlock
	case 1205: // lock wait timeout
		return core.KindQueryTimeout
	case 1317, 3024: // query interrupted / max execution time
		return core.KindQueryCancelled
	default:
		return core.KindQueryDatabase
	}
}

// mapError converts a go-sql-driver error into a core.Error.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var coreErr *core.Error
	if errors.As(err, &coreErr) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return core.Cancelled(err)
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return &core.Error{
			Kind:    classifyNumber(myErr.Number),
			Code:    strconv.Itoa(int(myErr.Number)),
			Message: myErr.Message,
			Cause:   err,
		}
	}
	switch {
	case errors.Is(err, mysql.ErrInvalidConn), errors.Is(err, mysql.ErrBusyBuffer):
		return core.WrapError(core.KindConnectionDisconnected, err.Error(), err)
	default:
		return core.WrapError(core.KindQueryDatabase, err.Error(), err)
	}
}
