package sqlite

import (
	"context"
	"errors"
	"strconv"
	"strings"

	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/sqlmodel/sqlmodel-go/core"
)

// classifyCode maps a SQLite result code onto the shared taxonomy. The
// numeric code is retained verbatim in Code.
func classifyCode(err sqlite3.Error) core.ErrorKind {
	switch err.Code {
	case sqlite3.ErrConstraint:
		return core.KindQueryConstraint
	case sqlite3.ErrBusy:
		return core.KindQueryTimeout
	case sqlite3.ErrLocked:
		return core.KindQueryDeadlock
	case sqlite3.ErrInterrupt:
		return core.KindQueryCancelled
	case sqlite3.ErrAuth, sqlite3.ErrPerm:
		return core.KindConnectionAuthentication
	case sqlite3.ErrCantOpen, sqlite3.ErrNotADB:
		return core.KindConnectionConnect
	case sqlite3.ErrError:
		// code 1 covers parse errors among other generic failures
		if strings.Contains(err.Error(), "syntax error") ||
			strings.Contains(err.Error(), "no such") {
			return core.KindQuerySyntax
		}
		return core.KindQueryDatabase
	default:
		return core.KindQueryDatabase
	}
}

// mapError converts a go-sqlite3 error into a core.Error.
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
	var sqErr sqlite3.Error
	if errors.As(err, &sqErr) {
		code := int(sqErr.Code)
		if sqErr.ExtendedCode != 0 {
			code = int(sqErr.ExtendedCode)
		}
		return &core.Error{
			Kind:    classifyCode(sqErr),
			Code:    strconv.Itoa(code),
			Message: sqErr.Error(),
			Cause:   err,
		}
	}
	return core.WrapError(core.KindQueryDatabase, err.Error(), err)
}
