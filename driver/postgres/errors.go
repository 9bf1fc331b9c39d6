package postgres

import (
	"strings"

	"github.com/sqlmodel/sqlmodel-go/core"
	"github.com/sqlmodel/sqlmodel-go/driver/postgres/protocol"
)

// classifyState maps a SQLSTATE code onto the shared error taxonomy.
// Classification goes by class prefix with a few exact-code carve-outs.
func classifyState(code string) core.ErrorKind {
	switch code {
	case "40001":
		return core.KindQuerySerialization
	case "57014":
		return core.KindQueryCancelled
	}
	switch {
	case strings.HasPrefix(code, "08"):
		return core.KindConnectionConnect
	case strings.HasPrefix(code, "28"):
		return core.KindConnectionAuthentication
	case strings.HasPrefix(code, "42"):
		return core.KindQuerySyntax
	case strings.HasPrefix(code, "23"):
		return core.KindQueryConstraint
	case strings.HasPrefix(code, "40"):
		return core.KindQueryDeadlock
	case strings.HasPrefix(code, "57"):
		return core.KindQueryTimeout
	default:
		return core.KindQueryDatabase
	}
}

// errorFromFields builds a core.Error from a decoded ErrorResponse.
func errorFromFields(f protocol.ErrorFields) *core.Error {
	return &core.Error{
		Kind:     classifyState(f.Code),
		Code:     f.Code,
		Message:  f.Message,
		Detail:   f.Detail,
		Hint:     f.Hint,
		Position: f.Position,
	}
}
