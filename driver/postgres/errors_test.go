package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sqlmodel/sqlmodel-go/core"
	"github.com/sqlmodel/sqlmodel-go/driver/postgres/protocol"
)

func TestClassifyState(t *testing.T) {
	cases := []struct {
		code string
		kind core.ErrorKind
	}{
		{"40001", core.KindQuerySerialization},
		{"57014", core.KindQueryCancelled},
		{"08006", core.KindConnectionConnect},
		{"28P01", core.KindConnectionAuthentication},
		{"42601", core.KindQuerySyntax},
		{"42P01", core.KindQuerySyntax},
		{"23505", core.KindQueryConstraint},
		{"23503", core.KindQueryConstraint},
		{"40P01", core.KindQueryDeadlock},
		{"57P03", core.KindQueryTimeout},
		{"P0001", core.KindQueryDatabase},
		{"", core.KindQueryDatabase},
	}
	for _, c := range cases {
		assert.Equal(t, c.kind, classifyState(c.code), "code %q", c.code)
	}
}

func TestErrorFromFields(t *testing.T) {
	e := errorFromFields(protocol.ErrorFields{
		Severity: "ERROR",
		Code:     "23505",
		Message:  "duplicate key value violates unique constraint",
		Detail:   "Key (name)=(x) already exists.",
		Hint:     "try another name",
		Position: 12,
	})
	assert.Equal(t, core.KindQueryConstraint, e.Kind)
	assert.Equal(t, "23505", e.Code)
	assert.Equal(t, "Key (name)=(x) already exists.", e.Detail)
	assert.Equal(t, "try another name", e.Hint)
	assert.Equal(t, 12, e.Position)
	assert.Contains(t, e.Error(), "[23505]")
}
