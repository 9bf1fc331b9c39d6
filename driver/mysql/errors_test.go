package mysql

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sqlmodel/sqlmodel-go/core"
)

func TestClassifyNumber(t *testing.T) {
	cases := []struct {
		number uint16
		kind   core.ErrorKind
	}{
		{1045, core.KindConnectionAuthentication},
		{1698, core.KindConnectionAuthentication},
		{1040, core.KindConnectionConnect},
		{1064, core.KindQuerySyntax},
		{1146, core.KindQuerySyntax},
		{1062, core.KindQueryConstraint},
		{1452, core.KindQueryConstraint},
		{1213, core.KindQueryDeadlock},
		{1205, core.KindQueryTimeout},
		{1317, core.KindQueryCancelled},
		{3024, core.KindQueryCancelled},
		{1105, core.KindQueryDatabase},
	}
	for _, c := range cases {
		assert.Equal(t, c.kind, classifyNumber(c.number), "number %d", c.number)
	}
}

func TestMapError(t *testing.T) {
	assert.NoError(t, mapError(nil))

	err := mapError(&mysql.MySQLError{Number: 1062, Message: "Duplicate entry 'x'"})
	var e *core.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, core.KindQueryConstraint, e.Kind)
	assert.Equal(t, "1062", e.Code)
	assert.Equal(t, "Duplicate entry 'x'", e.Message)

	err = mapError(context.Canceled)
	assert.Equal(t, core.KindQueryCancelled, core.KindOf(err))

	err = mapError(mysql.ErrInvalidConn)
	assert.Equal(t, core.KindConnectionDisconnected, core.KindOf(err))

	err = mapError(errors.New("something else"))
	assert.Equal(t, core.KindQueryDatabase, core.KindOf(err))
}

func TestMapErrorPassesThrough(t *testing.T) {
	orig := core.Errorf(core.KindPoolExhausted, "no slots")

	// errors already carrying a kind keep it, wrapped or not
	assert.Equal(t, core.KindPoolExhausted, core.KindOf(mapError(orig)))
	assert.Equal(t, core.KindPoolExhausted, core.KindOf(mapError(fmt.Errorf("acquire: %w", orig))))
}
