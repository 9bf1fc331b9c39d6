package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteIdent(t *testing.T) {
	assert.Equal(t, `"users"`, QuoteIdent("users"))
	assert.Equal(t, `"we""ird"`, QuoteIdent(`we"ird`))
	assert.Equal(t, "`users`", QuoteIdentMySQL("users"))
	assert.Equal(t, "`we``ird`", QuoteIdentMySQL("we`ird"))
}

func TestSanitizeIdentifier(t *testing.T) {
	assert.Equal(t, "__sqlmodel_old_a_type_x", SanitizeIdentifier("__sqlmodel_old_a_type_x"))
	assert.Equal(t, "my_table_1", SanitizeIdentifier("my-table.1"))
	assert.Equal(t, "a__b", SanitizeIdentifier("a !b"))
}

func TestValidSavepointName(t *testing.T) {
	assert.True(t, ValidSavepointName("sp_1"))
	assert.True(t, ValidSavepointName("_x"))
	assert.False(t, ValidSavepointName(""))
	assert.False(t, ValidSavepointName("1abc"))
	assert.False(t, ValidSavepointName("has space"))
	assert.False(t, ValidSavepointName("drop';--"))
	assert.False(t, ValidSavepointName(strings.Repeat("a", 64)))
	assert.True(t, ValidSavepointName(strings.Repeat("a", 63)))
}

func TestCheckSavepointName(t *testing.T) {
	assert.NoError(t, CheckSavepointName("sp_1"))
	err := CheckSavepointName("bad name")
	assert.Error(t, err)
	assert.Equal(t, KindQuerySyntax, KindOf(err))
}
