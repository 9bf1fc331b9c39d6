package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorRendering(t *testing.T) {
	withCode := &Error{Kind: KindQueryConstraint, Code: "23505", Message: "duplicate key"}
	assert.Equal(t, "query/constraint [23505]: duplicate key", withCode.Error())

	noCode := Errorf(KindQuerySyntax, "near %q", "FORM")
	assert.Equal(t, `query/syntax: near "FORM"`, noCode.Error())
}

func TestErrorUnwrapAndIs(t *testing.T) {
	cause := errors.New("broken pipe")
	err := WrapError(KindConnectionDisconnected, "write failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, &Error{Kind: KindConnectionDisconnected}, "bare kind probe matches")
	assert.NotErrorIs(t, err, &Error{Kind: KindConnectionConnect})

	// wrapping with %w keeps the classification reachable
	wrapped := fmt.Errorf("while pinging: %w", err)
	assert.Equal(t, KindConnectionDisconnected, KindOf(wrapped))
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, KindQueryDatabase, KindOf(errors.New("unclassified")))
}

func TestIsCancelled(t *testing.T) {
	assert.True(t, IsCancelled(context.Canceled))
	assert.True(t, IsCancelled(Cancelled(context.Canceled)))
	assert.False(t, IsCancelled(context.DeadlineExceeded),
		"deadline is a timeout, not a cancellation")
	assert.False(t, IsCancelled(Errorf(KindQueryTimeout, "statement timeout")))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Errorf(KindQuerySerialization, "could not serialize access")))
	assert.True(t, IsRetryable(Errorf(KindQueryDeadlock, "deadlock detected")))
	assert.False(t, IsRetryable(Errorf(KindQueryConstraint, "duplicate key")))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestKindFamilies(t *testing.T) {
	assert.True(t, KindConnectionSsl.IsConnection())
	assert.True(t, KindQueryDatabase.IsQuery())
	assert.True(t, KindPoolConfig.IsPool())
	assert.False(t, KindProtocol.IsConnection())
	assert.False(t, KindProtocol.IsQuery())
	assert.False(t, KindProtocol.IsPool())
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "pool/exhausted", KindPoolExhausted.String())
	assert.Equal(t, "ErrorKind(99)", ErrorKind(99).String())
}

func TestValidationErrorAggregation(t *testing.T) {
	single := &ValidationError{Model: "hero", Fields: []FieldValidationError{
		{Field: "name", Message: "field required"},
	}}
	assert.Equal(t, "validation failed for hero: name: field required", single.Error())

	multi := &ValidationError{Model: "hero", Fields: []FieldValidationError{
		{Field: "name", Message: "field required"},
		{Field: "age", Message: "expected integer"},
	}}
	assert.Equal(t, "validation failed for hero: 2 invalid fields", multi.Error())

	err := multi.AsError()
	assert.Equal(t, KindValidation, err.Kind)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve.Fields, 2)
}
