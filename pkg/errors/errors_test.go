package errors

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorFormatting(t *testing.T) {
	err := New(ErrorTypeConfig, "missing field")
	assert.Equal(t, "config: missing field", err.Error())

	wrapped := Wrap(stderrors.New("eof"), ErrorTypeExtraction, "read failed")
	assert.Equal(t, "extraction: read failed: eof", wrapped.Error())
}

func TestWrapPreservesCauseChain(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := Wrap(cause, ErrorTypeConnection, "request failed")

	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, cause, err.Unwrap())
}

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrorTypeInternal, "nothing"))
}

func TestIsTypeSeesThroughWrapping(t *testing.T) {
	inner := New(ErrorTypeRateLimit, "budget exhausted")
	outer := Wrap(inner, ErrorTypeExtraction, "extract failed")

	assert.True(t, IsType(outer, ErrorTypeExtraction))
	assert.False(t, IsType(outer, ErrorTypeRateLimit), "the outermost type wins")
	assert.False(t, IsType(stderrors.New("plain"), ErrorTypeInternal))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrorTypeRateLimit, "slow down")))
	assert.True(t, IsRetryable(New(ErrorTypeTimeout, "deadline")))
	assert.True(t, IsRetryable(New(ErrorTypeConnection, "refused")))
	assert.False(t, IsRetryable(New(ErrorTypeConfig, "bad key")))
	assert.False(t, IsRetryable(stderrors.New("plain")))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeData, "bad record").
		WithDetail("row", 42).
		WithDetail("source", "api")

	assert.Equal(t, 42, err.Details["row"])
	assert.Equal(t, "api", err.Details["source"])
}

func TestStackIsCaptured(t *testing.T) {
	err := New(ErrorTypeInternal, "boom")
	require.NotEmpty(t, err.Stack)
	assert.Contains(t, err.Stack[0].Function, "TestStackIsCaptured")
}
