package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTypeOf(t *testing.T) {
	assert.Equal(t, ErrorTypeInvalidMarket, TypeOf(InvalidMarket("bad spot")))
	assert.Equal(t, ErrorTypeNonConvergence, TypeOf(NonConvergence("no root")))
	assert.Equal(t, ErrorTypeNotFound, TypeOf(NotFound("missing")))
	assert.Equal(t, ErrorTypeInternal, TypeOf(Internal("boom")))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(New("plain")))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(fmt.Errorf("stdlib")))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(nil))
}

func TestIsInvalidMarket(t *testing.T) {
	assert.True(t, IsInvalidMarket(InvalidMarketf("rate %v out of band", 0.9)))
	assert.False(t, IsInvalidMarket(Internal("boom")))
	assert.False(t, IsInvalidMarket(nil))
}

func TestWrap_PreservesType(t *testing.T) {
	cause := InvalidMarket("strike must be positive")
	wrapped := Wrap(cause, "pricing failed")

	require.Error(t, wrapped)
	assert.True(t, IsInvalidMarket(wrapped), "wrapping must not lose the classification")
	assert.Equal(t, "pricing failed: strike must be positive", wrapped.Error())
}

func TestWrap_ThroughMultipleLayers(t *testing.T) {
	wrapped := Wrapf(Wrap(NotFound("no such chain"), "load failed"), "request %d", 7)
	assert.Equal(t, ErrorTypeNotFound, TypeOf(wrapped))
	assert.Contains(t, wrapped.Error(), "request 7")
}

func TestWrap_Nil(t *testing.T) {
	assert.NoError(t, Wrap(nil, "ignored"))
}

func TestAppError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("io failure")
	wrapped := Wrap(cause, "snapshot")

	appErr, ok := wrapped.(*AppError)
	require.True(t, ok)
	assert.Equal(t, cause, appErr.Unwrap())
}
