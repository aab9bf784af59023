package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindSurvivesWrapping(t *testing.T) {
	base := Transport("mirror down", errors.New("dial tcp: refused"))
	wrapped := fmt.Errorf("search: %w", base)

	assert.True(t, IsKind(wrapped, KindTransport))
	assert.False(t, IsKind(wrapped, KindUsage))
	assert.Equal(t, KindTransport, KindOf(wrapped))
}

func TestCodeAndMessage(t *testing.T) {
	err := NotConfigured()
	assert.Equal(t, "NOT_CONFIGURED", err.Code())
	assert.Equal(t, "please run /setup first", err.Message())

	cause := errors.New("401")
	v := Validation("login rejected", cause)
	assert.Equal(t, "login rejected: 401", v.Error())
	assert.Equal(t, "login rejected", v.Message())
	assert.ErrorIs(t, v, cause)
}

func TestKindOfForeignError(t *testing.T) {
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
	assert.False(t, IsKind(nil, KindTimeout))
}
