package errs

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_ErrorString(t *testing.T) {
	e := New(NotFound, "user %s missing", "u1")
	assert.Equal(t, "NotFound: user u1 missing", e.Error())

	wrapped := Wrap(ServiceUnavailable, fmt.Errorf("boom"), "upstream down")
	assert.Equal(t, "ServiceUnavailable: upstream down: boom", wrapped.Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("root cause")
	e := Wrap(Conflict, cause, "conflict")
	assert.Same(t, cause, e.Unwrap())

	plain := New(BadRequest, "bad")
	assert.Nil(t, plain.Unwrap())
}

func TestGetKind(t *testing.T) {
	e := New(QuotaExceeded, "over limit")
	wrapped := fmt.Errorf("context: %w", e)

	k, ok := GetKind(wrapped)
	assert.True(t, ok)
	assert.Equal(t, QuotaExceeded, k)

	_, ok = GetKind(fmt.Errorf("plain error"))
	assert.False(t, ok)

	_, ok = GetKind(nil)
	assert.False(t, ok)
}

func TestIs(t *testing.T) {
	e := New(Forbidden, "nope")
	assert.True(t, Is(e, Forbidden))
	assert.False(t, Is(e, Unauthorized))
	assert.False(t, Is(fmt.Errorf("plain"), Forbidden))
}

func TestKind_String(t *testing.T) {
	cases := map[Kind]string{
		BadRequest:         "BadRequest",
		Unauthorized:       "Unauthorized",
		Forbidden:          "Forbidden",
		NotFound:           "NotFound",
		Conflict:           "Conflict",
		ParseFailure:       "ParseFailure",
		ServiceUnavailable: "ServiceUnavailable",
		QuotaExceeded:      "QuotaExceeded",
		InternalError:      "InternalError",
		Kind(99):           "InternalError",
	}
	for k, want := range cases {
		assert.Equal(t, want, k.String())
	}
}
