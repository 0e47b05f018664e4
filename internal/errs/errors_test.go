package errs

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPredicates(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
	}{
		{"configuration", New(KindConfiguration, "missing bucket"), IsConfiguration},
		{"not found", New(KindNotFound, "no such key", "a/b"), IsNotFound},
		{"access denied", Wrap(KindAccessDenied, "denied", errors.New("403")), IsAccessDenied},
		{"io", Wrap(KindIO, "reset", errors.New("connection reset")), IsIO},
		{"usage", New(KindUsage, "not initialized"), IsUsage},
		{"wrapped by fmt", fmt.Errorf("outer: %w", New(KindNotFound, "gone")), IsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.check(tt.err))
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindUnknown, KindOf(nil))
	assert.Equal(t, KindIO, KindOf(errors.New("plain")))
	assert.Equal(t, KindAccessDenied, KindOf(New(KindAccessDenied, "x")))
}

func TestWithPathsKeepsKind(t *testing.T) {
	inner := New(KindAccessDenied, "denied")
	err := WithPaths(inner, "read failed", "/d/file.txt")

	assert.True(t, IsAccessDenied(err))
	assert.Equal(t, []string{"/d/file.txt"}, err.Paths)
	assert.ErrorIs(t, err, inner)
	assert.Nil(t, WithPaths(nil, "unused"))
}

func TestErrorString(t *testing.T) {
	err := Wrap(KindIO, "copy failed", errors.New("timeout"), "a", "b")
	assert.Equal(t, "[io] copy failed (a, b): timeout", err.Error())
	assert.Equal(t, "[usage] closed", New(KindUsage, "closed").Error())
}
