package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorBuilder(t *testing.T) {
	t.Parallel()

	base := stderrors.New("connection refused")
	err := New(base).
		Component("trackstore").
		Category(CategoryRedisConnection).
		Context("host", "localhost:6379").
		Build()

	assert.Equal(t, "connection refused", err.Error())
	assert.Equal(t, "trackstore", err.GetComponent())
	assert.Equal(t, string(CategoryRedisConnection), err.GetCategory())
	assert.Equal(t, "localhost:6379", err.GetContext()["host"])
	assert.True(t, stderrors.Is(err, base))
}

func TestBuildDefaults(t *testing.T) {
	t.Parallel()

	err := Newf("something went wrong").Build()
	assert.Equal(t, CategoryGeneric, err.Category)
	assert.Equal(t, ComponentUnknown, err.GetComponent())
	assert.WithinDuration(t, time.Now(), err.GetTimestamp(), time.Second)
}

func TestSentinelWrapping(t *testing.T) {
	t.Parallel()

	err := New(fmt.Errorf("lookup %q: %w", "MH20EE7598", ErrVehicleNotFound)).
		Component("tracker").
		Category(CategoryNotFound).
		Build()

	assert.True(t, Is(err, ErrVehicleNotFound))
	assert.True(t, IsNotFound(err))
	assert.False(t, IsRetryable(err))
}

func TestIsRetryable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		category ErrorCategory
		want     bool
	}{
		{"connectivity", CategoryRedisConnection, true},
		{"timeout", CategoryTimeout, true},
		{"conflict exhaustion", CategoryConflict, true},
		{"validation", CategoryValidation, false},
		{"not found", CategoryNotFound, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Newf("boom").Category(tt.category).Build()
			assert.Equal(t, tt.want, IsRetryable(err))
		})
	}
}

func TestCategoryMatching(t *testing.T) {
	t.Parallel()

	a := Newf("first").Category(CategoryConflict).Build()
	b := Newf("second").Category(CategoryConflict).Build()
	c := Newf("third").Category(CategoryTimeout).Build()

	assert.True(t, stderrors.Is(a, b))
	assert.False(t, stderrors.Is(a, c))
}

func TestContextCopyIsolation(t *testing.T) {
	t.Parallel()

	err := Newf("boom").Context("attempt", 3).Build()
	ctx := err.GetContext()
	require.NotNil(t, ctx)
	ctx["attempt"] = 99

	assert.Equal(t, 3, err.GetContext()["attempt"])
}
