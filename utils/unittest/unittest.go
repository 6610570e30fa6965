package unittest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertReturnsBefore asserts that the given function returns before the
// duration expires.
func AssertReturnsBefore(t *testing.T, f func(), duration time.Duration, msgAndArgs ...interface{}) bool {
	done := make(chan struct{})

	go func() {
		f()
		close(done)
	}()

	select {
	case <-time.After(duration):
		t.Log("function did not return in time")
		assert.Fail(t, "function did not return in time", msgAndArgs...)
		return false
	case <-done:
		return true
	}
}

// RequireReturnsBefore requires that the given function returns before the
// duration expires.
func RequireReturnsBefore(t testing.TB, f func(), duration time.Duration, msgAndArgs ...interface{}) {
	done := make(chan struct{})

	go func() {
		f()
		close(done)
	}()

	select {
	case <-time.After(duration):
		require.Fail(t, "function did not return in time", msgAndArgs...)
	case <-done:
		return
	}
}

// RequireNeverReturnBefore requires that the given function does not return
// before the duration expires, for example because it waits for a lock.
// The returned channel is closed once f returns.
func RequireNeverReturnBefore(t testing.TB, f func(), duration time.Duration, msgAndArgs ...interface{}) <-chan struct{} {
	done := make(chan struct{})

	go func() {
		f()
		close(done)
	}()

	select {
	case <-time.After(duration):
	case <-done:
		require.Fail(t, "function returned before deadline", msgAndArgs...)
	}
	return done
}
