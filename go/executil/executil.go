// Package executil provides a mostly transparent way to make os/exec
// testable. It is inspired by https://npf.io/2015/06/testing-exec-command/
// (which was inspired by the standard library's tests of os/exec). The
// helpers in this package replace a call to an arbitrary executable (and
// arguments) with a call to the underlying test binary, with a flag to run
// exactly one test. That test can then be a fake implementation of the
// binary, do assertions on the arguments, etc.
package executil

import (
	"context"
	"os"
	"os/exec"
	"sync"
)

const (
	// OverrideEnvironmentVariable is set in the environment of a faked
	// subprocess started via CommandContext. The value it is set to should
	// be considered arbitrary and not relied upon.
	OverrideEnvironmentVariable = "METAINFO_SYNC_OVERRIDE_TEST"

	// This is the key used in context.Value to correspond to a *fakeTestTracker.
	overrideKey contextKeyType = "metainfo_sync_override_cmd"
)

type contextKeyType string

// WithFakeTests returns a context.Context loaded with the given test names.
// When this context is passed into CommandContext, faked *exec.Cmd objects
// will be returned running those tests, in order. Panics if the provided
// context already has fake tests associated with it.
func WithFakeTests(parent context.Context, fakeTestNames ...string) context.Context {
	if _, ok := parent.Value(overrideKey).(*fakeTestTracker); ok {
		panic("parent context already has fake tests associated with it")
	}
	return context.WithValue(parent, overrideKey, &fakeTestTracker{
		fakeTestNames: fakeTestNames,
	})
}

// FakeTestsContext is a convenient wrapper around WithFakeTests using
// context.Background().
func FakeTestsContext(fakeTestNames ...string) context.Context {
	return WithFakeTests(context.Background(), fakeTestNames...)
}

// fakeTestTracker keeps track of which test should be faked next. The
// context stores a pointer so the value can be mutated without deriving a
// new context.
type fakeTestTracker struct {
	mutex         sync.Mutex
	index         int
	fakeTestNames []string
}

// CommandContext looks for a special value on the provided context (see
// WithFakeTests). If the value exists, the next fake test name is consumed
// and a faked *exec.Cmd is returned; it panics if no fake tests remain.
// Otherwise it is a passthrough to os/exec.CommandContext.
func CommandContext(ctx context.Context, cmd string, args ...string) *exec.Cmd {
	override, ok := ctx.Value(overrideKey).(*fakeTestTracker)
	if !ok {
		return exec.CommandContext(ctx, cmd, args...)
	}
	override.mutex.Lock()
	defer override.mutex.Unlock()
	// Shell out to the current test executable and tell it to run the next
	// faked test.
	if override.index >= len(override.fakeTestNames) {
		panic("Not enough fake tests provided")
	}
	fakeTest := override.fakeTestNames[override.index]
	override.index++
	argsWithOverride := []string{"-test.run=" + fakeTest, "--", cmd}
	argsWithOverride = append(argsWithOverride, args...)
	fakedCmd := exec.CommandContext(ctx, os.Args[0], argsWithOverride...)
	fakedCmd.Env = []string{OverrideEnvironmentVariable + "=1"}
	return fakedCmd
}

// FakeCommandsReturned returns how many times CommandContext was called with
// the given context. Panics if the context was not produced by this package.
func FakeCommandsReturned(ctx context.Context) int {
	override, ok := ctx.Value(overrideKey).(*fakeTestTracker)
	if !ok {
		panic("A Context was passed in that was not produced by the executil package.")
	}
	override.mutex.Lock()
	defer override.mutex.Unlock()
	return override.index
}

// OriginalArgs returns the original arguments passed into a fake test
// function. Concretely, it strips off the first 3 of os.Args (the test
// binary, the test to run, and "--").
func OriginalArgs() []string {
	return os.Args[3:]
}

// IsCallingFakeCommand returns whether the current process is a test process
// that is running a mocked-out CLI invocation. This should be called at the
// beginning of each Test_FakeExe_... test and trigger an early return if
// false.
func IsCallingFakeCommand() bool {
	return os.Getenv(OverrideEnvironmentVariable) != ""
}
