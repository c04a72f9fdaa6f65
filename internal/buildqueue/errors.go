package buildqueue

import "fmt"

// UnknownBuildError is returned by GetOutput when no build with the given
// id exists in-flight or durably. It is the only execution error raised to
// callers; everything else is recorded into the build's result.
type UnknownBuildError struct {
	ID uint64
}

func (e *UnknownBuildError) Error() string {
	return fmt.Sprintf("unknown build %d", e.ID)
}

// NonZeroExitError indicates the build script ran to completion with a
// non-zero exit code. The sink already carries the script's diagnostics.
type NonZeroExitError struct {
	Code int
}

func (e *NonZeroExitError) Error() string {
	return fmt.Sprintf("build script exited with code %d", e.Code)
}
