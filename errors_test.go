package forkcheck

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFatalExitError_Reexport(t *testing.T) {
	err := fmt.Errorf("%w: %w", ErrWorkerExited, &FatalExitError{ExitCode: 2, Stderr: "boom"})

	require.ErrorIs(t, err, ErrWorkerExited)

	fatal, ok := stderrors.AsType[*FatalExitError](err)
	require.True(t, ok)
	require.Equal(t, 2, fatal.ExitCode)

	var base ForkcheckError = fatal
	require.True(t, base.IsForkcheckError())
}

func TestCallError_Reexport(t *testing.T) {
	err := &CallError{Seq: 2, Tag: "Diagnostics", Payload: json.RawMessage(`{"message":"type error"}`)}

	require.Equal(t, "type error", err.Message())
	require.Contains(t, err.Error(), "Diagnostics call 2 failed")
}

func TestSentinelErrors_Distinct(t *testing.T) {
	sentinels := []error{
		ErrClientKilled,
		ErrWorkerTerminated,
		ErrWorkerExited,
		ErrAlreadyStarted,
		ErrCheckerClosed,
		ErrNotStarted,
		ErrTransportNotConnected,
	}

	for i, a := range sentinels {
		for j, b := range sentinels {
			if i != j {
				require.NotErrorIs(t, a, b)
			}
		}
	}
}
