package governor

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLifecycle_InitialState(t *testing.T) {
	l := NewLifecycle()
	require.Equal(t, StateInit, l.State())
	require.False(t, l.TerminationRequested())
}

func TestLifecycle_Transitions(t *testing.T) {
	l := NewLifecycle()
	for _, s := range []State{StateReady, StateRunning, StateDraining, StateStopped} {
		l.SetState(s)
		require.Equal(t, s, l.State())
	}
}

func TestLifecycle_RequestTermination(t *testing.T) {
	l := NewLifecycle()
	require.False(t, l.TerminationRequested())
	l.RequestTermination()
	require.True(t, l.TerminationRequested())
}

func TestState_String(t *testing.T) {
	cases := map[State]string{
		StateInit:     "INIT",
		StateReady:    "READY",
		StateRunning:  "RUNNING",
		StateDraining: "DRAINING",
		StateStopped:  "STOPPED",
		State(99):     "UNKNOWN",
	}
	for s, want := range cases {
		require.Equal(t, want, s.String())
	}
}
