package obs

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWriterLogger_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(&buf, LevelWarn)

	l.Log(Entry{Level: LevelDebug, Component: "x", Message: "hidden"})
	require.Empty(t, buf.String())

	l.Log(Entry{Level: LevelWarn, Component: "x", Message: "visible", Err: errors.New("boom")})
	require.Contains(t, buf.String(), "visible")
	require.Contains(t, buf.String(), "boom")
}

func TestGlobal_DefaultsToNoOp(t *testing.T) {
	SetGlobal(nil)
	require.Equal(t, NoOp(), Global())
	require.False(t, Global().IsEnabled(LevelError))
}

func TestGlobal_SetAndRestore(t *testing.T) {
	var buf bytes.Buffer
	custom := NewWriterLogger(&buf, LevelDebug)
	SetGlobal(custom)
	defer SetGlobal(nil)

	require.Same(t, Logger(custom), Global())
}
