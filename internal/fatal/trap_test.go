package fatal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrap_Panics(t *testing.T) {
	require.PanicsWithValue(t, "widget: double take on cell 42", func() {
		Trap("widget", "double take on cell %d", 42)
	})
}
