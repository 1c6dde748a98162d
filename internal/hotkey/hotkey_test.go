package hotkey

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		mods Modifier
		key  string
	}{
		{"Alt+Space", ModAlt, "Space"},
		{"Ctrl+Space", ModCtrl, "Space"},
		{"ctrl + shift + r", ModCtrl | ModShift, "R"},
		{"Cmd+Option+F5", ModSuper | ModAlt, "F5"},
		{"F12", 0, "F12"},
		{"Control+Enter", ModCtrl, "Return"},
		{"Super+9", ModSuper, "9"},
		{"Alt+PageDown", ModAlt, "Next"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			a, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.mods, a.Mods)
			assert.Equal(t, tt.key, a.Key)
		})
	}
}

func TestParseInvalid(t *testing.T) {
	for _, in := range []string{"", "Ctrl+", "Ctrl+Alt", "A+B", "Ctrl+F13", "Ctrl+?", "Hyper+Space", "Ctrl++A"} {
		t.Run(in, func(t *testing.T) {
			_, err := Parse(in)
			assert.ErrorIs(t, err, ErrInvalidAccelerator)
		})
	}
}

func TestAcceleratorString(t *testing.T) {
	a, err := Parse("shift+alt+ctrl+cmd+x")
	require.NoError(t, err)
	assert.Equal(t, "Ctrl+Alt+Shift+Super+X", a.String())

	b, err := Parse("space")
	require.NoError(t, err)
	assert.Equal(t, "Space", b.String())
}
