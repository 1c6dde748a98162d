package inject

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memClipboard struct {
	mu       sync.Mutex
	text     string
	writes   int
	writeErr error
}

func (m *memClipboard) ReadAll() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text, nil
}

func (m *memClipboard) WriteAll(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.writeErr != nil {
		return m.writeErr
	}
	m.text = text
	m.writes++
	return nil
}

func TestPasteOrTypeFallsBackToClipboard(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("macOS posts real key events")
	}
	clip := &memClipboard{text: "previous"}
	inj := New(Options{Clipboard: clip, Logger: zerolog.Nop()})

	require.NoError(t, inj.PasteOrType(context.Background(), "Hello world "))
	assert.Equal(t, "Hello world ", clip.text)
	assert.Equal(t, 1, clip.writes)
}

func TestPasteOrTypeClipboardError(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("macOS posts real key events")
	}
	clip := &memClipboard{writeErr: errors.New("no xclip")}
	inj := New(Options{Clipboard: clip, Logger: zerolog.Nop()})

	err := inj.PasteOrType(context.Background(), "text")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no xclip")
}

func TestTypeUnsupported(t *testing.T) {
	if runtime.GOOS == "darwin" {
		t.Skip("macOS types with CGEvent")
	}
	inj := New(Options{Clipboard: &memClipboard{}, Logger: zerolog.Nop()})
	assert.ErrorIs(t, inj.Type(context.Background(), "x"), ErrUnsupported)
}
