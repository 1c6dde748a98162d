// Package inject delivers recognized text to the focused application.
package inject

import (
	"context"
	"errors"

	"github.com/atotto/clipboard"
)

// ErrUnsupported is returned by strategies the current platform lacks.
var ErrUnsupported = errors.New("not supported on this platform")

// Injector defines the interface for text injection
type Injector interface {
	Paste(ctx context.Context, text string) error
	Type(ctx context.Context, text string) error
	PasteOrType(ctx context.Context, text string) error
}

// Clipboard reads and writes the system clipboard.
type Clipboard interface {
	ReadAll() (string, error)
	WriteAll(text string) error
}

type systemClipboard struct{}

func (systemClipboard) ReadAll() (string, error)   { return clipboard.ReadAll() }
func (systemClipboard) WriteAll(text string) error { return clipboard.WriteAll(text) }

// SystemClipboard returns the OS clipboard.
func SystemClipboard() Clipboard { return systemClipboard{} }
