//go:build !darwin && !linux && !windows

package inject

import "context"

// No key event source here; PasteOrType falls back to copying.
func platformPaste(_ context.Context, _ Clipboard, _ string) error {
	return ErrUnsupported
}

func platformType(_ context.Context, _ string) error {
	return ErrUnsupported
}
