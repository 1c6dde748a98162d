//go:build linux || windows

package inject

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
)

var (
	kb     keybd_event.KeyBonding
	kbOnce sync.Once
	kbErr  error
)

// initKeyboard creates the virtual keyboard once. On Linux this needs write
// access to /dev/uinput.
func initKeyboard() error {
	kbOnce.Do(func() {
		kb, kbErr = keybd_event.NewKeyBonding()
		if kbErr == nil {
			// uinput devices take a moment before the compositor accepts them
			time.Sleep(200 * time.Millisecond)
		}
	})
	return kbErr
}

// platformPaste copies text and sends Ctrl+V through a virtual keyboard.
func platformPaste(ctx context.Context, clip Clipboard, text string) error {
	if err := clip.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	if err := initKeyboard(); err != nil {
		return fmt.Errorf("virtual keyboard unavailable: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	kb.SetKeys(keybd_event.VK_V)
	kb.HasCTRL(true)
	if err := kb.Launching(); err != nil {
		return fmt.Errorf("failed to send paste shortcut: %w", err)
	}
	return nil
}

// platformType is not implemented; PasteOrType leaves the text on the clipboard.
func platformType(_ context.Context, _ string) error {
	return ErrUnsupported
}
