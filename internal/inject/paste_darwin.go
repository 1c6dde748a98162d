//go:build darwin

package inject

/*
#cgo LDFLAGS: -framework ApplicationServices -framework Carbon
#include <ApplicationServices/ApplicationServices.h>
#include <Carbon/Carbon.h>

static void postKey(CGEventSourceRef src, CGKeyCode key, bool down, CGEventFlags flags) {
    CGEventRef ev = CGEventCreateKeyboardEvent(src, key, down);
    if (flags) CGEventSetFlags(ev, flags);
    CGEventPost(kCGHIDEventTap, ev);
    CFRelease(ev);
}

static void pasteShortcut() {
    CGEventSourceRef src = CGEventSourceCreate(kCGEventSourceStateHIDSystemState);
    postKey(src, kVK_Command, true, kCGEventFlagMaskCommand);
    postKey(src, kVK_ANSI_V, true, kCGEventFlagMaskCommand);
    postKey(src, kVK_ANSI_V, false, 0);
    postKey(src, kVK_Command, false, 0);
    CFRelease(src);
}

static int typeUnit(UniChar unit) {
    CGEventSourceRef src = CGEventSourceCreate(kCGEventSourceStateHIDSystemState);
    if (src == NULL) return 0;
    CGEventRef ev = CGEventCreateKeyboardEvent(src, 0, true);
    if (ev == NULL) {
        CFRelease(src);
        return 0;
    }
    CGEventKeyboardSetUnicodeString(ev, 1, &unit);
    CGEventPost(kCGHIDEventTap, ev);
    CGEventSetType(ev, kCGEventKeyUp);
    CGEventPost(kCGHIDEventTap, ev);
    CFRelease(ev);
    CFRelease(src);
    return 1;
}
*/
import "C"

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf16"
)

const (
	clipboardSettle = 50 * time.Millisecond
	pasteSettle     = 100 * time.Millisecond
	keystrokeGap    = 10 * time.Millisecond
)

var errKeyEvent = errors.New("failed to create keyboard event")

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// platformPaste puts text on the clipboard, sends Cmd+V and then puts the
// previous contents back unless something else replaced them meanwhile.
func platformPaste(ctx context.Context, clip Clipboard, text string) error {
	previous, _ := clip.ReadAll()

	if err := clip.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	if err := sleepCtx(ctx, clipboardSettle); err != nil {
		return err
	}

	C.pasteShortcut()

	time.Sleep(pasteSettle)
	if current, _ := clip.ReadAll(); current == text {
		_ = clip.WriteAll(previous)
	}
	return nil
}

// platformType posts one unicode key event per UTF-16 unit.
func platformType(ctx context.Context, text string) error {
	units := utf16.Encode([]rune(text))
	for i, u := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		if C.typeUnit(C.UniChar(u)) == 0 {
			return errKeyEvent
		}
		if i < len(units)-1 {
			time.Sleep(keystrokeGap)
		}
	}
	return nil
}
