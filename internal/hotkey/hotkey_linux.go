//go:build linux

package hotkey

/*
#cgo pkg-config: x11
#include <X11/Xlib.h>
#include <X11/XKBlib.h>
#include <X11/keysym.h>
#include <stdlib.h>

Display* displayPtr = NULL;

int openDisplay() {
    if (displayPtr == NULL) {
        displayPtr = XOpenDisplay(NULL);
        if (displayPtr != NULL) {
            // Held keys repeat as press only, so push-to-talk sees one release.
            XkbSetDetectableAutoRepeat(displayPtr, True, NULL);
        }
    }
    return displayPtr != NULL;
}

int keycodeFor(const char* name) {
    if (!openDisplay()) return 0;
    KeySym sym = XStringToKeysym(name);
    if (sym == NoSymbol) return 0;
    return XKeysymToKeycode(displayPtr, sym);
}

// grabKey also grabs the Lock and NumLock variants so the accelerator works
// regardless of their state.
int grabKey(int keycode, unsigned int modifiers) {
    if (!openDisplay()) return 0;

    Window root = DefaultRootWindow(displayPtr);
    unsigned int extra[] = {0, LockMask, Mod2Mask, LockMask | Mod2Mask};
    for (int i = 0; i < 4; i++) {
        XGrabKey(displayPtr, keycode, modifiers | extra[i], root, False, GrabModeAsync, GrabModeAsync);
    }
    XSelectInput(displayPtr, root, KeyPressMask | KeyReleaseMask);
    XSync(displayPtr, False);

    return 1;
}

void ungrabKey(int keycode, unsigned int modifiers) {
    if (displayPtr == NULL) return;

    Window root = DefaultRootWindow(displayPtr);
    unsigned int extra[] = {0, LockMask, Mod2Mask, LockMask | Mod2Mask};
    for (int i = 0; i < 4; i++) {
        XUngrabKey(displayPtr, keycode, modifiers | extra[i], root);
    }
    XSync(displayPtr, False);
}

int checkEvent(int* keycode, int* pressed) {
    if (displayPtr == NULL) return 0;

    XEvent event;
    if (XPending(displayPtr) > 0) {
        XNextEvent(displayPtr, &event);
        if (event.type == KeyPress || event.type == KeyRelease) {
            *keycode = event.xkey.keycode;
            *pressed = (event.type == KeyPress) ? 1 : 0;
            return 1;
        }
    }
    return 0;
}
*/
import "C"

import (
	"fmt"
	"sync"
	"time"
	"unsafe"
)

type grab struct {
	keycode int
	mods    C.uint
	cb      func(bool)
}

type linuxManager struct {
	mu    sync.Mutex // guards grabs and every Xlib call
	grabs map[string]grab
	stop  chan struct{}
	once  sync.Once
}

// New creates a new Linux hotkey manager using X11
func New() (Manager, error) {
	if C.openDisplay() == 0 {
		return nil, fmt.Errorf("%w: cannot open X display", ErrUnsupported)
	}

	mgr := &linuxManager{
		grabs: make(map[string]grab),
		stop:  make(chan struct{}),
	}

	go mgr.eventLoop()

	return mgr, nil
}

func xModifiers(m Modifier) C.uint {
	var mask C.uint
	if m&ModShift != 0 {
		mask |= C.ShiftMask
	}
	if m&ModCtrl != 0 {
		mask |= C.ControlMask
	}
	if m&ModAlt != 0 {
		mask |= C.Mod1Mask
	}
	if m&ModSuper != 0 {
		mask |= C.Mod4Mask
	}
	return mask
}

// xKeysymName maps a canonical key to its X keysym name.
func xKeysymName(key string) string {
	if key == "Space" {
		return "space"
	}
	return key
}

func (m *linuxManager) Register(accel string, callback func(pressed bool)) error {
	a, err := Parse(accel)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	name := C.CString(xKeysymName(a.Key))
	defer C.free(unsafe.Pointer(name))

	keycode := int(C.keycodeFor(name))
	if keycode == 0 {
		return fmt.Errorf("%w: no keycode for %s", ErrInvalidAccelerator, a.Key)
	}

	mods := xModifiers(a.Mods)
	if C.grabKey(C.int(keycode), mods) == 0 {
		return fmt.Errorf("failed to grab key %s", a)
	}

	m.grabs[a.String()] = grab{keycode: keycode, mods: mods, cb: callback}
	return nil
}

func (m *linuxManager) eventLoop() {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.mu.Lock()
			var keycode, pressed C.int
			var cb func(bool)
			if C.checkEvent(&keycode, &pressed) != 0 {
				for _, g := range m.grabs {
					if g.keycode == int(keycode) {
						cb = g.cb
						break
					}
				}
			}
			m.mu.Unlock()

			if cb != nil {
				cb(pressed == 1)
			}
		}
	}
}

func (m *linuxManager) Unregister(accel string) error {
	a, err := Parse(accel)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.grabs[a.String()]
	if !ok {
		return nil
	}
	C.ungrabKey(C.int(g.keycode), g.mods)
	delete(m.grabs, a.String())
	return nil
}

func (m *linuxManager) Close() error {
	m.once.Do(func() {
		close(m.stop)
		m.mu.Lock()
		for key, g := range m.grabs {
			C.ungrabKey(C.int(g.keycode), g.mods)
			delete(m.grabs, key)
		}
		m.mu.Unlock()
	})
	return nil
}
