//go:build windows

package hotkey

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"
)

var windowsKeys = map[string]hotkey.Key{
	"A": hotkey.KeyA, "B": hotkey.KeyB, "C": hotkey.KeyC, "D": hotkey.KeyD, "E": hotkey.KeyE,
	"F": hotkey.KeyF, "G": hotkey.KeyG, "H": hotkey.KeyH, "I": hotkey.KeyI, "J": hotkey.KeyJ,
	"K": hotkey.KeyK, "L": hotkey.KeyL, "M": hotkey.KeyM, "N": hotkey.KeyN, "O": hotkey.KeyO,
	"P": hotkey.KeyP, "Q": hotkey.KeyQ, "R": hotkey.KeyR, "S": hotkey.KeyS, "T": hotkey.KeyT,
	"U": hotkey.KeyU, "V": hotkey.KeyV, "W": hotkey.KeyW, "X": hotkey.KeyX, "Y": hotkey.KeyY,
	"Z": hotkey.KeyZ,
	"0": hotkey.Key0, "1": hotkey.Key1, "2": hotkey.Key2, "3": hotkey.Key3, "4": hotkey.Key4,
	"5": hotkey.Key5, "6": hotkey.Key6, "7": hotkey.Key7, "8": hotkey.Key8, "9": hotkey.Key9,
	"F1": hotkey.KeyF1, "F2": hotkey.KeyF2, "F3": hotkey.KeyF3, "F4": hotkey.KeyF4,
	"F5": hotkey.KeyF5, "F6": hotkey.KeyF6, "F7": hotkey.KeyF7, "F8": hotkey.KeyF8,
	"F9": hotkey.KeyF9, "F10": hotkey.KeyF10, "F11": hotkey.KeyF11, "F12": hotkey.KeyF12,
	"Space": hotkey.KeySpace, "Return": hotkey.KeyReturn, "Escape": hotkey.KeyEscape,
	"Delete": hotkey.KeyDelete, "Tab": hotkey.KeyTab,
	"Left": hotkey.KeyLeft, "Right": hotkey.KeyRight, "Up": hotkey.KeyUp, "Down": hotkey.KeyDown,
}

type windowsHotkey struct {
	hk   *hotkey.Hotkey
	stop chan struct{}
	done chan struct{}
}

type windowsManager struct {
	mu   sync.Mutex
	keys map[string]*windowsHotkey
}

// New creates a hotkey manager backed by RegisterHotKey.
func New() (Manager, error) {
	return &windowsManager{keys: make(map[string]*windowsHotkey)}, nil
}

func (m *windowsManager) Register(accel string, callback func(pressed bool)) error {
	a, err := Parse(accel)
	if err != nil {
		return err
	}
	key, ok := windowsKeys[a.Key]
	if !ok {
		return fmt.Errorf("%w: no key code for %s", ErrInvalidAccelerator, a.Key)
	}

	var mods []hotkey.Modifier
	if a.Mods&ModCtrl != 0 {
		mods = append(mods, hotkey.ModCtrl)
	}
	if a.Mods&ModAlt != 0 {
		mods = append(mods, hotkey.ModAlt)
	}
	if a.Mods&ModShift != 0 {
		mods = append(mods, hotkey.ModShift)
	}
	if a.Mods&ModSuper != 0 {
		mods = append(mods, hotkey.ModWin)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	hk := hotkey.New(mods, key)
	if err := hk.Register(); err != nil {
		return fmt.Errorf("failed to register hotkey %s: %w", a, err)
	}

	wh := &windowsHotkey{hk: hk, stop: make(chan struct{}), done: make(chan struct{})}
	go wh.loop(callback)
	m.keys[a.String()] = wh
	return nil
}

func (h *windowsHotkey) loop(callback func(bool)) {
	defer close(h.done)
	for {
		select {
		case <-h.stop:
			return
		case <-h.hk.Keydown():
			callback(true)
		case <-h.hk.Keyup():
			callback(false)
		}
	}
}

func (h *windowsHotkey) close() error {
	close(h.stop)
	<-h.done
	return h.hk.Unregister()
}

func (m *windowsManager) Unregister(accel string) error {
	a, err := Parse(accel)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.keys[a.String()]
	if !ok {
		return nil
	}
	delete(m.keys, a.String())
	return h.close()
}

func (m *windowsManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var firstErr error
	for key, h := range m.keys {
		if err := h.close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.keys, key)
	}
	return firstErr
}
