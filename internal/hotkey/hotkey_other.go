//go:build !linux && !darwin && !windows

package hotkey

// New reports that global hotkeys are unavailable; use the record command.
func New() (Manager, error) {
	return nil, ErrUnsupported
}
