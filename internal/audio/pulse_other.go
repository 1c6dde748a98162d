//go:build !linux

package audio

import "errors"

// NewPulse is only available on Linux.
func NewPulse(_ Options) (Backend, error) {
	return nil, errors.New("pulse backend is only available on linux")
}
