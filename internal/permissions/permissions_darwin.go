//go:build darwin

package permissions

/*
#cgo LDFLAGS: -framework AVFoundation -framework Cocoa
#import <AVFoundation/AVFoundation.h>
#import <Cocoa/Cocoa.h>

int micStatus() {
    return (int)[AVCaptureDevice authorizationStatusForMediaType:AVMediaTypeAudio];
}

void micRequest() {
    [AVCaptureDevice requestAccessForMediaType:AVMediaTypeAudio completionHandler:^(BOOL granted) {}];
}

// axTrusted shows the system prompt when access is missing.
int axTrusted() {
    NSDictionary *opts = @{(__bridge id)kAXTrustedCheckOptionPrompt: @YES};
    return AXIsProcessTrustedWithOptions((__bridge CFDictionaryRef)opts) ? 1 : 0;
}
*/
import "C"

import (
	"errors"
	"fmt"
)

var (
	ErrMicrophoneDenied    = errors.New("microphone permission not granted")
	ErrAccessibilityDenied = errors.New("accessibility permission not granted; enable it in System Settings > Privacy & Security > Accessibility")
)

// micAuth mirrors AVAuthorizationStatus.
type micAuth int

const (
	micNotDetermined micAuth = iota
	micRestricted
	micDenied
	micAuthorized
)

func (m micAuth) String() string {
	switch m {
	case micNotDetermined:
		return "not determined"
	case micRestricted:
		return "restricted"
	case micDenied:
		return "denied"
	case micAuthorized:
		return "authorized"
	}
	return fmt.Sprintf("unknown(%d)", int(m))
}

// EnsureMicrophone fails unless capture is authorized. On first use it
// triggers the system dialog, so the next run can succeed.
func EnsureMicrophone() error {
	status := micAuth(C.micStatus())
	if status == micAuthorized {
		return nil
	}
	if status == micNotDetermined {
		C.micRequest()
	}
	return fmt.Errorf("%w (%s)", ErrMicrophoneDenied, status)
}

// EnsurePermissions also requires accessibility, which the hotkey and the
// paste shortcut depend on.
func EnsurePermissions() error {
	if err := EnsureMicrophone(); err != nil {
		return err
	}
	if C.axTrusted() == 0 {
		return ErrAccessibilityDenied
	}
	return nil
}
