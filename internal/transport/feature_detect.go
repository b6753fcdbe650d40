// File: internal/transport/feature_detect.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Advertises what the listener on this platform can honor.

package transport

import "runtime"

// Features lists listener capabilities for the current platform.
type Features struct {
	ExactBacklog bool
	ReuseAddr    bool
	OS           string
}

// DetectFeatures returns the listener capabilities of this build.
func DetectFeatures() Features {
	return Features{
		ExactBacklog: runtime.GOOS == "linux",
		ReuseAddr:    runtime.GOOS != "windows",
		OS:           runtime.GOOS,
	}
}
