// ABOUTME: Version and product identification
// ABOUTME: Reported in device hellos and the proxy banner
package version

const (
	Version      = "0.1.0"
	Product      = "Audio Proxy"
	Manufacturer = "Sendspin"
)
