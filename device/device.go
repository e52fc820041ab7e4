// Package device derives the human-readable device and location labels shown
// on the active-session list. Classification is heuristic and best-effort;
// an unrecognized client still gets a stable label.
package device

import (
	"net"
	"strings"
)

// Fallback labels for clients we cannot classify.
const (
	UnknownDevice   = "Unknown Device"
	UnknownLocation = "Unknown Location"
	LocalLocation   = "Local"
)

// Label is the display pair attached to a session at issue time. It is
// captured once and never re-derived.
type Label struct {
	Device   string
	Location string
}

// Classify maps a User-Agent string and remote IP to display labels.
// Matching is case-insensitive and ordered: mobile platforms first, since
// their agents also contain desktop markers.
func Classify(userAgent, ip string) Label {
	return Label{
		Device:   deviceLabel(userAgent),
		Location: locationLabel(ip),
	}
}

func deviceLabel(userAgent string) string {
	ua := strings.ToLower(userAgent)
	switch {
	case ua == "":
		return UnknownDevice
	case strings.Contains(ua, "iphone"):
		return "iPhone"
	case strings.Contains(ua, "ipad"):
		return "iPad"
	case strings.Contains(ua, "android"):
		return "Android Phone"
	case strings.Contains(ua, "windows"):
		return "Windows PC"
	case strings.Contains(ua, "macintosh"), strings.Contains(ua, "mac os"):
		return "Mac"
	case strings.Contains(ua, "linux"):
		return "Linux PC"
	default:
		return UnknownDevice
	}
}

// locationLabel does no geo lookup. It only distinguishes loopback and
// private-range traffic, which shows up constantly in development and
// support sessions.
func locationLabel(ip string) string {
	if ip == "" {
		return UnknownLocation
	}
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return UnknownLocation
	}
	if parsed.IsLoopback() || parsed.IsPrivate() {
		return LocalLocation
	}
	return UnknownLocation
}
