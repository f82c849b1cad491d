package parser

import "strings"

// Device buckets used by per-platform redirect overrides.
const (
	DeviceIOS     = "ios"
	DeviceAndroid = "android"
	DeviceDesktop = "desktop"
)

func ParseUserAgent(ua string) (os, browser string) {
	uaLower := strings.ToLower(ua)

	// OS Detection
	if strings.Contains(uaLower, "windows") {
		os = "Windows"
	} else if strings.Contains(uaLower, "iphone") || strings.Contains(uaLower, "ipad") {
		os = "iOS"
	} else if strings.Contains(uaLower, "mac os") {
		os = "macOS"
	} else if strings.Contains(uaLower, "android") {
		os = "Android"
	} else if strings.Contains(uaLower, "linux") {
		os = "Linux"
	} else {
		os = "Unknown"
	}

	// Browser Detection
	if strings.Contains(uaLower, "edge") {
		browser = "Edge"
	} else if strings.Contains(uaLower, "chrome") {
		browser = "Chrome"
	} else if strings.Contains(uaLower, "safari") {
		browser = "Safari"
	} else if strings.Contains(uaLower, "firefox") {
		browser = "Firefox"
	} else {
		browser = "Unknown"
	}

	return os, browser
}

// ParseDeviceType buckets a user agent into the platforms the redirect
// engine can target. Tablets count as their phone platform on purpose:
// an iPad should still get the iOS destination.
func ParseDeviceType(ua string) string {
	uaLower := strings.ToLower(ua)
	if strings.Contains(uaLower, "iphone") || strings.Contains(uaLower, "ipad") || strings.Contains(uaLower, "ipod") {
		return DeviceIOS
	}
	if strings.Contains(uaLower, "android") {
		return DeviceAndroid
	}
	return DeviceDesktop
}

var botMarkers = []string{
	"bot", "crawler", "spider", "chatgpt", "facebookexternalhit",
	"whatsapp", "slackbot", "telegrambot", "metainspector", "headlesschrome",
}

// IsBot flags known crawlers so click events can be filtered downstream.
// Bot traffic is still redirected normally.
func IsBot(ua string) bool {
	uaLower := strings.ToLower(ua)
	for _, m := range botMarkers {
		if strings.Contains(uaLower, m) {
			return true
		}
	}
	return false
}
