package ics

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// DeliveryMode selects how a document reaches the user.
type DeliveryMode string

const (
	// DeliveryDownload serves the document as a file attachment.
	DeliveryDownload DeliveryMode = "download"
	// DeliveryNative uploads the document and hands the OS a webcal:// link.
	DeliveryNative DeliveryMode = "native"
)

// ParseDeliveryMode maps form input to a mode, defaulting to download.
func ParseDeliveryMode(value string) DeliveryMode {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case string(DeliveryNative), "on", "true", "1":
		return DeliveryNative
	default:
		return DeliveryDownload
	}
}

// SubscriptionScheme is opened by calendar applications as an add/subscribe flow.
const SubscriptionScheme = "webcal"

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	unsafeNameChr = regexp.MustCompile(`[^A-Za-z0-9_.\-]`)
	iosDevice     = regexp.MustCompile(`iPad|iPhone|iPod`)
)

// FileName turns a meeting name into a download file name.
func FileName(meetingName string) string {
	name := whitespaceRun.ReplaceAllString(strings.TrimSpace(meetingName), "_")
	name = unsafeNameChr.ReplaceAllString(name, "")
	name = strings.Trim(name, ".")
	if name == "" {
		name = "event"
	}
	return name + ".ics"
}

// SubscriptionURL rewrites a public http(s) URL to the calendar
// subscription scheme.
func SubscriptionURL(publicURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(publicURL))
	if err != nil {
		return "", fmt.Errorf("parse public url: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return "", fmt.Errorf("unsupported scheme %q for calendar subscription", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("public url %q has no host", publicURL)
	}
	u.Scheme = SubscriptionScheme
	return u.String(), nil
}

// DetectNativeCalendar guesses whether the viewer is on iOS. iPadOS reports a
// desktop Macintosh user agent, so a touch-capable Mac is treated as iOS too.
// The result is a capability hint only.
func DetectNativeCalendar(userAgent string, touchPoints int) bool {
	if iosDevice.MatchString(userAgent) {
		return true
	}
	return strings.Contains(userAgent, "Macintosh") && touchPoints > 1
}
