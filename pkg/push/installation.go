// Package push contains the domain models shared by the relay service and the
// device-side registration client: installations, templates, and notification
// requests, together with their wire shapes and validation rules.
package push

import (
	"fmt"
)

// Platform identifies the delivery channel format of an installation.
type Platform string

const (
	// PlatformAPNS addresses devices via an Apple push token (hex string).
	PlatformAPNS Platform = "apns"
	// PlatformFCM addresses devices via a Firebase registration token.
	PlatformFCM Platform = "fcm"
)

// Valid reports whether p is one of the supported delivery platforms.
func (p Platform) Valid() bool {
	return p == PlatformAPNS || p == PlatformFCM
}

// ErrInvalid marks validation failures so callers can separate a malformed
// payload (4xx) from a downstream delivery or storage failure (5xx).
var ErrInvalid = fmt.Errorf("invalid")

// PushTemplate is a provider payload skeleton. The body contains $(param)
// placeholders that are substituted per-notification at send time.
type PushTemplate struct {
	Body string `json:"body"`
}

// DeviceInstallation is the canonical record for one device's push channel.
// A given InstallationID represents at most one active device; registering an
// existing id fully replaces the previous record.
type DeviceInstallation struct {
	InstallationID string                  `json:"installationId"`
	Platform       Platform                `json:"platform"`
	PushChannel    string                  `json:"pushChannel"`
	Tags           []string                `json:"tags"`
	Templates      map[string]PushTemplate `json:"templates"`
}

// Validate checks the required fields of an installation.
func (d *DeviceInstallation) Validate() error {
	if d.InstallationID == "" {
		return fmt.Errorf("%w installation: missing installationId", ErrInvalid)
	}
	if !d.Platform.Valid() {
		return fmt.Errorf("%w installation: unsupported platform %q", ErrInvalid, d.Platform)
	}
	if d.PushChannel == "" {
		return fmt.Errorf("%w installation: missing pushChannel", ErrInvalid)
	}
	return nil
}

// Normalize collapses duplicate tags in place, preserving first-seen order,
// so an installation always carries a tag set rather than a list.
func (d *DeviceInstallation) Normalize() {
	d.Tags = NormalizeTags(d.Tags)
}

// NormalizeTags returns tags with duplicates and empty entries removed,
// preserving first-seen order. It never returns nil for non-nil input.
func NormalizeTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
