package registration

import (
	"errors"

	"github.com/google/uuid"

	"github.com/xamcat/pushrelay/pkg/push"
)

// ErrTokenUnavailable is returned when the platform has not yet delivered a
// push token; registration fails fast rather than sending an invalid
// installation.
var ErrTokenUnavailable = errors.New("push token not available")

// ErrDeviceUnavailable is returned when no stable device identifier can be
// resolved.
var ErrDeviceUnavailable = errors.New("device id not available")

// DeviceProvider supplies the platform facts an installation is built from.
// One implementation exists per platform; the client never touches platform
// SDK types directly.
type DeviceProvider interface {
	// DeviceID returns the stable installation id for this device.
	DeviceID() (string, error)
	// DeviceToken returns the current push channel token, or
	// ErrTokenUnavailable if the platform has not issued one yet.
	DeviceToken() (string, error)
	// Platform identifies the delivery channel format of the token.
	Platform() push.Platform
}

// StaticProvider is a DeviceProvider backed by fixed values. It serves tests
// and headless clients where the token is obtained out of band.
type StaticProvider struct {
	id       string
	token    string
	platform push.Platform
}

// NewStaticProvider builds a provider from known values. An empty id is
// replaced with a generated one so the installation key stays stable for the
// lifetime of the provider.
func NewStaticProvider(id, token string, platform push.Platform) *StaticProvider {
	if id == "" {
		id = uuid.NewString()
	}
	return &StaticProvider{id: id, token: token, platform: platform}
}

func (p *StaticProvider) DeviceID() (string, error) {
	return p.id, nil
}

func (p *StaticProvider) DeviceToken() (string, error) {
	if p.token == "" {
		return "", ErrTokenUnavailable
	}
	return p.token, nil
}

func (p *StaticProvider) Platform() push.Platform {
	return p.platform
}

// SetToken replaces the token, typically from a platform refresh callback.
func (p *StaticProvider) SetToken(token string) {
	p.token = token
}
