// Package player talks to MPRIS media players over the D-Bus session bus.
package player

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/samber/lo"

	"karolbroda.com/lyrisync/internal/track"
)

const (
	mprisPrefix      = "org.mpris.MediaPlayer2."
	mprisPath        = "/org/mpris/MediaPlayer2"
	mprisRootIface   = "org.mpris.MediaPlayer2"
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"

	playerctldService = "org.mpris.MediaPlayer2.playerctld"
	playerctldIface   = "com.github.altdesktop.playerctld"

	StatusPlaying = "Playing"
	StatusPaused  = "Paused"
	StatusStopped = "Stopped"
)

var (
	ErrBus      = errors.New("dbus error")
	ErrNoPlayer = errors.New("no active player")
)

// Conn reads player properties. the zero service "" is never queried.
type Conn struct {
	bus *dbus.Conn
}

var (
	sessionOnce sync.Once
	sessionConn *Conn
	sessionErr  error
)

// SessionBus returns the shared session bus connection, connecting on first use.
func SessionBus() (*Conn, error) {
	sessionOnce.Do(func() {
		bus, err := dbus.ConnectSessionBus()
		if err != nil {
			sessionErr = fmt.Errorf("%w: failed to connect to session bus: %w", ErrBus, err)
			return
		}
		sessionConn = &Conn{bus: bus}
	})
	return sessionConn, sessionErr
}

func (c *Conn) Close() error {
	return c.bus.Close()
}

func (c *Conn) property(service string, name string) (dbus.Variant, error) {
	if service == "" {
		return dbus.Variant{}, ErrNoPlayer
	}

	prop, err := c.bus.Object(service, mprisPath).GetProperty(name)
	if err != nil {
		return dbus.Variant{}, fmt.Errorf("%w: failed to get %s: %w", ErrBus, name, err)
	}
	return prop, nil
}

// ActivePlayers lists MPRIS services, most recently active first when
// playerctld is running and in bus order otherwise.
func (c *Conn) ActivePlayers() ([]string, error) {
	if names, err := c.playerctldNames(); err == nil {
		return names, nil
	}

	var names []string
	if err := c.bus.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		return nil, fmt.Errorf("%w: failed to list bus names: %w", ErrBus, err)
	}

	players := lo.Filter(names, func(name string, _ int) bool {
		return strings.HasPrefix(name, mprisPrefix) && name != playerctldService
	})
	sort.Strings(players)

	return players, nil
}

func (c *Conn) playerctldNames() ([]string, error) {
	prop, err := c.property(playerctldService, playerctldIface+".PlayerNames")
	if err != nil {
		return nil, err
	}

	names, ok := prop.Value().([]string)
	if !ok {
		return nil, fmt.Errorf("unexpected PlayerNames type %T", prop.Value())
	}

	return lo.Filter(names, func(name string, _ int) bool {
		return name != playerctldService
	}), nil
}

func (c *Conn) Metadata(service string) (track.Info, error) {
	prop, err := c.property(service, mprisPlayerIface+".Metadata")
	if err != nil {
		return track.Info{}, err
	}

	metadata, ok := prop.Value().(map[string]dbus.Variant)
	if !ok {
		return track.Info{}, fmt.Errorf("%w: unexpected metadata type %T", ErrBus, prop.Value())
	}

	return ParseMetadata(metadata), nil
}

// Position returns the reported playback position in seconds.
func (c *Conn) Position(service string) (float64, error) {
	prop, err := c.property(service, mprisPlayerIface+".Position")
	if err != nil {
		return 0, err
	}
	return microsToSeconds(prop.Value()), nil
}

func (c *Conn) PlaybackStatus(service string) (string, error) {
	if service == "" {
		return StatusStopped, nil
	}

	prop, err := c.property(service, mprisPlayerIface+".PlaybackStatus")
	if err != nil {
		return "", err
	}

	status, ok := prop.Value().(string)
	if !ok {
		return "", fmt.Errorf("%w: unexpected status type %T", ErrBus, prop.Value())
	}
	return status, nil
}

// Identity is the human readable player name, or the bus name suffix.
func (c *Conn) Identity(service string) string {
	prop, err := c.property(service, mprisRootIface+".Identity")
	if err == nil {
		if identity, ok := prop.Value().(string); ok && identity != "" {
			return identity
		}
	}
	return strings.TrimPrefix(service, mprisPrefix)
}

// NameOwner resolves a well-known name to the unique name signals carry.
func (c *Conn) NameOwner(service string) (string, error) {
	var owner string
	if err := c.bus.BusObject().Call("org.freedesktop.DBus.GetNameOwner", 0, service).Store(&owner); err != nil {
		return "", fmt.Errorf("%w: failed to resolve owner of %s: %w", ErrBus, service, err)
	}
	return owner, nil
}
