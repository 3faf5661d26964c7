package player

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/godbus/dbus/v5"

	"karolbroda.com/lyrisync/internal/track"
)

const (
	propertiesChanged = "org.freedesktop.DBus.Properties.PropertiesChanged"
	seekedSignal      = mprisPlayerIface + ".Seeked"
	nameOwnerChanged  = "org.freedesktop.DBus.NameOwnerChanged"

	eventBuffer = 32
)

type EventKind int

const (
	// EventPlayerUpdate carries the full player view after a metadata or
	// status change, or after the active player switched.
	EventPlayerUpdate EventKind = iota
	EventSeeked
)

func (k EventKind) String() string {
	switch k {
	case EventPlayerUpdate:
		return "player-update"
	case EventSeeked:
		return "seeked"
	default:
		return "unknown"
	}
}

type Event struct {
	Kind     EventKind
	Track    track.Info
	Position float64
	Service  string
}

type reader interface {
	ActivePlayers() ([]string, error)
	Metadata(service string) (track.Info, error)
	Position(service string) (float64, error)
	PlaybackStatus(service string) (string, error)
	NameOwner(service string) (string, error)
}

// Watcher follows the active player and turns bus signals into Events.
type Watcher struct {
	bus    *dbus.Conn
	props  reader
	block  []string
	events chan Event

	service  string
	owner    string
	track    track.Info
	status   string
	position float64
}

func NewWatcher(conn *Conn, block []string) *Watcher {
	w := newWatcher(conn, block)
	w.bus = conn.bus
	return w
}

func newWatcher(props reader, block []string) *Watcher {
	return &Watcher{
		props:  props,
		block:  block,
		events: make(chan Event, eventBuffer),
	}
}

func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Run subscribes to player signals and emits events until ctx is done.
// the events channel is closed on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)

	if err := w.subscribe(); err != nil {
		return err
	}

	signals := make(chan *dbus.Signal, eventBuffer)
	w.bus.Signal(signals)
	defer w.bus.RemoveSignal(signals)

	w.discover(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig, ok := <-signals:
			if !ok {
				return fmt.Errorf("%w: signal channel closed", ErrBus)
			}
			w.handleSignal(ctx, sig)
		}
	}
}

func (w *Watcher) subscribe() error {
	matches := [][]dbus.MatchOption{
		{
			dbus.WithMatchObjectPath(mprisPath),
			dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
			dbus.WithMatchMember("PropertiesChanged"),
		},
		{
			dbus.WithMatchObjectPath(mprisPath),
			dbus.WithMatchInterface(mprisPlayerIface),
			dbus.WithMatchMember("Seeked"),
		},
		{
			dbus.WithMatchSender("org.freedesktop.DBus"),
			dbus.WithMatchInterface("org.freedesktop.DBus"),
			dbus.WithMatchMember("NameOwnerChanged"),
			dbus.WithMatchOption("arg0namespace", mprisRootIface),
		},
	}

	for _, options := range matches {
		if err := w.bus.AddMatchSignal(options...); err != nil {
			return fmt.Errorf("%w: failed to add match: %w", ErrBus, err)
		}
	}

	return nil
}

func (w *Watcher) emit(ctx context.Context, event Event) {
	select {
	case w.events <- event:
	case <-ctx.Done():
	}
}

func (w *Watcher) playerUpdate() Event {
	return Event{Kind: EventPlayerUpdate, Track: w.track, Position: w.position, Service: w.service}
}

// discover re-selects the active player and switches to it when it differs
// from the current one or its owner changed.
func (w *Watcher) discover(ctx context.Context) {
	names, err := w.props.ActivePlayers()
	if err != nil {
		slog.Warn("failed to list players", "error", err)
		names = nil
	}

	service := SelectActive(names, w.block)
	if service == "" {
		if w.service == "" {
			return
		}
		slog.Info("no active player")
		w.service, w.owner = "", ""
		w.track = track.Info{}
		w.status, w.position = "", 0
		w.emit(ctx, w.playerUpdate())
		return
	}

	owner, err := w.props.NameOwner(service)
	if err != nil {
		slog.Debug("failed to resolve player owner", "service", service, "error", err)
		owner = ""
	}

	if service == w.service && owner == w.owner {
		return
	}

	w.switchTo(ctx, service, owner)
}

func (w *Watcher) switchTo(ctx context.Context, service string, owner string) {
	slog.Info("switching player", "service", service)

	w.service, w.owner = service, owner

	info, err := w.props.Metadata(service)
	if err != nil {
		slog.Debug("failed to read metadata", "service", service, "error", err)
		info = track.Info{}
	}
	w.track = info

	w.position = w.freshPosition()

	status, err := w.props.PlaybackStatus(service)
	if err != nil {
		status = ""
	}
	w.status = status

	w.emit(ctx, w.playerUpdate())
}

func (w *Watcher) freshPosition() float64 {
	position, err := w.props.Position(w.service)
	if err != nil {
		return 0
	}
	return position
}

func (w *Watcher) fromActive(sig *dbus.Signal) bool {
	if w.service == "" {
		return false
	}
	return sig.Sender == w.owner || sig.Sender == w.service
}

func (w *Watcher) handleSignal(ctx context.Context, sig *dbus.Signal) {
	if sig == nil {
		return
	}

	switch sig.Name {
	case propertiesChanged:
		w.handlePropertiesChanged(ctx, sig)
	case seekedSignal:
		w.handleSeeked(ctx, sig)
	case nameOwnerChanged:
		if len(sig.Body) > 0 {
			if name, ok := sig.Body[0].(string); ok && strings.HasPrefix(name, mprisPrefix) {
				w.discover(ctx)
			}
		}
	}
}

func (w *Watcher) handlePropertiesChanged(ctx context.Context, sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}

	interfaceName, ok := sig.Body[0].(string)
	if !ok {
		return
	}

	changedProps, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	if _, exists := changedProps["PlayerNames"]; exists && interfaceName == playerctldIface {
		w.discover(ctx)
		return
	}

	if interfaceName != mprisPlayerIface || !w.fromActive(sig) {
		return
	}

	changed := false

	if metadataVariant, exists := changedProps["Metadata"]; exists {
		if metadata, ok := metadataVariant.Value().(map[string]dbus.Variant); ok {
			info := ParseMetadata(metadata)
			if info != w.track {
				w.track = info
				changed = true
			}
		}
	}

	if statusVariant, exists := changedProps["PlaybackStatus"]; exists {
		if status, ok := statusVariant.Value().(string); ok && status != w.status {
			w.status = status
			changed = true
		}
	}

	if changed {
		w.position = w.freshPosition()
		w.emit(ctx, w.playerUpdate())
		return
	}

	if positionVariant, exists := changedProps["Position"]; exists {
		w.position = microsToSeconds(positionVariant.Value())
		w.emit(ctx, Event{Kind: EventSeeked, Track: w.track, Position: w.position, Service: w.service})
	}
}

func (w *Watcher) handleSeeked(ctx context.Context, sig *dbus.Signal) {
	if len(sig.Body) < 1 || !w.fromActive(sig) {
		return
	}

	w.position = microsToSeconds(sig.Body[0])
	w.emit(ctx, Event{Kind: EventSeeked, Track: w.track, Position: w.position, Service: w.service})
}
