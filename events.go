package sessionkit

import (
	"io"

	internalevents "github.com/mindwell-app/sessionkit/internal/events"
)

// Event is a structured session lifecycle record emitted by the coordinator:
// logins, logouts, restores, refresh outcomes, role changes, and guard trips.
type Event = internalevents.Event

// EventSink receives [Event] values from the coordinator's dispatcher.
type EventSink = internalevents.Sink

// NoOpSink is an [EventSink] that silently discards all events.
type NoOpSink = internalevents.NoOpSink

// ChannelSink is a buffered channel-based [EventSink], the natural fit for a
// UI layer consuming role-change notifications.
type ChannelSink = internalevents.ChannelSink

// JSONWriterSink is an [EventSink] that writes JSON-encoded events to an
// [io.Writer], one object per line.
type JSONWriterSink = internalevents.JSONWriterSink

// Event types carried in [Event.EventType].
const (
	EventLogin             = internalevents.TypeLogin
	EventRegister          = internalevents.TypeRegister
	EventLogout            = internalevents.TypeLogout
	EventRestore           = internalevents.TypeRestore
	EventRefresh           = internalevents.TypeRefresh
	EventRoleChange        = internalevents.TypeRoleChange
	EventRefreshSuppressed = internalevents.TypeRefreshSuppressed
)

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalevents.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalevents.NewJSONWriterSink(w)
}
