// Package webhook holds the data types shared by the ingestion pipeline:
// the request-scoped event read off the wire and the row persisted for it.
package webhook

import (
	"net"
	"time"

	"github.com/google/uuid"
)

// IncomingEvent is the request-scoped view of a provider callback. It is
// built once by the intake handler and passed down through authentication,
// deduplication, and storage.
type IncomingEvent struct {
	Provider      string
	EventType     string
	Body          []byte
	Signature     string
	SourceAddress string
	ReceivedAt    time.Time
	Headers       map[string]string
}

// StoredEvent is the row persisted to forwarder.raw_webhook_events. Once
// written it is immutable; the core never updates or deletes it.
type StoredEvent struct {
	ID            uuid.UUID         `json:"eventId"`
	Provider      string            `json:"provider"`
	EventType     string            `json:"eventType"`
	Body          []byte            `json:"-"`
	Hash          string            `json:"hash"`
	ReceivedAt    time.Time         `json:"receivedAt"`
	SourceAddress net.IP            `json:"sourceAddress"`
	Headers       map[string]string `json:"headers,omitempty"`
}

// MaxProviderLength and MaxEventTypeLength mirror the column widths of
// raw_webhook_events (provider varchar(50), event_type varchar(100)).
const (
	MaxProviderLength  = 50
	MaxEventTypeLength = 100
	HashLength         = 64

	UnknownEventType = "unknown"
)
