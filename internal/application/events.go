package application

import (
	"context"
	"time"
)

type EventKind string

const (
	EventScanStarted    EventKind = "scan/started"
	EventScanCompleted  EventKind = "scan/completed"
	EventScanStopped    EventKind = "scan/stopped"
	EventThreatDetected EventKind = "threat/detected"
	EventThreatResolved EventKind = "threat/resolved"
)

// Event is a lifecycle notification for external subscribers.
type Event struct {
	Kind     EventKind      `json:"kind"`
	UserID   string         `json:"user_id"`
	ScanID   string         `json:"scan_id,omitempty"`
	ThreatID string         `json:"threat_id,omitempty"`
	At       time.Time      `json:"at"`
	Data     map[string]any `json:"data,omitempty"`
}

// Publisher port untuk notifikasi keluar. Implementations must not block
// for long; callers do not retry.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
