// Package events publishes service lifecycle events to an external sink.
package events

import (
	"context"
	"errors"
	"time"

	"bgservice/internal/controller"
)

// ErrSinkClosed is returned by Publish after Close.
var ErrSinkClosed = errors.New("event sink is closed")

// Kind distinguishes state changes from periodic snapshots.
type Kind string

const (
	KindTransition Kind = "transition"
	KindHeartbeat  Kind = "heartbeat"
)

// Event is the record written to every sink.
type Event struct {
	Service    string    `json:"service"`
	Kind       Kind      `json:"kind"`
	From       string    `json:"from,omitempty"`
	To         string    `json:"to"`
	Trigger    string    `json:"trigger,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	Hostname   string    `json:"hostname"`
	PID        int       `json:"pid"`
	RSSBytes   uint64    `json:"rss_bytes,omitempty"`
	CPUPercent float64   `json:"cpu_percent,omitempty"`
}

// FromTransition builds a transition event. Hostname and PID are filled in
// by the Dispatcher.
func FromTransition(tr controller.Transition) *Event {
	return &Event{
		Service:   tr.Service,
		Kind:      KindTransition,
		From:      tr.From.String(),
		To:        tr.To.String(),
		Trigger:   string(tr.Trigger),
		Timestamp: tr.At,
	}
}

// Sink delivers events to a destination.
type Sink interface {
	// Publish transmits one event.
	Publish(ctx context.Context, e *Event) error

	// Close releases any resources held by the sink.
	Close() error
}

// Discard is a sink that drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, *Event) error { return nil }
func (Discard) Close() error                          { return nil }
