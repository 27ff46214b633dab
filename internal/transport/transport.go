package transport

import (
	"errors"
	"time"

	"audiomap/internal/audio"
)

// Transport pushes directory updates to some consumer.
// Implementations should be thread-safe.
type Transport interface {
	Send(data any) error
	Close() error
}

// Message types pushed to clients.
const (
	TypeSnapshot      = "snapshot"
	TypeRefreshFailed = "refresh_failed"
)

// Message is the envelope every transport sends.
type Message struct {
	Type       string          `json:"type"`
	Generation uint64          `json:"generation"`
	Timestamp  time.Time       `json:"timestamp"`
	Snapshot   *audio.Snapshot `json:"snapshot,omitempty"`
	Counts     *audio.Counts   `json:"counts,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// GenerationNumber reports the snapshot generation the message refers to.
func (m Message) GenerationNumber() uint64 { return m.Generation }

// SnapshotMessage wraps s for sending.
func SnapshotMessage(s audio.Snapshot) Message {
	c := audio.CountDevices(s.Devices)
	return Message{
		Type:       TypeSnapshot,
		Generation: s.Generation,
		Timestamp:  s.TakenAt,
		Snapshot:   &s,
		Counts:     &c,
	}
}

// FailureMessage reports a refresh that kept snapshot generation.
func FailureMessage(generation uint64, err string) Message {
	return Message{
		Type:       TypeRefreshFailed,
		Generation: generation,
		Timestamp:  time.Now(),
		Error:      err,
	}
}

// Fanout sends to every transport it holds.
type Fanout []Transport

func (f Fanout) Send(data any) error {
	var errs []error
	for _, t := range f {
		if err := t.Send(data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, t := range f {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Transport = Fanout(nil)
