// Package store persists the full event collection as one JSON blob in a
// key-value namespace. Every save rewrites the whole collection.
package store

import (
	"errors"
	"time"

	appLog "timecast/internal/log"
	"timecast/internal/model"
)

// EventsKey is the fixed key holding the serialized collection.
const EventsKey = "event_data"

// ErrNoBlob is returned by Blobs.Get when the key has never been written.
var ErrNoBlob = errors.New("store: no value for key")

// Blobs is a key-value blob namespace.
type Blobs interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
}

// Store loads and overwrites the event collection.
type Store interface {
	Load() []model.Event
	SaveAll(events []model.Event) error
}

// EventStore is the Store over a Blobs namespace.
type EventStore struct {
	blobs Blobs
	loc   *time.Location
}

// New returns an EventStore. loc is the zone dates are rendered in and
// parsed from; nil means time.Local.
func New(blobs Blobs, loc *time.Location) *EventStore {
	if loc == nil {
		loc = time.Local
	}
	return &EventStore{blobs: blobs, loc: loc}
}

// Load returns the stored collection. A missing, unreadable or corrupt blob
// yields an empty collection; the failure is logged, never returned.
func (s *EventStore) Load() []model.Event {
	data, err := s.blobs.Get(EventsKey)
	if err != nil {
		if !errors.Is(err, ErrNoBlob) {
			appLog.Error("event store read failed; using empty collection", err, "key", EventsKey)
		}
		return []model.Event{}
	}
	if len(data) == 0 {
		return []model.Event{}
	}

	events, err := Decode(data, s.loc)
	if err != nil {
		appLog.Error("event store corrupt; using empty collection", err, "key", EventsKey, "bytes", len(data))
		return []model.Event{}
	}
	return events
}

// SaveAll overwrites the stored collection.
func (s *EventStore) SaveAll(events []model.Event) error {
	data, err := Encode(events, s.loc)
	if err != nil {
		return err
	}
	if err := s.blobs.Put(EventsKey, data); err != nil {
		return err
	}
	appLog.Debug("event store saved", "count", len(events), "bytes", len(data))
	return nil
}
