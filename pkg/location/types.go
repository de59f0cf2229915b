package location

import (
	"errors"
	"fmt"
	"time"
)

// Source identifies where a location observation originated.
type Source string

const (
	SourceGPS       Source = "gps"
	SourceNetwork   Source = "network"
	SourceManual    Source = "manual"
	SourceIoTDevice Source = "iot_device"
	SourceEmergency Source = "emergency"
)

// Valid reports whether s is a known source. An empty source is allowed
// and treated as unspecified.
func (s Source) Valid() bool {
	switch s {
	case "", SourceGPS, SourceNetwork, SourceManual, SourceIoTDevice, SourceEmergency:
		return true
	}
	return false
}

// Position is a geographic point in WGS84 coordinates.
type Position struct {
	Longitude float64 `json:"longitude"`
	Latitude  float64 `json:"latitude"`
}

// Validate checks coordinate ranges.
func (p Position) Validate() error {
	if p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("longitude %v out of range [-180,180]", p.Longitude)
	}
	if p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("latitude %v out of range [-90,90]", p.Latitude)
	}
	return nil
}

// Record is a single ingested location observation. Once written a record
// is immutable: it is only ever created or purged wholesale, never updated.
type Record struct {
	// ID is assigned by the store on write.
	ID string `json:"id,omitempty"`

	// SubjectID identifies the tracked entity. Required.
	SubjectID string `json:"subject_id"`

	// DeviceID identifies the originating device. Optional.
	DeviceID string `json:"device_id,omitempty"`

	// Position is required and validated on write.
	Position Position `json:"position"`

	// Timestamp is the instant the observation applies to. It is the
	// sharding and sort key. Defaults to ingest time when zero.
	Timestamp time.Time `json:"timestamp"`

	// Optional numeric telemetry.
	Accuracy     *float64 `json:"accuracy,omitempty"`
	Speed        *float64 `json:"speed,omitempty"`
	Altitude     *float64 `json:"altitude,omitempty"`
	Heading      *float64 `json:"heading,omitempty"`
	BatteryLevel *float64 `json:"battery_level,omitempty"`

	// Source of the observation.
	Source Source `json:"source,omitempty"`

	// NetworkInfo and Context carry nested descriptive metadata
	// (connection type, inferred activity, weather). Opaque to the store,
	// passed through unchanged.
	NetworkInfo map[string]any `json:"network_info,omitempty"`
	Context     map[string]any `json:"context,omitempty"`
}

var (
	ErrMissingSubject = errors.New("record has no subject id")
	ErrInvalidSource  = errors.New("record has unknown source")
)

// Validate checks the record for ingestion. The timestamp is not checked
// here; the write path substitutes ingest time for a zero timestamp.
func (r *Record) Validate() error {
	if r.SubjectID == "" {
		return ErrMissingSubject
	}
	if err := r.Position.Validate(); err != nil {
		return err
	}
	if !r.Source.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidSource, r.Source)
	}
	return nil
}
