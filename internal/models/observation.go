package models

import (
	"fmt"
	"strings"
	"time"
)

// StoreStatus is the polled operational state of a store.
type StoreStatus uint8

const (
	StatusInactive StoreStatus = iota
	StatusActive
)

// ParseStoreStatus accepts "active" or "inactive" (case-insensitive).
func ParseStoreStatus(s string) (StoreStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return StatusActive, nil
	case "inactive":
		return StatusInactive, nil
	}
	return 0, fmt.Errorf("unknown store status %q", s)
}

func (s StoreStatus) String() string {
	if s == StatusActive {
		return "active"
	}
	return "inactive"
}

// Observation is a single status poll of a store.
type Observation struct {
	StoreID   string
	Timestamp time.Time
	Status    StoreStatus
}

// DefaultTimezone is used for stores without a timezone record.
const DefaultTimezone = "America/Chicago"

// StoreTimezone maps a store to an IANA zone id.
type StoreTimezone struct {
	StoreID string
	Zone    string
}
