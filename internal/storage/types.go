package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage. Driver "" or "none" disables it.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Transition is one accepted status change.
// Keep it compact and schema-stable.
type Transition struct {
	At          time.Time `json:"at"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	RemainingNS int64     `json:"remaining_ns"`
	Minutes     int64     `json:"minutes"`
	Count       uint8     `json:"count"`
	Total       uint8     `json:"total"`
}
