package models

import (
	"errors"
	"time"
)

// LoadStatus is the outcome of one panel load.
type LoadStatus string

const (
	LoadOK    LoadStatus = "ok"
	LoadError LoadStatus = "error"
)

// LoadRecord is the history entry written after every panel load attempt.
type LoadRecord struct {
	ID         string     `json:"id"`
	PanelID    string     `json:"panel_id"`
	Source     string     `json:"source"`
	Generation uint64     `json:"generation"`
	Status     LoadStatus `json:"status"`
	ErrorKind  Kind       `json:"error_kind,omitempty"`
	Message    string     `json:"message,omitempty"`
	Totals     VoteTotals `json:"totals"`
	Rows       int        `json:"rows"`
	LoadedAt   time.Time  `json:"loaded_at"`
}

// Validate checks load record field constraints.
func (r *LoadRecord) Validate() error {
	if r.PanelID == "" {
		return errors.New("panel ID must not be empty")
	}
	if r.Status != LoadOK && r.Status != LoadError {
		return errors.New("load status must be ok or error")
	}
	if r.Status == LoadError && r.Message == "" {
		return errors.New("failed load must carry a message")
	}
	if r.Rows < 0 {
		return errors.New("row count must not be negative")
	}
	if r.Totals.Harris < 0 || r.Totals.Trump < 0 {
		return errors.New("vote totals must not be negative")
	}
	if r.LoadedAt.IsZero() {
		return errors.New("loaded at must be set")
	}
	if r.LoadedAt.After(time.Now().Add(time.Minute)) {
		return errors.New("loaded at must not be in the future")
	}
	return nil
}
