// Package store persists the operator's token pair between console restarts.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrNotFound is returned by Load when nothing is persisted.
	ErrNotFound = errors.New("no persisted session")
	// ErrCorrupt is returned when persisted data cannot be read back.
	ErrCorrupt = errors.New("persisted session is unreadable")
)

// Record is what survives a restart: the token pair, the isLoggedIn flag and
// a little context about the login.
type Record struct {
	AccessToken  string     `json:"access_token"`
	RefreshToken string     `json:"refresh_token"`
	LoggedIn     bool       `json:"isLoggedIn"`
	UserID       *int64     `json:"userId,omitempty"`
	LoggedInAt   *time.Time `json:"loggedInAt,omitempty"`
	Device       string     `json:"device,omitempty"`
}

func encode(rec *Record) ([]byte, error) {
	if rec == nil {
		return nil, errors.New("record is required")
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal session record: %w", err)
	}
	return data, nil
}

func decode(data []byte) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return &rec, nil
}

func copyRecord(rec *Record) *Record {
	out := *rec
	if rec.UserID != nil {
		id := *rec.UserID
		out.UserID = &id
	}
	if rec.LoggedInAt != nil {
		at := *rec.LoggedInAt
		out.LoggedInAt = &at
	}
	return &out
}
