package domain

import (
	"errors"
	"time"
)

// Notification is a message shown in a user's inbox. The JSON form is what
// producers put on the notifications topic.
type Notification struct {
	ID        string         `json:"id,omitempty"`
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Recipient string         `json:"recipient"`
	DedupeKey string         `json:"dedupeKey"`
	Data      map[string]any `json:"data,omitempty"`
	CreatedAt time.Time      `json:"createdAt,omitzero"`
}

var ErrMalformed = errors.New("malformed notification")

func (n Notification) Validate() error {
	switch {
	case n.Type == "":
		return errors.Join(ErrMalformed, errors.New("missing type"))
	case n.Recipient == "":
		return errors.Join(ErrMalformed, errors.New("missing recipient"))
	case n.DedupeKey == "":
		return errors.Join(ErrMalformed, errors.New("missing dedupe key"))
	}
	return nil
}
