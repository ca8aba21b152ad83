// Package inquiry stores internally booked appointment requests.
package inquiry

import (
	"errors"
	"time"
)

// DefaultListLimit is how many of the most recent rows the board reads.
const DefaultListLimit = 500

// ErrMissingStart is returned when an insert has no start time.
var ErrMissingStart = errors.New("inquiry start time is required")

// Row is one record of the inquiry table. Start and End are ISO 8601 strings;
// End is nil when the writer did not record one.
type Row struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Start     string    `json:"start"`
	End       *string   `json:"end"`
}

// NewRow is the payload for Insert.
type NewRow struct {
	Name  string
	Email string
	Phone string
	Start time.Time
	End   *time.Time
}

func (n NewRow) validate() error {
	if n.Start.IsZero() {
		return ErrMissingStart
	}
	return nil
}

func formatTimes(start time.Time, end *time.Time) (string, *string) {
	s := start.Format(time.RFC3339)
	if end == nil {
		return s, nil
	}
	e := end.Format(time.RFC3339)
	return s, &e
}
