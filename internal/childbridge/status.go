// ABOUTME: Child bridge status records and the partial updates merged into them.
// ABOUTME: Update uses pointer fields so absent JSON keys leave values untouched.

package childbridge

// State is the lifecycle state reported for a child bridge.
type State string

const (
	StatePending State = "pending"
	StateOK      State = "ok"
	StateDown    State = "down"
	StateError   State = "error"
)

// Status is one child bridge row. Username is the key.
type Status struct {
	Username        string `json:"username"`
	Identifier      string `json:"identifier"`
	Name            string `json:"name"`
	Plugin          string `json:"plugin"`
	PID             int    `json:"pid"`
	Pin             string `json:"pin"`
	SetupURI        string `json:"setupUri"`
	Status          State  `json:"status"`
	Paired          bool   `json:"paired"`
	ManuallyStopped bool   `json:"manuallyStopped"`
}

// Update is a pushed status change. Nil fields were absent from the event.
type Update struct {
	Username        string  `json:"username"`
	Identifier      *string `json:"identifier,omitempty"`
	Name            *string `json:"name,omitempty"`
	Plugin          *string `json:"plugin,omitempty"`
	PID             *int    `json:"pid,omitempty"`
	Pin             *string `json:"pin,omitempty"`
	SetupURI        *string `json:"setupUri,omitempty"`
	Status          *State  `json:"status,omitempty"`
	Paired          *bool   `json:"paired,omitempty"`
	ManuallyStopped *bool   `json:"manuallyStopped,omitempty"`
}

// FullUpdate converts a complete record into an update that sets every field.
func FullUpdate(s Status) Update {
	return Update{
		Username:        s.Username,
		Identifier:      &s.Identifier,
		Name:            &s.Name,
		Plugin:          &s.Plugin,
		PID:             &s.PID,
		Pin:             &s.Pin,
		SetupURI:        &s.SetupURI,
		Status:          &s.Status,
		Paired:          &s.Paired,
		ManuallyStopped: &s.ManuallyStopped,
	}
}

// merge copies the present fields of u into s.
func (s *Status) merge(u Update) {
	if u.Identifier != nil {
		s.Identifier = *u.Identifier
	}
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.Plugin != nil {
		s.Plugin = *u.Plugin
	}
	if u.PID != nil {
		s.PID = *u.PID
	}
	if u.Pin != nil {
		s.Pin = *u.Pin
	}
	if u.SetupURI != nil {
		s.SetupURI = *u.SetupURI
	}
	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.Paired != nil {
		s.Paired = *u.Paired
	}
	if u.ManuallyStopped != nil {
		s.ManuallyStopped = *u.ManuallyStopped
	}
}
