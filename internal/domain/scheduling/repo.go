package scheduling

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("appointment not found")
	ErrMissingPatient = errors.New("patient id is required")
	ErrInvalidStatus  = errors.New("invalid appointment status")
	ErrInvalidRange   = errors.New("appointment must end after it starts")
	ErrSlotTaken      = errors.New("another appointment already starts at this time")
)

type Repository interface {
	Create(ctx context.Context, a *Appointment) error
	Update(ctx context.Context, a *Appointment) error
	FindByID(ctx context.Context, id int64) (*Appointment, error)
	// StartTaken reports whether a non-cancelled appointment other than
	// excludeID starts at exactly startsAt.
	StartTaken(ctx context.Context, startsAt time.Time, excludeID int64) (bool, error)
	ListRange(ctx context.Context, from, to time.Time) ([]*Appointment, error)
	ListUpcoming(ctx context.Context, patientID int64, from time.Time, limit int) ([]*Appointment, error)
	ListPendingReminders(ctx context.Context, from, to time.Time) ([]*Appointment, error)
	SetStatus(ctx context.Context, id int64, status string) error
	MarkReminderSent(ctx context.Context, id int64, at time.Time) error
}
