package visit

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound       = errors.New("session not found")
	ErrSavedReadOnly  = errors.New("cannot delete a saved session")
	ErrMissingPatient = errors.New("patient id is required")
)

type SessionRepository interface {
	// ListByPatient returns sessions ordered date DESC, id DESC with items in
	// sort order.
	ListByPatient(ctx context.Context, patientID int64) ([]WithItems, error)
	FindByID(ctx context.Context, id int64) (*Session, error)
	// Save inserts when s.ID is zero and updates otherwise.
	Save(ctx context.Context, s *Session) error
	ReplaceItems(ctx context.Context, sessionID int64, items []Item) error
	// SumSavedBalance adds up balance over saved sessions of the patient,
	// restricted to id < beforeID when beforeID is positive.
	SumSavedBalance(ctx context.Context, patientID, beforeID int64) (float64, error)
	// LatestCumulative reads cumulative_balance of the most recent saved
	// session (date DESC, id DESC), restricted to id < beforeID when positive.
	// A patient without sessions has zero.
	LatestCumulative(ctx context.Context, patientID, beforeID int64) (float64, error)
	Delete(ctx context.Context, id int64) error
}

// DebtState is the receivable tracking columns of a patient.
type DebtState struct {
	OpenedAt *string
	Archived bool
}

type DebtRepository interface {
	State(ctx context.Context, patientID int64) (DebtState, error)
	Open(ctx context.Context, patientID int64, openedAt string) error
	Close(ctx context.Context, patientID int64) error
	SetArchived(ctx context.Context, patientID int64, archived bool, at time.Time) error
	// SetOpenedAt fills a missing opening date without touching archive time.
	SetOpenedAt(ctx context.Context, patientID int64, openedAt string) error
	Debtors(ctx context.Context, includeArchived bool) ([]DebtSummary, error)
	// RepairOpenedDates sets debt_opened_at from the latest saved session for
	// active patients with a positive balance and no opening date.
	RepairOpenedDates(ctx context.Context) (int64, error)
}

// TxFunc runs fn in a transaction carried on the context it receives.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error
