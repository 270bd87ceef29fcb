package attachment

import (
	"context"
	"errors"
)

var (
	ErrNotFound       = errors.New("attachment not found")
	ErrMissingPatient = errors.New("patient id is required")
	ErrMissingKey     = errors.New("storage key is required")
)

type Repository interface {
	Create(ctx context.Context, a *Attachment) error
	CreateBatch(ctx context.Context, items []*Attachment) error
	Delete(ctx context.Context, id int64) error
	ListByPatient(ctx context.Context, patientID int64) ([]*Attachment, error)
	MoveToSession(ctx context.Context, id int64, sessionID *int64) error
}
