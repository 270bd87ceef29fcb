package patient

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound           = errors.New("patient not found")
	ErrNotAddressable     = errors.New("full name and document id are required")
	ErrMissingID          = errors.New("patient id is required")
	ErrInvalidContactType = errors.New("invalid contact type")
)

type Repository interface {
	FindByID(ctx context.Context, id int64) (*Patient, error)
	Search(ctx context.Context, query string, limit int) ([]*Patient, error)
	ListActive(ctx context.Context, limit, offset int) ([]ListEntry, int, error)
	Create(ctx context.Context, p *Patient) error
	// Update writes the profile fields only; debt and contact columns are
	// left alone.
	Update(ctx context.Context, p *Patient) error
	MarkContacted(ctx context.Context, id int64, contactType string, at time.Time) error
}
