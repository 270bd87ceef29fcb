package documents

import (
	"context"
	"errors"
)

var (
	ErrNotFound         = errors.New("document not found")
	ErrMissingName      = errors.New("name is required")
	ErrMissingPatient   = errors.New("patient id is required")
	ErrMissingSignature = errors.New("signature is required")
	ErrMissingSigner    = errors.New("signed_by is required")
	ErrInvalidKind      = errors.New("invalid text template kind")
)

type ConsentTemplateRepository interface {
	List(ctx context.Context, includeInactive bool) ([]*ConsentTemplate, error)
	GetByID(ctx context.Context, id int64) (*ConsentTemplate, error)
	Create(ctx context.Context, t *ConsentTemplate) error
	Update(ctx context.Context, t *ConsentTemplate) error
	Delete(ctx context.Context, id int64) error
}

type ConsentRepository interface {
	Create(ctx context.Context, c *InformedConsent) error
	GetByID(ctx context.Context, id int64) (*InformedConsent, error)
	ListByPatient(ctx context.Context, patientID int64) ([]*InformedConsent, error)
}

type TextTemplateRepository interface {
	List(ctx context.Context, kind string) ([]*TextTemplate, error)
	GetByID(ctx context.Context, id int64) (*TextTemplate, error)
	Create(ctx context.Context, t *TextTemplate) error
	Update(ctx context.Context, t *TextTemplate) error
	Delete(ctx context.Context, id int64) error
}
