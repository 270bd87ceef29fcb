package catalog

import (
	"context"
	"errors"
)

var (
	ErrNotFound     = errors.New("catalog entry not found")
	ErrMissingName  = errors.New("name is required")
	ErrMissingKey   = errors.New("setting key is required")
	ErrInvalidPrice = errors.New("default price must not be negative")
)

// Repository persists reference data. List methods return active rows only.
type Repository interface {
	ListTemplates(ctx context.Context) ([]*ProcedureTemplate, error)
	ReplaceTemplates(ctx context.Context, items []TemplateInput) error

	ListDiagnosisOptions(ctx context.Context) ([]*DiagnosisOption, error)
	SaveDiagnosisOptions(ctx context.Context, items []OptionInput) error

	ListSigners(ctx context.Context) ([]*Signer, error)
	CreateSigner(ctx context.Context, name string) (int64, error)
	DeactivateSigner(ctx context.Context, id int64) error

	ListReasonTypes(ctx context.Context) ([]*ReasonType, error)
	CreateReasonType(ctx context.Context, name string) (int64, error)

	ListPaymentMethods(ctx context.Context) ([]*PaymentMethod, error)
	CreatePaymentMethod(ctx context.Context, name string) (int64, error)

	GetDoctorProfile(ctx context.Context) (*DoctorProfile, error)
	UpsertDoctorProfile(ctx context.Context, p *DoctorProfile) (int64, error)

	AllSettings(ctx context.Context) (map[string]string, error)
	SaveSetting(ctx context.Context, s Setting) error
	ResetSettings(ctx context.Context, defaults []Setting) error
}
