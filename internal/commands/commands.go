// Package commands assembles the clinic services on top of one database and
// exposes them to the patient record as a local backend.
package commands

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/greenapple/dental/internal/domain/attachment"
	"github.com/greenapple/dental/internal/domain/catalog"
	"github.com/greenapple/dental/internal/domain/documents"
	"github.com/greenapple/dental/internal/domain/patient"
	"github.com/greenapple/dental/internal/domain/scheduling"
	"github.com/greenapple/dental/internal/domain/visit"
	"github.com/greenapple/dental/internal/platform/blobstore"
	"github.com/greenapple/dental/internal/platform/db"
	"github.com/greenapple/dental/internal/record"
)

// Services is the full command surface of the clinic.
type Services struct {
	Patients     *patient.Service
	Visits       *visit.Service
	Attachments  *attachment.Service
	Catalog      *catalog.Service
	Documents    *documents.Service
	Appointments *scheduling.Service
	Files        *blobstore.DiskStore
}

// Options configures New.
type Options struct {
	CatalogCacheTTL time.Duration
	Logger          zerolog.Logger
}

// New wires every service to gdb and files.
func New(gdb *gorm.DB, files *blobstore.DiskStore, opts Options) *Services {
	patients := patient.NewRepoGorm(gdb)
	inTx := func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.InTx(ctx, gdb, fn)
	}
	return &Services{
		Patients: patient.NewService(patients),
		Visits: visit.NewService(
			visit.NewSessionRepoGorm(gdb),
			visit.NewDebtRepoGorm(gdb),
			patients,
			inTx,
			opts.Logger.With().Str("component", "visit").Logger(),
		),
		Attachments: attachment.NewService(attachment.NewRepoGorm(gdb)),
		Catalog:     catalog.NewService(catalog.NewRepoGorm(gdb), opts.CatalogCacheTTL),
		Documents: documents.NewService(
			documents.NewConsentTemplateRepoGorm(gdb),
			documents.NewConsentRepoGorm(gdb),
			documents.NewTextTemplateRepoGorm(gdb),
		),
		Appointments: scheduling.NewService(scheduling.NewRepoGorm(gdb)),
		Files:        files,
	}
}

// Local adapts the services to record.Backend.
func (s *Services) Local() *Local { return &Local{s: s} }

// NewRecord returns a patient record backed by the local services and file
// store. Zero fields of opts keep the record defaults.
func (s *Services) NewRecord(opts record.Options) *record.Record {
	if opts.Files == nil && s.Files != nil {
		opts.Files = s.Files
	}
	return record.New(s.Local(), opts)
}

// ProcedureTemplates returns the active templates by value, ready for
// Record.NewDraftSession.
func (s *Services) ProcedureTemplates(ctx context.Context) ([]catalog.ProcedureTemplate, error) {
	list, err := s.Catalog.ListTemplates(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]catalog.ProcedureTemplate, 0, len(list))
	for _, t := range list {
		if t != nil && t.Active {
			out = append(out, *t)
		}
	}
	return out, nil
}

// Local is the in-process record.Backend.
type Local struct {
	s *Services
}

var _ record.Backend = (*Local)(nil)

func (l *Local) FindPatientByID(ctx context.Context, id int64) (*patient.Patient, error) {
	p, err := l.s.Patients.FindByID(ctx, id)
	if errors.Is(err, patient.ErrNotFound) || errors.Is(err, patient.ErrMissingID) {
		return nil, nil
	}
	return p, err
}

func (l *Local) UpsertPatient(ctx context.Context, p *patient.Patient) (int64, error) {
	return l.s.Patients.Upsert(ctx, p)
}

func (l *Local) UpdatePatientOnly(ctx context.Context, p *patient.Patient) error {
	return l.s.Patients.UpdateOnly(ctx, p)
}

func (l *Local) GetSessionsByPatient(ctx context.Context, patientID int64) ([]visit.WithItems, error) {
	return l.s.Visits.GetSessionsByPatient(ctx, patientID)
}

func (l *Local) SaveVisitWithSessions(ctx context.Context, req *visit.SaveRequest) (visit.SaveResult, error) {
	return l.s.Visits.SaveVisitWithSessions(ctx, req)
}

func (l *Local) CreateDiagnosticUpdateSession(ctx context.Context, u visit.DiagnosticUpdate) (int64, error) {
	return l.s.Visits.CreateDiagnosticUpdateSession(ctx, u)
}

func (l *Local) CreateAttachment(ctx context.Context, patientID int64, sessionID *int64, m attachment.Meta) (int64, error) {
	return l.s.Attachments.Create(ctx, patientID, sessionID, m)
}

func (l *Local) SaveAttachmentsWithoutSession(ctx context.Context, patientID int64, metas []attachment.Meta) ([]int64, error) {
	return l.s.Attachments.SaveWithoutSession(ctx, patientID, metas)
}

func (l *Local) DeleteAttachment(ctx context.Context, id int64) error {
	return l.s.Attachments.Delete(ctx, id)
}

func (l *Local) ListAttachments(ctx context.Context, patientID int64) ([]*attachment.Attachment, error) {
	return l.s.Attachments.ListByPatient(ctx, patientID)
}
