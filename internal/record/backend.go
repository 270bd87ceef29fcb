package record

import (
	"context"
	"io"
	"time"

	"github.com/greenapple/dental/internal/domain/attachment"
	"github.com/greenapple/dental/internal/domain/patient"
	"github.com/greenapple/dental/internal/domain/visit"
	"github.com/greenapple/dental/internal/platform/blobstore"
)

// Backend is the persistence surface the record relies on.
type Backend interface {
	// FindPatientByID returns nil without error when no such patient exists.
	FindPatientByID(ctx context.Context, id int64) (*patient.Patient, error)
	UpsertPatient(ctx context.Context, p *patient.Patient) (int64, error)
	UpdatePatientOnly(ctx context.Context, p *patient.Patient) error

	GetSessionsByPatient(ctx context.Context, patientID int64) ([]visit.WithItems, error)
	// SaveVisitWithSessions persists the patient and every session of req
	// atomically. SessionIDs must be aligned with req.Sessions.
	SaveVisitWithSessions(ctx context.Context, req *visit.SaveRequest) (visit.SaveResult, error)
	CreateDiagnosticUpdateSession(ctx context.Context, u visit.DiagnosticUpdate) (int64, error)

	CreateAttachment(ctx context.Context, patientID int64, sessionID *int64, m attachment.Meta) (int64, error)
	SaveAttachmentsWithoutSession(ctx context.Context, patientID int64, metas []attachment.Meta) ([]int64, error)
	DeleteAttachment(ctx context.Context, id int64) error
	ListAttachments(ctx context.Context, patientID int64) ([]*attachment.Attachment, error)
}

// FileStore writes attachment bytes. blobstore.DiskStore satisfies it.
type FileStore interface {
	Save(ctx context.Context, patientID int64, dateHint string, name string, content io.Reader) (blobstore.StoredFile, error)
}

// SaveObserver receives save and load outcomes, typically for metrics.
type SaveObserver interface {
	ObserveSave(outcome string, d time.Duration)
	ObserveLoad(ok bool)
}

type nopObserver struct{}

func (nopObserver) ObserveSave(string, time.Duration) {}
func (nopObserver) ObserveLoad(bool)                  {}
