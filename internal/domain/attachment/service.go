package attachment

import (
	"context"
	"strings"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func fromMeta(patientID int64, sessionID *int64, m Meta) (*Attachment, error) {
	if strings.TrimSpace(m.StorageKey) == "" {
		return nil, ErrMissingKey
	}
	return &Attachment{
		PatientID:  patientID,
		SessionID:  sessionID,
		Kind:       KindFile,
		Filename:   m.Filename,
		MimeType:   m.MimeType,
		SizeBytes:  m.Bytes,
		StorageKey: m.StorageKey,
	}, nil
}

// Create records metadata for a file already written to the file store.
func (s *Service) Create(ctx context.Context, patientID int64, sessionID *int64, m Meta) (int64, error) {
	if patientID <= 0 {
		return 0, ErrMissingPatient
	}
	a, err := fromMeta(patientID, sessionID, m)
	if err != nil {
		return 0, err
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return 0, err
	}
	return a.ID, nil
}

// SaveWithoutSession records patient-general files. Ids come back in input
// order.
func (s *Service) SaveWithoutSession(ctx context.Context, patientID int64, metas []Meta) ([]int64, error) {
	if patientID <= 0 {
		return nil, ErrMissingPatient
	}
	items := make([]*Attachment, 0, len(metas))
	for _, m := range metas {
		a, err := fromMeta(patientID, nil, m)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	if err := s.repo.CreateBatch(ctx, items); err != nil {
		return nil, err
	}
	ids := make([]int64, len(items))
	for i, a := range items {
		ids[i] = a.ID
	}
	return ids, nil
}

// Delete drops the metadata row only.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func (s *Service) ListByPatient(ctx context.Context, patientID int64) ([]*Attachment, error) {
	if patientID <= 0 {
		return nil, ErrMissingPatient
	}
	out, err := s.repo.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []*Attachment{}
	}
	return out, nil
}

// MoveToSession re-scopes an attachment; nil makes it patient-general.
func (s *Service) MoveToSession(ctx context.Context, id int64, sessionID *int64) error {
	return s.repo.MoveToSession(ctx, id, sessionID)
}
