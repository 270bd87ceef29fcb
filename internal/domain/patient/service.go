package patient

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// SearchLimit caps the number of patients a search returns.
const SearchLimit = 50

type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func normalize(p *Patient) {
	p.FullName = strings.TrimSpace(p.FullName)
	p.DocID = strings.TrimSpace(p.DocID)
	p.Email = strings.TrimSpace(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)
	p.EmergencyPhone = strings.TrimSpace(p.EmergencyPhone)
	p.DateOfBirth = strings.TrimSpace(p.DateOfBirth)
}

func (s *Service) FindByID(ctx context.Context, id int64) (*Patient, error) {
	if id <= 0 {
		return nil, ErrMissingID
	}
	return s.repo.FindByID(ctx, id)
}

func (s *Service) Search(ctx context.Context, query string) ([]*Patient, error) {
	return s.repo.Search(ctx, strings.TrimSpace(query), SearchLimit)
}

func (s *Service) ListActive(ctx context.Context, limit, offset int) ([]ListEntry, int, error) {
	return s.repo.ListActive(ctx, limit, offset)
}

// Upsert inserts a patient without id or updates the profile of an existing
// one, returning the id either way.
func (s *Service) Upsert(ctx context.Context, p *Patient) (int64, error) {
	normalize(p)
	if !p.Addressable() {
		return 0, ErrNotAddressable
	}
	if p.ID > 0 {
		if err := s.repo.Update(ctx, p); err != nil {
			return 0, err
		}
		return p.ID, nil
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return 0, err
	}
	return p.ID, nil
}

// UpdateOnly never inserts.
func (s *Service) UpdateOnly(ctx context.Context, p *Patient) error {
	if p.ID <= 0 {
		return ErrMissingID
	}
	normalize(p)
	if !p.Addressable() {
		return ErrNotAddressable
	}
	return s.repo.Update(ctx, p)
}

func (s *Service) MarkContacted(ctx context.Context, id int64, contactType string) error {
	if id <= 0 {
		return ErrMissingID
	}
	if !ContactTypes[contactType] {
		return fmt.Errorf("%w: %q", ErrInvalidContactType, contactType)
	}
	return s.repo.MarkContacted(ctx, id, contactType, s.now())
}
