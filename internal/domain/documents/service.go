package documents

import (
	"context"
	"strings"
	"time"
)

type Service struct {
	templates ConsentTemplateRepository
	consents  ConsentRepository
	texts     TextTemplateRepository
	now       func() time.Time
}

func NewService(templates ConsentTemplateRepository, consents ConsentRepository, texts TextTemplateRepository) *Service {
	return &Service{templates: templates, consents: consents, texts: texts, now: time.Now}
}

// -- Consent templates --

func (s *Service) ListConsentTemplates(ctx context.Context, includeInactive bool) ([]*ConsentTemplate, error) {
	out, err := s.templates.List(ctx, includeInactive)
	if out == nil && err == nil {
		out = []*ConsentTemplate{}
	}
	return out, err
}

func (s *Service) GetConsentTemplate(ctx context.Context, id int64) (*ConsentTemplate, error) {
	return s.templates.GetByID(ctx, id)
}

func (s *Service) CreateConsentTemplate(ctx context.Context, t *ConsentTemplate) error {
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return ErrMissingName
	}
	t.Active = true
	return s.templates.Create(ctx, t)
}

func (s *Service) UpdateConsentTemplate(ctx context.Context, t *ConsentTemplate) error {
	if t.ID <= 0 {
		return ErrNotFound
	}
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return ErrMissingName
	}
	return s.templates.Update(ctx, t)
}

func (s *Service) DeleteConsentTemplate(ctx context.Context, id int64) error {
	return s.templates.Delete(ctx, id)
}

// -- Informed consents --

func (s *Service) CreateConsent(ctx context.Context, c *InformedConsent) error {
	if c.PatientID <= 0 {
		return ErrMissingPatient
	}
	if strings.TrimSpace(c.SignatureData) == "" {
		return ErrMissingSignature
	}
	c.SignedBy = strings.TrimSpace(c.SignedBy)
	if c.SignedBy == "" {
		return ErrMissingSigner
	}
	if c.SignedAt.IsZero() {
		c.SignedAt = s.now()
	}
	return s.consents.Create(ctx, c)
}

func (s *Service) GetConsent(ctx context.Context, id int64) (*InformedConsent, error) {
	return s.consents.GetByID(ctx, id)
}

func (s *Service) ListConsentsByPatient(ctx context.Context, patientID int64) ([]*InformedConsent, error) {
	if patientID <= 0 {
		return nil, ErrMissingPatient
	}
	out, err := s.consents.ListByPatient(ctx, patientID)
	if out == nil && err == nil {
		out = []*InformedConsent{}
	}
	return out, err
}

// -- Text templates --

func (s *Service) ListTextTemplates(ctx context.Context, kind string) ([]*TextTemplate, error) {
	if kind != "" && !validKinds[kind] {
		return nil, ErrInvalidKind
	}
	out, err := s.texts.List(ctx, kind)
	if out == nil && err == nil {
		out = []*TextTemplate{}
	}
	return out, err
}

func (s *Service) validateText(t *TextTemplate) error {
	if !validKinds[t.Kind] {
		return ErrInvalidKind
	}
	t.Title = strings.TrimSpace(t.Title)
	if t.Title == "" {
		return ErrMissingName
	}
	return nil
}

func (s *Service) CreateTextTemplate(ctx context.Context, t *TextTemplate) error {
	if err := s.validateText(t); err != nil {
		return err
	}
	t.Active = true
	return s.texts.Create(ctx, t)
}

func (s *Service) UpdateTextTemplate(ctx context.Context, t *TextTemplate) error {
	if t.ID <= 0 {
		return ErrNotFound
	}
	if err := s.validateText(t); err != nil {
		return err
	}
	return s.texts.Update(ctx, t)
}

func (s *Service) DeleteTextTemplate(ctx context.Context, id int64) error {
	return s.texts.Delete(ctx, id)
}

// RenderTextTemplate renders a stored template against rc.
func (s *Service) RenderTextTemplate(ctx context.Context, id int64, rc RenderContext) (string, error) {
	t, err := s.texts.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if rc.Now.IsZero() {
		rc.Now = s.now()
	}
	return Render(t.Body, rc), nil
}
