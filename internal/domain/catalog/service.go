package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	keyTemplates      = "procedure_templates"
	keyDiagnosis      = "diagnosis_options"
	keySigners        = "signers"
	keyReasonTypes    = "reason_types"
	keyPaymentMethods = "payment_methods"
	keyDoctorProfile  = "doctor_profile"
	keySettings       = "user_settings"
)

// Service serves reference data. Wholesale reads are cached for ttl and every
// write drops the affected key. A non-positive ttl disables caching.
type Service struct {
	repo  Repository
	cache *cache.Cache
}

func NewService(repo Repository, ttl time.Duration) *Service {
	s := &Service{repo: repo}
	if ttl > 0 {
		s.cache = cache.New(ttl, ttl*2)
	}
	return s
}

func cached[T any](s *Service, key string, load func() (T, error)) (T, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			return v.(T), nil
		}
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	if s.cache != nil {
		s.cache.Set(key, v, cache.DefaultExpiration)
	}
	return v, nil
}

func (s *Service) invalidate(key string) {
	if s.cache != nil {
		s.cache.Delete(key)
	}
}

// Flush drops every cached read.
func (s *Service) Flush() {
	if s.cache != nil {
		s.cache.Flush()
	}
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}

func cleanName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrMissingName
	}
	return name, nil
}

func (s *Service) ListTemplates(ctx context.Context) ([]*ProcedureTemplate, error) {
	return cached(s, keyTemplates, func() ([]*ProcedureTemplate, error) {
		out, err := s.repo.ListTemplates(ctx)
		return nonNil(out), err
	})
}

// SaveTemplates replaces the active template set.
func (s *Service) SaveTemplates(ctx context.Context, items []TemplateInput) error {
	clean := make([]TemplateInput, 0, len(items))
	for _, in := range items {
		name, err := cleanName(in.Name)
		if err != nil {
			return err
		}
		if in.DefaultPrice < 0 {
			return ErrInvalidPrice
		}
		in.Name = name
		clean = append(clean, in)
	}
	defer s.invalidate(keyTemplates)
	return s.repo.ReplaceTemplates(ctx, clean)
}

func (s *Service) ListDiagnosisOptions(ctx context.Context) ([]*DiagnosisOption, error) {
	return cached(s, keyDiagnosis, func() ([]*DiagnosisOption, error) {
		out, err := s.repo.ListDiagnosisOptions(ctx)
		return nonNil(out), err
	})
}

func (s *Service) SaveDiagnosisOptions(ctx context.Context, items []OptionInput) error {
	clean := make([]OptionInput, 0, len(items))
	for _, in := range items {
		label, err := cleanName(in.Label)
		if err != nil {
			return err
		}
		in.Label = label
		in.Color = strings.TrimSpace(in.Color)
		clean = append(clean, in)
	}
	defer s.invalidate(keyDiagnosis)
	return s.repo.SaveDiagnosisOptions(ctx, clean)
}

func (s *Service) ListSigners(ctx context.Context) ([]*Signer, error) {
	return cached(s, keySigners, func() ([]*Signer, error) {
		out, err := s.repo.ListSigners(ctx)
		return nonNil(out), err
	})
}

func (s *Service) CreateSigner(ctx context.Context, name string) (int64, error) {
	name, err := cleanName(name)
	if err != nil {
		return 0, err
	}
	defer s.invalidate(keySigners)
	return s.repo.CreateSigner(ctx, name)
}

func (s *Service) DeleteSigner(ctx context.Context, id int64) error {
	defer s.invalidate(keySigners)
	return s.repo.DeactivateSigner(ctx, id)
}

func (s *Service) ListReasonTypes(ctx context.Context) ([]*ReasonType, error) {
	return cached(s, keyReasonTypes, func() ([]*ReasonType, error) {
		out, err := s.repo.ListReasonTypes(ctx)
		return nonNil(out), err
	})
}

func (s *Service) CreateReasonType(ctx context.Context, name string) (int64, error) {
	name, err := cleanName(name)
	if err != nil {
		return 0, err
	}
	defer s.invalidate(keyReasonTypes)
	return s.repo.CreateReasonType(ctx, name)
}

func (s *Service) ListPaymentMethods(ctx context.Context) ([]*PaymentMethod, error) {
	return cached(s, keyPaymentMethods, func() ([]*PaymentMethod, error) {
		out, err := s.repo.ListPaymentMethods(ctx)
		return nonNil(out), err
	})
}

func (s *Service) CreatePaymentMethod(ctx context.Context, name string) (int64, error) {
	name, err := cleanName(name)
	if err != nil {
		return 0, err
	}
	defer s.invalidate(keyPaymentMethods)
	return s.repo.CreatePaymentMethod(ctx, name)
}

// GetDoctorProfile returns nil when the clinic has not been set up yet.
func (s *Service) GetDoctorProfile(ctx context.Context) (*DoctorProfile, error) {
	return cached(s, keyDoctorProfile, func() (*DoctorProfile, error) {
		p, err := s.repo.GetDoctorProfile(ctx)
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		return p, err
	})
}

func (s *Service) UpsertDoctorProfile(ctx context.Context, p *DoctorProfile) (int64, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Email = strings.TrimSpace(p.Email)
	p.ClinicName = strings.TrimSpace(p.ClinicName)
	defer s.invalidate(keyDoctorProfile)
	return s.repo.UpsertDoctorProfile(ctx, p)
}

// Settings returns a copy of every stored key/value pair.
func (s *Service) Settings(ctx context.Context) (map[string]string, error) {
	m, err := cached(s, keySettings, func() (map[string]string, error) {
		return s.repo.AllSettings(ctx)
	})
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out, nil
}

func (s *Service) SaveSetting(ctx context.Context, key, value, category string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrMissingKey
	}
	defer s.invalidate(keySettings)
	return s.repo.SaveSetting(ctx, Setting{Key: key, Value: value, Category: category})
}

func (s *Service) ResetSettings(ctx context.Context) error {
	defer s.invalidate(keySettings)
	return s.repo.ResetSettings(ctx, DefaultSettings)
}
