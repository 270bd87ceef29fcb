package catalog

import (
	"context"
	"errors"
	"testing"
	"time"
)

// -- Mock Repository --

type mockRepo struct {
	templates []*ProcedureTemplate
	signers   map[int64]*Signer
	settings  map[string]string
	profile   *DoctorProfile
	nextID    int64
	loads     map[string]int
}

func newMockRepo() *mockRepo {
	return &mockRepo{
		signers:  make(map[int64]*Signer),
		settings: make(map[string]string),
		loads:    make(map[string]int),
	}
}

func (m *mockRepo) ListTemplates(context.Context) ([]*ProcedureTemplate, error) {
	m.loads[keyTemplates]++
	return m.templates, nil
}

func (m *mockRepo) ReplaceTemplates(_ context.Context, items []TemplateInput) error {
	m.templates = nil
	for _, in := range items {
		if !activeOr(in.Active) {
			continue
		}
		m.nextID++
		m.templates = append(m.templates, &ProcedureTemplate{ID: m.nextID, Name: in.Name, DefaultPrice: in.DefaultPrice, Active: true})
	}
	return nil
}

func (m *mockRepo) ListDiagnosisOptions(context.Context) ([]*DiagnosisOption, error) {
	m.loads[keyDiagnosis]++
	return nil, nil
}

func (m *mockRepo) SaveDiagnosisOptions(context.Context, []OptionInput) error { return nil }

func (m *mockRepo) ListSigners(context.Context) ([]*Signer, error) {
	m.loads[keySigners]++
	var out []*Signer
	for _, s := range m.signers {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *mockRepo) CreateSigner(_ context.Context, name string) (int64, error) {
	m.nextID++
	m.signers[m.nextID] = &Signer{ID: m.nextID, Name: name, Active: true}
	return m.nextID, nil
}

func (m *mockRepo) DeactivateSigner(_ context.Context, id int64) error {
	s, ok := m.signers[id]
	if !ok {
		return ErrNotFound
	}
	s.Active = false
	return nil
}

func (m *mockRepo) ListReasonTypes(context.Context) ([]*ReasonType, error) { return nil, nil }

func (m *mockRepo) CreateReasonType(context.Context, string) (int64, error) {
	m.nextID++
	return m.nextID, nil
}

func (m *mockRepo) ListPaymentMethods(context.Context) ([]*PaymentMethod, error) { return nil, nil }

func (m *mockRepo) CreatePaymentMethod(context.Context, string) (int64, error) {
	m.nextID++
	return m.nextID, nil
}

func (m *mockRepo) GetDoctorProfile(context.Context) (*DoctorProfile, error) {
	m.loads[keyDoctorProfile]++
	if m.profile == nil {
		return nil, ErrNotFound
	}
	return m.profile, nil
}

func (m *mockRepo) UpsertDoctorProfile(_ context.Context, p *DoctorProfile) (int64, error) {
	cp := *p
	cp.ID = 1
	m.profile = &cp
	return 1, nil
}

func (m *mockRepo) AllSettings(context.Context) (map[string]string, error) {
	m.loads[keySettings]++
	out := make(map[string]string, len(m.settings))
	for k, v := range m.settings {
		out[k] = v
	}
	return out, nil
}

func (m *mockRepo) SaveSetting(_ context.Context, s Setting) error {
	m.settings[s.Key] = s.Value
	return nil
}

func (m *mockRepo) ResetSettings(_ context.Context, defaults []Setting) error {
	m.settings = make(map[string]string)
	for _, s := range defaults {
		m.settings[s.Key] = s.Value
	}
	return nil
}

// -- Tests --

func TestService_ReadsAreCached(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := svc.ListTemplates(ctx); err != nil {
			t.Fatal(err)
		}
	}
	if repo.loads[keyTemplates] != 1 {
		t.Errorf("expected 1 repository load, got %d", repo.loads[keyTemplates])
	}
}

func TestService_WriteInvalidates(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, time.Minute)
	ctx := context.Background()

	if _, err := svc.CreateSigner(ctx, "Dra. Ana"); err != nil {
		t.Fatal(err)
	}
	list, _ := svc.ListSigners(ctx)
	if len(list) != 1 {
		t.Fatalf("expected 1 signer, got %d", len(list))
	}

	if err := svc.DeleteSigner(ctx, list[0].ID); err != nil {
		t.Fatal(err)
	}
	list, _ = svc.ListSigners(ctx)
	if len(list) != 0 {
		t.Errorf("deactivated signer must not be listed, got %d", len(list))
	}
	if repo.loads[keySigners] != 2 {
		t.Errorf("expected a reload after delete, got %d loads", repo.loads[keySigners])
	}
}

func TestService_ZeroTTLDisablesCache(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo, 0)
	ctx := context.Background()
	svc.ListDiagnosisOptions(ctx)
	svc.ListDiagnosisOptions(ctx)
	if repo.loads[keyDiagnosis] != 2 {
		t.Errorf("expected 2 loads without cache, got %d", repo.loads[keyDiagnosis])
	}
}

func TestService_ListsNeverNil(t *testing.T) {
	svc := NewService(newMockRepo(), time.Minute)
	out, err := svc.ListDiagnosisOptions(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if out == nil {
		t.Error("expected empty slice, got nil")
	}
}

func TestService_SaveTemplatesValidation(t *testing.T) {
	svc := NewService(newMockRepo(), time.Minute)
	ctx := context.Background()

	if err := svc.SaveTemplates(ctx, []TemplateInput{{Name: "  "}}); !errors.Is(err, ErrMissingName) {
		t.Errorf("expected ErrMissingName, got %v", err)
	}
	if err := svc.SaveTemplates(ctx, []TemplateInput{{Name: "Limpieza", DefaultPrice: -1}}); !errors.Is(err, ErrInvalidPrice) {
		t.Errorf("expected ErrInvalidPrice, got %v", err)
	}
}

func TestService_SaveTemplatesTrimsAndRefreshes(t *testing.T) {
	svc := NewService(newMockRepo(), time.Minute)
	ctx := context.Background()
	svc.ListTemplates(ctx)

	if err := svc.SaveTemplates(ctx, []TemplateInput{{Name: "  Curación ", DefaultPrice: 30}}); err != nil {
		t.Fatal(err)
	}
	list, _ := svc.ListTemplates(ctx)
	if len(list) != 1 || list[0].Name != "Curación" {
		t.Errorf("unexpected templates %+v", list)
	}
}

func TestService_DoctorProfileAbsentIsNil(t *testing.T) {
	svc := NewService(newMockRepo(), time.Minute)
	ctx := context.Background()

	p, err := svc.GetDoctorProfile(ctx)
	if err != nil || p != nil {
		t.Fatalf("expected nil profile, got %+v, %v", p, err)
	}
	if _, err := svc.UpsertDoctorProfile(ctx, &DoctorProfile{Name: " Dr. Luis "}); err != nil {
		t.Fatal(err)
	}
	p, _ = svc.GetDoctorProfile(ctx)
	if p == nil || p.Name != "Dr. Luis" {
		t.Errorf("unexpected profile %+v", p)
	}
}

func TestService_SettingsCopyAndReset(t *testing.T) {
	svc := NewService(newMockRepo(), time.Minute)
	ctx := context.Background()

	if err := svc.SaveSetting(ctx, "", "x", ""); !errors.Is(err, ErrMissingKey) {
		t.Errorf("expected ErrMissingKey, got %v", err)
	}
	if err := svc.SaveSetting(ctx, "theme", "light", "appearance"); err != nil {
		t.Fatal(err)
	}
	got, _ := svc.Settings(ctx)
	got["theme"] = "mutated"
	again, _ := svc.Settings(ctx)
	if again["theme"] != "light" {
		t.Errorf("cached settings must not be shared, got %q", again["theme"])
	}

	if err := svc.ResetSettings(ctx); err != nil {
		t.Fatal(err)
	}
	after, _ := svc.Settings(ctx)
	if after["theme"] != "dark" || len(after) != len(DefaultSettings) {
		t.Errorf("unexpected settings after reset: %v", after)
	}
}
