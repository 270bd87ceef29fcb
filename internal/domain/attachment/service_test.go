package attachment

import (
	"context"
	"errors"
	"testing"
	"time"
)

// -- Mock Repository --

type mockRepo struct {
	items  map[int64]*Attachment
	nextID int64
	fail   error
}

func newMockRepo() *mockRepo {
	return &mockRepo{items: make(map[int64]*Attachment)}
}

func (m *mockRepo) Create(_ context.Context, a *Attachment) error {
	if m.fail != nil {
		return m.fail
	}
	m.nextID++
	a.ID = m.nextID
	a.CreatedAt = time.Now()
	m.items[a.ID] = a
	return nil
}

func (m *mockRepo) CreateBatch(ctx context.Context, items []*Attachment) error {
	for _, a := range items {
		if err := m.Create(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.items[id]; !ok {
		return ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *mockRepo) ListByPatient(_ context.Context, patientID int64) ([]*Attachment, error) {
	var out []*Attachment
	for _, a := range m.items {
		if a.PatientID == patientID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockRepo) MoveToSession(_ context.Context, id int64, sessionID *int64) error {
	a, ok := m.items[id]
	if !ok {
		return ErrNotFound
	}
	a.SessionID = sessionID
	return nil
}

// -- Tests --

func TestService_CreateScopedToSession(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	sid := int64(7)

	id, err := svc.Create(context.Background(), 3, &sid, Meta{
		Filename: "rx.png", MimeType: "image/png", Bytes: 1234, StorageKey: "p_3/2024/03/x_rx.png",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got := repo.items[id]
	if got.Kind != KindFile || got.SessionID == nil || *got.SessionID != 7 || got.SizeBytes != 1234 {
		t.Errorf("unexpected attachment %+v", got)
	}
}

func TestService_CreateValidation(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	if _, err := svc.Create(ctx, 0, nil, Meta{StorageKey: "k"}); !errors.Is(err, ErrMissingPatient) {
		t.Errorf("expected ErrMissingPatient, got %v", err)
	}
	if _, err := svc.Create(ctx, 1, nil, Meta{StorageKey: "  "}); !errors.Is(err, ErrMissingKey) {
		t.Errorf("expected ErrMissingKey, got %v", err)
	}
}

func TestService_SaveWithoutSession(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	ids, err := svc.SaveWithoutSession(context.Background(), 5, []Meta{
		{Filename: "a.pdf", StorageKey: "p_5/a"},
		{Filename: "b.pdf", StorageKey: "p_5/b"},
	})
	if err != nil {
		t.Fatalf("SaveWithoutSession: %v", err)
	}
	if len(ids) != 2 || ids[0] != 1 || ids[1] != 2 {
		t.Fatalf("unexpected ids %v", ids)
	}
	for _, id := range ids {
		if repo.items[id].SessionID != nil {
			t.Errorf("attachment %d must have no session", id)
		}
	}
}

func TestService_SaveWithoutSessionRejectsBadMetaUpFront(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)

	_, err := svc.SaveWithoutSession(context.Background(), 5, []Meta{
		{Filename: "a.pdf", StorageKey: "p_5/a"},
		{Filename: "b.pdf"},
	})
	if !errors.Is(err, ErrMissingKey) {
		t.Fatalf("expected ErrMissingKey, got %v", err)
	}
	if len(repo.items) != 0 {
		t.Error("nothing should be written when a meta is invalid")
	}
}

func TestService_ListByPatientNeverNil(t *testing.T) {
	svc := NewService(newMockRepo())
	out, err := svc.ListByPatient(context.Background(), 9)
	if err != nil {
		t.Fatal(err)
	}
	if out == nil {
		t.Error("expected empty slice, got nil")
	}
}

func TestService_MoveAndDelete(t *testing.T) {
	repo := newMockRepo()
	svc := NewService(repo)
	ctx := context.Background()
	id, _ := svc.Create(ctx, 1, nil, Meta{StorageKey: "k"})

	sid := int64(3)
	if err := svc.MoveToSession(ctx, id, &sid); err != nil {
		t.Fatal(err)
	}
	if *repo.items[id].SessionID != 3 {
		t.Error("expected session 3")
	}
	if err := svc.Delete(ctx, id); err != nil {
		t.Fatal(err)
	}
	if err := svc.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
