package record

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/greenapple/dental/internal/domain/attachment"
	"github.com/greenapple/dental/internal/domain/patient"
	"github.com/greenapple/dental/internal/domain/visit"
	"github.com/greenapple/dental/internal/platform/blobstore"
)

// ---------------------------------------------------------------------------
// Fake backend
// ---------------------------------------------------------------------------

type fakeBackend struct {
	mu          sync.Mutex
	today       string
	nextID      int64
	patients    map[int64]patient.Patient
	sessions    map[int64]visit.WithItems
	attachments map[int64]*attachment.Attachment
	calls       []string
	fail        map[string]error
	lastSave    *visit.SaveRequest
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		today:       "2024-03-15",
		patients:    map[int64]patient.Patient{},
		sessions:    map[int64]visit.WithItems{},
		attachments: map[int64]*attachment.Attachment{},
		fail:        map[string]error{},
	}
}

func (b *fakeBackend) call(name string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, name)
	return b.fail[name]
}

func (b *fakeBackend) called(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for _, c := range b.calls {
		if c == name {
			n++
		}
	}
	return n
}

func (b *fakeBackend) id() int64 {
	b.nextID++
	return b.nextID
}

func (b *fakeBackend) addPatient(p patient.Patient) int64 {
	p.ID = b.id()
	b.patients[p.ID] = p
	return p.ID
}

func (b *fakeBackend) addSession(patientID int64, s visit.Session, items ...visit.Item) int64 {
	s.ID = b.id()
	s.PatientID = patientID
	b.sessions[s.ID] = visit.WithItems{Session: s, Items: items}
	return s.ID
}

func (b *fakeBackend) FindPatientByID(_ context.Context, id int64) (*patient.Patient, error) {
	if err := b.call("FindPatientByID"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.patients[id]
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (b *fakeBackend) UpsertPatient(_ context.Context, p *patient.Patient) (int64, error) {
	if err := b.call("UpsertPatient"); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if p.ID == 0 {
		p.ID = b.id()
	}
	b.patients[p.ID] = *p
	return p.ID, nil
}

func (b *fakeBackend) UpdatePatientOnly(_ context.Context, p *patient.Patient) error {
	if err := b.call("UpdatePatientOnly"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.patients[p.ID]; !ok {
		return patient.ErrNotFound
	}
	b.patients[p.ID] = *p
	return nil
}

func (b *fakeBackend) GetSessionsByPatient(_ context.Context, patientID int64) ([]visit.WithItems, error) {
	if err := b.call("GetSessionsByPatient"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []visit.WithItems{}
	for _, w := range b.sessions {
		if w.Session.PatientID == patientID {
			out = append(out, w.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Session.Date != out[j].Session.Date {
			return out[i].Session.Date > out[j].Session.Date
		}
		return out[i].Session.ID > out[j].Session.ID
	})
	return out, nil
}

func (b *fakeBackend) SaveVisitWithSessions(_ context.Context, req *visit.SaveRequest) (visit.SaveResult, error) {
	if err := b.call("SaveVisitWithSessions"); err != nil {
		return visit.SaveResult{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastSave = req
	p := req.Patient
	if p.ID == 0 {
		p.ID = b.id()
	}
	b.patients[p.ID] = p

	res := visit.SaveResult{PatientID: p.ID}
	for _, w := range req.Sessions {
		w = w.Clone()
		if w.Session.ID == 0 {
			w.Session.ID = b.id()
		}
		w.Session.PatientID = p.ID
		w.Session.IsSaved = true
		b.sessions[w.Session.ID] = w
		res.SessionIDs = append(res.SessionIDs, w.Session.ID)
		res.SessionID = w.Session.ID
	}
	return res, nil
}

func (b *fakeBackend) CreateDiagnosticUpdateSession(_ context.Context, u visit.DiagnosticUpdate) (int64, error) {
	if err := b.call("CreateDiagnosticUpdateSession"); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	s := visit.Session{
		ID:           b.id(),
		PatientID:    u.PatientID,
		Date:         b.today,
		ReasonType:   visit.ReasonOther,
		ReasonDetail: visit.DetailDxUpdate,
		IsSaved:      true,
	}
	if u.ToothDxJSON != nil {
		s.ToothDxJSON = *u.ToothDxJSON
	}
	b.sessions[s.ID] = visit.WithItems{Session: s}
	return s.ID, nil
}

func (b *fakeBackend) CreateAttachment(_ context.Context, patientID int64, sessionID *int64, m attachment.Meta) (int64, error) {
	if err := b.call("CreateAttachment"); err != nil {
		return 0, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	a := &attachment.Attachment{ID: b.id(), PatientID: patientID, SessionID: sessionID,
		Filename: m.Filename, MimeType: m.MimeType, SizeBytes: m.Bytes, StorageKey: m.StorageKey}
	b.attachments[a.ID] = a
	return a.ID, nil
}

func (b *fakeBackend) SaveAttachmentsWithoutSession(_ context.Context, patientID int64, metas []attachment.Meta) ([]int64, error) {
	if err := b.call("SaveAttachmentsWithoutSession"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	ids := make([]int64, 0, len(metas))
	for _, m := range metas {
		a := &attachment.Attachment{ID: b.id(), PatientID: patientID,
			Filename: m.Filename, MimeType: m.MimeType, SizeBytes: m.Bytes, StorageKey: m.StorageKey}
		b.attachments[a.ID] = a
		ids = append(ids, a.ID)
	}
	return ids, nil
}

func (b *fakeBackend) DeleteAttachment(_ context.Context, id int64) error {
	if err := b.call("DeleteAttachment"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.attachments[id]; !ok {
		return attachment.ErrNotFound
	}
	delete(b.attachments, id)
	return nil
}

func (b *fakeBackend) ListAttachments(_ context.Context, patientID int64) ([]*attachment.Attachment, error) {
	if err := b.call("ListAttachments"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	out := []*attachment.Attachment{}
	for _, a := range b.attachments {
		if a.PatientID == patientID {
			cp := *a
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ---------------------------------------------------------------------------
// Fake file store, notifier and observer
// ---------------------------------------------------------------------------

type fakeFiles struct {
	backend *fakeBackend
	files   map[string][]byte
	err     error
}

func (f *fakeFiles) Save(_ context.Context, patientID int64, dateHint string, name string, content io.Reader) (blobstore.StoredFile, error) {
	f.backend.call("file:" + name)
	if f.err != nil {
		return blobstore.StoredFile{}, f.err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return blobstore.StoredFile{}, err
	}
	key := fmt.Sprintf("p_%d/%s/%s", patientID, dateHint, blobstore.SafeName(name))
	f.files[key] = data
	return blobstore.StoredFile{StorageKey: key, Bytes: int64(len(data))}, nil
}

type noticeLog struct{ notices []Notice }

func (l *noticeLog) Notify(n Notice) { l.notices = append(l.notices, n) }

func (l *noticeLog) last() Notice {
	if len(l.notices) == 0 {
		return Notice{}
	}
	return l.notices[len(l.notices)-1]
}

type observer struct {
	saves []string
	loads []bool
}

func (o *observer) ObserveSave(outcome string, _ time.Duration) { o.saves = append(o.saves, outcome) }
func (o *observer) ObserveLoad(ok bool)                         { o.loads = append(o.loads, ok) }

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

var fixedNow = time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)

type harness struct {
	rec     *Record
	backend *fakeBackend
	files   *fakeFiles
	notices *noticeLog
	obs     *observer
}

func newHarness() *harness {
	b := newFakeBackend()
	h := &harness{
		backend: b,
		files:   &fakeFiles{backend: b, files: map[string][]byte{}},
		notices: &noticeLog{},
		obs:     &observer{},
	}
	h.rec = New(b, Options{
		Files:    h.files,
		Notifier: h.notices,
		Observer: h.obs,
		Logger:   zerolog.Nop(),
		Now:      func() time.Time { return fixedNow },
	})
	return h
}

func juan() patient.Patient {
	return patient.Patient{FullName: "Juan Pérez", DocID: "0102030405", Phone: "0999999999"}
}

// loaded returns a harness with a persisted patient loaded into the record.
func loaded(t *testing.T, sessions ...visit.Session) (*harness, int64) {
	t.Helper()
	h := newHarness()
	pid := h.backend.addPatient(juan())
	for _, s := range sessions {
		h.backend.addSession(pid, s)
	}
	if err := h.rec.Load(context.Background(), pid); err != nil {
		t.Fatalf("Load: %v", err)
	}
	return h, pid
}

var errBoom = errors.New("disk I/O error")

func always(ok bool) Confirmer { return ConfirmFunc(func(string) bool { return ok }) }
