package record

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"github.com/greenapple/dental/internal/domain/attachment"
	"github.com/greenapple/dental/internal/domain/catalog"
	"github.com/greenapple/dental/internal/domain/patient"
	"github.com/greenapple/dental/internal/domain/visit"
)

var templates = []catalog.ProcedureTemplate{
	{ID: 1, Name: "Curación", DefaultPrice: 25, Active: true},
	{ID: 2, Name: "Limpieza", DefaultPrice: 40, Active: true},
	{ID: 3, Name: "Blanqueamiento", DefaultPrice: 150, Active: false},
}

func strptr(s string) *string { return &s }

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

func attachmentMeta(name string) attachment.Meta {
	return attachment.Meta{Filename: name, MimeType: "application/pdf", Bytes: 3, StorageKey: "p_1/2024-01-10/" + name}
}

// ---------------------------------------------------------------------------
// Comparator
// ---------------------------------------------------------------------------

func TestCanonical_Stable(t *testing.T) {
	e := Entry{
		Session: visit.Session{Date: "2024-03-15", ReasonType: "Dolor", Budget: 50},
		Items:   []visit.Item{{Name: "Curación", UnitPrice: 25, Quantity: 2, Subtotal: 50, IsActive: true}},
	}
	if Canonical(e) != Canonical(e) {
		t.Fatal("Canonical must be deterministic")
	}

	same := e.clone()
	same.Key = NewDraftKey()
	same.Session.ID = 99
	same.Session.ReasonType = "  Dolor "
	same.Session.CumulativeBalance = 120
	same.Items[0].ToothNumber = strptr("")
	same.Items[0].SortOrder = 7
	if Canonical(e) != Canonical(same) {
		t.Errorf("equivalent entries differ:\n%s\n%s", Canonical(e), Canonical(same))
	}

	noItems := Entry{Session: e.Session}
	emptyItems := Entry{Session: e.Session, Items: []visit.Item{}}
	if Canonical(noItems) != Canonical(emptyItems) {
		t.Error("nil and empty item lists must render alike")
	}

	edited := e.clone()
	edited.Items[0].Quantity = 3
	if Canonical(e) == Canonical(edited) {
		t.Error("a quantity change must be visible")
	}

	id := int64(4)
	withMethod := e.clone()
	withMethod.Session.PaymentMethodID = &id
	if !strings.Contains(Canonical(withMethod), `"payment_method_id":4`) ||
		!strings.Contains(Canonical(e), `"payment_method_id":null`) {
		t.Errorf("unexpected foreign key rendering: %s", Canonical(withMethod))
	}
}

// ---------------------------------------------------------------------------
// Odontogram store and draft tracker
// ---------------------------------------------------------------------------

func TestOdontogramStore(t *testing.T) {
	s := NewOdontogramStore()
	a, b := SavedKey(1), SavedKey(2)
	s.Load(map[SessionKey]visit.ToothDx{a: {"18": {"Caries"}}, b: nil})

	if err := s.Set(SessionKey{}, visit.ToothDx{"11": {"Fractura"}}); !errors.Is(err, ErrNoActiveSession) {
		t.Fatalf("expected ErrNoActiveSession, got %v", err)
	}
	if s.Changed(b) {
		t.Error("nil and empty maps must compare equal")
	}

	_ = s.Set(a, visit.ToothDx{"18": {"Caries", "Obturación"}})
	if !s.Changed(a) || s.Changed(b) {
		t.Error("only the edited session is changed")
	}
	if len(s.Original(a)["18"]) != 1 {
		t.Error("an edit must not touch the snapshot")
	}

	s.SnapshotAsOriginal(a)
	if s.Changed(a) {
		t.Error("snapshot must make the session clean")
	}

	d := NewDraftKey()
	_ = s.Set(d, visit.ToothDx{"36": {"Endodoncia"}})
	s.Rekey(d, SavedKey(3))
	if s.Has(d) || s.Get(SavedKey(3))["36"][0] != "Endodoncia" {
		t.Error("rekey must move the live map")
	}
}

func TestDraftBaselinesConverge(t *testing.T) {
	h, _ := loaded(t, visit.Session{Date: "2024-01-10", IsSaved: true})
	for i := 0; i < 3; i++ {
		h.rec.NewDraftSession(templates)
	}

	ch := h.rec.Changes()
	if ch.HasDraftSessionChanges || ch.DraftSessionChangesCount != 0 {
		t.Fatalf("fresh drafts must not count as edited: %+v", ch)
	}
	if !ch.HasDraftSessions {
		t.Error("expected pending drafts")
	}
	if h.rec.drafts.Len() != 3 {
		t.Errorf("expected 3 baselines, got %d", h.rec.drafts.Len())
	}
	if h.rec.drafts.Reconcile(h.rec.entries) {
		t.Error("reconcile without changes must be a no-op")
	}
}

func TestEditDetection_QuantityActivatesItem(t *testing.T) {
	h, _ := loaded(t)
	key := h.rec.NewDraftSession(templates)

	e, _ := h.rec.Entry(key)
	if len(e.Items) != 2 {
		t.Fatalf("expected one line per active template, got %d", len(e.Items))
	}
	if e.Items[0].Name != "Curación" || e.Items[0].Quantity != 0 || e.Items[0].IsActive {
		t.Fatalf("unexpected first line %+v", e.Items[0])
	}

	if err := h.rec.SetItemQuantity(key, 0, 2); err != nil {
		t.Fatalf("SetItemQuantity: %v", err)
	}
	ch := h.rec.Changes()
	if ch.DraftSessionChangesCount != 1 || ch.DraftSessionChanges[0] != key {
		t.Fatalf("expected the draft to be changed, got %+v", ch.DraftSessionChanges)
	}
	e, _ = h.rec.Entry(key)
	if !e.Items[0].IsActive || e.Items[0].Subtotal != 50 {
		t.Errorf("expected active line with subtotal 50, got %+v", e.Items[0])
	}
	if e.Session.Budget != 50 || e.Session.Balance != 50 {
		t.Errorf("expected budget and balance 50, got %v / %v", e.Session.Budget, e.Session.Balance)
	}
}

func TestEditSession_Rules(t *testing.T) {
	h, _ := loaded(t, visit.Session{Date: "2024-01-10", IsSaved: true})
	saved := h.rec.Active()
	if err := h.rec.EditSession(saved, func(e *Entry) { e.Session.Signer = "x" }); !errors.Is(err, ErrSessionReadOnly) {
		t.Fatalf("expected ErrSessionReadOnly, got %v", err)
	}

	key := h.rec.NewDraftSession(templates)
	err := h.rec.EditSession(key, func(e *Entry) {
		e.Items[1].SetQuantity(1)
		e.Session.Payment = 100
		e.Session.IsSaved = true
	})
	if err != nil {
		t.Fatal(err)
	}
	e, _ := h.rec.Entry(key)
	if e.Session.Budget != 40 || e.Session.Balance != 0 {
		t.Errorf("expected budget 40 and clamped balance, got %v / %v", e.Session.Budget, e.Session.Balance)
	}
	if !e.Draft() {
		t.Error("an edit must not mark the draft saved")
	}

	_ = h.rec.EditSession(key, func(e *Entry) {
		e.ManualBudget = true
		e.Session.Budget = 500
		e.Session.Payment = 0
	})
	e, _ = h.rec.Entry(key)
	if e.Session.Budget != 500 || e.Session.Balance != 500 {
		t.Errorf("manual budget must be kept, got %v / %v", e.Session.Budget, e.Session.Balance)
	}
}

// ---------------------------------------------------------------------------
// Save eligibility
// ---------------------------------------------------------------------------

func TestCanSave_NewPatientNeedsSession(t *testing.T) {
	h := newHarness()
	h.rec.UpdatePatient(func(p *patient.Patient) {
		p.FullName = "Juan Pérez"
		p.DocID = "0102030405"
	})
	if _, err := h.rec.AddAttachment("rx.png", "image/png", 3, BytesFile([]byte("png")), SessionKey{}); err != nil {
		t.Fatal(err)
	}
	ch := h.rec.Changes()
	if ch.CanSave {
		t.Fatal("a new patient with only an attachment must not be saveable")
	}
	if !ch.HasPatientChanges || !ch.HasNewAttachments {
		t.Errorf("unexpected signals %+v", ch)
	}

	res, err := h.rec.Save(context.Background())
	if !errors.Is(err, ErrNoChanges) || res.Outcome != OutcomeRejected {
		t.Fatalf("expected rejection, got %v %v", res.Outcome, err)
	}
	if len(h.backend.calls) != 0 {
		t.Errorf("a rejected save must not reach the backend: %v", h.backend.calls)
	}
	if !strings.Contains(h.notices.last().Message, "paciente nuevo") {
		t.Errorf("unexpected notice %+v", h.notices.last())
	}

	h.rec.NewDraftSession(templates)
	if !h.rec.Changes().CanSave {
		t.Error("a new patient with a draft session must be saveable")
	}
}

func TestSave_RejectsIncompletePatient(t *testing.T) {
	h := newHarness()
	h.rec.UpdatePatient(func(p *patient.Patient) { p.FullName = "Juan Pérez" })
	h.rec.NewDraftSession(templates)

	res, err := h.rec.Save(context.Background())
	if !errors.Is(err, ErrIncompletePatient) || res.Outcome != OutcomeRejected {
		t.Fatalf("expected ErrIncompletePatient, got %v", err)
	}
	if h.notices.last().Level != LevelWarning {
		t.Errorf("expected warning notice, got %+v", h.notices.last())
	}
	if h.obs.saves[0] != "rejected" {
		t.Errorf("expected rejected outcome, got %v", h.obs.saves)
	}
}

// ---------------------------------------------------------------------------
// Save paths
// ---------------------------------------------------------------------------

func TestSave_GranularPatientAndAttachment(t *testing.T) {
	h, pid := loaded(t, visit.Session{Date: "2024-01-10", IsSaved: true})
	h.rec.UpdatePatient(func(p *patient.Patient) { p.Phone = "0988888888" })
	if _, err := h.rec.AddAttachment("rx.png", "image/png", 3, BytesFile([]byte("png")), SessionKey{}); err != nil {
		t.Fatal(err)
	}

	res, err := h.rec.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.Outcome != OutcomeGranular || res.SavedCount != 2 {
		t.Fatalf("expected granular save of 2, got %+v", res)
	}
	if h.backend.called("UpdatePatientOnly") != 1 || h.backend.called("SaveAttachmentsWithoutSession") != 1 {
		t.Errorf("unexpected calls %v", h.backend.calls)
	}
	if h.backend.called("SaveVisitWithSessions") != 0 || h.backend.called("CreateDiagnosticUpdateSession") != 0 {
		t.Errorf("granular save touched sessions: %v", h.backend.calls)
	}
	if h.backend.patients[pid].Phone != "0988888888" {
		t.Error("patient update not persisted")
	}

	atts := h.rec.Attachments()
	if atts[0].ID == 0 || atts[0].File != nil || atts[0].StorageKey == "" {
		t.Errorf("attachment must carry its id instead of the file: %+v", atts[0])
	}
	ch := h.rec.Changes()
	if ch.HasPatientChanges || ch.HasNewAttachments || ch.CanSave {
		t.Errorf("nothing should be pending after save: %+v", ch)
	}
	if h.notices.last().Message != "Se guardaron 2 cambio(s) correctamente" {
		t.Errorf("unexpected notice %q", h.notices.last().Message)
	}
}

func TestSave_DraftTakesFullPath(t *testing.T) {
	h, _ := loaded(t, visit.Session{Date: "2024-01-10", IsSaved: true})
	h.rec.UpdatePatient(func(p *patient.Patient) { p.Phone = "0988888888" })
	_, _ = h.rec.AddAttachment("rx.png", "image/png", 3, BytesFile([]byte("png")), SessionKey{})
	draft := h.rec.NewDraftSession(templates)
	_ = h.rec.SetItemQuantity(draft, 0, 1)

	res, err := h.rec.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if res.Outcome != OutcomeFull || len(res.SessionIDs) != 1 {
		t.Fatalf("expected full save, got %+v", res)
	}
	if h.backend.called("SaveVisitWithSessions") != 1 {
		t.Errorf("expected one full save call, got %v", h.backend.calls)
	}
	if h.backend.called("UpdatePatientOnly") != 0 || h.backend.called("CreateDiagnosticUpdateSession") != 0 {
		t.Errorf("granular branches must not run in a full save: %v", h.backend.calls)
	}
	if h.backend.lastSave.Patient.Phone != "0988888888" {
		t.Error("full save must carry the patient edits")
	}

	want := SavedKey(res.SessionIDs[0])
	if h.rec.Active() != want {
		t.Errorf("active key must follow the remap, got %s", h.rec.Active())
	}
	e, ok := h.rec.Entry(want)
	if !ok || e.Draft() {
		t.Fatalf("draft must now be saved under %s", want)
	}
	ch := h.rec.Changes()
	if ch.CanSave || ch.HasDraftSessions || h.rec.drafts.Len() != 0 {
		t.Errorf("nothing should be pending: %+v", ch)
	}
	if h.notices.last().Message != msgSavedFull {
		t.Errorf("unexpected notice %+v", h.notices.last())
	}
	if h.obs.saves[len(h.obs.saves)-1] != "full" {
		t.Errorf("expected full outcome, got %v", h.obs.saves)
	}
}

func TestSave_FullRoutesAttachmentsByScope(t *testing.T) {
	h, pid := loaded(t, visit.Session{Date: "2024-01-10", IsSaved: true})
	draft := h.rec.NewDraftSession(templates)
	_ = h.rec.EditSession(draft, func(e *Entry) { e.Session.Date = "2024-03-14" })
	_, _ = h.rec.AddAttachment("consent.pdf", "", 3, BytesFile([]byte("pdf")), draft)
	_, _ = h.rec.AddAttachment("id.jpg", "image/jpeg", 3, BytesFile([]byte("jpg")), SessionKey{})

	res, err := h.rec.Save(context.Background())
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if len(res.AttachmentIDs) != 2 {
		t.Fatalf("expected 2 attachment ids, got %v", res.AttachmentIDs)
	}

	var scoped, general int
	for _, a := range h.backend.attachments {
		switch {
		case a.SessionID != nil && *a.SessionID == res.SessionIDs[0]:
			scoped++
			if a.MimeType != defaultMimeType {
				t.Errorf("expected default mime type, got %q", a.MimeType)
			}
			if !strings.HasPrefix(a.StorageKey, "p_"+itoa(pid)+"/2024-03-14/") {
				t.Errorf("scoped file must use its session date, got %s", a.StorageKey)
			}
		case a.SessionID == nil:
			general++
		}
	}
	if scoped != 1 || general != 1 {
		t.Errorf("expected one scoped and one general attachment, got %d/%d", scoped, general)
	}
	for _, a := range h.rec.Attachments() {
		if a.Name == "consent.pdf" && a.Session != SavedKey(res.SessionIDs[0]) {
			t.Errorf("scoped attachment must follow the remapped key, got %s", a.Session)
		}
	}
}

func TestSave_FilesBeforeMetadata(t *testing.T) {
	h, _ := loaded(t, visit.Session{Date: "2024-01-10", IsSaved: true})
	_, _ = h.rec.AddAttachment("a.png", "image/png", 1, BytesFile([]byte("a")), SessionKey{})
	_, _ = h.rec.AddAttachment("b.png", "image/png", 1, BytesFile([]byte("b")), h.rec.Active())

	if _, err := h.rec.Save(context.Background()); err != nil {
		t.Fatal(err)
	}
	firstMeta := -1
	lastFile := -1
	for i, c := range h.backend.calls {
		if strings.HasPrefix(c, "file:") {
			lastFile = i
		}
		if (c == "CreateAttachment" || c == "SaveAttachmentsWithoutSession") && firstMeta < 0 {
			firstMeta = i
		}
	}
	if lastFile < 0 || firstMeta < 0 || lastFile > firstMeta {
		t.Errorf("files must be written before metadata: %v", h.backend.calls)
	}
}

func TestSave_FailureKeepsBaselines(t *testing.T) {
	h, _ := loaded(t, visit.Session{Date: "2024-01-10", IsSaved: true})
	h.rec.UpdatePatient(func(p *patient.Patient) { p.Email = "juan@example.com" })
	draft := h.rec.NewDraftSession(templates)
	h.rec.SetToothDx(visit.ToothDx{"16": {"Caries"}})
	_, _ = h.rec.AddAttachment("rx.png", "image/png", 3, BytesFile([]byte("png")), draft)
	before := h.rec.Changes()

	h.backend.fail["SaveVisitWithSessions"] = errBoom
	res, err := h.rec.Save(context.Background())
	if !errors.Is(err, errBoom) || res.Outcome != OutcomeFailed {
		t.Fatalf("expected failure, got %+v %v", res, err)
	}
	n := h.notices.last()
	if n.Level != LevelError || !strings.Contains(n.Message, "disk I/O error") {
		t.Errorf("error notice must carry the raw text, got %+v", n)
	}

	after := h.rec.Changes()
	if after.CanSave != before.CanSave || after.HasPatientChanges != before.HasPatientChanges ||
		after.HasOdontogramChanges != before.HasOdontogramChanges || after.HasNewAttachments != before.HasNewAttachments {
		t.Errorf("changes must survive a failed save: before %+v after %+v", before, after)
	}
	if e, _ := h.rec.Entry(draft); !e.Draft() || h.rec.Active() != draft {
		t.Error("draft must stay a draft")
	}
	if !h.rec.Attachments()[0].Pending() {
		t.Error("attachment must stay pending")
	}

	delete(h.backend.fail, "SaveVisitWithSessions")
	if res, err := h.rec.Save(context.Background()); err != nil || res.Outcome != OutcomeFull {
		t.Fatalf("retry must succeed, got %+v %v", res, err)
	}
}

func TestSave_FileErrorStopsBeforeBackend(t *testing.T) {
	h, _ := loaded(t, visit.Session{Date: "2024-01-10", IsSaved: true})
	h.rec.NewDraftSession(templates)
	_, _ = h.rec.AddAttachment("rx.png", "image/png", 3, BytesFile([]byte("png")), SessionKey{})
	h.files.err = errBoom

	if _, err := h.rec.Save(context.Background()); !errors.Is(err, errBoom) {
		t.Fatalf("expected file error, got %v", err)
	}
	if h.backend.called("SaveVisitWithSessions") != 0 {
		t.Error("no session may be written after a file error")
	}
}

func TestSave_NothingToSave(t *testing.T) {
	h, _ := loaded(t)
	h.rec.SetManualDiagnosis("Bruxismo")

	ch := h.rec.Changes()
	if !ch.CanSave {
		t.Fatalf("manual diagnosis edit should enable saving: %+v", ch)
	}
	res, err := h.rec.Save(context.Background())
	if !errors.Is(err, ErrNothingToSave) || res.Outcome != OutcomeNoOp {
		t.Fatalf("expected no-op, got %+v %v", res, err)
	}
	if h.notices.last().Title != msgNoChangesTitle {
		t.Errorf("unexpected notice %+v", h.notices.last())
	}
}

func TestSave_InProgress(t *testing.T) {
	h, _ := loaded(t)
	h.rec.saving.Store(true)
	if _, err := h.rec.Save(context.Background()); !errors.Is(err, ErrSaveInProgress) {
		t.Fatalf("expected ErrSaveInProgress, got %v", err)
	}
	if len(h.obs.saves) != 0 {
		t.Error("a refused overlapping save is not an outcome")
	}
}

// ---------------------------------------------------------------------------
// Odontogram round trip
// ---------------------------------------------------------------------------

func TestOdontogramRoundTrip_FullSave(t *testing.T) {
	h, pid := loaded(t)
	h.rec.SetToothDx(visit.ToothDx{"16": {"Caries", "Fractura"}})
	if h.notices.last().Title != msgAutoDraftTitle {
		t.Fatalf("expected auto draft notice, got %+v", h.notices.last())
	}
	e, _ := h.rec.Entry(h.rec.Active())
	if e.Session.ReasonType != visit.ReasonControl || e.Session.ReasonDetail != visit.DetailAutoDraft {
		t.Errorf("unexpected auto draft %+v", e.Session)
	}

	res, err := h.rec.Save(context.Background())
	if err != nil || res.Outcome != OutcomeFull {
		t.Fatalf("Save: %+v %v", res, err)
	}
	if err := h.rec.Load(context.Background(), pid); err != nil {
		t.Fatal(err)
	}
	if h.rec.Active() != SavedKey(res.SessionIDs[0]) {
		t.Fatalf("expected %d active, got %s", res.SessionIDs[0], h.rec.Active())
	}
	if got := h.rec.ToothDx().JSON(); got != `{"16":["Caries","Fractura"]}` {
		t.Errorf("unexpected odontogram %s", got)
	}
	if h.rec.Changes().HasOdontogramChanges {
		t.Error("a reloaded record must be clean")
	}
}

func TestOdontogramRoundTrip_DiagnosticUpdate(t *testing.T) {
	h, pid := loaded(t, visit.Session{Date: "2024-01-10", IsSaved: true, ToothDxJSON: `{"18":["Caries"]}`})
	old := h.rec.Active()
	h.rec.SetToothDx(visit.ToothDx{"18": {"Caries"}, "16": {"Fractura"}})

	res, err := h.rec.Save(context.Background())
	if err != nil || res.Outcome != OutcomeGranular || res.SavedCount != 1 {
		t.Fatalf("expected one granular change, got %+v %v", res, err)
	}
	if h.rec.Active() == old || h.rec.Entries()[0].Key != h.rec.Active() {
		t.Error("the diagnostic session must be prepended and active")
	}
	if h.rec.odontograms.Get(old).JSON() != `{"18":["Caries"]}` {
		t.Error("the edited saved session keeps its stored odontogram")
	}
	if h.rec.Changes().HasOdontogramChanges {
		t.Error("odontogram must be clean after save")
	}

	if err := h.rec.Load(context.Background(), pid); err != nil {
		t.Fatal(err)
	}
	if got := h.rec.ToothDx().JSON(); got != `{"16":["Fractura"],"18":["Caries"]}` {
		t.Errorf("unexpected odontogram after reload %s", got)
	}
	if h.rec.Changes().HasOdontogramChanges {
		t.Error("a reloaded record must be clean")
	}
}

// ---------------------------------------------------------------------------
// Selection and switching
// ---------------------------------------------------------------------------

func TestSelectActive(t *testing.T) {
	h, _ := loaded(t,
		visit.Session{Date: "2024-01-10", IsSaved: true},
		visit.Session{Date: "2024-01-05", IsSaved: false},
	)
	e, _ := h.rec.Entry(h.rec.Active())
	if !e.Draft() || e.Session.Date != "2024-01-05" {
		t.Errorf("the draft must win over a later saved session, got %+v", e.Session)
	}

	h, _ = loaded(t,
		visit.Session{Date: "2024-01-05", IsSaved: true},
		visit.Session{Date: "2024-01-10", IsSaved: true},
	)
	e, _ = h.rec.Entry(h.rec.Active())
	if e.Session.Date != "2024-01-10" {
		t.Errorf("the later saved session must win, got %s", e.Session.Date)
	}

	entries := []Entry{
		{Key: SavedKey(3), Session: visit.Session{ID: 3, Date: "2024-02-01", IsSaved: true}},
		{Key: SavedKey(8), Session: visit.Session{ID: 8, Date: "2024-02-01", IsSaved: true}},
		{Key: SavedKey(5), Session: visit.Session{ID: 5, Date: "2024-02-01", IsSaved: true}},
	}
	if got := selectActive(entries); got != SavedKey(8) {
		t.Errorf("higher id must win a date tie, got %s", got)
	}
	if got := selectActive(nil); !got.IsZero() {
		t.Errorf("no sessions means no active session, got %s", got)
	}
}

func TestSwitchSession_Guard(t *testing.T) {
	h, _ := loaded(t,
		visit.Session{Date: "2024-01-05", IsSaved: true},
		visit.Session{Date: "2024-01-10", IsSaved: true, ToothDxJSON: `{"11":["Caries"]}`},
	)
	active := h.rec.Active()
	other := h.rec.Entries()[1].Key
	h.rec.SetToothDx(visit.ToothDx{"11": {"Caries"}, "21": {"Fractura"}})
	edited := h.rec.ToothDx().JSON()

	ok, err := h.rec.SwitchSession(other, always(false))
	if err != nil || ok {
		t.Fatalf("switch must be blocked, got %v %v", ok, err)
	}
	if h.rec.Active() != active || h.rec.ToothDx().JSON() != edited {
		t.Fatal("a blocked switch must leave the active session untouched")
	}
	if ok, _ := h.rec.SwitchSession(other, nil); ok {
		t.Fatal("a missing confirmer counts as refusal")
	}

	ok, err = h.rec.SwitchSession(other, always(true))
	if err != nil || !ok || h.rec.Active() != other {
		t.Fatalf("confirmed switch must succeed, got %v %v", ok, err)
	}
	if h.rec.odontograms.Changed(active) {
		t.Error("confirmed switch discards the edits")
	}
	if _, err := h.rec.SwitchSession(SavedKey(999), always(true)); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}

	if ok, _ := h.rec.SwitchSession(active, nil); !ok {
		t.Error("switching from a clean session needs no confirmation")
	}
}

// ---------------------------------------------------------------------------
// Other record operations
// ---------------------------------------------------------------------------

func TestReset(t *testing.T) {
	h, _ := loaded(t)
	h.rec.NewDraftSession(templates)
	h.rec.NewDraftSession(templates)

	var prompt string
	ask := ConfirmFunc(func(m string) bool { prompt = m; return false })
	if h.rec.Reset(ask) {
		t.Fatal("declined reset must keep the record")
	}
	if !strings.Contains(prompt, "2 sesión(es) en BORRADOR") {
		t.Errorf("prompt must mention drafts, got %q", prompt)
	}
	if h.rec.Patient().ID == 0 {
		t.Error("record must be intact")
	}

	if !h.rec.Reset(always(true)) {
		t.Fatal("confirmed reset must succeed")
	}
	if h.rec.Patient().ID != 0 || len(h.rec.Entries()) != 0 || !h.rec.Active().IsZero() {
		t.Error("record must be empty after reset")
	}
}

func TestDeleteDraftSession(t *testing.T) {
	h, _ := loaded(t, visit.Session{Date: "2024-01-10", IsSaved: true})
	saved := h.rec.Active()
	draft := h.rec.NewDraftSession(templates)
	_, _ = h.rec.AddAttachment("rx.png", "image/png", 3, BytesFile([]byte("png")), draft)

	if _, err := h.rec.DeleteDraftSession(saved, always(true)); !errors.Is(err, ErrSessionReadOnly) {
		t.Fatalf("expected ErrSessionReadOnly, got %v", err)
	}
	ok, err := h.rec.DeleteDraftSession(draft, always(true))
	if err != nil || !ok {
		t.Fatalf("DeleteDraftSession: %v", err)
	}
	if h.rec.Active() != saved || h.rec.Changes().HasDraftSessions {
		t.Error("the saved session becomes active again")
	}
	if !h.rec.Attachments()[0].Session.IsZero() {
		t.Error("orphaned attachment must become patient-general")
	}
}

func TestQuickPayment_KeepsDrafts(t *testing.T) {
	h, _ := loaded(t, visit.Session{Date: "2024-01-10", IsSaved: true})
	draft := h.rec.NewDraftSession(templates)

	id, err := h.rec.QuickPayment(context.Background(), Payment{Date: "2024-03-15", Amount: 20})
	if err != nil || id == 0 {
		t.Fatalf("QuickPayment: %d %v", id, err)
	}
	w := h.backend.sessions[id]
	if w.Session.ReasonType != visit.ReasonPayment || w.Session.ReasonDetail != visit.DetailQuickAbono || w.Session.Payment != 20 {
		t.Errorf("unexpected payment session %+v", w.Session)
	}
	if _, ok := h.rec.Entry(draft); !ok {
		t.Error("drafts must survive the refresh")
	}
	if _, ok := h.rec.Entry(SavedKey(id)); !ok {
		t.Error("the payment session must appear in the record")
	}
	if h.rec.Active() != draft {
		t.Error("active session must be kept")
	}
	if h.notices.last().Title != msgPaymentTitle {
		t.Errorf("unexpected notice %+v", h.notices.last())
	}

	h2 := newHarness()
	if _, err := h2.rec.QuickPayment(context.Background(), Payment{Amount: 10}); !errors.Is(err, ErrNoPatient) {
		t.Errorf("expected ErrNoPatient, got %v", err)
	}
}

func TestDeleteAttachment(t *testing.T) {
	h := newHarness()
	pid := h.backend.addPatient(juan())
	_, _ = h.backend.CreateAttachment(context.Background(), pid, nil, attachmentMeta("old.pdf"))
	if err := h.rec.Load(context.Background(), pid); err != nil {
		t.Fatal(err)
	}
	pending, _ := h.rec.AddAttachment("new.png", "image/png", 1, BytesFile([]byte("x")), SessionKey{})

	if err := h.rec.DeleteAttachment(context.Background(), pending); err != nil {
		t.Fatal(err)
	}
	if h.backend.called("DeleteAttachment") != 0 {
		t.Error("a pending attachment has no row to delete")
	}

	saved := h.rec.Attachments()[0]
	if err := h.rec.DeleteAttachment(context.Background(), saved); err != nil {
		t.Fatal(err)
	}
	if len(h.backend.attachments) != 0 || len(h.rec.Attachments()) != 0 {
		t.Error("saved attachment must be removed")
	}
	if err := h.rec.DeleteAttachment(context.Background(), saved); !errors.Is(err, ErrAttachmentNotFound) {
		t.Errorf("expected ErrAttachmentNotFound, got %v", err)
	}
}

func TestLoad_FailureKeepsState(t *testing.T) {
	h, pid := loaded(t, visit.Session{Date: "2024-01-10", IsSaved: true})
	draft := h.rec.NewDraftSession(templates)

	h.backend.fail["ListAttachments"] = errBoom
	if err := h.rec.Load(context.Background(), pid); !errors.Is(err, errBoom) {
		t.Fatalf("expected load error, got %v", err)
	}
	if h.rec.Active() != draft {
		t.Error("failed load must keep the previous state")
	}
	if h.notices.last().Level != LevelError {
		t.Errorf("expected error notice, got %+v", h.notices.last())
	}
	if h.obs.loads[len(h.obs.loads)-1] {
		t.Error("expected failed load to be observed")
	}

	if err := h.rec.Load(context.Background(), 999); !errors.Is(err, ErrPatientNotFound) {
		t.Errorf("expected ErrPatientNotFound, got %v", err)
	}
}

func TestLoad_MalformedToothDx(t *testing.T) {
	h, _ := loaded(t, visit.Session{Date: "2024-01-10", IsSaved: true, ToothDxJSON: "{not json"})
	if len(h.rec.ToothDx()) != 0 || h.rec.Changes().HasOdontogramChanges {
		t.Error("a malformed blob loads as a clean empty chart")
	}
}

func TestDiagnosisTexts(t *testing.T) {
	h, _ := loaded(t)
	h.rec.SetToothDx(visit.ToothDx{"21": {"Fractura"}, "11": {"Caries", "Obturación"}})
	h.rec.SetManualDiagnosis("  Bruxismo ")

	if got := h.rec.DiagnosisFromTeeth(); got != "Diente 11: Caries, Obturación\nDiente 21: Fractura" {
		t.Errorf("unexpected derived text %q", got)
	}
	if got := h.rec.FullDiagnosis(); !strings.HasSuffix(got, "\n\nBruxismo") {
		t.Errorf("unexpected full text %q", got)
	}
}
