// Package record tracks the edits made to one patient record between loads
// and persists them. A Record owns the patient fields, every session with
// its odontogram, the attachment list and the snapshots used to decide what
// changed. It is meant to be driven by a single view: apart from the
// overlapping-save guard it does no locking.
package record

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/greenapple/dental/internal/domain/catalog"
	"github.com/greenapple/dental/internal/domain/patient"
	"github.com/greenapple/dental/internal/domain/visit"
)

var (
	ErrNoActiveSession    = errors.New("no active session")
	ErrSaveInProgress     = errors.New("a save is already in progress")
	ErrPatientNotFound    = errors.New("patient not found")
	ErrSessionNotFound    = errors.New("session not found in record")
	ErrSessionReadOnly    = errors.New("saved sessions are read-only")
	ErrIncompletePatient  = errors.New("patient full name and document id are required")
	ErrNoChanges          = errors.New("no changes eligible for saving")
	ErrNothingToSave      = errors.New("nothing to save")
	ErrNoPatient          = errors.New("record has no persisted patient")
	ErrInvalidAttachment  = errors.New("attachment needs a name and a file")
	ErrAttachmentNotFound = errors.New("attachment not found in record")
)

const dateLayout = "2006-01-02"

type Options struct {
	Files    FileStore
	Notifier Notifier
	Observer SaveObserver
	Logger   zerolog.Logger
	Now      func() time.Time
}

type Record struct {
	backend  Backend
	files    FileStore
	notifier Notifier
	observer SaveObserver
	logger   zerolog.Logger
	now      func() time.Time

	patient          patient.Patient
	originalPatient  *patient.Profile
	entries          []Entry
	active           SessionKey
	manualDx         string
	originalManualDx string
	attachments      []Attachment

	odontograms *OdontogramStore
	drafts      *DraftTracker

	saving atomic.Bool
}

func New(backend Backend, opts Options) *Record {
	r := &Record{
		backend:     backend,
		files:       opts.Files,
		notifier:    opts.Notifier,
		observer:    opts.Observer,
		logger:      opts.Logger.With().Str("component", "record").Logger(),
		now:         opts.Now,
		odontograms: NewOdontogramStore(),
		drafts:      NewDraftTracker(),
	}
	if r.notifier == nil {
		r.notifier = LogNotifier{Logger: r.logger}
	}
	if r.observer == nil {
		r.observer = nopObserver{}
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r
}

func (r *Record) today() string { return r.now().Format(dateLayout) }

func (r *Record) notify(level Level, title, msg string) {
	r.notifier.Notify(Notice{Level: level, Title: title, Message: msg})
}

// touch brings the draft baselines in line with the session list.
func (r *Record) touch() { r.drafts.Reconcile(r.entries) }

func (r *Record) Patient() patient.Patient { return r.patient }

// UpdatePatient applies a form edit. The id cannot be changed this way.
func (r *Record) UpdatePatient(fn func(p *patient.Patient)) {
	id := r.patient.ID
	fn(&r.patient)
	r.patient.ID = id
}

func (r *Record) HasPatientData() bool { return r.patient.Addressable() }

func (r *Record) HasAllergy() bool { return r.patient.HasAllergy() }

// Entries returns a copy of the sessions, newest first as loaded.
func (r *Record) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.clone()
	}
	return out
}

func (r *Record) indexOf(key SessionKey) int {
	for i, e := range r.entries {
		if e.Key == key {
			return i
		}
	}
	return -1
}

func (r *Record) Entry(key SessionKey) (Entry, bool) {
	if i := r.indexOf(key); i >= 0 {
		return r.entries[i].clone(), true
	}
	return Entry{}, false
}

func (r *Record) Active() SessionKey { return r.active }

// ToothDx is the live odontogram of the active session.
func (r *Record) ToothDx() visit.ToothDx { return r.odontograms.Get(r.active) }

func (r *Record) ManualDiagnosis() string { return r.manualDx }

func (r *Record) SetManualDiagnosis(s string) { r.manualDx = s }

func (r *Record) DiagnosisFromTeeth() string { return r.ToothDx().DiagnosisText() }

func (r *Record) FullDiagnosis() string {
	return visit.FullDiagnosis(r.DiagnosisFromTeeth(), r.manualDx)
}

func (r *Record) Attachments() []Attachment {
	return append([]Attachment(nil), r.attachments...)
}

func (r *Record) Saving() bool { return r.saving.Load() }

// SetToothDx replaces the odontogram of the active session. Without an
// active session a control draft dated today is created to hold it.
func (r *Record) SetToothDx(dx visit.ToothDx) {
	if r.active.IsZero() {
		e := Entry{
			Key: NewDraftKey(),
			Session: visit.Session{
				PatientID:    r.patient.ID,
				Date:         r.today(),
				ReasonType:   visit.ReasonControl,
				ReasonDetail: visit.DetailAutoDraft,
			},
		}
		r.entries = append([]Entry{e}, r.entries...)
		r.active = e.Key
		r.touch()
		r.notify(LevelInfo, msgAutoDraftTitle, msgAutoDraft)
	}
	// The active key is never zero here.
	_ = r.odontograms.Set(r.active, dx)
}

// NewDraftSession adds an empty draft dated today, with one inactive zero
// quantity line per active template, and makes it the active session.
func (r *Record) NewDraftSession(templates []catalog.ProcedureTemplate) SessionKey {
	e := Entry{
		Key: NewDraftKey(),
		Session: visit.Session{
			PatientID: r.patient.ID,
			Date:      r.today(),
		},
		Items: []visit.Item{},
	}
	for _, t := range templates {
		if !t.Active {
			continue
		}
		id := t.ID
		e.Items = append(e.Items, visit.Item{
			Name:                t.Name,
			UnitPrice:           t.DefaultPrice,
			ProcedureTemplateID: &id,
			SortOrder:           len(e.Items),
		})
	}
	r.entries = append([]Entry{e}, r.entries...)
	r.active = e.Key
	r.touch()
	return e.Key
}

// EditSession mutates a draft through fn and recomputes its money fields.
// The key and the saved flag are restored after fn runs.
func (r *Record) EditSession(key SessionKey, fn func(e *Entry)) error {
	i := r.indexOf(key)
	if i < 0 {
		return ErrSessionNotFound
	}
	if !r.entries[i].Draft() {
		return ErrSessionReadOnly
	}
	e := r.entries[i].clone()
	fn(&e)
	e.Key = key
	e.Session.IsSaved = false
	e.recompute()
	r.entries[i] = e
	r.touch()
	return nil
}

// SetItemQuantity is the common edit of a draft line; a positive quantity
// activates the line.
func (r *Record) SetItemQuantity(key SessionKey, index int, q int64) error {
	var outOfRange bool
	err := r.EditSession(key, func(e *Entry) {
		if index < 0 || index >= len(e.Items) {
			outOfRange = true
			return
		}
		e.Items[index].SetQuantity(q)
	})
	if err == nil && outOfRange {
		return fmt.Errorf("item %d of %s: out of range", index, key)
	}
	return err
}

// DeleteDraftSession removes a draft from the record after confirmation.
// Pending attachments scoped to it become patient-general.
func (r *Record) DeleteDraftSession(key SessionKey, c Confirmer) (bool, error) {
	i := r.indexOf(key)
	if i < 0 {
		return false, ErrSessionNotFound
	}
	if !r.entries[i].Draft() {
		return false, ErrSessionReadOnly
	}
	if !confirmed(c, msgConfirmDropDraft) {
		return false, nil
	}
	r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
	r.odontograms.Drop(key)
	for j := range r.attachments {
		if r.attachments[j].Session == key {
			r.attachments[j].Session = SessionKey{}
		}
	}
	if r.active == key {
		r.active = selectActive(r.entries)
	}
	r.touch()
	return true, nil
}

// SwitchSession makes key the active session. Unsaved odontogram edits of
// the current session need confirmation and are dropped when confirmed.
func (r *Record) SwitchSession(key SessionKey, c Confirmer) (bool, error) {
	if !key.IsZero() && r.indexOf(key) < 0 {
		return false, ErrSessionNotFound
	}
	if key == r.active {
		return true, nil
	}
	if r.odontograms.Changed(r.active) {
		if !confirmed(c, msgConfirmSwitch) {
			return false, nil
		}
		r.odontograms.Revert(r.active)
	}
	r.active = key
	return true, nil
}

// Reset clears the workspace for a new patient after confirmation.
func (r *Record) Reset(c Confirmer) bool {
	msg := msgConfirmReset
	if n := r.draftCount(); n > 0 {
		msg = fmt.Sprintf(msgConfirmResetDraft, n)
	}
	if !confirmed(c, msg) {
		return false
	}
	r.clear()
	return true
}

func (r *Record) clear() {
	r.patient = patient.Patient{}
	r.originalPatient = nil
	r.entries = nil
	r.active = SessionKey{}
	r.manualDx = ""
	r.originalManualDx = ""
	r.attachments = nil
	r.odontograms.Reset()
	r.drafts.Reset()
}

func (r *Record) draftCount() int {
	n := 0
	for _, e := range r.entries {
		if e.Draft() {
			n++
		}
	}
	return n
}

// AddAttachment queues a file for the next save. A non-zero session scopes
// it to that session of the record.
func (r *Record) AddAttachment(name, mimeType string, size int64, file FileSource, session SessionKey) (Attachment, error) {
	if strings.TrimSpace(name) == "" || file == nil {
		return Attachment{}, ErrInvalidAttachment
	}
	if !session.IsZero() && r.indexOf(session) < 0 {
		return Attachment{}, ErrSessionNotFound
	}
	a := newPendingAttachment(name, mimeType, size, file, session)
	r.attachments = append(r.attachments, a)
	return a, nil
}

func (r *Record) snapshotPatient() {
	p := r.patient.Profile()
	r.originalPatient = &p
}
