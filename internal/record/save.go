package record

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/greenapple/dental/internal/domain/attachment"
	"github.com/greenapple/dental/internal/domain/visit"
	"github.com/greenapple/dental/internal/platform/blobstore"
)

type Outcome string

const (
	OutcomeFull     Outcome = "full"
	OutcomeGranular Outcome = "granular"
	OutcomeNoOp     Outcome = "noop"
	OutcomeFailed   Outcome = "failed"
	OutcomeRejected Outcome = "rejected"
)

// SaveResult describes a finished save. SavedCount is the number of
// sessions written by a full save and the number of facets written by a
// granular one.
type SaveResult struct {
	Outcome       Outcome
	SavedCount    int
	PatientID     int64
	SessionIDs    []int64
	AttachmentIDs []int64
}

// Save persists what changed since the last load or save. With pending
// drafts everything goes through SaveVisitWithSessions; otherwise only the
// changed facets are written. On error no snapshot moves, so a retry sees
// the same changes.
func (r *Record) Save(ctx context.Context) (res SaveResult, err error) {
	if !r.saving.CompareAndSwap(false, true) {
		return SaveResult{}, ErrSaveInProgress
	}
	defer r.saving.Store(false)

	start := time.Now()
	defer func() { r.observer.ObserveSave(string(res.Outcome), time.Since(start)) }()

	ch := r.Changes()
	if !ch.HasPatientData {
		r.notify(LevelWarning, msgIncompleteTitle, msgIncomplete)
		return SaveResult{Outcome: OutcomeRejected}, ErrIncompletePatient
	}
	if !ch.CanSave {
		msg := msgNoValidNew
		if r.patient.ID > 0 {
			msg = msgNoValidExisting
		}
		r.notify(LevelInfo, msgNoValidTitle, msg)
		return SaveResult{Outcome: OutcomeRejected}, ErrNoChanges
	}

	if ch.HasDraftSessions {
		res, err = r.saveFull(ctx)
	} else {
		res, err = r.saveGranular(ctx, ch)
	}
	switch {
	case errors.Is(err, ErrNothingToSave):
		r.notify(LevelInfo, msgNoChangesTitle, msgNoChanges)
		return SaveResult{Outcome: OutcomeNoOp}, err
	case err != nil:
		r.logger.Error().Err(err).Int64("patient_id", r.patient.ID).Msg("save failed")
		r.notify(LevelError, msgSaveErrorTitle, fmt.Sprintf(msgSaveError, err.Error()))
		return SaveResult{Outcome: OutcomeFailed}, err
	}
	return res, nil
}

// shell is the "current session" sent along with a full save. The backend
// falls back to its diagnosis texts for sessions that carry none.
func (r *Record) shell() visit.Session {
	s := visit.Session{
		PatientID:     r.patient.ID,
		Date:          r.today(),
		ReasonType:    visit.ReasonOther,
		ToothDxJSON:   strOrEmpty(r.ToothDx().StoredJSON()),
		DiagnosisText: r.FullDiagnosis(),
		AutoDxText:    r.DiagnosisFromTeeth(),
		FullDxText:    r.FullDiagnosis(),
	}
	if i := r.indexOf(r.active); i >= 0 {
		a := r.entries[i].Session
		if a.ReasonType != "" {
			s.ReasonType = a.ReasonType
		}
		s.ReasonDetail = a.ReasonDetail
	}
	return s
}

func (r *Record) saveFull(ctx context.Context) (SaveResult, error) {
	req := &visit.SaveRequest{Patient: r.patient, Session: r.shell()}
	var drafts []int
	for i, e := range r.entries {
		if !e.Draft() {
			continue
		}
		w := e.withItems().Clone()
		dx := r.odontograms.Get(e.Key)
		w.Session.PatientID = r.patient.ID
		w.Session.ToothDxJSON = strOrEmpty(dx.StoredJSON())
		if w.Session.AutoDxText == "" {
			w.Session.AutoDxText = dx.DiagnosisText()
		}
		if w.Items == nil {
			w.Items = []visit.Item{}
		}
		req.Sessions = append(req.Sessions, w)
		drafts = append(drafts, i)
	}

	// Files first: metadata must never point at a file that is not there.
	written, err := r.writePending(ctx, r.patient.ID)
	if err != nil {
		return SaveResult{}, err
	}

	out, err := r.backend.SaveVisitWithSessions(ctx, req)
	if err != nil {
		return SaveResult{}, err
	}
	ids := out.SessionIDs
	if len(ids) == 0 && len(req.Sessions) == 1 && out.SessionID > 0 {
		ids = []int64{out.SessionID}
	}
	if len(ids) != len(req.Sessions) {
		return SaveResult{}, fmt.Errorf("backend returned %d session ids for %d sessions", len(ids), len(req.Sessions))
	}

	remap := make(map[SessionKey]int64, len(drafts))
	for j, i := range drafts {
		remap[r.entries[i].Key] = ids[j]
	}
	resolve := func(k SessionKey) *int64 {
		if id, ok := remap[k]; ok {
			return &id
		}
		return r.savedSessionID(k)
	}
	if err := r.recordMetadata(ctx, out.PatientID, written, resolve); err != nil {
		return SaveResult{}, err
	}

	r.patient.ID = out.PatientID
	r.snapshotPatient()
	for j, i := range drafts {
		e := &r.entries[i]
		old := e.Key
		e.Key = SavedKey(ids[j])
		e.Session.ID = ids[j]
		e.Session.PatientID = out.PatientID
		e.Session.ToothDxJSON = req.Sessions[j].Session.ToothDxJSON
		e.Session.IsSaved = true
		r.odontograms.Rekey(old, e.Key)
		if r.active == old {
			r.active = e.Key
		}
	}
	attachmentIDs := r.commitAttachments(written, resolve)
	r.odontograms.SnapshotAll()
	r.originalManualDx = r.manualDx
	r.touch()

	r.notify(LevelSuccess, msgSavedTitle, msgSavedFull)
	return SaveResult{
		Outcome:       OutcomeFull,
		SavedCount:    len(ids),
		PatientID:     out.PatientID,
		SessionIDs:    ids,
		AttachmentIDs: attachmentIDs,
	}, nil
}

func (r *Record) saveGranular(ctx context.Context, ch Changes) (SaveResult, error) {
	var (
		count        int
		pid          = r.patient.ID
		patientSaved bool
		written      []pendingFile
		dxID         int64
		dx           visit.ToothDx
	)

	if ch.HasPatientChanges && pid > 0 {
		p := r.patient
		if err := r.backend.UpdatePatientOnly(ctx, &p); err != nil {
			return SaveResult{}, err
		}
		patientSaved = true
		count++
	} else if pid == 0 && ch.HasPatientData {
		p := r.patient
		id, err := r.backend.UpsertPatient(ctx, &p)
		if err != nil {
			return SaveResult{}, err
		}
		pid = id
		patientSaved = true
		count++
	}

	if ch.HasNewAttachments && pid > 0 {
		var err error
		if written, err = r.writePending(ctx, pid); err != nil {
			return SaveResult{}, err
		}
		if err := r.recordMetadata(ctx, pid, written, r.savedSessionID); err != nil {
			return SaveResult{}, err
		}
		count++
	}

	if ch.HasOdontogramChanges && pid > 0 && !r.active.IsZero() {
		dx = r.odontograms.Get(r.active)
		id, err := r.backend.CreateDiagnosticUpdateSession(ctx, visit.DiagnosticUpdate{
			PatientID:   pid,
			ToothDxJSON: dx.StoredJSON(),
			AutoDxText:  optional(r.DiagnosisFromTeeth()),
			FullDxText:  optional(r.FullDiagnosis()),
		})
		if err != nil {
			return SaveResult{}, err
		}
		dxID = id
		count++
	}

	if count == 0 {
		return SaveResult{}, ErrNothingToSave
	}

	if patientSaved {
		r.patient.ID = pid
		r.snapshotPatient()
	}
	attachmentIDs := r.commitAttachments(written, r.savedSessionID)
	var sessionIDs []int64
	if dxID > 0 {
		r.placeDiagnosticSession(dxID, dx)
		sessionIDs = []int64{dxID}
	}
	r.touch()

	r.notify(LevelSuccess, msgSavedTitle, fmt.Sprintf(msgSavedGranular, count))
	return SaveResult{
		Outcome:       OutcomeGranular,
		SavedCount:    count,
		PatientID:     pid,
		SessionIDs:    sessionIDs,
		AttachmentIDs: attachmentIDs,
	}, nil
}

// placeDiagnosticSession puts the session created by an odontogram-only
// save into the list and makes it active. An active draft is replaced in
// place. A saved session is left with its stored odontogram and the new
// session is prepended.
func (r *Record) placeDiagnosticSession(id int64, dx visit.ToothDx) {
	key := SavedKey(id)
	e := Entry{
		Key: key,
		Session: visit.Session{
			ID:           id,
			PatientID:    r.patient.ID,
			Date:         r.today(),
			ReasonType:   visit.ReasonOther,
			ReasonDetail: visit.DetailDxUpdate,
			ToothDxJSON:  strOrEmpty(dx.StoredJSON()),
			AutoDxText:   dx.DiagnosisText(),
			FullDxText:   r.FullDiagnosis(),
			IsSaved:      true,
		},
		Items: []visit.Item{},
	}

	if i := r.indexOf(r.active); i >= 0 && r.entries[i].Draft() {
		r.odontograms.Rekey(r.active, key)
		r.entries[i] = e
	} else {
		if i >= 0 {
			e.Session.CumulativeBalance = r.entries[i].Session.CumulativeBalance
		}
		r.odontograms.Revert(r.active)
		_ = r.odontograms.Set(key, dx)
		r.entries = append([]Entry{e}, r.entries...)
	}
	r.active = key
	r.odontograms.SnapshotAsOriginal(key)
	r.originalManualDx = r.manualDx
}

// pendingFile is a pending attachment whose bytes are already stored.
type pendingFile struct {
	index int
	meta  attachment.Meta
	id    int64
}

func (r *Record) writePending(ctx context.Context, patientID int64) ([]pendingFile, error) {
	var out []pendingFile
	for i, a := range r.attachments {
		if !a.Pending() {
			continue
		}
		if r.files == nil {
			return nil, errors.New("no file store configured for attachments")
		}
		stored, err := r.storeFile(ctx, patientID, r.dateHint(a), a)
		if err != nil {
			return nil, fmt.Errorf("store %s: %w", a.Name, err)
		}
		out = append(out, pendingFile{
			index: i,
			meta: attachment.Meta{
				Filename:   a.Name,
				MimeType:   a.MimeType,
				Bytes:      stored.Bytes,
				StorageKey: stored.StorageKey,
			},
		})
	}
	return out, nil
}

func (r *Record) storeFile(ctx context.Context, patientID int64, hint string, a Attachment) (blobstore.StoredFile, error) {
	rc, err := a.File.Open()
	if err != nil {
		return blobstore.StoredFile{}, err
	}
	defer rc.Close()
	return r.files.Save(ctx, patientID, hint, a.Name, rc)
}

// dateHint picks the folder date of a file: its session's date when scoped,
// today otherwise.
func (r *Record) dateHint(a Attachment) string {
	if i := r.indexOf(a.Session); i >= 0 && r.entries[i].Session.Date != "" {
		return r.entries[i].Session.Date
	}
	return r.today()
}

// recordMetadata writes the metadata rows of already stored files. Files
// whose session resolves to an id use CreateAttachment, the rest go in one
// SaveAttachmentsWithoutSession call.
func (r *Record) recordMetadata(ctx context.Context, patientID int64, files []pendingFile, session func(SessionKey) *int64) error {
	var general []int
	for i := range files {
		sid := session(r.attachments[files[i].index].Session)
		if sid == nil {
			general = append(general, i)
			continue
		}
		id, err := r.backend.CreateAttachment(ctx, patientID, sid, files[i].meta)
		if err != nil {
			return err
		}
		files[i].id = id
	}
	if len(general) == 0 {
		return nil
	}
	metas := make([]attachment.Meta, len(general))
	for j, i := range general {
		metas[j] = files[i].meta
	}
	ids, err := r.backend.SaveAttachmentsWithoutSession(ctx, patientID, metas)
	if err != nil {
		return err
	}
	if len(ids) != len(metas) {
		return fmt.Errorf("backend returned %d attachment ids for %d files", len(ids), len(metas))
	}
	for j, i := range general {
		files[i].id = ids[j]
	}
	return nil
}

// commitAttachments swaps the file handle of every written attachment for
// its persisted id and storage key.
func (r *Record) commitAttachments(files []pendingFile, session func(SessionKey) *int64) []int64 {
	ids := make([]int64, 0, len(files))
	for _, f := range files {
		a := &r.attachments[f.index]
		if sid := session(a.Session); sid != nil {
			a.Session = SavedKey(*sid)
		} else {
			a.Session = SessionKey{}
		}
		a.ID = f.id
		a.StorageKey = f.meta.StorageKey
		a.Size = f.meta.Bytes
		a.UploadedAt = r.now()
		a.File = nil
		a.TempID = ""
		ids = append(ids, f.id)
	}
	return ids
}

// savedSessionID resolves a key of a persisted session still in the record.
func (r *Record) savedSessionID(k SessionKey) *int64 {
	if k.Kind != KeySaved || r.indexOf(k) < 0 {
		return nil
	}
	id := k.ID
	return &id
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
