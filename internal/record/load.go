package record

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/greenapple/dental/internal/domain/attachment"
	"github.com/greenapple/dental/internal/domain/visit"
)

// Load replaces the record with the persisted state of a patient. Sessions
// and attachments are fetched in parallel. On error the record is left as
// it was.
func (r *Record) Load(ctx context.Context, patientID int64) (err error) {
	defer func() {
		r.observer.ObserveLoad(err == nil)
		if err != nil {
			r.logger.Error().Err(err).Int64("patient_id", patientID).Msg("load failed")
			r.notify(LevelError, msgLoadErrorTitle, fmt.Sprintf(msgLoadError, err.Error()))
		}
	}()

	if patientID <= 0 {
		return ErrPatientNotFound
	}
	p, err := r.backend.FindPatientByID(ctx, patientID)
	if err != nil {
		return err
	}
	if p == nil {
		return ErrPatientNotFound
	}

	var (
		sessions []visit.WithItems
		stored   []*attachment.Attachment
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sessions, err = r.backend.GetSessionsByPatient(gctx, p.ID)
		return err
	})
	g.Go(func() error {
		var err error
		stored, err = r.backend.ListAttachments(gctx, p.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	entries := make([]Entry, 0, len(sessions))
	dx := make(map[SessionKey]visit.ToothDx, len(sessions))
	for _, w := range sessions {
		e := Entry{Key: keyFor(w.Session), Session: w.Session, Items: w.Items}
		if e.Items == nil {
			e.Items = []visit.Item{}
		}
		entries = append(entries, e)
		dx[e.Key] = r.parseToothDx(w.Session)
	}

	atts := make([]Attachment, 0, len(stored))
	for _, a := range stored {
		atts = append(atts, fromStored(a))
	}

	r.clear()
	r.patient = *p
	r.snapshotPatient()
	r.entries = entries
	r.odontograms.Load(dx)
	r.attachments = atts
	r.active = selectActive(entries)
	r.touch()
	return nil
}

// parseToothDx never fails: a malformed blob loads as an empty chart.
func (r *Record) parseToothDx(s visit.Session) visit.ToothDx {
	dx, err := visit.ParseToothDx(s.ToothDxJSON)
	if err != nil {
		r.logger.Warn().Err(err).Int64("session_id", s.ID).Msg("unreadable tooth diagnosis, using empty chart")
	}
	return dx
}

// selectActive picks the most recent draft, else the most recent saved
// session. Dates compare as strings; on equal dates the higher persisted id
// wins, then the first one encountered.
func selectActive(entries []Entry) SessionKey {
	var best *Entry
	for _, draftsOnly := range []bool{true, false} {
		for i := range entries {
			e := &entries[i]
			if e.Draft() != draftsOnly {
				continue
			}
			if best == nil || newer(e, best) {
				best = e
			}
		}
		if best != nil {
			return best.Key
		}
	}
	return SessionKey{}
}

func newer(a, b *Entry) bool {
	if a.Session.Date != b.Session.Date {
		return a.Session.Date > b.Session.Date
	}
	return a.Session.ID > b.Session.ID
}

// Payment is a quick payment on account.
type Payment struct {
	Date            string
	Amount          float64
	PaymentMethodID *int64
	Notes           string
}

// QuickPayment saves a payment-only session for the loaded patient at once
// and refreshes the saved sessions. Drafts in memory are kept.
func (r *Record) QuickPayment(ctx context.Context, pay Payment) (int64, error) {
	if r.patient.ID <= 0 {
		r.notify(LevelWarning, msgNoPatientTitle, msgNoPatient)
		return 0, ErrNoPatient
	}
	detail := pay.Notes
	if detail == "" {
		detail = visit.DetailQuickAbono
	}
	date := pay.Date
	if date == "" {
		date = r.today()
	}
	s := visit.Session{
		PatientID:       r.patient.ID,
		Date:            date,
		ReasonType:      visit.ReasonPayment,
		ReasonDetail:    detail,
		Payment:         pay.Amount,
		Balance:         -pay.Amount,
		PaymentMethodID: pay.PaymentMethodID,
		PaymentNotes:    pay.Notes,
	}

	id, err := r.quickPayment(ctx, s)
	if err != nil {
		r.logger.Error().Err(err).Int64("patient_id", r.patient.ID).Msg("quick payment failed")
		r.notify(LevelError, msgSaveErrorTitle, fmt.Sprintf(msgPaymentError, err.Error()))
		return 0, err
	}
	r.notify(LevelSuccess, msgPaymentTitle, msgPayment)
	return id, nil
}

func (r *Record) quickPayment(ctx context.Context, s visit.Session) (int64, error) {
	out, err := r.backend.SaveVisitWithSessions(ctx, &visit.SaveRequest{
		Patient:  r.patient,
		Session:  s,
		Sessions: []visit.WithItems{{Session: s, Items: []visit.Item{}}},
	})
	if err != nil {
		return 0, err
	}
	// The patient row was written with the in-memory fields.
	r.snapshotPatient()

	sessions, err := r.backend.GetSessionsByPatient(ctx, r.patient.ID)
	if err != nil {
		return out.SessionID, err
	}
	r.mergeSaved(sessions)
	return out.SessionID, nil
}

// mergeSaved replaces the saved sessions with a fresh list from the backend
// while keeping in-memory drafts and their odontograms.
func (r *Record) mergeSaved(sessions []visit.WithItems) {
	var drafts []Entry
	pending := map[SessionKey]bool{}
	for _, e := range r.entries {
		if e.Draft() {
			drafts = append(drafts, e)
			pending[e.Key] = true
		}
	}
	next := make([]Entry, 0, len(sessions)+len(drafts))
	next = append(next, drafts...)
	for _, w := range sessions {
		key := keyFor(w.Session)
		if pending[key] || !w.Session.IsSaved {
			continue
		}
		items := w.Items
		if items == nil {
			items = []visit.Item{}
		}
		next = append(next, Entry{Key: key, Session: w.Session, Items: items})
		if !r.odontograms.Has(key) {
			r.odontograms.Seed(key, r.parseToothDx(w.Session))
		}
	}
	r.entries = next
	if r.active.IsZero() || r.indexOf(r.active) < 0 {
		r.active = selectActive(next)
	}
	r.touch()
}

// DeleteAttachment removes an attachment from the record. Saved ones lose
// their metadata row; the file on disk is not touched.
func (r *Record) DeleteAttachment(ctx context.Context, a Attachment) error {
	idx := -1
	for i, cur := range r.attachments {
		if (a.ID > 0 && cur.ID == a.ID) || (a.ID == 0 && a.TempID != "" && cur.TempID == a.TempID) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrAttachmentNotFound
	}
	if id := r.attachments[idx].ID; id > 0 {
		if err := r.backend.DeleteAttachment(ctx, id); err != nil {
			r.logger.Error().Err(err).Int64("attachment_id", id).Msg("delete attachment failed")
			return err
		}
	}
	r.attachments = append(r.attachments[:idx:idx], r.attachments[idx+1:]...)
	return nil
}
